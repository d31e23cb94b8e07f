package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func encode(t *testing.T, cfg RedactionConfig, fields ...zapcore.Field) string {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)
	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "embedding request"}, fields)
	require.NoError(t, err)
	return buf.String()
}

func TestRedactingEncoder_EncodeEntry(t *testing.T) {
	out := encode(t, NewDefaultConfig().Redaction,
		zap.String("token", "sk-live"),
		zap.String("header", "Bearer abc.def"),
		zap.String("model", "all-minilm"),
		zap.ByteString("API_KEY", []byte("raw-bytes")),
		zap.Any("credential", map[string]string{"user": "u"}),
	)

	assert.Contains(t, out, `"token":"[REDACTED]"`)
	assert.Contains(t, out, `"header":"[REDACTED:pattern]"`)
	assert.Contains(t, out, `"model":"all-minilm"`)
	assert.Contains(t, out, `"API_KEY":"[REDACTED]"`)
	assert.Contains(t, out, `"credential":"[REDACTED]"`)
	assert.NotContains(t, out, "sk-live")
	assert.NotContains(t, out, "raw-bytes")
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	// Fields bound with With go through the encoder once, at bind time.
	child := enc.Clone()
	zap.String("qdrant_api_key", "qk-123").AddTo(child)
	buf, err := child.EncodeEntry(zapcore.Entry{Message: "store ready"}, nil)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"qdrant_api_key":"[REDACTED]"`)
	assert.NotContains(t, buf.String(), "qk-123")
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	out := encode(t, RedactionConfig{}, zap.String("token", "visible"))
	assert.Contains(t, out, "visible")
}

func TestRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"("}})
	assert.ErrorContains(t, err, "invalid redaction pattern")
}
