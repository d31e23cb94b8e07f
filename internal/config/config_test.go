package config

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:8088", cfg.Server.Addr())
	assert.Equal(t, "chromem", cfg.Store.Backend)
	assert.Equal(t, "./chroma_db", cfg.Store.Path)
	assert.Equal(t, "docrag_docs", cfg.Store.Collection)
	assert.Equal(t, 900, cfg.Chunking.Size)
	assert.Equal(t, 150, cfg.Chunking.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.DefaultTopK)
	assert.Equal(t, 50, cfg.Retrieval.MaxTopK)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, ".docragignore", cfg.Watch.IgnoreFile)
	assert.True(t, cfg.Secrets.Enabled)
	assert.False(t, cfg.Events.Enabled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.http_port"},
		{"upload size", func(c *Config) { c.Server.MaxUploadBytes = 0 }, "max_upload_bytes"},
		{"backend", func(c *Config) { c.Store.Backend = "pinecone" }, "store.backend"},
		{"chromem path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"qdrant port", func(c *Config) { c.Store.Backend = "qdrant"; c.Store.QdrantPort = 70000 }, "store.qdrant_port"},
		{"collection", func(c *Config) { c.Store.Collection = "" }, "store.collection"},
		{"provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "embedding.provider"},
		{"openai base url", func(c *Config) { c.Embedding.Provider = "openai" }, "embedding.base_url"},
		{"batch size", func(c *Config) { c.Embedding.BatchSize = 0 }, "batch_size"},
		{"chunk size", func(c *Config) { c.Chunking.Size = 0 }, "chunk_size"},
		{"overlap too large", func(c *Config) { c.Chunking.Overlap = 900 }, "chunking.overlap"},
		{"top k", func(c *Config) { c.Retrieval.MaxTopK = 1 }, "default_top_k"},
		{"nats url", func(c *Config) { c.Events.Enabled = true; c.Events.NATSURL = "" }, "events.nats_url"},
		{"subject prefix", func(c *Config) { c.Events.Enabled = true; c.Events.SubjectPrefix = "a.>" }, "subject_prefix"},
		{"watch dir", func(c *Config) {
			c.Watch.Enabled = true
			c.Watch.Dir = ""
			c.Watch.Extensions = DefaultWatchExtensions
		}, "watch.dir"},
		{"logging", func(c *Config) { c.Logging.Format = "xml" }, "logging"},
		{"telemetry", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Endpoint = "" }, "telemetry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	cfg.Chunking.Size = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.http_port")
	assert.Contains(t, err.Error(), "chunking.chunk_size")
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "config.Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "sk-live-123", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Token Secret `json:"token"`
	}{s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"[REDACTED]"}`, string(data))

	text, err := s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", string(text))
}

func TestSecret_Empty(t *testing.T) {
	var s Secret
	assert.False(t, s.IsSet())
	assert.Equal(t, "", s.String())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `""`, string(data))

	require.NoError(t, s.UnmarshalText([]byte("raw")))
	assert.Equal(t, "raw", s.Value())
}

func TestSecret_ZapObject(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	zap.New(core).Info("embedding client", zap.Object("token", Secret("tok-123")))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, map[string]any{"set": true}, fields["token"])
	assert.NotContains(t, fmt.Sprint(fields), "tok-123")
}
