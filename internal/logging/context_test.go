package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zapcore"
)

func fieldMap(ctx context.Context) map[string]zapcore.Field {
	out := map[string]zapcore.Field{}
	for _, f := range ContextFields(ctx) {
		out[f.Key] = f
	}
	return out
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Trace(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "ingest")
	defer span.End()

	fields := fieldMap(ctx)
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"].String)
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"].String)
	assert.Contains(t, fields, "trace_sampled")
}

func TestContextFields_RequestAndDocument(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req_123")
	ctx = WithDocument(ctx, "2f1c6a4e-7d0b-4c39-9a55-3b1f9e2d8c71", "report.pdf")

	fields := fieldMap(ctx)
	assert.Equal(t, "req_123", fields["request.id"].String)
	assert.Equal(t, "2f1c6a4e-7d0b-4c39-9a55-3b1f9e2d8c71", fields["document.id"].String)
	assert.Equal(t, "report.pdf", fields["document.filename"].String)
}

func TestWithDocument_OmitsEmptyFilename(t *testing.T) {
	ctx := WithDocument(context.Background(), "doc-1", "")
	fields := fieldMap(ctx)
	assert.Contains(t, fields, "document.id")
	assert.NotContains(t, fields, "document.filename")
}

func TestWithRequestID_InvalidIsDropped(t *testing.T) {
	ctx := context.Background()
	for _, id := range []string{"", "has space", "a/b", strings.Repeat("x", 129)} {
		assert.Equal(t, ctx, WithRequestID(ctx, id), "id %q", id)
	}
	assert.Equal(t, ctx, WithDocument(ctx, "bad/id", "x.txt"))

	_, ok := DocumentFromContext(ctx)
	assert.False(t, ok)
	assert.Empty(t, RequestIDFromContext(ctx))
}

func TestLogger_UsesContextFields(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithRequestID(context.Background(), "req-9")
	tl.Info(ctx, "http request")
	tl.AssertField(t, "http request", "request.id", "req-9")
}
