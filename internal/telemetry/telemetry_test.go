package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NotNil(t, tel.Tracer("docrag.test"))
	assert.NotNil(t, tel.Meter("docrag.test"))
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_ExportsSpans(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.MetricsEnabled = false
	exporter := tracetest.NewInMemoryExporter()

	tel, err := New(context.Background(), cfg, WithTraceExporter(exporter))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())

	_, span := tel.Tracer("docrag.test").Start(context.Background(), "Pipeline.Ingest")
	span.End()

	require.NoError(t, tel.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "Pipeline.Ingest", spans[0].Name)

	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNilTelemetry(t *testing.T) {
	var tel *Telemetry
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NotNil(t, tel.Tracer("x"))
}

func TestTestTelemetry_Assertions(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := tt.Tracer("docrag.test").Start(context.Background(), "VectorStore.Query")
	span.SetAttributes(attribute.Int("top_k", 5), attribute.String("backend", "chromem"))
	span.End()

	tt.AssertSpanExists(t, "VectorStore.Query")
	tt.AssertSpanAttribute(t, "VectorStore.Query", "top_k", int64(5))
	tt.AssertSpanAttribute(t, "VectorStore.Query", "backend", "chromem")
	assert.Nil(t, tt.SpanByName("missing"))
}

func TestTestTelemetry_Metrics(t *testing.T) {
	tt := NewTestTelemetry()
	meter := tt.Meter("docrag.test")
	ctx := context.Background()

	adds, err := meter.Int64Counter("docrag.test.adds")
	require.NoError(t, err)
	adds.Add(ctx, 2, metric.WithAttributes(attribute.String("backend", "chromem")))
	adds.Add(ctx, 3, metric.WithAttributes(attribute.String("backend", "qdrant")))

	latency, err := meter.Float64Histogram("docrag.test.latency")
	require.NoError(t, err)
	latency.Record(ctx, 0.1)
	latency.Record(ctx, 0.2)

	assert.Equal(t, []string{"docrag.test.adds", "docrag.test.latency"}, tt.MetricNames(t))
	assert.Equal(t, int64(5), tt.Sum(t, "docrag.test.adds"))
	assert.Equal(t, int64(3), tt.Sum(t, "docrag.test.adds", attribute.String("backend", "qdrant")))
	assert.Zero(t, tt.Sum(t, "docrag.test.missing"))
	assert.Equal(t, uint64(2), tt.Observations(t, "docrag.test.latency"))
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4317", stripScheme("collector:4317"))
}
