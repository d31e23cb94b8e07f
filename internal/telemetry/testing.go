package telemetry

import (
	"context"
	"slices"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// TestTelemetry is a Telemetry whose spans and metrics stay in memory so
// tests can inspect what a component recorded.
type TestTelemetry struct {
	*Telemetry

	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

// NewTestTelemetry returns an enabled Telemetry backed by in-memory
// recorders. Nothing is installed globally.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()

	tel := &Telemetry{
		config:         cfg,
		logger:         zap.NewNop(),
		tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(spans)),
		meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	tel.healthy.Store(true)

	return &TestTelemetry{Telemetry: tel, spans: spans, reader: reader}
}

// Spans returns the ended spans in the order they ended.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.spans.Ended()
}

// SpanByName returns the first ended span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, span := range t.Spans() {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

// AssertSpanExists fails tb unless a span called name has ended.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) != nil {
		return
	}
	names := make([]string, 0, len(t.Spans()))
	for _, span := range t.Spans() {
		names = append(names, span.Name())
	}
	tb.Errorf("span %q not recorded; have %v", name, names)
}

// AssertSpanAttribute fails tb unless span name carries key with value
// expected. Integers compare as int64.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, name, key string, expected any) {
	tb.Helper()
	span := t.SpanByName(name)
	if span == nil {
		tb.Fatalf("span %q not recorded", name)
	}
	for _, kv := range span.Attributes() {
		if string(kv.Key) != key {
			continue
		}
		if got := kv.Value.AsInterface(); got != expected {
			tb.Errorf("span %q attribute %q = %v, want %v", name, key, got, expected)
		}
		return
	}
	tb.Errorf("span %q has no attribute %q", name, key)
}

// Collect reads the current value of every instrument.
func (t *TestTelemetry) Collect(tb testing.TB) []metricdata.Metrics {
	tb.Helper()
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(context.Background(), &rm); err != nil {
		tb.Fatalf("collecting metrics: %v", err)
	}
	var out []metricdata.Metrics
	for _, sm := range rm.ScopeMetrics {
		out = append(out, sm.Metrics...)
	}
	return out
}

// MetricNames lists the instruments that have recorded at least once.
func (t *TestTelemetry) MetricNames(tb testing.TB) []string {
	tb.Helper()
	var names []string
	for _, m := range t.Collect(tb) {
		names = append(names, m.Name)
	}
	slices.Sort(names)
	return names
}

// Sum adds up the data points of an int64 counter whose attributes include
// every attr given. It returns 0 for an unknown instrument.
func (t *TestTelemetry) Sum(tb testing.TB, name string, attrs ...attribute.KeyValue) int64 {
	tb.Helper()
	var total int64
	for _, m := range t.Collect(tb) {
		if m.Name != name {
			continue
		}
		switch data := m.Data.(type) {
		case metricdata.Sum[int64]:
			for _, dp := range data.DataPoints {
				if hasAttrs(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		default:
			tb.Fatalf("metric %q is %T, not an int64 sum", name, m.Data)
		}
	}
	return total
}

// Observations counts the values recorded by a histogram whose attributes
// include every attr given.
func (t *TestTelemetry) Observations(tb testing.TB, name string, attrs ...attribute.KeyValue) uint64 {
	tb.Helper()
	var count uint64
	for _, m := range t.Collect(tb) {
		if m.Name != name {
			continue
		}
		switch data := m.Data.(type) {
		case metricdata.Histogram[float64]:
			for _, dp := range data.DataPoints {
				if hasAttrs(dp.Attributes, attrs) {
					count += dp.Count
				}
			}
		case metricdata.Histogram[int64]:
			for _, dp := range data.DataPoints {
				if hasAttrs(dp.Attributes, attrs) {
					count += dp.Count
				}
			}
		default:
			tb.Fatalf("metric %q is %T, not a histogram", name, m.Data)
		}
	}
	return count
}

func hasAttrs(set attribute.Set, want []attribute.KeyValue) bool {
	for _, kv := range want {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}
