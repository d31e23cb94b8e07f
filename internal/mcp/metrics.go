package mcp

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/mcp"

// toolMetrics meters tool calls and what the document tools return.
type toolMetrics struct {
	calls         metric.Int64Counter
	duration      metric.Float64Histogram
	failures      metric.Int64Counter
	inFlight      metric.Int64UpDownCounter
	searchResults metric.Int64Histogram
}

// newToolMetrics creates the instruments on meter, or on the global provider
// when meter is nil.
func newToolMetrics(meter metric.Meter, logger *zap.Logger) *toolMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("failed to create mcp instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &toolMetrics{}
	var err error

	m.calls, err = meter.Int64Counter("docrag.mcp.tool.invocations_total",
		metric.WithDescription("MCP tool calls by tool"),
		metric.WithUnit("{invocation}"))
	warn("invocations_total", err)

	m.duration, err = meter.Float64Histogram("docrag.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool call latency by tool"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60))
	warn("duration_seconds", err)

	m.failures, err = meter.Int64Counter("docrag.mcp.tool.errors_total",
		metric.WithDescription("Failed MCP tool calls by tool and reason"),
		metric.WithUnit("{error}"))
	warn("errors_total", err)

	m.inFlight, err = meter.Int64UpDownCounter("docrag.mcp.tool.active_requests",
		metric.WithDescription("MCP tool calls currently running"),
		metric.WithUnit("{request}"))
	warn("active_requests", err)

	// An empty result is how a failing store shows up to a caller.
	m.searchResults, err = meter.Int64Histogram("docrag.mcp.search.results",
		metric.WithDescription("Chunks returned per document_search call"),
		metric.WithUnit("{chunk}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 20, 50))
	warn("search.results", err)

	return m
}

// begin marks a call to tool as running and returns the func that finishes it.
func (m *toolMetrics) begin(ctx context.Context, tool string) func(err error) {
	start := time.Now()
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	if m.inFlight != nil {
		m.inFlight.Add(ctx, 1, attrs)
	}

	return func(err error) {
		if m.inFlight != nil {
			m.inFlight.Add(ctx, -1, attrs)
		}
		if m.calls != nil {
			m.calls.Add(ctx, 1, attrs)
		}
		if m.duration != nil {
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
		if err != nil && m.failures != nil {
			m.failures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("tool", tool),
				attribute.String("reason", failureReason(err)),
			))
		}
	}
}

func (m *toolMetrics) recordSearch(ctx context.Context, n int) {
	if m.searchResults != nil {
		m.searchResults.Record(ctx, int64(n))
	}
}

// failureReason maps a tool error to a low-cardinality label.
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errInvalidInput):
		return "invalid_input"
	case errors.Is(err, retrieval.ErrExtraction):
		return "extraction"
	case errors.Is(err, retrieval.ErrEmbedding):
		return "embedding"
	case errors.Is(err, retrieval.ErrStore):
		return "storage"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case errors.Is(err, fs.ErrPermission):
		return "permission"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "internal"
	}
}
