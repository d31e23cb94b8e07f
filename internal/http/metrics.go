package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/docrag/internal/http"

const routeUnmatched = "unmatched"

// requestMetrics meters every route plus the payload size of uploads.
type requestMetrics struct {
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	uploadBytes metric.Int64Histogram
	inFlight    metric.Int64UpDownCounter
}

// newRequestMetrics creates the instruments on meter, or on the global
// provider when meter is nil. Instruments that fail to register are left nil
// and skipped.
func newRequestMetrics(meter metric.Meter, logger *zap.Logger) *requestMetrics {
	if meter == nil {
		meter = otel.Meter(httpInstrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(name string, err error) {
		if err != nil {
			logger.Warn("failed to create http instrument", zap.String("instrument", name), zap.Error(err))
		}
	}

	m := &requestMetrics{}
	var err error

	m.requests, err = meter.Int64Counter("docrag.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status code"),
		metric.WithUnit("{request}"))
	warn("requests_total", err)

	m.duration, err = meter.Float64Histogram("docrag.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency by method, route and status code"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60))
	warn("request_duration_seconds", err)

	// Ingestion latency is dominated by embedding, which scales with size.
	m.uploadBytes, err = meter.Int64Histogram("docrag.http.upload_size_bytes",
		metric.WithDescription("Size of documents received by the upload route"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(1<<10, 16<<10, 128<<10, 1<<20, 4<<20, 16<<20))
	warn("upload_size_bytes", err)

	m.inFlight, err = meter.Int64UpDownCounter("docrag.http.active_requests",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"))
	warn("active_requests", err)

	return m
}

func (m *requestMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()

			if m.inFlight != nil {
				m.inFlight.Add(ctx, 1)
				defer m.inFlight.Add(ctx, -1)
			}

			err := next(c)

			route := routeLabel(c.Path())
			attrs := metric.WithAttributes(
				attribute.String("method", c.Request().Method),
				attribute.String("route", route),
				attribute.Int("status", responseStatus(c, err)),
			)
			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if route == routeDocuments && m.uploadBytes != nil && c.Request().ContentLength > 0 {
				m.uploadBytes.Record(ctx, c.Request().ContentLength)
			}
			return err
		}
	}
}

// responseStatus is the code the client will see. A returned error is only
// written by echo's error handler, after the middleware chain unwinds.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// routeLabel keeps the route attribute bounded: every registered route is
// static, and anything echo could not match collapses to one value.
func routeLabel(path string) string {
	if path == "" {
		return routeUnmatched
	}
	return path
}
