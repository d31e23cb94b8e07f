package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	requestKey  struct{}
	documentKey struct{}
)

// Document identifies the document an ingestion log line belongs to.
type Document struct {
	ID       string
	Filename string
}

// Correlation ids come from clients (X-Request-ID) as well as from uuid, so
// they are bounded before they reach a log line.
var correlationID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// WithRequestID tags ctx with an HTTP request id. Ids that are empty, longer
// than 128 bytes or contain anything but letters, digits, '-' and '_' are
// dropped and ctx is returned unchanged.
func WithRequestID(ctx context.Context, id string) context.Context {
	if !correlationID.MatchString(id) {
		return ctx
	}
	return context.WithValue(ctx, requestKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestKey{}).(string)
	return id
}

// WithDocument tags ctx with the document being ingested. The filename is
// user supplied and logged as is; an invalid id leaves ctx unchanged.
func WithDocument(ctx context.Context, id, filename string) context.Context {
	if !correlationID.MatchString(id) {
		return ctx
	}
	return context.WithValue(ctx, documentKey{}, Document{ID: id, Filename: filename})
}

// DocumentFromContext returns the document ctx was tagged with.
func DocumentFromContext(ctx context.Context) (Document, bool) {
	d, ok := ctx.Value(documentKey{}).(Document)
	return d, ok
}

// ContextFields returns the correlation fields carried by ctx: trace and span
// ids of the active span, the request id and the document.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if doc, ok := DocumentFromContext(ctx); ok {
		fields = append(fields, zap.String("document.id", doc.ID))
		if doc.Filename != "" {
			fields = append(fields, zap.String("document.filename", doc.Filename))
		}
	}
	return fields
}
