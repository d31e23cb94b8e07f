// Package logging is docrag's zap setup.
//
// Logger methods take a context and prepend its correlation fields: the
// active span's trace_id and span_id, the HTTP request.id, and the
// document.id and document.filename of an ingestion in progress.
//
//	logger, err := logging.NewLogger(&cfg.Logging, tel.LoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithDocument(ctx, docID, "report.pdf")
//	logger.Info(ctx, "document indexed", zap.Int("chunks", n))
//
// Components that take a *zap.Logger get logger.Underlying().
//
// Entries go to stdout or stderr (the stdio MCP server owns stdout) and
// optionally to the OpenTelemetry log bridge. Console output passes through
// RedactingEncoder, which masks deny-listed keys and pattern matches.
// Entries below error are sampled. TraceLevel sits below debug and is
// accepted as "trace" in configuration.
//
// Tests use NewTestLogger and its Assert helpers.
package logging
