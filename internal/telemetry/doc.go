// Package telemetry provides OpenTelemetry tracing and metrics for docrag.
//
// Telemetry exports over OTLP (gRPC or HTTP/protobuf) to a collector.
// It is disabled by default; a disabled or degraded instance hands out the
// global no-op tracer and meter, so callers never need to check.
//
//	tel, err := telemetry.New(ctx, &cfg.Telemetry, telemetry.WithLogger(zl))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer("docrag.retrieval")
//	ctx, span := tracer.Start(ctx, "Pipeline.Ingest")
//	defer span.End()
//
// Tests use NewTestTelemetry, which records spans in memory.
package telemetry
