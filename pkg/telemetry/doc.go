// Package telemetry groups the observability packages of rulebook.
//
// # Components
//
//   - logging: slog-based structured logging that adds request and run IDs
//     from the context to every record
//   - metrics: Prometheus counters and histograms for rule evaluations,
//     exclusions, batches and the parse cache
//   - tracing: OpenTelemetry spans for rule set executions and HTTP requests,
//     exported over OTLP/gRPC
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	l, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//		return err
//	}
//	logger := l.Slog()
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//		return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	executor := ruleset.NewExecutor(engine, dispatcher, nil, logger).
//		WithObserver(collector).
//		WithTracer(tracer.Tracer())
//
// Metrics and tracing are optional everywhere: a nil collector is never
// called, and a disabled tracer is a noop.
package telemetry
