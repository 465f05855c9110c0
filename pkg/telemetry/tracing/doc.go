// Package tracing provides OpenTelemetry tracing for rule set execution and
// the HTTP API.
//
// # Spans
//
// The executor opens one "ruleset.execute" span per batch and a child
// "ruleset.rule" span per rule. Attribute keys and helpers for both live in
// this package so that dashboards and the executor agree on names:
//
//	ruleset.execute  ruleset.name, ruleset.run_id, ruleset.rules,
//	                 ruleset.outcome, ruleset.attempted, ruleset.excluded
//	ruleset.rule     rule.index, rule.id, rule.action, rule.selected,
//	                 rule.terminal, rule.excluded_stage
//
// HTTP requests are wrapped by Middleware, which continues the caller's W3C
// trace context and names the server span after the matched chi route.
//
// # Exporters
//
// "otlp" (the default) sends spans over OTLP/gRPC to a collector at
// host:port; "zipkin" posts them to a Zipkin collector URL:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    exporter: zipkin
//	    endpoint: http://localhost:9411/api/v2/spans
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	executor := ruleset.NewExecutor(engine, dispatcher, nil, logger).
//	    WithTracer(tracer.Tracer())
//
// When tracing is disabled New returns a noop tracer, so callers never need
// to branch on configuration.
package tracing
