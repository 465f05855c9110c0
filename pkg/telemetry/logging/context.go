package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Context keys for common log fields.
type contextKey string

const (
	// RunIDKey is the context key for batch run IDs.
	RunIDKey contextKey = "run_id"

	// RuleSetKey is the context key for rule-set names.
	RuleSetKey contextKey = "rule_set"

	// RuleIDKey is the context key for rule identifiers.
	RuleIDKey contextKey = "rule_id"

	// RequestIDKey is the context key for HTTP request IDs.
	RequestIDKey contextKey = "request_id"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		return runID
	}
	return ""
}

// WithRuleSet adds a rule-set name to the context.
func WithRuleSet(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, RuleSetKey, name)
}

// GetRuleSet retrieves the rule-set name from the context.
func GetRuleSet(ctx context.Context) string {
	if name, ok := ctx.Value(RuleSetKey).(string); ok {
		return name
	}
	return ""
}

// WithRuleID adds a rule identifier to the context.
func WithRuleID(ctx context.Context, ruleID string) context.Context {
	return context.WithValue(ctx, RuleIDKey, ruleID)
}

// GetRuleID retrieves the rule identifier from the context.
func GetRuleID(ctx context.Context) string {
	if ruleID, ok := ctx.Value(RuleIDKey).(string); ok {
		return ruleID
	}
	return ""
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// extractContextFields extracts common fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, "run_id", runID)
	}
	if name := GetRuleSet(ctx); name != "" {
		fields = append(fields, "rule_set", name)
	}
	if ruleID := GetRuleID(ctx); ruleID != "" {
		fields = append(fields, "rule_id", ruleID)
	}

	// Trace and span IDs come from the active OpenTelemetry span.
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			"trace_id", sc.TraceID().String(),
			"span_id", sc.SpanID().String(),
		)
	}

	return fields
}
