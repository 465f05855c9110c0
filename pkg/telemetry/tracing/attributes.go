package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanRuleSetExecute = "ruleset.execute"
	SpanRuleEvaluate   = "ruleset.rule"
)

// Attribute keys recorded on rule set and rule spans.
const (
	AttrRuleSetName     = attribute.Key("ruleset.name")
	AttrRunID           = attribute.Key("ruleset.run_id")
	AttrRuleCount       = attribute.Key("ruleset.rules")
	AttrOutcome         = attribute.Key("ruleset.outcome")
	AttrExcludedCount   = attribute.Key("ruleset.excluded")
	AttrAttemptedCount  = attribute.Key("ruleset.attempted")
	AttrRuleIndex       = attribute.Key("rule.index")
	AttrRuleID          = attribute.Key("rule.id")
	AttrRuleAction      = attribute.Key("rule.action")
	AttrRuleSelected    = attribute.Key("rule.selected")
	AttrRuleExcludedBy  = attribute.Key("rule.excluded_stage")
	AttrTerminalReached = attribute.Key("rule.terminal")
)

// RuleSetAttributes returns the attributes known when a batch starts.
func RuleSetAttributes(name, runID string, rules int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRuleSetName.String(name),
		AttrRunID.String(runID),
		AttrRuleCount.Int(rules),
	}
}

// SetBatchResult records how a batch ended.
func SetBatchResult(span trace.Span, outcome string, attempted, excluded int) {
	span.SetAttributes(
		AttrOutcome.String(outcome),
		AttrAttemptedCount.Int(attempted),
		AttrExcludedCount.Int(excluded),
	)
}

// RuleAttributes returns the attributes known when a rule starts.
func RuleAttributes(index int, id string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRuleIndex.Int(index),
		AttrRuleID.String(id),
	}
}

// SetRuleResult records the action chosen by a rule.
func SetRuleResult(span trace.Span, action string, selected, terminal bool) {
	span.SetAttributes(
		AttrRuleAction.String(action),
		AttrRuleSelected.Bool(selected),
		AttrTerminalReached.Bool(terminal),
	)
}

// SetRuleExcluded records the stage at which a rule was excluded along with
// the error.
func SetRuleExcluded(span trace.Span, stage string, err error) {
	span.SetAttributes(AttrRuleExcludedBy.String(stage))
	SetError(span, err)
}
