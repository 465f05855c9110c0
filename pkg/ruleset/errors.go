package ruleset

import (
	"fmt"

	dslerrors "mercator-hq/rulebook/pkg/dsl/errors"
)

// Stage is the step at which a rule failed.
type Stage string

const (
	StageParse    Stage = "parse"
	StageContext  Stage = "context"
	StageEvaluate Stage = "evaluate"
	StageDispatch Stage = "dispatch"
)

// ExclusionError describes why a rule was excluded from a batch.
type ExclusionError struct {
	// Index is the rule's position in the set.
	Index int

	// RuleID is the rule's ID or its "#<index>" label.
	RuleID string

	// Stage is where the rule failed.
	Stage Stage

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ExclusionError) Error() string {
	return fmt.Sprintf("rule %s excluded at %s: %v", e.RuleID, e.Stage, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *ExclusionError) Unwrap() error {
	return e.Cause
}

// Kind classifies the exclusion for metrics: syntax, evaluation, context or
// dispatch.
func (e *ExclusionError) Kind() string {
	switch {
	case dslerrors.IsSyntax(e.Cause):
		return "syntax"
	case dslerrors.IsEvaluation(e.Cause):
		return "evaluation"
	default:
		return string(e.Stage)
	}
}

// LoadError is returned when a rule-set file cannot be loaded.
type LoadError struct {
	// FilePath is the path to the file that failed to load
	FilePath string

	// Message describes the error
	Message string

	// Cause is the underlying error that caused this load error
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load rule set %q: %s: %v", e.FilePath, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load rule set %q: %s", e.FilePath, e.Message)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// BuildError marks a rule that could not be built from its source
// document. The executor excludes the rule at Stage.
type BuildError struct {
	Stage Stage
	Cause error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return e.Cause.Error()
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *BuildError) Unwrap() error {
	return e.Cause
}
