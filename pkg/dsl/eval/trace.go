package eval

import (
	"fmt"
	"strconv"

	"mercator-hq/rulebook/pkg/dsl/ast"
)

// StepKind identifies a trace step.
type StepKind string

const (
	StepAttribute  StepKind = "attribute"     // Attribute resolved from the context
	StepDefault    StepKind = "default"       // Attribute absent, defaulted to zero
	StepComparison StepKind = "comparison"    // Comparison evaluated
	StepSkip       StepKind = "short_circuit" // Operand not evaluated
	StepGroup      StepKind = "group"         // Group evaluated
	StepBranch     StepKind = "branch"        // Branch selected
)

// TraceStep records one step of an evaluation.
type TraceStep struct {
	Kind     StepKind     `json:"kind"`
	Expr     string       `json:"expr"`
	Location ast.Location `json:"location"`
	Result   string       `json:"result"`
}

func (s TraceStep) String() string {
	return fmt.Sprintf("%-13s %s => %s", s.Kind, s.Expr, s.Result)
}

// tracer collects steps when enabled; a nil tracer records nothing.
type tracer struct {
	steps []TraceStep
}

func (t *tracer) add(kind StepKind, node ast.Node, result string) {
	if t == nil {
		return
	}
	t.steps = append(t.steps, TraceStep{
		Kind:     kind,
		Expr:     node.String(),
		Location: node.Pos(),
		Result:   result,
	})
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
