// Package eval reduces a parsed rule to the name of the action it selects.
//
// Attributes resolve through a Context; absent attributes evaluate to zero.
// Numbers are converted from their lexemes at evaluation time; literals too
// large for float64 evaluate to positive or negative infinity. A Condition
// is folded strictly left to right with AND and OR at the same precedence:
//
//	a OR b AND c  ==  (a OR b) AND c
//
// The fold short-circuits: the right operand of AND is skipped when the
// accumulated value is false, and the right operand of OR when it is true.
// Skipped operands are never evaluated and cannot raise errors.
//
// The evaluator only names actions. Invoking them is the caller's job.
package eval

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"

	"mercator-hq/rulebook/pkg/dsl/ast"
	"mercator-hq/rulebook/pkg/dsl/errors"
)

// Result is the outcome of evaluating a rule.
type Result struct {
	// Action is the selected action name. Empty when Selected is false.
	Action string

	// Selected is false when the condition was false and the rule has no
	// ELSE branch.
	Selected bool

	// Matched is the value of the rule's condition.
	Matched bool

	// Defaulted lists attribute keys that were absent from the context.
	Defaulted []string

	// Trace contains evaluation steps when tracing is enabled.
	Trace []TraceStep
}

// Evaluator evaluates syntax trees. It holds no per-call state and may be
// shared between goroutines.
type Evaluator struct {
	logger *slog.Logger
	trace  bool
}

// NewEvaluator creates an evaluator. A nil logger uses slog.Default().
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// WithTrace enables or disables evaluation tracing.
func (e *Evaluator) WithTrace(enabled bool) *Evaluator {
	e.trace = enabled
	return e
}

// Evaluate evaluates tree against vars and returns the selected action.
// Errors are *errors.Error values of type evaluation, or ctx.Err() when
// ctx is cancelled.
func (e *Evaluator) Evaluate(ctx context.Context, tree *ast.Conditional, vars Context) (*Result, error) {
	if tree == nil || tree.Condition == nil || tree.Then == nil {
		return nil, errors.NewEvaluationError(nil, "incomplete conditional", nil)
	}

	run := e.newEvaluation(ctx, vars)
	if e.trace {
		run.trace = &tracer{}
	}

	matched, err := run.condition(tree.Condition)
	if err != nil {
		return nil, err
	}

	result := &Result{Matched: matched, Defaulted: run.defaulted}
	switch {
	case matched:
		result.Action, result.Selected = tree.Then.Name, true
		run.trace.add(StepBranch, tree.Then, "THEN")
	case tree.Else != nil:
		result.Action, result.Selected = tree.Else.Name, true
		run.trace.add(StepBranch, tree.Else, "ELSE")
	default:
		run.trace.add(StepBranch, tree, "none")
	}

	if run.trace != nil {
		result.Trace = run.trace.steps
	}

	return result, nil
}

// EvaluateCondition evaluates a single condition.
func (e *Evaluator) EvaluateCondition(ctx context.Context, cond *ast.Condition, vars Context) (bool, error) {
	return e.newEvaluation(ctx, vars).condition(cond)
}

func (e *Evaluator) newEvaluation(ctx context.Context, vars Context) *evaluation {
	if ctx == nil {
		ctx = context.Background()
	}
	return &evaluation{ctx: ctx, vars: vars, logger: e.logger}
}

// evaluation is the state of one Evaluate call.
type evaluation struct {
	ctx       context.Context
	vars      Context
	logger    *slog.Logger
	trace     *tracer
	defaulted []string
}

func (r *evaluation) condition(cond *ast.Condition) (bool, error) {
	if cond == nil {
		return false, errors.NewEvaluationError(nil, "missing condition", nil)
	}
	if len(cond.Operands) == 0 {
		return false, errors.NewEvaluationError(cond, "empty condition", nil)
	}
	if len(cond.Operators) != len(cond.Operands)-1 {
		return false, errors.NewEvaluationError(cond,
			fmt.Sprintf("%d operands joined by %d operators", len(cond.Operands), len(cond.Operators)), nil)
	}

	acc, err := r.expr(cond.Operands[0])
	if err != nil {
		return false, err
	}

	for i, op := range cond.Operators {
		select {
		case <-r.ctx.Done():
			return false, r.ctx.Err()
		default:
		}

		operand := cond.Operands[i+1]
		switch op {
		case ast.OpAnd:
			if !acc {
				r.trace.add(StepSkip, operand, "skipped after false AND")
				continue
			}
		case ast.OpOr:
			if acc {
				r.trace.add(StepSkip, operand, "skipped after true OR")
				continue
			}
		default:
			return false, errors.NewEvaluationError(cond, fmt.Sprintf("unknown logical operator %q", op), nil)
		}

		// acc is now the neutral element for op, so the fold reduces to
		// the operand's value.
		if acc, err = r.expr(operand); err != nil {
			return false, err
		}
	}

	return acc, nil
}

func (r *evaluation) expr(node ast.Expr) (bool, error) {
	switch n := node.(type) {
	case *ast.Group:
		if n == nil {
			break
		}
		v, err := r.condition(n.Condition)
		if err != nil {
			return false, err
		}
		r.trace.add(StepGroup, n, strconv.FormatBool(v))
		return v, nil

	case *ast.Comparison:
		if n == nil {
			break
		}
		return r.comparison(n)
	}

	return false, errors.NewEvaluationError(nil, fmt.Sprintf("unsupported expression %T", node), nil)
}

func (r *evaluation) comparison(cmp *ast.Comparison) (bool, error) {
	left, err := r.operand(cmp.Left)
	if err != nil {
		return false, err
	}
	right, err := r.operand(cmp.Right)
	if err != nil {
		return false, err
	}

	v, err := compare(cmp.Op, left, right)
	if err != nil {
		return false, errors.NewEvaluationError(cmp, "invalid comparison", err)
	}

	r.trace.add(StepComparison, cmp,
		fmt.Sprintf("%s %s %s is %t", formatNumber(left), cmp.Op, formatNumber(right), v))
	return v, nil
}

func (r *evaluation) operand(node ast.Operand) (float64, error) {
	switch n := node.(type) {
	case *ast.NumberLiteral:
		if n == nil {
			break
		}
		v, err := strconv.ParseFloat(n.Lexeme, 64)
		if err != nil && !stderrors.Is(err, strconv.ErrRange) {
			return 0, errors.NewEvaluationError(n, "invalid number", err)
		}
		return v, nil

	case *ast.Attribute:
		if n == nil {
			break
		}
		if len(n.Segments) == 0 {
			return 0, errors.NewEvaluationError(n, "attribute has no name", nil)
		}
		for _, seg := range n.Segments {
			if seg == "" {
				return 0, errors.NewEvaluationError(n, "attribute has an empty segment", nil)
			}
		}

		key := n.Key()
		b := r.vars.Lookup(key)
		if !b.Found {
			if !contains(r.defaulted, key) {
				r.defaulted = append(r.defaulted, key)
			}
			r.logger.Debug("attribute not in context, using zero", "attribute", key)
			r.trace.add(StepDefault, n, "0")
			return 0, nil
		}
		r.trace.add(StepAttribute, n, formatNumber(b.Value))
		return b.Value, nil
	}

	return 0, errors.NewEvaluationError(nil, fmt.Sprintf("unsupported operand %T", node), nil)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
