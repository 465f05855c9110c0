package export

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"

	"mercator-hq/rulebook/pkg/dsl/ast"
	"mercator-hq/rulebook/pkg/dsl/eval"
)

// CELVariable is the name of the map variable holding rule attributes.
const CELVariable = "attrs"

// celCostLimit bounds the runtime cost of one compiled rule.
const celCostLimit = 1000000

// CEL renders tree as a CEL expression over a map(string, double) variable
// named attrs.
func CEL(tree *ast.Conditional) (string, error) {
	if tree == nil || tree.Condition == nil || tree.Then == nil {
		return "", fmt.Errorf("%w: incomplete conditional", ErrUnsupported)
	}

	cond, err := celCondition(tree.Condition)
	if err != nil {
		return "", err
	}

	otherwise := `""`
	if tree.Else != nil {
		otherwise = strconv.Quote(tree.Else.Name)
	}
	return fmt.Sprintf("%s ? %s : %s", cond, strconv.Quote(tree.Then.Name), otherwise), nil
}

func celCondition(cond *ast.Condition) (string, error) {
	if len(cond.Operands) == 0 || len(cond.Operators) != len(cond.Operands)-1 {
		return "", fmt.Errorf("%w: malformed condition at %s", ErrUnsupported, cond.Location)
	}

	out, err := celExpr(cond.Operands[0])
	if err != nil {
		return "", err
	}
	for i, op := range cond.Operators {
		next, err := celExpr(cond.Operands[i+1])
		if err != nil {
			return "", err
		}
		switch op {
		case ast.OpAnd:
			out = "(" + out + " && " + next + ")"
		case ast.OpOr:
			out = "(" + out + " || " + next + ")"
		default:
			return "", fmt.Errorf("%w: logical operator %q", ErrUnsupported, op)
		}
	}
	return out, nil
}

func celExpr(node ast.Expr) (string, error) {
	switch n := node.(type) {
	case *ast.Group:
		return celCondition(n.Condition)
	case *ast.Comparison:
		left, err := celOperand(n.Left)
		if err != nil {
			return "", err
		}
		right, err := celOperand(n.Right)
		if err != nil {
			return "", err
		}
		if !n.Op.IsValid() {
			return "", fmt.Errorf("%w: comparison operator %q", ErrUnsupported, n.Op)
		}
		return "(" + left + " " + string(n.Op) + " " + right + ")", nil
	}
	return "", fmt.Errorf("%w: expression %T", ErrUnsupported, node)
}

func celOperand(node ast.Operand) (string, error) {
	switch n := node.(type) {
	case *ast.Attribute:
		key := strconv.Quote(n.Key())
		return fmt.Sprintf("((%s in %s) ? %s[%s] : 0.0)", key, CELVariable, CELVariable, key), nil
	case *ast.NumberLiteral:
		v, err := literal(n)
		if err != nil {
			return "", err
		}
		return celDouble(v), nil
	}
	return "", fmt.Errorf("%w: operand %T", ErrUnsupported, node)
}

// celDouble formats v so that CEL parses it as a double, never an int.
func celDouble(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// CELProgram is a rule compiled for the CEL runtime.
type CELProgram struct {
	expr    string
	program cel.Program
}

// CompileCEL translates tree and compiles it with cel-go.
func CompileCEL(tree *ast.Conditional) (*CELProgram, error) {
	expr, err := CEL(tree)
	if err != nil {
		return nil, err
	}

	env, err := cel.NewEnv(
		cel.Variable(CELVariable, cel.MapType(cel.StringType, cel.DoubleType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	checked, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile %q: %w", expr, issues.Err())
	}
	if !checked.OutputType().IsExactType(cel.StringType) {
		return nil, fmt.Errorf("compiled rule yields %s, not string", checked.OutputType())
	}

	prg, err := env.Program(checked, cel.CostLimit(celCostLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to build CEL program: %w", err)
	}

	return &CELProgram{expr: expr, program: prg}, nil
}

// Expr returns the CEL source of the program.
func (p *CELProgram) Expr() string {
	return p.expr
}

// Evaluate runs the program against vars. The boolean reports whether an
// action was selected.
func (p *CELProgram) Evaluate(ctx context.Context, vars eval.Context) (string, bool, error) {
	attrs := make(map[string]float64, len(vars))
	for k, v := range vars {
		attrs[k] = v
	}

	out, _, err := p.program.ContextEval(ctx, map[string]any{CELVariable: attrs})
	if err != nil {
		return "", false, fmt.Errorf("CEL evaluation failed: %w", err)
	}

	action, ok := out.Value().(string)
	if !ok {
		return "", false, fmt.Errorf("CEL evaluation yielded %T, not string", out.Value())
	}
	return action, action != "", nil
}

func literal(n *ast.NumberLiteral) (float64, error) {
	v, err := strconv.ParseFloat(n.Lexeme, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q at %s: %v", ErrUnsupported, n.Lexeme, n.Location, err)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: number %q at %s is not finite", ErrUnsupported, n.Lexeme, n.Location)
	}
	return v, nil
}
