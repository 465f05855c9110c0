package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/diegoholiveira/jsonlogic/v3"

	"mercator-hq/rulebook/pkg/dsl/ast"
	"mercator-hq/rulebook/pkg/dsl/eval"
)

// ErrUnsupported is returned when a tree cannot be translated.
var ErrUnsupported = errors.New("unsupported rule")

// JSONLogic renders tree as a JSONLogic rule. Attributes become
// {"var": [key, 0]} so that missing values read as zero.
func JSONLogic(tree *ast.Conditional) (map[string]any, error) {
	if tree == nil || tree.Condition == nil || tree.Then == nil {
		return nil, fmt.Errorf("%w: incomplete conditional", ErrUnsupported)
	}

	cond, err := logicCondition(tree.Condition)
	if err != nil {
		return nil, err
	}

	var otherwise any
	if tree.Else != nil {
		otherwise = tree.Else.Name
	}
	return map[string]any{"if": []any{cond, tree.Then.Name, otherwise}}, nil
}

func logicCondition(cond *ast.Condition) (any, error) {
	if len(cond.Operands) == 0 || len(cond.Operators) != len(cond.Operands)-1 {
		return nil, fmt.Errorf("%w: malformed condition at %s", ErrUnsupported, cond.Location)
	}

	out, err := logicExpr(cond.Operands[0])
	if err != nil {
		return nil, err
	}
	for i, op := range cond.Operators {
		next, err := logicExpr(cond.Operands[i+1])
		if err != nil {
			return nil, err
		}
		switch op {
		case ast.OpAnd:
			out = map[string]any{"and": []any{out, next}}
		case ast.OpOr:
			out = map[string]any{"or": []any{out, next}}
		default:
			return nil, fmt.Errorf("%w: logical operator %q", ErrUnsupported, op)
		}
	}
	return out, nil
}

func logicExpr(node ast.Expr) (any, error) {
	switch n := node.(type) {
	case *ast.Group:
		return logicCondition(n.Condition)
	case *ast.Comparison:
		if !n.Op.IsValid() {
			return nil, fmt.Errorf("%w: comparison operator %q", ErrUnsupported, n.Op)
		}
		left, err := logicOperand(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := logicOperand(n.Right)
		if err != nil {
			return nil, err
		}
		return map[string]any{string(n.Op): []any{left, right}}, nil
	}
	return nil, fmt.Errorf("%w: expression %T", ErrUnsupported, node)
}

func logicOperand(node ast.Operand) (any, error) {
	switch n := node.(type) {
	case *ast.Attribute:
		return map[string]any{"var": []any{n.Key(), 0}}, nil
	case *ast.NumberLiteral:
		return literal(n)
	}
	return nil, fmt.Errorf("%w: operand %T", ErrUnsupported, node)
}

// JSONLogicData nests a flat attribute context the way JSONLogic "var"
// paths expect: {"a.b": 1} becomes {"a": {"b": 1}}. It fails when one key
// is a prefix of another, since the two cannot both be represented.
func JSONLogicData(vars eval.Context) (map[string]any, error) {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := make(map[string]any)
	for _, key := range keys {
		segments := strings.Split(key, ".")
		node := root
		for _, seg := range segments[:len(segments)-1] {
			child, exists := node[seg]
			if !exists {
				next := make(map[string]any)
				node[seg] = next
				node = next
				continue
			}
			next, ok := child.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("attribute %q conflicts with a shorter attribute", key)
			}
			node = next
		}
		last := segments[len(segments)-1]
		if _, exists := node[last]; exists {
			return nil, fmt.Errorf("attribute %q conflicts with a longer attribute", key)
		}
		node[last] = vars[key]
	}
	return root, nil
}

// ApplyJSONLogic applies a rule produced by JSONLogic to vars. The boolean
// reports whether an action was selected.
func ApplyJSONLogic(rule map[string]any, vars eval.Context) (string, bool, error) {
	data, err := JSONLogicData(vars)
	if err != nil {
		return "", false, err
	}

	ruleJSON, err := json.Marshal(rule)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode rule: %w", err)
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return "", false, fmt.Errorf("failed to encode data: %w", err)
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(ruleJSON), bytes.NewReader(dataJSON), &out); err != nil {
		return "", false, fmt.Errorf("JSONLogic evaluation failed: %w", err)
	}

	var result any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		return "", false, fmt.Errorf("failed to decode JSONLogic result: %w", err)
	}
	switch v := result.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	default:
		return "", false, fmt.Errorf("JSONLogic evaluation yielded %T, not string", result)
	}
}
