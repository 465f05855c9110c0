package eval

import (
	"fmt"

	"mercator-hq/rulebook/pkg/dsl/ast"
)

// compare applies a comparison operator to two numbers.
func compare(op ast.CompareOp, left, right float64) (bool, error) {
	switch op {
	case ast.OpLess:
		return left < right, nil
	case ast.OpGreater:
		return left > right, nil
	case ast.OpLessEqual:
		return left <= right, nil
	case ast.OpGreaterEqual:
		return left >= right, nil
	case ast.OpEqual:
		return left == right, nil
	case ast.OpNotEqual:
		return left != right, nil
	default:
		return false, fmt.Errorf("unknown operator: %q", op)
	}
}
