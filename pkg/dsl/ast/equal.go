package ast

// Equal reports whether two trees have the same structure and values,
// ignoring source locations.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case *Conditional:
		y, ok := b.(*Conditional)
		if !ok || (x == nil) != (y == nil) {
			return false
		}
		if x == nil {
			return true
		}
		return Equal(x.Condition, y.Condition) && actionEqual(x.Then, y.Then) && actionEqual(x.Else, y.Else)
	case *Condition:
		y, ok := b.(*Condition)
		if !ok || (x == nil) != (y == nil) {
			return false
		}
		if x == nil {
			return true
		}
		if len(x.Operands) != len(y.Operands) || len(x.Operators) != len(y.Operators) {
			return false
		}
		for i := range x.Operators {
			if x.Operators[i] != y.Operators[i] {
				return false
			}
		}
		for i := range x.Operands {
			if !Equal(x.Operands[i], y.Operands[i]) {
				return false
			}
		}
		return true
	case *Group:
		y, ok := b.(*Group)
		if !ok || (x == nil) != (y == nil) {
			return false
		}
		return x == nil || Equal(x.Condition, y.Condition)
	case *Comparison:
		y, ok := b.(*Comparison)
		if !ok || (x == nil) != (y == nil) {
			return false
		}
		return x == nil || (x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right))
	case *Attribute:
		y, ok := b.(*Attribute)
		if !ok || (x == nil) != (y == nil) {
			return false
		}
		if x == nil {
			return true
		}
		if len(x.Segments) != len(y.Segments) {
			return false
		}
		for i := range x.Segments {
			if x.Segments[i] != y.Segments[i] {
				return false
			}
		}
		return true
	case *NumberLiteral:
		y, ok := b.(*NumberLiteral)
		if !ok || (x == nil) != (y == nil) {
			return false
		}
		return x == nil || x.Lexeme == y.Lexeme
	case *Action:
		y, ok := b.(*Action)
		if !ok {
			return false
		}
		return actionEqual(x, y)
	}
	return false
}

func actionEqual(x, y *Action) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return x.Name == y.Name
}
