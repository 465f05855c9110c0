package ast

import "strings"

// Node is implemented by every syntax tree node.
type Node interface {
	// Pos returns the location of the node's first token.
	Pos() Location
	// String renders the node as canonical rule text.
	String() string
	node()
}

// Expr is an operand of a Condition: a Group or a Comparison.
type Expr interface {
	Node
	expr()
}

// Operand is a side of a Comparison: an Attribute or a NumberLiteral.
type Operand interface {
	Node
	operand()
}

// LogicalOp joins the operands of a Condition.
type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
)

// IsValid returns true for AND and OR.
func (op LogicalOp) IsValid() bool {
	return op == OpAnd || op == OpOr
}

// CompareOp is a binary comparison operator.
type CompareOp string

const (
	OpLess         CompareOp = "<"
	OpGreater      CompareOp = ">"
	OpLessEqual    CompareOp = "<="
	OpGreaterEqual CompareOp = ">="
	OpEqual        CompareOp = "=="
	OpNotEqual     CompareOp = "!="
)

// CompareOps lists the comparison operators in grammar order.
var CompareOps = []CompareOp{OpLess, OpGreater, OpLessEqual, OpGreaterEqual, OpEqual, OpNotEqual}

// IsValid returns true if op is one of the six comparison operators.
func (op CompareOp) IsValid() bool {
	for _, known := range CompareOps {
		if op == known {
			return true
		}
	}
	return false
}

// Conditional is the root of a parsed rule.
type Conditional struct {
	Condition *Condition
	Then      *Action
	Else      *Action // nil when the rule has no ELSE branch
	Location  Location
}

// HasElse returns true if the rule declares an ELSE branch.
func (c *Conditional) HasElse() bool {
	return c.Else != nil
}

func (c *Conditional) Pos() Location { return c.Location }

func (c *Conditional) String() string {
	var sb strings.Builder
	sb.WriteString("IF ")
	sb.WriteString(nodeString(c.Condition))
	sb.WriteString(" THEN ")
	sb.WriteString(nodeString(c.Then))
	if c.Else != nil {
		sb.WriteString(" ELSE ")
		sb.WriteString(c.Else.String())
	}
	return sb.String()
}

func (*Conditional) node() {}

// Condition is a flat chain of operands. Operators[i] joins Operands[i]
// and Operands[i+1]; AND and OR share a single precedence level.
type Condition struct {
	Operands  []Expr
	Operators []LogicalOp
	Location  Location
}

func (c *Condition) Pos() Location { return c.Location }

func (c *Condition) String() string {
	var sb strings.Builder
	for i, operand := range c.Operands {
		if i > 0 {
			sb.WriteByte(' ')
			if i-1 < len(c.Operators) {
				sb.WriteString(string(c.Operators[i-1]))
			} else {
				sb.WriteByte('?')
			}
			sb.WriteByte(' ')
		}
		sb.WriteString(nodeString(operand))
	}
	return sb.String()
}

func (*Condition) node() {}

// Group is a parenthesised condition.
type Group struct {
	Condition *Condition
	Location  Location
}

func (g *Group) Pos() Location { return g.Location }

func (g *Group) String() string {
	return "(" + nodeString(g.Condition) + ")"
}

func (*Group) node() {}
func (*Group) expr() {}

// Comparison compares two operands.
type Comparison struct {
	Left     Operand
	Op       CompareOp
	Right    Operand
	Location Location
}

func (c *Comparison) Pos() Location { return c.Location }

func (c *Comparison) String() string {
	return nodeString(c.Left) + " " + string(c.Op) + " " + nodeString(c.Right)
}

func (*Comparison) node() {}
func (*Comparison) expr() {}

// Attribute is a dotted path into the rule context.
type Attribute struct {
	Segments []string
	Location Location
}

// Key returns the context key for the attribute: its segments joined by ".".
func (a *Attribute) Key() string {
	return strings.Join(a.Segments, ".")
}

func (a *Attribute) Pos() Location { return a.Location }

func (a *Attribute) String() string { return a.Key() }

func (*Attribute) node()    {}
func (*Attribute) operand() {}

// NumberLiteral holds a numeric lexeme. Conversion happens at evaluation.
type NumberLiteral struct {
	Lexeme   string
	Location Location
}

func (n *NumberLiteral) Pos() Location { return n.Location }

func (n *NumberLiteral) String() string { return n.Lexeme }

func (*NumberLiteral) node()    {}
func (*NumberLiteral) operand() {}

// Action names the action selected by a branch.
type Action struct {
	Name     string
	Location Location
}

func (a *Action) Pos() Location { return a.Location }

func (a *Action) String() string { return a.Name + "()" }

func (*Action) node() {}

// nodeString renders n, tolerating nil interface values and nil pointers.
func nodeString(n Node) string {
	switch v := n.(type) {
	case nil:
		return "<nil>"
	case *Condition:
		if v == nil {
			return "<nil>"
		}
	case *Action:
		if v == nil {
			return "<nil>"
		}
	}
	return n.String()
}
