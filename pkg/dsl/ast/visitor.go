package ast

// Visitor is called for every node during Walk. Returning an error stops the
// traversal and Walk returns that error.
type Visitor interface {
	VisitConditional(*Conditional) error
	VisitCondition(*Condition) error
	VisitGroup(*Group) error
	VisitComparison(*Comparison) error
	VisitAttribute(*Attribute) error
	VisitNumber(*NumberLiteral) error
	VisitAction(*Action) error
}

// BaseVisitor implements Visitor with no-op methods. Embed it to override
// only the node kinds of interest.
type BaseVisitor struct{}

func (BaseVisitor) VisitConditional(*Conditional) error { return nil }
func (BaseVisitor) VisitCondition(*Condition) error     { return nil }
func (BaseVisitor) VisitGroup(*Group) error             { return nil }
func (BaseVisitor) VisitComparison(*Comparison) error   { return nil }
func (BaseVisitor) VisitAttribute(*Attribute) error     { return nil }
func (BaseVisitor) VisitNumber(*NumberLiteral) error    { return nil }
func (BaseVisitor) VisitAction(*Action) error           { return nil }

// Walk traverses the tree rooted at node depth-first in source order,
// visiting each node before its children. Nil nodes are skipped.
func Walk(node Node, visitor Visitor) error {
	switch n := node.(type) {
	case *Conditional:
		if n == nil {
			return nil
		}
		if err := visitor.VisitConditional(n); err != nil {
			return err
		}
		if n.Condition != nil {
			if err := Walk(n.Condition, visitor); err != nil {
				return err
			}
		}
		if n.Then != nil {
			if err := Walk(n.Then, visitor); err != nil {
				return err
			}
		}
		if n.Else != nil {
			return Walk(n.Else, visitor)
		}

	case *Condition:
		if n == nil {
			return nil
		}
		if err := visitor.VisitCondition(n); err != nil {
			return err
		}
		for _, operand := range n.Operands {
			if err := Walk(operand, visitor); err != nil {
				return err
			}
		}

	case *Group:
		if n == nil {
			return nil
		}
		if err := visitor.VisitGroup(n); err != nil {
			return err
		}
		if n.Condition != nil {
			return Walk(n.Condition, visitor)
		}

	case *Comparison:
		if n == nil {
			return nil
		}
		if err := visitor.VisitComparison(n); err != nil {
			return err
		}
		if err := Walk(n.Left, visitor); err != nil {
			return err
		}
		return Walk(n.Right, visitor)

	case *Attribute:
		if n == nil {
			return nil
		}
		return visitor.VisitAttribute(n)

	case *NumberLiteral:
		if n == nil {
			return nil
		}
		return visitor.VisitNumber(n)

	case *Action:
		if n == nil {
			return nil
		}
		return visitor.VisitAction(n)
	}

	return nil
}

type attributeCollector struct {
	BaseVisitor
	seen map[string]bool
	keys []string
}

func (c *attributeCollector) VisitAttribute(a *Attribute) error {
	key := a.Key()
	if !c.seen[key] {
		c.seen[key] = true
		c.keys = append(c.keys, key)
	}
	return nil
}

// Attributes returns the distinct attribute keys referenced under node,
// in order of first appearance.
func Attributes(node Node) []string {
	c := &attributeCollector{seen: make(map[string]bool)}
	_ = Walk(node, c)
	return c.keys
}

type actionCollector struct {
	BaseVisitor
	names []string
}

func (c *actionCollector) VisitAction(a *Action) error {
	c.names = append(c.names, a.Name)
	return nil
}

// Actions returns the action names referenced under node (THEN before ELSE).
func Actions(node Node) []string {
	c := &actionCollector{}
	_ = Walk(node, c)
	return c.names
}
