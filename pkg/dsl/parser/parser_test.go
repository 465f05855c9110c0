package parser

import (
	"reflect"
	"strings"
	"testing"

	"mercator-hq/rulebook/pkg/dsl/ast"
	"mercator-hq/rulebook/pkg/dsl/errors"
)

func TestParser_Parse_Simple(t *testing.T) {
	tree, err := Parse("IF ( PSR < constant ) THEN action1 ( ) ELSE action2 ( )")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if tree.Location != (ast.Location{Line: 1, Column: 1, Offset: 0}) {
		t.Errorf("Location = %+v, want 1:1", tree.Location)
	}
	if tree.Then == nil || tree.Then.Name != "action1" {
		t.Errorf("Then = %v, want action1", tree.Then)
	}
	if !tree.HasElse() || tree.Else.Name != "action2" {
		t.Errorf("Else = %v, want action2", tree.Else)
	}

	if len(tree.Condition.Operands) != 1 {
		t.Fatalf("len(Operands) = %d, want 1", len(tree.Condition.Operands))
	}
	group, ok := tree.Condition.Operands[0].(*ast.Group)
	if !ok {
		t.Fatalf("Operands[0] is %T, want *ast.Group", tree.Condition.Operands[0])
	}
	cmp, ok := group.Condition.Operands[0].(*ast.Comparison)
	if !ok {
		t.Fatalf("group operand is %T, want *ast.Comparison", group.Condition.Operands[0])
	}
	if cmp.Op != ast.OpLess {
		t.Errorf("Op = %q, want %q", cmp.Op, ast.OpLess)
	}
	if left, ok := cmp.Left.(*ast.Attribute); !ok || left.Key() != "PSR" {
		t.Errorf("Left = %v, want attribute PSR", cmp.Left)
	}
	if right, ok := cmp.Right.(*ast.Attribute); !ok || right.Key() != "constant" {
		t.Errorf("Right = %v, want attribute constant", cmp.Right)
	}
}

func TestParser_Parse_Valid(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"no else", "IF a > 1 THEN go()", "IF a > 1 THEN go()"},
		{"dotted attribute", "IF WS.Age >= 18 THEN adult()", "IF WS.Age >= 18 THEN adult()"},
		{"number on left", "IF 3 == x THEN eq()", "IF 3 == x THEN eq()"},
		{"negative and fractional", "IF a != -2.5 THEN x() ELSE y()", "IF a != -2.5 THEN x() ELSE y()"},
		{"chain", "IF a < 1 AND b > 2 OR c <= 3 THEN x()", "IF a < 1 AND b > 2 OR c <= 3 THEN x()"},
		{"nested groups", "IF ((a < 1) OR (b < 2)) AND c == 0 THEN x()", "IF ((a < 1) OR (b < 2)) AND c == 0 THEN x()"},
		{"multi-line", "IF a < 1\n  AND b < 2\nTHEN x()\nELSE y()", "IF a < 1 AND b < 2 THEN x() ELSE y()"},
		{"tight spacing", "IF(a<1)THEN x()ELSE y()", "IF (a < 1) THEN x() ELSE y()"},
		{"keyword-like identifiers", "IF if < then THEN and()", "IF if < then THEN and()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.text, err)
			}
			if got := tree.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParser_Parse_FlatChain(t *testing.T) {
	tree, err := Parse("IF a < 1 AND b > 2 OR c <= 3 THEN x()")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	cond := tree.Condition
	if len(cond.Operands) != 3 {
		t.Fatalf("len(Operands) = %d, want 3", len(cond.Operands))
	}
	want := []ast.LogicalOp{ast.OpAnd, ast.OpOr}
	if !reflect.DeepEqual(cond.Operators, want) {
		t.Errorf("Operators = %v, want %v", cond.Operators, want)
	}
}

func TestParser_Parse_Deterministic(t *testing.T) {
	text := "IF ( PSR < constant ) AND WS.Age >= 18 THEN action1() ELSE action2()"

	first, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	second, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("parsing identical text produced different trees")
	}
}

func TestParser_Parse_RoundTrip(t *testing.T) {
	texts := []string{
		"IF ( PSR < constant ) THEN action1 ( ) ELSE action2 ( )",
		"IF a<1 AND (b>=2 OR c.d != .5) THEN x()",
		"IF ((((a == 1)))) THEN x() ELSE y()",
	}

	for _, text := range texts {
		tree, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", text, err)
		}
		again, err := Parse(tree.String())
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tree.String(), err)
		}
		if !ast.Equal(tree, again) {
			t.Errorf("round trip of %q changed the tree: %q", text, again.String())
		}
	}
}

func TestParser_Parse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		lexeme  string
		line    int
		column  int
		message string
	}{
		{"empty", "", "", 1, 1, "unexpected end of rule, expected IF"},
		{"missing IF", "a < 1 THEN x()", "a", 1, 1, "expected IF"},
		{"missing THEN", "IF a < 1 x()", "x", 1, 10, "expected AND, OR or THEN"},
		{"missing comparison operator", "IF a THEN x()", "THEN", 1, 6, "expected ., <, >, <=, >=, == or !="},
		{"missing right operand", "IF a < THEN x()", "THEN", 1, 8, "expected attribute or number"},
		{"unmatched open paren", "IF (a < 1 THEN x()", "THEN", 1, 11, "expected AND, OR or )"},
		{"unmatched close paren", "IF a < 1) THEN x()", ")", 1, 9, "expected AND, OR or THEN"},
		{"empty action", "IF a < 1 THEN ()", "(", 1, 15, "expected identifier"},
		{"missing action", "IF a < 1 THEN", "", 1, 14, "unexpected end of rule"},
		{"action without parens", "IF a < 1 THEN x", "", 1, 16, "expected ("},
		{"action with argument", "IF a < 1 THEN x(1)", "1", 1, 17, "expected )"},
		{"trailing tokens", "IF a < 1 THEN x() ELSE y() z", "z", 1, 28, "expected end of rule"},
		{"trailing after then", "IF a < 1 THEN x() y()", "y", 1, 19, "expected ELSE or end of rule"},
		{"dangling operator", "IF a < 1 AND THEN x()", "THEN", 1, 14, "expected (, attribute or number"},
		{"chained comparison", "IF a < b < c THEN x()", "<", 1, 10, "expected AND, OR or THEN"},
		{"dangling dot", "IF a. < 1 THEN x()", "<", 1, 7, "expected identifier"},
		{"second line", "IF a < 1\nTHEN\n()", "(", 3, 1, "expected identifier"},
		{"illegal character", "IF a = 1 THEN x()", "=", 1, 6, "illegal character"},
		{"lowercase keyword", "if a < 1 THEN x()", "if", 1, 1, "expected IF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(tt.text)
			if err == nil {
				t.Fatalf("Parse(%q) = %v, want error", tt.text, tree)
			}

			e, ok := errors.As(err)
			if !ok {
				t.Fatalf("error is %T, want *errors.Error", err)
			}
			if e.Type != errors.ErrorTypeSyntax {
				t.Errorf("Type = %q, want syntax", e.Type)
			}
			if e.Lexeme != tt.lexeme {
				t.Errorf("Lexeme = %q, want %q", e.Lexeme, tt.lexeme)
			}
			if e.Location.Line != tt.line || e.Location.Column != tt.column {
				t.Errorf("Location = %s, want %d:%d", e.Location, tt.line, tt.column)
			}
			if !strings.Contains(e.Message, tt.message) {
				t.Errorf("Message = %q, want it to contain %q", e.Message, tt.message)
			}
		})
	}
}

func TestParser_Parse_Suggestion(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"IFF a < 1 THEN x()", "Did you mean 'IF'?"},
		{"IF a < 1 Then x()", "Did you mean 'THEN'? Keywords are case-sensitive"},
		{"IF a < 1 THEN x() ELES y()", "Did you mean 'ELSE'?"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := Parse(tt.text)
			e, ok := errors.As(err)
			if !ok {
				t.Fatalf("Parse() error = %v, want *errors.Error", err)
			}
			if e.Suggestion != tt.want {
				t.Errorf("Suggestion = %q, want %q", e.Suggestion, tt.want)
			}
		})
	}
}

func TestParser_WithMaxLength(t *testing.T) {
	p := NewParser().WithMaxLength(10)

	if _, err := p.Parse("IF a < 1 THEN x()"); !errors.IsSyntax(err) {
		t.Errorf("Parse() error = %v, want syntax error for oversized rule", err)
	}

	p.WithMaxLength(0)
	if _, err := p.Parse("IF a < 1 THEN x()"); err != nil {
		t.Errorf("Parse() with no limit failed: %v", err)
	}
}

func TestParser_WithMaxDepth(t *testing.T) {
	p := NewParser().WithMaxDepth(2)

	if _, err := p.Parse("IF ((a < 1)) THEN x()"); err != nil {
		t.Errorf("Parse() at max depth failed: %v", err)
	}

	_, err := p.Parse("IF (((a < 1))) THEN x()")
	e, ok := errors.As(err)
	if !ok {
		t.Fatalf("Parse() beyond max depth error = %v, want syntax error", err)
	}
	if !strings.Contains(e.Message, "maximum depth 2") {
		t.Errorf("Message = %q", e.Message)
	}
	if e.Location.Column != 6 {
		t.Errorf("Column = %d, want 6", e.Location.Column)
	}
}

func TestParser_DepthResetsBetweenSiblings(t *testing.T) {
	p := NewParser().WithMaxDepth(1)
	if _, err := p.Parse("IF (a < 1) AND (b < 2) AND (c < 3) THEN x()"); err != nil {
		t.Errorf("Parse() of sibling groups failed: %v", err)
	}
}
