// Package parser turns rule text into a syntax tree.
//
// The grammar is
//
//	conditional := "IF" condition "THEN" action ( "ELSE" action )?
//	condition   := expr ( ( "AND" | "OR" ) expr )*
//	expr        := "(" condition ")" | operand comp_op operand
//	operand     := identifier ( "." identifier )* | number
//	action      := identifier "(" ")"
//	comp_op     := "<" | ">" | "<=" | ">=" | "==" | "!="
//
// Parsing is recursive descent with one token of lookahead. The first
// mismatch stops parsing and is returned as a syntax error; there is no
// recovery.
package parser

import (
	"fmt"

	"mercator-hq/rulebook/pkg/dsl/ast"
	"mercator-hq/rulebook/pkg/dsl/errors"
	"mercator-hq/rulebook/pkg/dsl/lexer"
)

const (
	// DefaultMaxLength is the default limit on rule text length in bytes.
	DefaultMaxLength = 64 * 1024

	// DefaultMaxDepth is the default limit on group nesting.
	DefaultMaxDepth = 32
)

// Parser parses rule text. A Parser holds only configuration and may be
// shared between goroutines.
type Parser struct {
	maxLength int // Maximum rule text length in bytes
	maxDepth  int // Maximum group nesting depth
}

// NewParser creates a parser with default limits.
func NewParser() *Parser {
	return &Parser{
		maxLength: DefaultMaxLength,
		maxDepth:  DefaultMaxDepth,
	}
}

// WithMaxLength sets the maximum rule text length. Zero or less disables
// the limit.
func (p *Parser) WithMaxLength(n int) *Parser {
	p.maxLength = n
	return p
}

// WithMaxDepth sets the maximum group nesting depth. Zero or less disables
// the limit.
func (p *Parser) WithMaxDepth(depth int) *Parser {
	p.maxDepth = depth
	return p
}

// Parse parses text into a Conditional. Errors are *errors.Error values of
// type syntax.
func (p *Parser) Parse(text string) (*ast.Conditional, error) {
	if p.maxLength > 0 && len(text) > p.maxLength {
		return nil, &errors.Error{
			Type:     errors.ErrorTypeSyntax,
			Message:  fmt.Sprintf("rule length %d exceeds maximum %d bytes", len(text), p.maxLength),
			Location: ast.Location{Line: 1, Column: 1},
		}
	}

	s := &state{
		text:     text,
		lx:       lexer.New(text),
		maxDepth: p.maxDepth,
	}
	if err := s.next(); err != nil {
		return nil, err
	}

	return s.parseConditional()
}

// Parse parses text with a default Parser.
func Parse(text string) (*ast.Conditional, error) {
	return NewParser().Parse(text)
}

// state is the per-call parsing state.
type state struct {
	text     string
	lx       *lexer.Lexer
	tok      lexer.Token
	depth    int
	maxDepth int
}

func (s *state) next() error {
	tok, err := s.lx.Next()
	if err != nil {
		return err
	}
	s.tok = tok
	return nil
}

// expect consumes a token of the given kind or fails.
func (s *state) expect(kind lexer.Kind) (lexer.Token, error) {
	if s.tok.Kind != kind {
		return lexer.Token{}, s.unexpected(kind.String())
	}
	tok := s.tok
	if err := s.next(); err != nil {
		return lexer.Token{}, err
	}
	return tok, nil
}

func (s *state) unexpected(expected ...string) error {
	return errors.NewSyntaxError(s.text, s.tok.Location, s.tok.Lexeme, expected...)
}

func (s *state) parseConditional() (*ast.Conditional, error) {
	ifTok, err := s.expect(lexer.IF)
	if err != nil {
		return nil, err
	}

	cond, err := s.parseCondition(lexer.THEN)
	if err != nil {
		return nil, err
	}

	if _, err := s.expect(lexer.THEN); err != nil {
		return nil, err
	}

	then, err := s.parseAction()
	if err != nil {
		return nil, err
	}

	node := &ast.Conditional{
		Condition: cond,
		Then:      then,
		Location:  ifTok.Location,
	}

	if s.tok.Kind == lexer.ELSE {
		if err := s.next(); err != nil {
			return nil, err
		}
		if node.Else, err = s.parseAction(); err != nil {
			return nil, err
		}
	} else if s.tok.Kind != lexer.EOF {
		return nil, s.unexpected(lexer.ELSE.String(), lexer.EOF.String())
	}

	if s.tok.Kind != lexer.EOF {
		return nil, s.unexpected(lexer.EOF.String())
	}

	return node, nil
}

// parseCondition parses a chain of exprs joined by AND/OR. closer is the
// token that legally ends the chain and is only used for error messages.
func (s *state) parseCondition(closer lexer.Kind) (*ast.Condition, error) {
	first, err := s.parseExpr()
	if err != nil {
		return nil, err
	}

	cond := &ast.Condition{
		Operands: []ast.Expr{first},
		Location: first.Pos(),
	}

	for s.tok.Kind.IsLogical() {
		op := ast.LogicalOp(s.tok.Lexeme)
		if err := s.next(); err != nil {
			return nil, err
		}
		expr, err := s.parseExpr()
		if err != nil {
			return nil, err
		}
		cond.Operators = append(cond.Operators, op)
		cond.Operands = append(cond.Operands, expr)
	}

	if s.tok.Kind != closer {
		return nil, s.unexpected(lexer.AND.String(), lexer.OR.String(), closer.String())
	}

	return cond, nil
}

func (s *state) parseExpr() (ast.Expr, error) {
	if s.tok.Kind == lexer.LPAREN {
		return s.parseGroup()
	}
	if s.tok.Kind != lexer.IDENT && s.tok.Kind != lexer.NUMBER {
		return nil, s.unexpected("(", "attribute", "number")
	}
	return s.parseComparison()
}

func (s *state) parseGroup() (*ast.Group, error) {
	open := s.tok
	s.depth++
	if s.maxDepth > 0 && s.depth > s.maxDepth {
		err := errors.NewSyntaxError(s.text, open.Location, open.Lexeme)
		err.Message = fmt.Sprintf("group nesting exceeds maximum depth %d", s.maxDepth)
		return nil, err
	}
	if err := s.next(); err != nil {
		return nil, err
	}

	cond, err := s.parseCondition(lexer.RPAREN)
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	s.depth--

	return &ast.Group{Condition: cond, Location: open.Location}, nil
}

func (s *state) parseComparison() (*ast.Comparison, error) {
	left, err := s.parseOperand()
	if err != nil {
		return nil, err
	}

	if !s.tok.Kind.IsComparison() {
		expected := make([]string, 0, len(ast.CompareOps)+1)
		if _, ok := left.(*ast.Attribute); ok {
			expected = append(expected, lexer.DOT.String())
		}
		for _, op := range ast.CompareOps {
			expected = append(expected, string(op))
		}
		return nil, s.unexpected(expected...)
	}
	op := ast.CompareOp(s.tok.Lexeme)
	if err := s.next(); err != nil {
		return nil, err
	}

	right, err := s.parseOperand()
	if err != nil {
		return nil, err
	}

	return &ast.Comparison{
		Left:     left,
		Op:       op,
		Right:    right,
		Location: left.Pos(),
	}, nil
}

func (s *state) parseOperand() (ast.Operand, error) {
	switch s.tok.Kind {
	case lexer.NUMBER:
		num := &ast.NumberLiteral{Lexeme: s.tok.Lexeme, Location: s.tok.Location}
		if err := s.next(); err != nil {
			return nil, err
		}
		return num, nil

	case lexer.IDENT:
		return s.parseAttribute()

	default:
		return nil, s.unexpected("attribute", "number")
	}
}

func (s *state) parseAttribute() (*ast.Attribute, error) {
	first, err := s.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	attr := &ast.Attribute{
		Segments: []string{first.Lexeme},
		Location: first.Location,
	}

	for s.tok.Kind == lexer.DOT {
		if err := s.next(); err != nil {
			return nil, err
		}
		seg, err := s.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		attr.Segments = append(attr.Segments, seg.Lexeme)
	}

	return attr, nil
}

func (s *state) parseAction() (*ast.Action, error) {
	name, err := s.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := s.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	if _, err := s.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return &ast.Action{Name: name.Lexeme, Location: name.Location}, nil
}
