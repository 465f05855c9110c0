package lexer

import (
	"fmt"

	"mercator-hq/rulebook/pkg/dsl/ast"
)

// Kind identifies a token class.
type Kind int

const (
	EOF Kind = iota
	IF
	THEN
	ELSE
	AND
	OR
	IDENT
	NUMBER
	DOT
	LPAREN
	RPAREN
	LT
	GT
	LE
	GE
	EQ
	NE
)

var kindNames = [...]string{
	EOF:    "end of rule",
	IF:     "IF",
	THEN:   "THEN",
	ELSE:   "ELSE",
	AND:    "AND",
	OR:     "OR",
	IDENT:  "identifier",
	NUMBER: "number",
	DOT:    ".",
	LPAREN: "(",
	RPAREN: ")",
	LT:     "<",
	GT:     ">",
	LE:     "<=",
	GE:     ">=",
	EQ:     "==",
	NE:     "!=",
}

// String returns the name used for the kind in error messages.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsComparison returns true for the six comparison operator kinds.
func (k Kind) IsComparison() bool {
	return k >= LT && k <= NE
}

// IsLogical returns true for AND and OR.
func (k Kind) IsLogical() bool {
	return k == AND || k == OR
}

var keywords = map[string]Kind{
	"IF":   IF,
	"THEN": THEN,
	"ELSE": ELSE,
	"AND":  AND,
	"OR":   OR,
}

// Token is a lexeme with its kind and position.
type Token struct {
	Kind     Kind
	Lexeme   string
	Location ast.Location
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "EOF"
	}
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Lexeme, t.Location)
}
