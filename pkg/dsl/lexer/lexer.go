// Package lexer splits rule text into tokens.
//
// Keywords (IF THEN ELSE AND OR) are case-sensitive. Identifiers match
// [A-Za-z_][A-Za-z0-9_]*. Numbers are an optional sign, digits with an
// optional fraction and exponent; a sign only starts a number when a digit
// or "." follows it. Space, tab, CR and LF separate tokens.
package lexer

import (
	"unicode/utf8"

	"mercator-hq/rulebook/pkg/dsl/ast"
	"mercator-hq/rulebook/pkg/dsl/errors"
)

// Lexer produces tokens from rule text one at a time.
type Lexer struct {
	text   string
	pos    int
	line   int
	column int
}

// New creates a lexer positioned at the start of text.
func New(text string) *Lexer {
	return &Lexer{text: text, line: 1, column: 1}
}

// Tokenize returns every token of text, ending with EOF.
func Tokenize(text string) ([]Token, error) {
	lx := New(text)
	var tokens []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}

// Next returns the next token. After EOF it keeps returning EOF.
func (lx *Lexer) Next() (Token, error) {
	lx.skipWhitespace()

	loc := lx.location()
	if lx.pos >= len(lx.text) {
		return Token{Kind: EOF, Location: loc}, nil
	}

	c := lx.text[lx.pos]
	switch {
	case isIdentStart(c):
		return lx.scanIdent(loc), nil

	case isDigit(c):
		return lx.scanNumber(loc)

	case c == '.':
		if isDigit(lx.peek(1)) {
			return lx.scanNumber(loc)
		}
		lx.advance(1)
		return Token{Kind: DOT, Lexeme: ".", Location: loc}, nil

	case c == '+' || c == '-':
		next := lx.peek(1)
		if isDigit(next) || (next == '.' && isDigit(lx.peek(2))) {
			return lx.scanNumber(loc)
		}
		return Token{}, lx.illegal(loc, 1)

	case c == '(':
		lx.advance(1)
		return Token{Kind: LPAREN, Lexeme: "(", Location: loc}, nil

	case c == ')':
		lx.advance(1)
		return Token{Kind: RPAREN, Lexeme: ")", Location: loc}, nil

	case c == '<':
		if lx.peek(1) == '=' {
			lx.advance(2)
			return Token{Kind: LE, Lexeme: "<=", Location: loc}, nil
		}
		lx.advance(1)
		return Token{Kind: LT, Lexeme: "<", Location: loc}, nil

	case c == '>':
		if lx.peek(1) == '=' {
			lx.advance(2)
			return Token{Kind: GE, Lexeme: ">=", Location: loc}, nil
		}
		lx.advance(1)
		return Token{Kind: GT, Lexeme: ">", Location: loc}, nil

	case c == '=':
		if lx.peek(1) == '=' {
			lx.advance(2)
			return Token{Kind: EQ, Lexeme: "==", Location: loc}, nil
		}
		return Token{}, lx.illegal(loc, 1)

	case c == '!':
		if lx.peek(1) == '=' {
			lx.advance(2)
			return Token{Kind: NE, Lexeme: "!=", Location: loc}, nil
		}
		return Token{}, lx.illegal(loc, 1)
	}

	_, width := utf8.DecodeRuneInString(lx.text[lx.pos:])
	return Token{}, lx.illegal(loc, width)
}

func (lx *Lexer) scanIdent(loc ast.Location) Token {
	start := lx.pos
	for lx.pos < len(lx.text) && isIdentPart(lx.text[lx.pos]) {
		lx.advance(1)
	}
	lexeme := lx.text[start:lx.pos]
	if kind, ok := keywords[lexeme]; ok {
		return Token{Kind: kind, Lexeme: lexeme, Location: loc}
	}
	return Token{Kind: IDENT, Lexeme: lexeme, Location: loc}
}

func (lx *Lexer) scanNumber(loc ast.Location) (Token, error) {
	start := lx.pos
	if c := lx.text[lx.pos]; c == '+' || c == '-' {
		lx.advance(1)
	}
	lx.skipDigits()
	if lx.peek(0) == '.' {
		lx.advance(1)
		lx.skipDigits()
	}

	// Exponent is only consumed when digits follow it.
	if e := lx.peek(0); e == 'e' || e == 'E' {
		n := 1
		if s := lx.peek(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(lx.peek(n)) {
			lx.advance(n)
			lx.skipDigits()
		}
	}

	return Token{Kind: NUMBER, Lexeme: lx.text[start:lx.pos], Location: loc}, nil
}

func (lx *Lexer) skipDigits() {
	for lx.pos < len(lx.text) && isDigit(lx.text[lx.pos]) {
		lx.advance(1)
	}
}

func (lx *Lexer) skipWhitespace() {
	for lx.pos < len(lx.text) {
		switch lx.text[lx.pos] {
		case ' ', '\t', '\r', '\n', '\f':
			lx.advance(1)
		default:
			return
		}
	}
}

// advance moves n bytes forward, tracking line and column.
func (lx *Lexer) advance(n int) {
	for i := 0; i < n && lx.pos < len(lx.text); i++ {
		if lx.text[lx.pos] == '\n' {
			lx.line++
			lx.column = 1
		} else {
			lx.column++
		}
		lx.pos++
	}
}

func (lx *Lexer) peek(offset int) byte {
	if lx.pos+offset < len(lx.text) {
		return lx.text[lx.pos+offset]
	}
	return 0
}

func (lx *Lexer) location() ast.Location {
	return ast.Location{Line: lx.line, Column: lx.column, Offset: lx.pos}
}

func (lx *Lexer) illegal(loc ast.Location, width int) error {
	lexeme := lx.text[lx.pos : lx.pos+width]
	err := errors.NewSyntaxError(lx.text, loc, lexeme)
	err.Message = "illegal character " + quote(lexeme)
	return err
}

func quote(s string) string {
	return "'" + s + "'"
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
