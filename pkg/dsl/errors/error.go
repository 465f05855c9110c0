package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"mercator-hq/rulebook/pkg/dsl/ast"
)

// ErrorType categorizes an error.
type ErrorType string

const (
	ErrorTypeSyntax     ErrorType = "syntax"     // Rule text does not match the grammar
	ErrorTypeEvaluation ErrorType = "evaluation" // Tree could not be reduced to a value
)

// Error is a rule error with location, context and an optional suggestion.
type Error struct {
	Type       ErrorType
	Message    string
	Location   ast.Location
	Lexeme     string   // Offending token text (syntax errors)
	Expected   []string // Tokens the parser would have accepted
	Expr       string   // Offending sub-expression (evaluation errors)
	Context    string   // Excerpt of the rule text with a caret
	Suggestion string
	Err        error // Underlying cause, if any
}

// Error returns a one-line description.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Type))
	sb.WriteString(" error")
	if e.Location.IsValid() {
		sb.WriteString(" at ")
		sb.WriteString(e.Location.String())
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Detail returns the multi-line form with location, context and suggestion.
func (e *Error) Detail() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] %s\n", e.Type, e.Message))

	if e.Location.IsValid() {
		sb.WriteString(fmt.Sprintf("  --> %s\n", e.Location.String()))
	}

	if e.Context != "" {
		sb.WriteString("  |\n")
		sb.WriteString(e.Context)
		sb.WriteString("  |\n")
	}

	if e.Err != nil {
		sb.WriteString(fmt.Sprintf("  = cause: %v\n", e.Err))
	}

	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  = suggestion: %s\n", e.Suggestion))
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewSyntaxError builds a syntax error for the token at loc. When text is
// non-empty the error carries an excerpt of it.
func NewSyntaxError(text string, loc ast.Location, lexeme string, expected ...string) *Error {
	var msg string
	switch {
	case lexeme == "":
		msg = "unexpected end of rule"
	default:
		msg = fmt.Sprintf("unexpected %q", lexeme)
	}
	if len(expected) > 0 {
		msg += ", expected " + joinExpected(expected)
	}

	return &Error{
		Type:       ErrorTypeSyntax,
		Message:    msg,
		Location:   loc,
		Lexeme:     lexeme,
		Expected:   expected,
		Context:    ExtractContext(text, loc, 1),
		Suggestion: SuggestKeyword(lexeme, expected),
	}
}

// NewEvaluationError builds an evaluation error for node.
func NewEvaluationError(node ast.Node, message string, cause error) *Error {
	e := &Error{
		Type:    ErrorTypeEvaluation,
		Message: message,
		Err:     cause,
	}
	if node != nil {
		e.Location = node.Pos()
		e.Expr = node.String()
		e.Message = fmt.Sprintf("%s in %q", message, e.Expr)
	}
	return e
}

// IsSyntax returns true if err wraps a syntax error.
func IsSyntax(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == ErrorTypeSyntax
}

// IsEvaluation returns true if err wraps an evaluation error.
func IsEvaluation(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == ErrorTypeEvaluation
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func joinExpected(expected []string) string {
	switch len(expected) {
	case 1:
		return expected[0]
	case 2:
		return expected[0] + " or " + expected[1]
	default:
		return strings.Join(expected[:len(expected)-1], ", ") + " or " + expected[len(expected)-1]
	}
}

// ErrorList accumulates errors, for example while linting many rules.
type ErrorList struct {
	Errors []*Error
}

// NewErrorList creates a new empty error list.
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]*Error, 0),
	}
}

// Add appends an error to the list.
func (el *ErrorList) Add(err *Error) {
	el.Errors = append(el.Errors, err)
}

// HasErrors returns true if the error list contains any errors.
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// Count returns the number of errors in the list.
func (el *ErrorList) Count() int {
	return len(el.Errors)
}

// Error implements the error interface.
func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d error(s):\n\n", el.Count()))

	for i, err := range el.Errors {
		sb.WriteString(fmt.Sprintf("Error %d:\n", i+1))
		sb.WriteString(err.Detail())
		sb.WriteString("\n")
	}

	return sb.String()
}

// ToError returns nil if the list is empty, otherwise the list itself.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}

// ByType returns all errors of the given type.
func (el *ErrorList) ByType(errType ErrorType) []*Error {
	var result []*Error
	for _, err := range el.Errors {
		if err.Type == errType {
			result = append(result, err)
		}
	}
	return result
}
