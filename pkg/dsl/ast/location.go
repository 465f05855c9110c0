package ast

import "fmt"

// Location is the position of a token in the rule text.
type Location struct {
	Line   int // Line number (1-based)
	Column int // Column number (1-based)
	Offset int // Byte offset (0-based)
}

// String returns "line:column", or "<unknown>" for a zero location.
func (l Location) String() string {
	if !l.IsValid() {
		return "<unknown>"
	}
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// IsValid returns true if the location points into rule text.
func (l Location) IsValid() bool {
	return l.Line > 0 && l.Column > 0
}
