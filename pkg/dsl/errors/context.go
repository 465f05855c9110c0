package errors

import (
	"fmt"
	"strings"

	"mercator-hq/rulebook/pkg/dsl/ast"
)

// ExtractContext renders the lines of text around loc with line numbers and
// a caret under loc's column. It returns "" when text is empty or loc is
// outside it.
func ExtractContext(text string, loc ast.Location, contextLines int) string {
	if text == "" || !loc.IsValid() {
		return ""
	}

	lines := strings.Split(text, "\n")
	errorLine := loc.Line - 1
	if errorLine >= len(lines) {
		return ""
	}

	startLine := errorLine - contextLines
	endLine := errorLine + contextLines
	if startLine < 0 {
		startLine = 0
	}
	if endLine >= len(lines) {
		endLine = len(lines) - 1
	}

	var sb strings.Builder
	width := len(fmt.Sprintf("%d", endLine+1))

	for i := startLine; i <= endLine; i++ {
		prefix := "  "
		if i == errorLine {
			prefix = "->"
		}
		sb.WriteString(fmt.Sprintf("%s %*d | %s\n", prefix, width, i+1, strings.TrimRight(lines[i], "\r")))

		if i == errorLine {
			sb.WriteString(fmt.Sprintf("   %s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", loc.Column-1)))
		}
	}

	return sb.String()
}
