package errors

import (
	"fmt"
	"strings"
)

// Keywords are the reserved words of the rule language.
var Keywords = []string{"IF", "THEN", "ELSE", "AND", "OR"}

// SuggestKeyword suggests a keyword when lexeme looks like a misspelled or
// miscased one. Candidates are limited to expected when it names keywords.
func SuggestKeyword(lexeme string, expected []string) string {
	if lexeme == "" {
		return ""
	}

	candidates := make([]string, 0, len(Keywords))
	for _, kw := range Keywords {
		if len(expected) == 0 || contains(expected, kw) {
			candidates = append(candidates, kw)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	upper := strings.ToUpper(lexeme)
	for _, kw := range candidates {
		if upper == kw && lexeme != kw {
			return fmt.Sprintf("Did you mean '%s'? Keywords are case-sensitive", kw)
		}
	}

	minDistance := 1000
	var bestMatch string
	for _, kw := range candidates {
		dist := levenshteinDistance(upper, kw)
		if dist < minDistance {
			minDistance = dist
			bestMatch = kw
		}
	}

	threshold := 1
	if len(bestMatch) > 3 {
		threshold = 2
	}
	if minDistance > 0 && minDistance <= threshold && len(lexeme) > 1 {
		return fmt.Sprintf("Did you mean '%s'?", bestMatch)
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// levenshteinDistance computes the Levenshtein distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}

	len1 := len(s1)
	len2 := len(s2)

	matrix := make([][]int, len1+1)
	for i := range matrix {
		matrix[i] = make([]int, len2+1)
	}

	for i := 0; i <= len1; i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len2; j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len1; i++ {
		for j := 1; j <= len2; j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,      // Deletion
				matrix[i][j-1]+1,      // Insertion
				matrix[i-1][j-1]+cost, // Substitution
			)
		}
	}

	return matrix[len1][len2]
}
