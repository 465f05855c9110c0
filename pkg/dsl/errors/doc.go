// Package errors defines the structured errors raised while parsing and
// evaluating rules.
//
// Two kinds exist. Syntax errors are raised by the lexer and parser and
// carry the line, column and lexeme of the offending token together with
// the set of tokens the parser would have accepted. Evaluation errors are
// raised by the evaluator and name the sub-expression that could not be
// reduced.
//
// Error() returns a single line suitable for logs. Detail() renders the
// multi-line form with a caret under the offending column:
//
//	[syntax] unexpected "AND", expected THEN
//	  --> 1:14
//	  |
//	-> 1 | IF PSR < 2 AND AND THEN a()
//	     |                ^
//	  |
//	  = suggestion: Did you mean 'THEN'?
//
// Use IsSyntax and IsEvaluation to classify an error returned anywhere in a
// wrapped chain.
package errors
