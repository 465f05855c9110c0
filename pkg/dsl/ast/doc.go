// Package ast provides the syntax tree for the rulebook rule language.
//
// A rule has the shape
//
//	IF <condition> THEN <action>() [ELSE <action>()]
//
// and parses into a tree rooted at a Conditional. Every node carries the
// Location of its first token so errors can point back into the rule text.
//
// # Core Types
//
// Conditional: root node holding the condition and the selected actions
//
// Condition: flat sequence of operands joined by AND/OR
//
// Group: parenthesised Condition
//
// Comparison: operand, comparison operator, operand
//
// Attribute: dotted attribute path such as WS.Age
//
// NumberLiteral: numeric lexeme kept exactly as written
//
// Action: name of an action without arguments
//
// # Basic Usage
//
//	tree, err := parser.Parse("IF PSR < 3 THEN approve() ELSE reject()")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(ast.Attributes(tree)) // [PSR]
//	fmt.Println(tree)                 // canonical rule text
//
// Nodes are immutable after parsing and safe to share between goroutines.
package ast
