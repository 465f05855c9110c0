// Package export translates parsed rules into other rule languages so that
// hosts which already run a CEL or JSONLogic engine can execute them.
//
// Translations keep the rule language's semantics: AND/OR fold strictly
// left to right, missing attributes read as zero, and a rule without an ELSE
// branch yields no action. Both targets evaluate to the selected action name
// (CEL yields "" and JSONLogic yields null when nothing is selected).
//
//	tree, _ := parser.Parse("IF ( PSR < constant ) THEN action1() ELSE action2()")
//	expr, _ := export.CEL(tree)
//	// ((("PSR" in attrs) ? attrs["PSR"] : 0.0) < (("constant" in attrs) ? attrs["constant"] : 0.0)) ? "action1" : "action2"
package export
