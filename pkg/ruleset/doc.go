// Package ruleset executes ordered batches of rules.
//
// A Rule is stored as a sequence of records. The rule text is the records'
// keys joined by single spaces; the evaluation context is built from the
// records marked dynamic. For example the records
//
//	IF  (  PSR=2*  <  constant=4*  )  THEN  action1()  ELSE  action2()
//
// (starred records are dynamic) yield the text
// "IF ( PSR < constant ) THEN action1() ELSE action2()" and the context
// {PSR: 2, constant: 4}.
//
// An Executor runs the rules of a Set strictly in order. A rule that fails
// to parse, to build its context, to evaluate or to dispatch is excluded
// from the batch and execution moves on. When a rule selects the terminal
// action ("Exit" by default) the batch stops and later rules are never
// attempted.
//
// Selected actions are handed to an injected Dispatcher; the package keeps
// no global action registry.
package ruleset
