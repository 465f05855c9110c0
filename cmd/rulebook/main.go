// Rulebook evaluates and executes rules written in a small conditional
// language:
//
//	IF PSR < 3 AND WS.Age > 30 THEN approve() ELSE review()
//
// Rules are grouped into rule sets, executed in order as a batch. A rule
// that does not parse or evaluate is excluded from its batch and the batch
// continues; a rule selecting the terminal action (Exit by default) stops
// it.
//
// Usage:
//
//	# Evaluate one rule
//	rulebook eval "IF PSR < 3 THEN approve()" --set PSR=2
//
//	# Check rule-set files
//	rulebook lint rules/
//
//	# Execute rule sets, re-running when the files change
//	rulebook run rules/ --watch
//
//	# Serve the HTTP API
//	rulebook serve --config rulebook.yaml
//
//	# Browse stored runs
//	rulebook runs list --set pricing --outcome stopped
//
//	# Translate a rule to CEL
//	rulebook export "IF PSR < 3 THEN approve()" --to cel
package main

func main() {
	Execute()
}
