package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/rulebook/pkg/cli"
	"mercator-hq/rulebook/pkg/dsl"
	dslerrors "mercator-hq/rulebook/pkg/dsl/errors"
	"mercator-hq/rulebook/pkg/ruleset"
)

var lintFlags struct {
	rules  []string
	format string
}

func newLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint [FILE|DIR]...",
		Short: "Check rule-set files and rules",
		Long: `Check rule-set files for errors without executing them.

Every rule is parsed, and its context values are checked to be numbers or
booleans. Syntax errors are reported with their line and column, and a
suggestion when one is known. Without arguments the configured rules.path
is checked.

The command exits with status 1 when any problem is found.

Examples:
  # Lint the configured rules directory
  rulebook lint

  # Lint files
  rulebook lint rules/pricing.yaml rules/fraud.yaml

  # Lint rule text directly
  rulebook lint --rule "IF PSR < 3 THN approve()"

  # JSON output for CI/CD
  rulebook lint rules/ --format json`,
		RunE: lintRules,
	}

	cmd.Flags().StringArrayVarP(&lintFlags.rules, "rule", "r", nil, "rule text to check (repeatable)")
	cmd.Flags().StringVarP(&lintFlags.format, "format", "o", "text", "output format: text, json, table, csv")
	return cmd
}

func lintRules(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 && len(lintFlags.rules) == 0 {
		paths = []string{a.cfg.Rules.Path}
	}

	engine := a.newEngine(nil)
	loader := a.newLoader()

	var results lintReport
	for _, path := range paths {
		results = append(results, lintPath(engine, loader, path)...)
	}
	if len(lintFlags.rules) > 0 {
		results = append(results, lintTexts(engine, lintFlags.rules))
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	if results.issues() > 0 {
		return &cli.ExitError{Code: cli.ExitFailure}
	}
	return nil
}

// LintResult is the outcome of checking one rule-set file.
type LintResult struct {
	File   string      `json:"file"`
	Set    string      `json:"set,omitempty"`
	Rules  int         `json:"rules"`
	Valid  bool        `json:"valid"`
	Issues []LintIssue `json:"issues,omitempty"`
}

// LintIssue is one problem found in a rule or file.
type LintIssue struct {
	Rule       string `json:"rule,omitempty"`
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// lintPath checks the rule sets under path. A file that does not load is
// reported as a single issue.
func lintPath(engine *dsl.Engine, loader *ruleset.Loader, path string) []LintResult {
	sets, err := loader.Load(path)

	var results []LintResult
	for _, set := range sets {
		results = append(results, lintSet(engine, set))
	}
	for _, loadErr := range splitJoined(err) {
		file := path
		var le *ruleset.LoadError
		if errors.As(loadErr, &le) {
			file = le.FilePath
		}
		results = append(results, LintResult{
			File:   file,
			Issues: []LintIssue{{Type: "load", Message: loadErr.Error()}},
		})
	}
	return results
}

func lintSet(engine *dsl.Engine, set *ruleset.Set) LintResult {
	result := LintResult{File: set.Source, Set: set.Name, Rules: len(set.Rules)}
	for i, rule := range set.Rules {
		if issue, ok := lintRule(engine, rule, i); !ok {
			result.Issues = append(result.Issues, issue)
		}
	}
	result.Valid = len(result.Issues) == 0
	return result
}

func lintTexts(engine *dsl.Engine, texts []string) LintResult {
	result := LintResult{File: "<command line>", Rules: len(texts)}
	for i, text := range texts {
		if _, err := engine.Parse(text); err != nil {
			result.Issues = append(result.Issues, issueFrom(fmt.Sprintf("#%d", i), err))
		}
	}
	result.Valid = len(result.Issues) == 0
	return result
}

func lintRule(engine *dsl.Engine, rule ruleset.Rule, index int) (LintIssue, bool) {
	label := rule.Label(index)
	if rule.Invalid != nil {
		return LintIssue{Rule: label, Type: string(rule.Invalid.Stage), Message: rule.Invalid.Error()}, false
	}
	if _, err := engine.Parse(rule.Text()); err != nil {
		return issueFrom(label, err), false
	}
	if _, err := rule.Context(); err != nil {
		return LintIssue{Rule: label, Type: "context", Message: err.Error()}, false
	}
	return LintIssue{}, true
}

func issueFrom(label string, err error) LintIssue {
	ruleErr, ok := dslerrors.As(err)
	if !ok {
		return LintIssue{Rule: label, Type: "error", Message: err.Error()}
	}
	return LintIssue{
		Rule:       label,
		Line:       ruleErr.Location.Line,
		Column:     ruleErr.Location.Column,
		Type:       string(ruleErr.Type),
		Message:    ruleErr.Message,
		Suggestion: ruleErr.Suggestion,
	}
}

// splitJoined returns the errors inside an errors.Join result, or err
// itself.
func splitJoined(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// lintReport displays lint results.
type lintReport []LintResult

func (r lintReport) issues() int {
	n := 0
	for _, res := range r {
		n += len(res.Issues)
	}
	return n
}

func (r lintReport) Raw() any {
	return []LintResult(r)
}

func (r lintReport) Title() string {
	return fmt.Sprintf("%d file(s), %d issue(s)", len(r), r.issues())
}

func (r lintReport) Header() []string {
	return []string{"FILE", "RULE", "LINE", "COLUMN", "TYPE", "MESSAGE"}
}

func (r lintReport) Rows() [][]string {
	var rows [][]string
	for _, res := range r {
		for _, issue := range res.Issues {
			line, col := "", ""
			if issue.Line > 0 {
				line, col = strconv.Itoa(issue.Line), strconv.Itoa(issue.Column)
			}
			msg := issue.Message
			if issue.Suggestion != "" {
				msg += " (" + issue.Suggestion + ")"
			}
			rows = append(rows, []string{res.File, issue.Rule, line, col, issue.Type, msg})
		}
	}
	return rows
}

func (r lintReport) String() string {
	var sb strings.Builder

	for _, res := range r {
		fmt.Fprintf(&sb, "Checking %s...\n", res.File)
		if len(res.Issues) == 0 {
			fmt.Fprintf(&sb, "✓ %d rule(s) valid\n", res.Rules)
		}
		for _, issue := range res.Issues {
			sb.WriteString("✗ ")
			if issue.Rule != "" {
				fmt.Fprintf(&sb, "%s: ", issue.Rule)
			}
			sb.WriteString(issue.Message)
			if issue.Line > 0 {
				fmt.Fprintf(&sb, " (line %d, col %d)", issue.Line, issue.Column)
			}
			fmt.Fprintf(&sb, " [%s]\n", issue.Type)
			if issue.Suggestion != "" {
				fmt.Fprintf(&sb, "  %s\n", issue.Suggestion)
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Summary:\n")
	fmt.Fprintf(&sb, "  %s\n", r.Title())
	return sb.String()
}
