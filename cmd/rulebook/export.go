package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/rulebook/pkg/cli"
	"mercator-hq/rulebook/pkg/dsl"
	dslerrors "mercator-hq/rulebook/pkg/dsl/errors"
	"mercator-hq/rulebook/pkg/dsl/eval"
	"mercator-hq/rulebook/pkg/dsl/export"
	"mercator-hq/rulebook/pkg/ruleset"
)

// Export targets.
const (
	targetCEL       = "cel"
	targetJSONLogic = "jsonlogic"
)

var exportFlags struct {
	to     string
	file   string
	set    []string
	format string
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [RULE]...",
		Short: "Translate rules to CEL or JSONLogic",
		Long: `Translate rules to a CEL expression or a JSONLogic rule.

Both forms evaluate to the selected action name: an empty string (CEL) or
null (JSONLogic) when no action is selected. Missing attributes read as 0.

With --set every rule is also evaluated natively and in the exported form,
and the command fails when the two disagree.

Examples:
  # CEL expression over the attrs map
  rulebook export "IF PSR < 3 AND WS.Age > 30 THEN approve() ELSE review()"

  # Every rule of a rule-set file, as JSONLogic
  rulebook export --file rules/pricing.yaml --to jsonlogic

  # Check the translation against a context
  rulebook export "IF PSR < 3 THEN approve()" --set PSR=2`,
		RunE: exportRules,
	}

	cmd.Flags().StringVar(&exportFlags.to, "to", targetCEL, "target: cel, jsonlogic")
	cmd.Flags().StringVarP(&exportFlags.file, "file", "f", "", "rule-set file to export")
	cmd.Flags().StringArrayVarP(&exportFlags.set, "set", "s", nil, "attribute as key=value, to verify the translation (repeatable)")
	cmd.Flags().StringVarP(&exportFlags.format, "format", "o", "text", "output format: text, json")
	return cmd
}

func exportRules(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	format, err := cli.ParseFormat(exportFlags.format)
	if err != nil {
		return err
	}
	if format != cli.FormatText && format != cli.FormatJSON {
		return cli.NewConfigError("format", "export supports text and json output")
	}
	switch exportFlags.to {
	case targetCEL, targetJSONLogic:
	default:
		return cli.NewConfigError("to", fmt.Sprintf("unknown target %q (want cel or jsonlogic)", exportFlags.to))
	}

	var rules []labeledRule
	for i, text := range args {
		rules = append(rules, labeledRule{label: fmt.Sprintf("#%d", i), text: text})
	}
	if exportFlags.file != "" {
		set, err := a.newLoader().LoadFile(exportFlags.file)
		if err != nil {
			return err
		}
		rules = append(rules, setRules(set)...)
	}
	if len(rules) == 0 {
		return cli.NewConfigError("args", "no rules given; pass rule text or --file")
	}

	verify := len(exportFlags.set) > 0
	vars, err := parseVars(exportFlags.set)
	if err != nil {
		return err
	}

	engine := a.newEngine(nil)
	view := make(exportView, 0, len(rules))
	disagreements := 0
	for _, r := range rules {
		exported, err := exportRule(engine, r, exportFlags.to)
		if err != nil {
			return labeledRuleError(cmd, r.label, err)
		}

		if verify {
			if err := exported.verify(cmd, engine, r.text, vars); err != nil {
				return labeledRuleError(cmd, r.label, err)
			}
			if !exported.Check.Agree {
				disagreements++
			}
		}
		view = append(view, exported)
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), view); err != nil {
		return err
	}
	if disagreements > 0 {
		return &cli.ExitError{
			Code: cli.ExitFailure,
			Err:  fmt.Errorf("%d rule(s) evaluate differently when exported to %s", disagreements, exportFlags.to),
		}
	}
	return nil
}

// labeledRuleError is ruleError with the rule label in front of the
// detail, or of the error for failed translations.
func labeledRuleError(cmd *cobra.Command, label string, err error) error {
	if _, ok := dslerrors.As(err); ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
		return ruleError(cmd, err)
	}
	return fmt.Errorf("%s: %w", label, err)
}

type labeledRule struct {
	label string
	text  string
}

// setRules returns the rule texts of set. Dynamic keys stay attributes of
// the exported form.
func setRules(set *ruleset.Set) []labeledRule {
	rules := make([]labeledRule, len(set.Rules))
	for i, rule := range set.Rules {
		rules[i] = labeledRule{label: rule.Label(i), text: rule.Text()}
	}
	return rules
}

// exportedRule is one translated rule.
type exportedRule struct {
	Rule   string         `json:"rule"`
	Text   string         `json:"text"`
	Target string         `json:"target"`
	CEL    string         `json:"cel,omitempty"`
	Logic  map[string]any `json:"jsonlogic,omitempty"`
	Check  *exportCheck   `json:"check,omitempty"`

	program *export.CELProgram
}

// exportCheck compares the native and exported evaluation of a rule.
type exportCheck struct {
	Native   string `json:"native"`
	Exported string `json:"exported"`
	Agree    bool   `json:"agree"`
}

func exportRule(engine *dsl.Engine, r labeledRule, target string) (*exportedRule, error) {
	tree, err := engine.Parse(r.text)
	if err != nil {
		return nil, err
	}

	out := &exportedRule{Rule: r.label, Text: r.text, Target: target}
	switch target {
	case targetJSONLogic:
		out.Logic, err = export.JSONLogic(tree)
	default:
		out.program, err = export.CompileCEL(tree)
		if err == nil {
			out.CEL = out.program.Expr()
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *exportedRule) verify(cmd *cobra.Command, engine *dsl.Engine, text string, vars eval.Context) error {
	native, err := engine.Evaluate(cmd.Context(), text, vars)
	if err != nil {
		return err
	}

	var action string
	if e.program != nil {
		action, _, err = e.program.Evaluate(cmd.Context(), vars)
	} else {
		action, _, err = export.ApplyJSONLogic(e.Logic, vars)
	}
	if err != nil {
		return err
	}

	e.Check = &exportCheck{Native: native.Action, Exported: action, Agree: native.Action == action}
	return nil
}

type exportView []*exportedRule

func (v exportView) Raw() any {
	return []*exportedRule(v)
}

func (v exportView) String() string {
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "# %s: %s\n", e.Rule, e.Text)
		if e.Logic != nil {
			logic, _ := json.Marshal(e.Logic)
			fmt.Fprintf(&sb, "%s\n", logic)
		} else {
			fmt.Fprintf(&sb, "%s\n", e.CEL)
		}
		if c := e.Check; c != nil {
			mark := "✓"
			if !c.Agree {
				mark = "✗"
			}
			fmt.Fprintf(&sb, "%s native %s, %s %s\n", mark, quoteAction(c.Native), e.Target, quoteAction(c.Exported))
		}
	}
	return sb.String()
}

func quoteAction(action string) string {
	if action == "" {
		return "(none)"
	}
	return action
}
