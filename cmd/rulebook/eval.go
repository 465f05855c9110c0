package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/rulebook/pkg/cli"
	"mercator-hq/rulebook/pkg/dsl/eval"
	dslerrors "mercator-hq/rulebook/pkg/dsl/errors"
)

var evalFlags struct {
	set    []string
	trace  bool
	format string
}

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval RULE",
		Short: "Evaluate one rule",
		Long: `Evaluate a single rule against attributes given with --set.

Attributes missing from the context evaluate as 0 and are listed as
defaulted. Booleans evaluate as 1 and 0.

Examples:
  # Select an action
  rulebook eval "IF PSR < 3 THEN approve() ELSE review()" --set PSR=2

  # Show each evaluation step
  rulebook eval "IF PSR < 3 AND WS.Age > 30 THEN approve()" -s PSR=2 -s WS.Age=45 --trace

  # JSON output
  rulebook eval "IF flagged THEN reject()" -s flagged=true --format json`,
		Args: cobra.ExactArgs(1),
		RunE: evalRule,
	}

	cmd.Flags().StringArrayVarP(&evalFlags.set, "set", "s", nil, "attribute as key=value (repeatable)")
	cmd.Flags().BoolVar(&evalFlags.trace, "trace", false, "record evaluation steps")
	cmd.Flags().StringVarP(&evalFlags.format, "format", "o", "text", "output format: text, json, table, csv")
	return cmd
}

func evalRule(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	format, err := cli.ParseFormat(evalFlags.format)
	if err != nil {
		return err
	}
	vars, err := parseVars(evalFlags.set)
	if err != nil {
		return err
	}

	engine := a.newEngine(nil)
	tree, err := engine.Parse(args[0])
	if err != nil {
		return ruleError(cmd, err)
	}

	var result *eval.Result
	if evalFlags.trace {
		result, err = eval.NewEvaluator(a.logger).WithTrace(true).Evaluate(cmd.Context(), tree, vars)
	} else {
		result, err = engine.EvaluateTree(cmd.Context(), tree, vars)
	}
	if err != nil {
		return ruleError(cmd, err)
	}

	view := evalView{Rule: args[0], Result: result, Terminal: result.Action == a.cfg.Engine.TerminalAction}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), view)
}

// ruleError prints the detailed form of a rule error and exits with
// ExitFailure. Other errors are returned as they are.
func ruleError(cmd *cobra.Command, err error) error {
	ruleErr, ok := dslerrors.As(err)
	if !ok {
		return err
	}
	fmt.Fprint(cmd.ErrOrStderr(), ruleErr.Detail())
	return &cli.ExitError{Code: cli.ExitFailure}
}

// evalView displays one evaluation result.
type evalView struct {
	Rule     string
	Result   *eval.Result
	Terminal bool
}

type evalOutput struct {
	Rule      string           `json:"rule"`
	Action    string           `json:"action,omitempty"`
	Selected  bool             `json:"selected"`
	Matched   bool             `json:"matched"`
	Terminal  bool             `json:"terminal"`
	Defaulted []string         `json:"defaulted,omitempty"`
	Trace     []eval.TraceStep `json:"trace,omitempty"`
}

func (v evalView) Raw() any {
	return evalOutput{
		Rule:      v.Rule,
		Action:    v.Result.Action,
		Selected:  v.Result.Selected,
		Matched:   v.Result.Matched,
		Terminal:  v.Terminal,
		Defaulted: v.Result.Defaulted,
		Trace:     v.Result.Trace,
	}
}

func (v evalView) Title() string {
	return v.Rule
}

func (v evalView) Header() []string {
	return []string{"ACTION", "SELECTED", "MATCHED", "TERMINAL", "DEFAULTED"}
}

func (v evalView) Rows() [][]string {
	action := v.Result.Action
	if action == "" {
		action = "-"
	}
	return [][]string{{
		action,
		strconv.FormatBool(v.Result.Selected),
		strconv.FormatBool(v.Result.Matched),
		strconv.FormatBool(v.Terminal),
		strings.Join(v.Result.Defaulted, " "),
	}}
}

func (v evalView) String() string {
	var sb strings.Builder

	r := v.Result
	switch {
	case r.Selected && v.Terminal:
		fmt.Fprintf(&sb, "%s (terminal)\n", r.Action)
	case r.Selected:
		fmt.Fprintf(&sb, "%s\n", r.Action)
	default:
		sb.WriteString("no action: condition is false and there is no ELSE\n")
	}
	if len(r.Defaulted) > 0 {
		fmt.Fprintf(&sb, "defaulted to 0: %s\n", strings.Join(r.Defaulted, ", "))
	}
	if len(r.Trace) > 0 {
		sb.WriteString("trace:\n")
		for _, step := range r.Trace {
			fmt.Fprintf(&sb, "  %s\n", step)
		}
	}
	return sb.String()
}
