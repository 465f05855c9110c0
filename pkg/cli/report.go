package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mercator-hq/rulebook/pkg/ruleset"
)

// ReportView displays one execution report.
type ReportView struct {
	Report *ruleset.Report
}

// Raw returns the report itself, for JSON output.
func (v ReportView) Raw() any {
	return v.Report
}

// Title summarizes the batch.
func (v ReportView) Title() string {
	r := v.Report
	title := fmt.Sprintf("%s: %s, %d of %d rules attempted", r.SetName, r.Outcome, r.Attempted, r.Total)
	if n := len(r.Excluded); n > 0 {
		title += fmt.Sprintf(", %d excluded", n)
	}
	return title
}

// Header returns the column names of the per-rule rows.
func (v ReportView) Header() []string {
	return []string{"#", "RULE", "ACTION", "STATUS", "DETAIL"}
}

// Rows returns one row per attempted rule, in rule order.
func (v ReportView) Rows() [][]string {
	type indexed struct {
		index int
		row   []string
	}

	r := v.Report
	entries := make([]indexed, 0, len(r.Results)+len(r.Excluded))
	for _, res := range r.Results {
		action, status := "-", "no match"
		if res.Selected {
			action, status = res.Action, "selected"
			if r.Stopped && res.Index == r.StoppedAt {
				status = "stopped"
			}
		}
		detail := formatDuration(res.Duration)
		if len(res.Defaulted) > 0 {
			detail += ", defaulted " + strings.Join(res.Defaulted, ", ")
		}
		entries = append(entries, indexed{res.Index, []string{
			strconv.Itoa(res.Index), res.RuleID, action, status, detail,
		}})
	}
	for _, ex := range r.Excluded {
		detail := ex.Error
		if ex.Line > 0 {
			detail = fmt.Sprintf("%d:%d %s", ex.Line, ex.Column, ex.Error)
		}
		entries = append(entries, indexed{ex.Index, []string{
			strconv.Itoa(ex.Index), ex.RuleID, "-", "excluded (" + ex.Kind + ")", detail,
		}})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = e.row
	}
	return rows
}

// String renders the report as plain text.
func (v ReportView) String() string {
	r := v.Report
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n", v.Title())
	fmt.Fprintf(&sb, "  run %s, started %s, took %s\n", r.RunID, humanize.Time(r.StartedAt), formatDuration(r.Duration))
	if r.Error != "" {
		fmt.Fprintf(&sb, "  error: %s\n", r.Error)
	}
	for _, row := range v.Rows() {
		fmt.Fprintf(&sb, "  %3s  %-12s %-16s %-20s %s\n", row[0], row[1], row[2], row[3], row[4])
	}
	if actions := r.Actions(); len(actions) > 0 {
		fmt.Fprintf(&sb, "  actions: %s\n", strings.Join(actions, ", "))
	}
	return sb.String()
}

// ReportsView displays the reports of several rule sets run together.
type ReportsView []*ruleset.Report

// Raw returns the reports, for JSON output.
func (v ReportsView) Raw() any {
	return []*ruleset.Report(v)
}

func (v ReportsView) Header() []string {
	return append([]string{"SET"}, ReportView{}.Header()...)
}

func (v ReportsView) Rows() [][]string {
	var rows [][]string
	for _, r := range v {
		for _, row := range (ReportView{Report: r}).Rows() {
			rows = append(rows, append([]string{r.SetName}, row...))
		}
	}
	return rows
}

func (v ReportsView) String() string {
	parts := make([]string, len(v))
	for i, r := range v {
		parts[i] = ReportView{Report: r}.String()
	}
	return strings.Join(parts, "\n")
}

// RunsView displays stored runs, one line each.
type RunsView struct {
	Runs  []*ruleset.Report
	Total int64
}

// Raw returns the runs and total, for JSON output.
func (v RunsView) Raw() any {
	return map[string]any{"runs": v.Runs, "total": v.Total}
}

func (v RunsView) Title() string {
	return fmt.Sprintf("%d of %s runs", len(v.Runs), humanize.Comma(v.Total))
}

func (v RunsView) Header() []string {
	return []string{"RUN ID", "SET", "OUTCOME", "RULES", "EXCLUDED", "ACTIONS", "STARTED", "DURATION"}
}

func (v RunsView) Rows() [][]string {
	rows := make([][]string, len(v.Runs))
	for i, r := range v.Runs {
		rows[i] = []string{
			r.RunID,
			r.SetName,
			string(r.Outcome),
			fmt.Sprintf("%d/%d", r.Attempted, r.Total),
			strconv.Itoa(len(r.Excluded)),
			strings.Join(r.Actions(), " "),
			r.StartedAt.UTC().Format(time.RFC3339),
			formatDuration(r.Duration),
		}
	}
	return rows
}

func (v RunsView) String() string {
	if len(v.Runs) == 0 {
		return "no runs found"
	}

	var sb strings.Builder
	for _, r := range v.Runs {
		fmt.Fprintf(&sb, "%s  %-16s %-10s %d/%d rules  %d excluded  %s\n",
			r.RunID, r.SetName, r.Outcome, r.Attempted, r.Total, len(r.Excluded), humanize.Time(r.StartedAt))
	}
	fmt.Fprintf(&sb, "%s\n", v.Title())
	return sb.String()
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
