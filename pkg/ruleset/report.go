package ruleset

import (
	"time"

	"mercator-hq/rulebook/pkg/dsl/eval"
)

// Outcome is how a batch ended.
type Outcome string

const (
	// OutcomeCompleted means every rule was attempted.
	OutcomeCompleted Outcome = "completed"

	// OutcomeStopped means a rule selected the terminal action.
	OutcomeStopped Outcome = "stopped"

	// OutcomeAborted means the context was cancelled mid-batch.
	OutcomeAborted Outcome = "aborted"
)

// RuleResult is the outcome of one successfully evaluated rule.
type RuleResult struct {
	Index     int              `json:"index"`
	RuleID    string           `json:"rule_id"`
	Text      string           `json:"text"`
	Action    string           `json:"action,omitempty"`
	Selected  bool             `json:"selected"`
	Matched   bool             `json:"matched"`
	Defaulted []string         `json:"defaulted,omitempty"`
	Duration  time.Duration    `json:"duration_ns"`
	Trace     []eval.TraceStep `json:"trace,omitempty"`
}

// Exclusion records a rule that was excluded from a batch.
type Exclusion struct {
	Index  int    `json:"index"`
	RuleID string `json:"rule_id"`
	Text   string `json:"text"`
	Stage  Stage  `json:"stage"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`

	// Err is the original error. It is not serialized.
	Err error `json:"-"`
}

// Report summarizes one execution of a rule set.
type Report struct {
	RunID     string        `json:"run_id"`
	SetName   string        `json:"set_name"`
	Outcome   Outcome       `json:"outcome"`
	Results   []RuleResult  `json:"results"`
	Excluded  []Exclusion   `json:"excluded"`
	Stopped   bool          `json:"stopped"`
	StoppedAt int           `json:"stopped_at"` // Index of the terminal rule, -1 if none
	Attempted int           `json:"attempted"`
	Total     int           `json:"total"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

// Actions returns the selected action names in rule order.
func (r *Report) Actions() []string {
	var actions []string
	for _, res := range r.Results {
		if res.Selected {
			actions = append(actions, res.Action)
		}
	}
	return actions
}

// ExcludedIndexes returns the indexes of excluded rules in order.
func (r *Report) ExcludedIndexes() []int {
	indexes := make([]int, len(r.Excluded))
	for i, ex := range r.Excluded {
		indexes[i] = ex.Index
	}
	return indexes
}
