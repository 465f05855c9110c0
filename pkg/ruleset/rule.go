package ruleset

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"mercator-hq/rulebook/pkg/dsl/eval"
)

// Record is one token of a stored rule.
type Record struct {
	// Key is the token text. Keys joined by spaces form the rule text.
	Key string `yaml:"key" json:"key"`

	// Value is the bound value for dynamic records.
	Value any `yaml:"value,omitempty" json:"value,omitempty"`

	// Dynamic marks the record as an attribute binding: Key maps to Value
	// in the evaluation context.
	Dynamic bool `yaml:"dynamic,omitempty" json:"dynamic,omitempty"`
}

// Rule is an ordered list of records.
type Rule struct {
	// ID identifies the rule in reports. Optional.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	Records []Record `yaml:"records" json:"records"`

	// Invalid is set when the rule could not be built. Such a rule is
	// excluded from its batch without being parsed.
	Invalid *BuildError `yaml:"-" json:"-"`
}

// Text returns the rule text: the record keys joined by single spaces.
func (r Rule) Text() string {
	keys := make([]string, len(r.Records))
	for i, rec := range r.Records {
		keys[i] = rec.Key
	}
	return strings.Join(keys, " ")
}

// Interpolated returns the rule text with dynamic keys replaced by their
// values, for logging.
func (r Rule) Interpolated() string {
	parts := make([]string, len(r.Records))
	for i, rec := range r.Records {
		if rec.Dynamic {
			parts[i] = fmt.Sprint(rec.Value)
		} else {
			parts[i] = rec.Key
		}
	}
	return strings.Join(parts, " ")
}

// Context builds the evaluation context from the dynamic records. A later
// record with the same key overrides an earlier one.
func (r Rule) Context() (eval.Context, error) {
	ctx := make(eval.Context)
	for i, rec := range r.Records {
		if !rec.Dynamic {
			continue
		}
		v, err := eval.ToFloat64(rec.Value)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", i, rec.Key, err)
		}
		ctx[rec.Key] = v
	}
	return ctx, nil
}

// Label returns the rule ID, or "#<index>" when the rule has none.
func (r Rule) Label(index int) string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("#%d", index)
}

// Set is a named, ordered batch of rules.
type Set struct {
	Name  string `yaml:"name" json:"name"`
	Rules []Rule `yaml:"rules" json:"rules"`

	// Source is the file the set was loaded from, if any.
	Source string `yaml:"-" json:"source,omitempty"`
}

// NewRule builds a rule from text and a context, one record per
// whitespace-separated token. Tokens naming a context key become dynamic
// records. Every context key must appear as a token of its own; when one
// does not, the built rule is returned along with the error.
func NewRule(id, text string, vars map[string]any) (Rule, error) {
	fields := strings.Fields(text)
	rule := Rule{ID: id, Records: make([]Record, 0, len(fields))}
	used := make(map[string]bool, len(vars))
	for _, f := range fields {
		if v, ok := vars[f]; ok {
			rule.Records = append(rule.Records, Record{Key: f, Value: v, Dynamic: true})
			used[f] = true
			continue
		}
		rule.Records = append(rule.Records, Record{Key: f, Value: f})
	}
	for key := range vars {
		if !used[key] {
			return rule, fmt.Errorf("context key %q is not a separate token of %q", key, text)
		}
	}
	return rule, nil
}

// BuildRule builds a rule from records, or from text and a context, the two
// shapes accepted in rule-set files and API requests. It always returns a
// rule: one that cannot be built is marked Invalid so the executor excludes
// it and the rest of the batch still runs. Static records without a value
// take their key as value.
func BuildRule(id string, records []Record, text string, vars map[string]any) Rule {
	switch {
	case len(records) > 0 && text != "":
		return Rule{ID: id, Records: records}.invalid(StageParse, errors.New("records and text are mutually exclusive"))
	case text != "":
		rule, err := NewRule(id, text, vars)
		if err != nil {
			return rule.invalid(StageContext, err)
		}
		return rule
	case len(vars) > 0:
		return Rule{ID: id}.invalid(StageContext, errors.New("context requires text"))
	}

	rule := Rule{ID: id, Records: slices.Clone(records)}
	for i := range rule.Records {
		rec := &rule.Records[i]
		if rec.Key == "" {
			return rule.invalid(StageParse, fmt.Errorf("record %d has no key", i))
		}
		if !rec.Dynamic && rec.Value == nil {
			rec.Value = rec.Key
		}
	}
	return rule
}

func (r Rule) invalid(stage Stage, err error) Rule {
	r.Invalid = &BuildError{Stage: stage, Cause: err}
	return r
}
