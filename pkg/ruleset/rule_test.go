package ruleset

import (
	"reflect"
	"testing"

	"mercator-hq/rulebook/pkg/dsl/eval"
)

func workedExample(psr any) Rule {
	return Rule{Records: []Record{
		{Key: "IF", Value: "IF"},
		{Key: "(", Value: "("},
		{Key: "PSR", Value: psr, Dynamic: true},
		{Key: "<", Value: "<"},
		{Key: "constant", Value: 4, Dynamic: true},
		{Key: ")", Value: ")"},
		{Key: "THEN", Value: "THEN"},
		{Key: "action1()", Value: "action1()"},
		{Key: "ELSE", Value: "ELSE"},
		{Key: "action2()", Value: "action2()"},
	}}
}

func TestRule_Text(t *testing.T) {
	want := "IF ( PSR < constant ) THEN action1() ELSE action2()"
	if got := workedExample(2).Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	if got := (Rule{}).Text(); got != "" {
		t.Errorf("empty Text() = %q, want empty", got)
	}
}

func TestRule_Interpolated(t *testing.T) {
	want := "IF ( 2 < 4 ) THEN action1() ELSE action2()"
	if got := workedExample(2).Interpolated(); got != want {
		t.Errorf("Interpolated() = %q, want %q", got, want)
	}
}

func TestRule_Context(t *testing.T) {
	ctx, err := workedExample(2).Context()
	if err != nil {
		t.Fatalf("Context() failed: %v", err)
	}
	want := eval.Context{"PSR": 2, "constant": 4}
	if !reflect.DeepEqual(ctx, want) {
		t.Errorf("Context() = %v, want %v", ctx, want)
	}
}

func TestRule_ContextLaterRecordWins(t *testing.T) {
	rule := Rule{Records: []Record{
		{Key: "a", Value: 1, Dynamic: true},
		{Key: "a", Value: "2.5", Dynamic: true},
	}}
	ctx, err := rule.Context()
	if err != nil {
		t.Fatalf("Context() failed: %v", err)
	}
	if ctx["a"] != 2.5 {
		t.Errorf("a = %v, want 2.5", ctx["a"])
	}
}

func TestRule_ContextInvalidValue(t *testing.T) {
	if _, err := workedExample("lots").Context(); err == nil {
		t.Error("Context() accepted a non-numeric dynamic value")
	}
}

func TestRule_Label(t *testing.T) {
	if got := (Rule{ID: "r1"}).Label(3); got != "r1" {
		t.Errorf("Label() = %q, want %q", got, "r1")
	}
	if got := (Rule{}).Label(3); got != "#3" {
		t.Errorf("Label() = %q, want %q", got, "#3")
	}
}

func TestNewRule(t *testing.T) {
	rule, err := NewRule("r", "IF ( PSR < constant ) THEN action1() ELSE action2()",
		map[string]any{"PSR": 2, "constant": 4})
	if err != nil {
		t.Fatalf("NewRule() failed: %v", err)
	}

	if !reflect.DeepEqual(rule.Records, workedExample(2).Records) {
		t.Errorf("Records = %+v, want %+v", rule.Records, workedExample(2).Records)
	}
}

func TestNewRule_UnboundKey(t *testing.T) {
	if _, err := NewRule("r", "IF PSR<3 THEN x()", map[string]any{"PSR": 2}); err == nil {
		t.Error("NewRule() accepted a context key that is not a separate token")
	}
}

func TestBuildRule(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		text    string
		vars    map[string]any
		want    string
		stage   Stage
	}{
		{name: "records", records: []Record{{Key: "IF"}, {Key: "a", Value: 1, Dynamic: true}}, want: "IF a"},
		{name: "text", text: "IF a < 1 THEN x()", vars: map[string]any{"a": 0}, want: "IF a < 1 THEN x()"},
		{name: "empty", want: ""},
		{name: "keyless record", records: []Record{{Key: "IF"}, {Value: 2}}, want: "IF ", stage: StageParse},
		{name: "records and text", records: []Record{{Key: "IF"}}, text: "IF a < 1 THEN x()", want: "IF", stage: StageParse},
		{name: "context without text", vars: map[string]any{"a": 1}, want: "", stage: StageContext},
		{name: "context key not a token", text: "IF (PSR<4) THEN x()", vars: map[string]any{"PSR": 1}, want: "IF (PSR<4) THEN x()", stage: StageContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := BuildRule("r", tt.records, tt.text, tt.vars)
			if rule.ID != "r" || rule.Text() != tt.want {
				t.Errorf("BuildRule() = {%q %q}, want {%q %q}", rule.ID, rule.Text(), "r", tt.want)
			}
			switch {
			case tt.stage == "" && rule.Invalid != nil:
				t.Errorf("Invalid = %v, want a valid rule", rule.Invalid)
			case tt.stage != "" && (rule.Invalid == nil || rule.Invalid.Stage != tt.stage):
				t.Errorf("Invalid = %+v, want stage %s", rule.Invalid, tt.stage)
			}
		})
	}
}

func TestBuildRule_DefaultsStaticValues(t *testing.T) {
	records := []Record{{Key: "IF"}, {Key: "a", Value: 1, Dynamic: true}}
	rule := BuildRule("", records, "", nil)

	if rule.Records[0].Value != "IF" {
		t.Errorf("static value = %v, want the key", rule.Records[0].Value)
	}
	if records[0].Value != nil {
		t.Error("BuildRule() modified the caller's records")
	}
}
