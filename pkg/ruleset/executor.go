package ruleset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/rulebook/pkg/config"
	"mercator-hq/rulebook/pkg/dsl"
	dslerrors "mercator-hq/rulebook/pkg/dsl/errors"
	"mercator-hq/rulebook/pkg/telemetry/tracing"
)

// DefaultTerminalAction is the action name that stops a batch.
const DefaultTerminalAction = "Exit"

// ExecutorConfig contains configuration for the Executor.
type ExecutorConfig struct {
	// TerminalAction is the action that stops the batch when selected. The
	// terminal action is not dispatched.
	// Default: "Exit".
	TerminalAction string

	// RuleTimeout bounds evaluation and dispatch of a single rule. Zero
	// means no limit.
	// Default: 0.
	RuleTimeout time.Duration
}

// DefaultExecutorConfig returns the default executor configuration.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		TerminalAction: DefaultTerminalAction,
	}
}

// ExecutorConfigFrom builds an executor configuration from the engine
// section of the application configuration.
func ExecutorConfigFrom(cfg *config.EngineConfig) *ExecutorConfig {
	return &ExecutorConfig{
		TerminalAction: cfg.TerminalAction,
		RuleTimeout:    cfg.RuleTimeout,
	}
}

// Validate validates the executor configuration.
func (c *ExecutorConfig) Validate() error {
	if c.TerminalAction == "" {
		return errors.New("terminal action must not be empty")
	}
	if c.RuleTimeout < 0 {
		return errors.New("rule timeout must not be negative")
	}
	return nil
}

// Observer receives execution events, typically to record metrics.
type Observer interface {
	RuleEvaluated(action string, selected bool, duration time.Duration)
	RuleExcluded(kind string)
	BatchFinished(outcome Outcome, duration time.Duration)
}

// ReportSink persists finished reports.
type ReportSink interface {
	Save(ctx context.Context, report *Report) error
}

// Executor runs rule sets one rule at a time. It is safe for concurrent
// use; each Execute call has its own state.
type Executor struct {
	engine     *dsl.Engine
	dispatcher Dispatcher
	config     *ExecutorConfig
	logger     *slog.Logger
	observer   Observer
	tracer     trace.Tracer
	sink       ReportSink
}

// NewExecutor creates an executor. A nil dispatcher only selects actions;
// a nil engine or config uses the defaults.
func NewExecutor(engine *dsl.Engine, dispatcher Dispatcher, config *ExecutorConfig, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = dsl.NewEngine(nil, logger)
	}
	if config == nil {
		config = DefaultExecutorConfig()
	}
	return &Executor{
		engine:     engine,
		dispatcher: dispatcher,
		config:     config,
		logger:     logger,
		tracer:     noop.NewTracerProvider().Tracer(tracing.InstrumentationName),
	}
}

// WithObserver sets the observer notified of execution events.
func (e *Executor) WithObserver(o Observer) *Executor {
	e.observer = o
	return e
}

// WithTracer sets the tracer used for batch and rule spans.
func (e *Executor) WithTracer(t trace.Tracer) *Executor {
	if t != nil {
		e.tracer = t
	}
	return e
}

// WithSink sets where finished reports are saved.
func (e *Executor) WithSink(s ReportSink) *Executor {
	e.sink = s
	return e
}

// Execute runs the rules of set in order and returns the report. The
// returned error is non-nil only when ctx is cancelled mid-batch; the
// partial report is returned alongside it.
func (e *Executor) Execute(ctx context.Context, set *Set) (*Report, error) {
	if set == nil {
		return nil, errors.New("rule set is nil")
	}

	start := time.Now()
	report := &Report{
		RunID:     uuid.NewString(),
		SetName:   set.Name,
		Results:   []RuleResult{},
		Excluded:  []Exclusion{},
		StoppedAt: -1,
		Total:     len(set.Rules),
		StartedAt: start.UTC(),
	}

	ctx, span := e.tracer.Start(ctx, tracing.SpanRuleSetExecute, trace.WithAttributes(
		tracing.RuleSetAttributes(set.Name, report.RunID, len(set.Rules))...,
	))
	defer span.End()

	logger := e.logger.With("run_id", report.RunID, "rule_set", set.Name)
	logger.Debug("executing rule set", "rules", len(set.Rules))

	var abortErr error
	for i, rule := range set.Rules {
		if err := ctx.Err(); err != nil {
			abortErr = err
			break
		}

		step := e.executeRule(ctx, logger, i, rule)
		if step.abort != nil {
			abortErr = step.abort
			break
		}
		report.Attempted++

		if step.exclusion != nil {
			report.Excluded = append(report.Excluded, *step.exclusion)
			e.notifyExcluded(step.exclusion.Kind)
		}
		if step.result != nil {
			report.Results = append(report.Results, *step.result)
		}
		if step.stop {
			report.Stopped = true
			report.StoppedAt = i
			logger.Info("terminal action selected, stopping batch",
				"rule", rule.Label(i),
				"remaining", len(set.Rules)-i-1,
			)
			break
		}
	}

	report.Duration = time.Since(start)
	switch {
	case abortErr != nil:
		report.Outcome = OutcomeAborted
		report.Error = abortErr.Error()
		tracing.SetError(span, abortErr)
	case report.Stopped:
		report.Outcome = OutcomeStopped
	default:
		report.Outcome = OutcomeCompleted
	}
	tracing.SetBatchResult(span, string(report.Outcome), report.Attempted, len(report.Excluded))

	if e.observer != nil {
		e.observer.BatchFinished(report.Outcome, report.Duration)
	}

	logger.Info("rule set executed",
		"outcome", report.Outcome,
		"attempted", report.Attempted,
		"total", report.Total,
		"excluded", len(report.Excluded),
		"duration_ms", report.Duration.Milliseconds(),
	)

	if e.sink != nil {
		// The batch context may already be cancelled; the report is still saved.
		if err := e.sink.Save(context.WithoutCancel(ctx), report); err != nil {
			logger.Error("failed to save report", "error", err)
		}
	}

	if abortErr != nil {
		return report, fmt.Errorf("rule set %q aborted after %d of %d rules: %w",
			set.Name, report.Attempted, report.Total, abortErr)
	}
	return report, nil
}

// ruleStep is the outcome of executing one rule.
type ruleStep struct {
	result    *RuleResult
	exclusion *Exclusion
	stop      bool
	abort     error
}

func (e *Executor) executeRule(ctx context.Context, logger *slog.Logger, index int, rule Rule) ruleStep {
	start := time.Now()
	label := rule.Label(index)
	text := rule.Text()

	ruleCtx, span := e.tracer.Start(ctx, tracing.SpanRuleEvaluate, trace.WithAttributes(
		tracing.RuleAttributes(index, label)...,
	))
	defer span.End()

	if e.config.RuleTimeout > 0 {
		var cancel context.CancelFunc
		ruleCtx, cancel = context.WithTimeout(ruleCtx, e.config.RuleTimeout)
		defer cancel()
	}

	exclude := func(stage Stage, err error) ruleStep {
		if ctx.Err() != nil {
			return ruleStep{abort: ctx.Err()}
		}
		exErr := &ExclusionError{Index: index, RuleID: label, Stage: stage, Cause: err}
		ex := &Exclusion{
			Index:  index,
			RuleID: label,
			Text:   text,
			Stage:  stage,
			Kind:   exErr.Kind(),
			Error:  err.Error(),
			Err:    exErr,
		}
		if de, ok := dslerrors.As(err); ok && de.Location.IsValid() {
			ex.Line, ex.Column = de.Location.Line, de.Location.Column
		}
		tracing.SetRuleExcluded(span, string(stage), exErr)
		logger.Warn("rule excluded",
			"rule", label,
			"stage", stage,
			"text", text,
			"error", err,
		)
		return ruleStep{exclusion: ex}
	}

	if rule.Invalid != nil {
		return exclude(rule.Invalid.Stage, rule.Invalid.Cause)
	}

	logger.Debug("evaluating rule", "rule", label, "text", text, "values", rule.Interpolated())

	tree, err := e.engine.Parse(text)
	if err != nil {
		return exclude(StageParse, err)
	}

	vars, err := rule.Context()
	if err != nil {
		return exclude(StageContext, dslerrors.NewEvaluationError(nil, "invalid context", err))
	}

	res, err := e.engine.EvaluateTree(ruleCtx, tree, vars)
	if err != nil {
		return exclude(StageEvaluate, err)
	}

	result := &RuleResult{
		Index:     index,
		RuleID:    label,
		Text:      text,
		Action:    res.Action,
		Selected:  res.Selected,
		Matched:   res.Matched,
		Defaulted: res.Defaulted,
		Trace:     res.Trace,
	}
	terminal := res.Selected && res.Action == e.config.TerminalAction
	tracing.SetRuleResult(span, res.Action, res.Selected, terminal)

	if terminal {
		result.Duration = time.Since(start)
		e.notifyEvaluated(result)
		return ruleStep{result: result, stop: true}
	}

	if res.Selected && e.dispatcher != nil {
		if err := e.dispatcher.Dispatch(ruleCtx, res.Action, rule); err != nil {
			return exclude(StageDispatch, fmt.Errorf("action %q: %w", res.Action, err))
		}
	}

	result.Duration = time.Since(start)
	e.notifyEvaluated(result)
	logger.Debug("rule evaluated",
		"rule", label,
		"action", res.Action,
		"selected", res.Selected,
		"duration_us", result.Duration.Microseconds(),
	)
	return ruleStep{result: result}
}

func (e *Executor) notifyEvaluated(r *RuleResult) {
	if e.observer != nil {
		e.observer.RuleEvaluated(r.Action, r.Selected, r.Duration)
	}
}

func (e *Executor) notifyExcluded(kind string) {
	if e.observer != nil {
		e.observer.RuleExcluded(kind)
	}
}
