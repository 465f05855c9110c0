package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mercator-hq/rulebook/pkg/dsl/eval"
	"mercator-hq/rulebook/pkg/ruleset"
	"mercator-hq/rulebook/pkg/runstore"
)

// evaluateRequest is the body of POST /v1/evaluate.
type evaluateRequest struct {
	Rule    string         `json:"rule"`
	Context map[string]any `json:"context"`
	Trace   bool           `json:"trace"`
}

// EvaluateResponse is the result of evaluating a single rule.
type EvaluateResponse struct {
	Action    string           `json:"action,omitempty"`
	Selected  bool             `json:"selected"`
	Matched   bool             `json:"matched"`
	Terminal  bool             `json:"terminal,omitempty"`
	Defaulted []string         `json:"defaulted,omitempty"`
	Trace     []eval.TraceStep `json:"trace,omitempty"`
}

// executeRequest is the body of POST /v1/execute. Each rule is given
// either as records or as text with a context.
type executeRequest struct {
	Name  string        `json:"name"`
	Rules []ruleRequest `json:"rules"`
}

type ruleRequest struct {
	ID      string           `json:"id,omitempty"`
	Records []ruleset.Record `json:"records,omitempty"`
	Text    string           `json:"text,omitempty"`
	Context map[string]any   `json:"context,omitempty"`
}

// RunSummary is one entry of GET /v1/runs.
type RunSummary struct {
	RunID     string          `json:"run_id"`
	SetName   string          `json:"set_name"`
	Outcome   ruleset.Outcome `json:"outcome"`
	Attempted int             `json:"attempted"`
	Total     int             `json:"total"`
	Excluded  int             `json:"excluded"`
	Actions   []string        `json:"actions"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration_ns"`
}

// ListRunsResponse is the body of GET /v1/runs.
type ListRunsResponse struct {
	Runs   []RunSummary `json:"runs"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	if req.Rule == "" {
		writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, "rule", "rule is required")
		return
	}

	vars := make(eval.Context, len(req.Context))
	for key, value := range req.Context {
		v, err := eval.ToFloat64(value)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, "context."+key, err.Error())
			return
		}
		vars[key] = v
	}

	tree, err := s.engine.Parse(req.Rule)
	if err != nil {
		writeRuleError(w, r, err)
		return
	}

	var result *eval.Result
	if req.Trace {
		result, err = eval.NewEvaluator(s.logger).WithTrace(true).Evaluate(r.Context(), tree, vars)
	} else {
		result, err = s.engine.EvaluateTree(r.Context(), tree, vars)
	}
	if err != nil {
		writeRuleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EvaluateResponse{
		Action:    result.Action,
		Selected:  result.Selected,
		Matched:   result.Matched,
		Terminal:  result.Selected && result.Action == s.config.Engine.TerminalAction,
		Defaulted: result.Defaulted,
		Trace:     result.Trace,
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	set := &ruleset.Set{Name: req.Name, Rules: make([]ruleset.Rule, 0, len(req.Rules))}
	if set.Name == "" {
		set.Name = "api"
	}
	for _, rr := range req.Rules {
		set.Rules = append(set.Rules, ruleset.BuildRule(rr.ID, rr.Records, rr.Text, rr.Context))
	}

	report, err := s.executor.Execute(r.Context(), set)
	if err != nil {
		// A deadline is answered by the timeout middleware.
		if errors.Is(err, context.DeadlineExceeded) {
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, ErrorTypeUnavailable, "", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, "", err.Error())
		return
	}

	reports, err := s.store.List(r.Context(), q)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	total, err := s.store.Count(r.Context(), q)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := ListRunsResponse{
		Runs:   make([]RunSummary, len(reports)),
		Total:  total,
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if resp.Limit == 0 {
		resp.Limit = runstore.DefaultLimit
	}
	for i, report := range reports {
		resp.Runs[i] = summarize(report)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var qerr *runstore.QueryError
	switch {
	case errors.Is(err, runstore.ErrRunNotFound):
		writeError(w, r, http.StatusNotFound, ErrorTypeNotFound, "id", err.Error())
	case errors.As(err, &qerr):
		writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, "", err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "run store request failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, ErrorTypeServer, "", "failed to read run history")
	}
}

// parseQuery builds a store query from URL parameters: set, outcome,
// since, until (RFC 3339), limit, offset and order (asc or desc).
func parseQuery(values url.Values) (*runstore.Query, error) {
	q := &runstore.Query{
		SetName: values.Get("set"),
		Outcome: ruleset.Outcome(values.Get("outcome")),
	}

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &q.Since}, {"until", &q.Until}} {
		if v := values.Get(p.name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", p.name, err)
			}
			*p.dst = t
		}
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &q.Limit}, {"offset", &q.Offset}} {
		if v := values.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid %s %q", p.name, v)
			}
			*p.dst = n
		}
	}

	switch values.Get("order") {
	case "", "desc":
	case "asc":
		q.Ascending = true
	default:
		return nil, fmt.Errorf("invalid order %q, want asc or desc", values.Get("order"))
	}

	return q, q.Validate()
}

func summarize(report *ruleset.Report) RunSummary {
	actions := report.Actions()
	if actions == nil {
		actions = []string{}
	}
	return RunSummary{
		RunID:     report.RunID,
		SetName:   report.SetName,
		Outcome:   report.Outcome,
		Attempted: report.Attempted,
		Total:     report.Total,
		Excluded:  len(report.Excluded),
		Actions:   actions,
		StartedAt: report.StartedAt,
		Duration:  report.Duration,
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}
