package server

import (
	"encoding/json"
	"errors"
	"net/http"

	dslerrors "mercator-hq/rulebook/pkg/dsl/errors"
	"mercator-hq/rulebook/pkg/telemetry/logging"
)

// ErrorResponse is the body of every API error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an API error. Rule errors carry their location and
// a suggestion when one is known.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`

	Line       int      `json:"line,omitempty"`
	Column     int      `json:"column,omitempty"`
	Lexeme     string   `json:"lexeme,omitempty"`
	Expected   []string `json:"expected,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeSyntax         = "syntax_error"
	ErrorTypeEvaluation     = "evaluation_error"
	ErrorTypeAuthentication = "authentication_error"
	ErrorTypeNotFound       = "not_found"
	ErrorTypeTooLarge       = "request_too_large"
	ErrorTypeUnavailable    = "service_unavailable"
	ErrorTypeServer         = "server_error"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, errType, param, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Message:   message,
		Type:      errType,
		Param:     param,
		RequestID: logging.GetRequestID(r.Context()),
	}})
}

// writeRuleError answers 422 for rules that fail to parse or evaluate.
func writeRuleError(w http.ResponseWriter, r *http.Request, err error) {
	detail := ErrorDetail{
		Message:   err.Error(),
		Type:      ErrorTypeSyntax,
		RequestID: logging.GetRequestID(r.Context()),
	}
	if e, ok := dslerrors.As(err); ok {
		detail.Message = e.Message
		if e.Type == dslerrors.ErrorTypeEvaluation {
			detail.Type = ErrorTypeEvaluation
		}
		if e.Location.IsValid() {
			detail.Line = e.Location.Line
			detail.Column = e.Location.Column
		}
		detail.Lexeme = e.Lexeme
		detail.Expected = e.Expected
		detail.Suggestion = e.Suggestion
	}
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: detail})
}

// writeDecodeError answers a request body that could not be decoded.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, ErrorTypeTooLarge, "",
			"request body exceeds the size limit")
		return
	}
	writeError(w, r, http.StatusBadRequest, ErrorTypeInvalidRequest, "", "invalid JSON body: "+err.Error())
}
