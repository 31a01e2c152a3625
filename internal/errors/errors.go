// Package errors defines the JSON error envelope every HTTP error
// passes through, so clients see one stable shape regardless of which
// layer rejected the request.
package errors

import (
	"encoding/json"
	"net/http"
)

// Stable API error codes.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeAlreadyTerminal    = "ALREADY_TERMINAL"
)

// HTTPError is the inner error object.
type HTTPError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HTTPErrorResponse is the wire envelope: {"error": {...}}.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// WriteError writes the envelope with the given status.
func WriteError(w http.ResponseWriter, status int, e HTTPError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: e})
}
