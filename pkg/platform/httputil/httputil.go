// Package httputil centralizes the JSON envelope and domain-error translation
// shared by every handler, keeping transport concerns out of services.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "auditflow/pkg/domain-errors"
)

// statusByCode maps the domain error taxonomy onto HTTP statuses.
var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:         http.StatusBadRequest,
	dErrors.CodeUnauthorized:       http.StatusUnauthorized,
	dErrors.CodeForbidden:          http.StatusForbidden,
	dErrors.CodeNotFound:           http.StatusNotFound,
	dErrors.CodeConflict:           http.StatusConflict,
	dErrors.CodeInvariantViolation: http.StatusConflict,
	dErrors.CodeRateLimited:        http.StatusTooManyRequests,
	dErrors.CodeTimeout:            http.StatusGatewayTimeout,
	dErrors.CodeInternal:           http.StatusInternalServerError,
}

// ToHTTPStatus returns the status for a domain error code, defaulting to 500.
func ToHTTPStatus(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error            string         `json:"error"`
	ErrorDescription string         `json:"error_description,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// WriteError translates a domain error into the JSON error envelope.
// Internal failures hide their message from callers; every other code keeps
// it, and structured details (e.g. the rate-limit last-sent marker) pass
// through untouched.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code == dErrors.CodeInternal {
		body.Error = "internal_error"
	} else {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.ErrorDescription = de.Message
			body.Details = de.Details
		} else {
			body.ErrorDescription = err.Error()
		}
	}
	WriteJSON(w, ToHTTPStatus(code), body)
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Decode parses the request body into dst, returning a coded error on
// malformed JSON so handlers can pass it straight to WriteError.
func Decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
