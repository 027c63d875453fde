// Package domainerrors defines the coded error taxonomy surfaced by
// orchestration operations. Stores return infrastructure sentinels
// (pkg/platform/sentinel); services translate them into coded errors here so
// transports can map codes to protocol statuses without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure for callers. None of these are used for normal
// control flow.
type Code string

const (
	// CodeBadRequest covers missing or malformed input (validation failures).
	CodeBadRequest Code = "bad_request"

	// CodeUnauthorized indicates a missing or unverifiable actor identity.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden indicates the actor lacks the required functional role.
	CodeForbidden Code = "forbidden"

	// CodeNotFound indicates a referenced entity is absent or outside the
	// caller's tenant scope.
	CodeNotFound Code = "not_found"

	// CodeConflict indicates an invalid state transition or a uniqueness
	// violation (duplicate leader, repeat response).
	CodeConflict Code = "conflict"

	// CodeRateLimited indicates a dedup window blocked a one-shot broadcast.
	CodeRateLimited Code = "rate_limited"

	// CodeInvariantViolation indicates an aggregate rejected a mutation that
	// would break one of its documented invariants.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeTimeout indicates the operation's transaction deadline elapsed.
	CodeTimeout Code = "timeout"

	// CodeInternal is the fallback for unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. Details carries structured context the
// caller may act on (e.g. the last-sent timestamp behind a rate_limited
// broadcast rejection).
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewWithDetails creates a coded error carrying structured details.
func NewWithDetails(code Code, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// raised outside this taxonomy.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DetailsOf extracts structured details from err, or nil.
func DetailsOf(err error) map[string]any {
	var de *Error
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}
