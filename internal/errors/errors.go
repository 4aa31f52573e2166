// Package errors provides standardized domain errors with codes for the
// dedup engine.
//
// Usage:
//
//	// Fatal store failures propagate as-is.
//	rec, err := store.Get(ctx, id)
//	if err != nil {
//	    return fmt.Errorf("fetch subject record: %w", err)
//	}
//
//	// Everything else is recovered locally and logged.
//	if errors.Is(err, errors.ErrDanglingReference) {
//	    log.Error("dangling reference", "record_id", id)
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the dedup engine. Each corresponds to one of
// the error classes in the engine's error handling design: store errors are
// fatal to the current dedup call and propagate; the rest are recovered
// locally with logging.
const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeAlreadyExists     Code = "ALREADY_EXISTS"
	CodeStore             Code = "STORE_ERROR"
	CodeDanglingReference Code = "DANGLING_REFERENCE"
	CodeBudgetTrip        Code = "BUDGET_TRIP"
	CodeInvariantRepair   Code = "INVARIANT_REPAIR"
	CodeMissingLinkingID  Code = "MISSING_LINKING_ID"
)

// Fatal reports whether errors carrying this code must abort the calling
// dedup(R) call rather than be recovered locally.
func (c Code) Fatal() bool {
	return c == CodeStore
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists      = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrDanglingReference  = &Error{Code: CodeDanglingReference, Message: "dangling reference"}
	ErrBudgetTrip         = &Error{Code: CodeBudgetTrip, Message: "candidate budget exceeded"}
	ErrInvariantRepair    = &Error{Code: CodeInvariantRepair, Message: "invariant repair"}
	ErrMissingLinkingID   = &Error{Code: CodeMissingLinkingID, Message: "missing linking id"}
)

// NotFound creates a not found error.
func NotFound(msg string) *Error { return &Error{Code: CodeNotFound, Message: msg} }

// NotFoundf creates a not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already-exists error.
func AlreadyExists(msg string) *Error { return &Error{Code: CodeAlreadyExists, Message: msg} }

// Store wraps an underlying document-store failure as a fatal error.
func Store(err error) *Error {
	return &Error{Code: CodeStore, Message: "document store operation failed", cause: err}
}

// Storef wraps an underlying document-store failure with a formatted message.
func Storef(err error, format string, args ...any) *Error {
	return &Error{Code: CodeStore, Message: fmt.Sprintf(format, args...), cause: err}
}

// DanglingReference reports a Record/DedupGroup back-link pointing at a
// missing counterpart. Recovered locally; never propagated.
func DanglingReference(msg string) *Error {
	return &Error{Code: CodeDanglingReference, Message: msg}
}

// BudgetTrip reports that a candidate-generation probe exceeded its guard limit.
func BudgetTrip(msg string) *Error { return &Error{Code: CodeBudgetTrip, Message: msg} }

// InvariantRepair reports an invariant conflict found while committing a
// group mutation, such as a source already represented in the target group.
func InvariantRepair(msg string) *Error { return &Error{Code: CodeInvariantRepair, Message: msg} }

// MissingLinkingID reports a host record submitted to the cascader without
// a linking id.
func MissingLinkingID(msg string) *Error {
	return &Error{Code: CodeMissingLinkingID, Message: msg}
}
