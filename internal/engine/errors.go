package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors
type ErrorCode string

const (
	// ErrCodeInvalidReference indicates a team or player id that is not in the roster.
	ErrCodeInvalidReference ErrorCode = "INVALID_REFERENCE"

	// ErrCodeNoActiveMatch indicates an innings operation with no current match.
	ErrCodeNoActiveMatch ErrorCode = "NO_ACTIVE_MATCH"

	// ErrCodeMatchNotLive indicates a ball recorded while no match is live.
	ErrCodeMatchNotLive ErrorCode = "MATCH_NOT_LIVE"

	// ErrCodeInvalidInput indicates a malformed request value.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodePersistenceFailure indicates the store rejected a write.
	// It is logged, never returned from a mutating operation.
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
)

// Error is a structured engine error
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// IsCode reports whether err (or anything it wraps) is an engine Error with code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the error code from an error, or "" if it has none
func CodeOf(err error) ErrorCode {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return ""
}

func invalidReference(kind, id string) *Error {
	return newError(ErrCodeInvalidReference, fmt.Sprintf("unknown %s %q", kind, id)).
		WithDetail(kind+"_id", id)
}

func invalidInput(message string) *Error {
	return newError(ErrCodeInvalidInput, message)
}
