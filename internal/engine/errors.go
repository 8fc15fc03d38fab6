package engine

import (
	"errors"
	"fmt"
)

// QueryError represents an error detected while compiling or executing a
// query.
//
// QueryError includes structured fields for diagnostics.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Message is a human-readable description.
	Message string

	// PlanID identifies the affected plan, when one exists.
	PlanID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// QueryErrorCode categorizes query errors.
type QueryErrorCode string

const (
	// ErrCodeUnknownEntity indicates a source ranges over an entity the
	// model does not define.
	ErrCodeUnknownEntity QueryErrorCode = "UNKNOWN_ENTITY"

	// ErrCodeUnknownSource indicates a handle not declared in the query.
	ErrCodeUnknownSource QueryErrorCode = "UNKNOWN_SOURCE"

	// ErrCodeShapeFailed indicates a row could not be shaped.
	ErrCodeShapeFailed QueryErrorCode = "SHAPE_FAILED"

	// ErrCodeCancelled indicates execution stopped because its context
	// was cancelled.
	ErrCodeCancelled QueryErrorCode = "CANCELLED"

	// ErrCodeInvalidQuery indicates a malformed query or missing parameter.
	ErrCodeInvalidQuery QueryErrorCode = "INVALID_QUERY"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.PlanID != "" {
		msg += fmt.Sprintf(" (plan=%s)", e.PlanID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code QueryErrorCode) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// IsUnknownEntityError returns true if err is an UNKNOWN_ENTITY error.
func IsUnknownEntityError(err error) bool { return hasCode(err, ErrCodeUnknownEntity) }

// IsUnknownSourceError returns true if err is an UNKNOWN_SOURCE error.
func IsUnknownSourceError(err error) bool { return hasCode(err, ErrCodeUnknownSource) }

// IsShapeError returns true if err is a SHAPE_FAILED error.
func IsShapeError(err error) bool { return hasCode(err, ErrCodeShapeFailed) }

// IsCancelledError returns true if err is a CANCELLED error.
func IsCancelledError(err error) bool { return hasCode(err, ErrCodeCancelled) }

// IsInvalidQueryError returns true if err is an INVALID_QUERY error.
func IsInvalidQueryError(err error) bool { return hasCode(err, ErrCodeInvalidQuery) }

func invalidQuery(format string, args ...any) *QueryError {
	return &QueryError{Code: ErrCodeInvalidQuery, Message: fmt.Sprintf(format, args...)}
}
