package domain

import (
	"errors"
	"fmt"
	"time"
)

// Application error codes
const (
	EINVALID  = "invalid"   // Invalid input or validation failure
	ENOTFOUND = "not_found" // Resource not found
	ECONFLICT = "conflict"  // Resource conflict (e.g., duplicate)
	EQUOTA    = "quota"     // Usage quota exhausted
	EPAYMENT  = "payment"   // Feature requires a higher subscription tier
	EINTERNAL = "internal"  // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "progression.award_xp")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return EQUOTA
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe.Error()
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// QuotaError carries the structured result of a quota denial so callers can
// tell the user how much remains and when the counter resets. Quota denials
// are expected outcomes, not internal failures.
type QuotaError struct {
	Op        string
	Feature   Feature
	Used      int
	Limit     int
	Remaining int
	ResetsAt  time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: quota exceeded for %s (%d/%d used, resets %s)",
		e.Op, e.Feature, e.Used, e.Limit, e.ResetsAt.Format(time.RFC3339))
}

// QuotaExceeded creates a quota error with reset information.
func QuotaExceeded(op string, feature Feature, used, limit int, resetsAt time.Time) *QuotaError {
	return &QuotaError{
		Op:        op,
		Feature:   feature,
		Used:      used,
		Limit:     limit,
		Remaining: max(0, limit-used),
		ResetsAt:  resetsAt,
	}
}

// IsQuotaExceeded reports whether err is a quota denial and returns it if so.
func IsQuotaExceeded(err error) (*QuotaError, bool) {
	var qe *QuotaError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
