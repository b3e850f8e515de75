package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeUpstreamStatus  = "UPSTREAM_STATUS"
	ErrCodeSectionNotFound = "SECTION_NOT_FOUND"
	ErrCodeCancelled       = "CANCELLED"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// QuickViewError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type QuickViewError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *QuickViewError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *QuickViewError) Unwrap() error {
	return e.Err
}

// NewQuickViewError creates a new QuickViewError.
func NewQuickViewError(code, message string, err error) *QuickViewError {
	return &QuickViewError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *QuickViewError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first QuickViewError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var qe *QuickViewError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ErrCodeInternal
}
