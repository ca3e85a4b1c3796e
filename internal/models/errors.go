package models

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to callers.
const (
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeTokenNotFound       = "TOKEN_NOT_FOUND"
	CodeRateLimited         = "RATE_LIMITED"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeDuplicateSubmission = "DUPLICATE_SUBMISSION"
	CodeNetworkError        = "NETWORK_ERROR"
	CodeServerError         = "SERVER_ERROR"
	CodeUnknownError        = "UNKNOWN_ERROR"
)

// Error is a caller-facing error with a stable code. Validation failures
// carry per-field messages; rate limits carry retry-after seconds.
type Error struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	RetryAfter int64             `json:"retry_after_seconds,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func ValidationError(field, message string) *Error {
	return &Error{
		Code:    CodeValidationError,
		Message: fmt.Sprintf("%s: %s", field, message),
		Fields:  map[string]string{field: message},
	}
}

func RateLimitedError(retryAfterSeconds int64) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    "too many attempts, try again later",
		RetryAfter: retryAfterSeconds,
	}
}

// ErrorCode extracts the stable code from any error, defaulting to
// UNKNOWN_ERROR for errors that did not originate here.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknownError
}
