package apierror

import (
	"fmt"
	"net/http"
	"time"
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`

	// RetryAfter is sent as the Retry-After header when positive.
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func Validation(message string, field string) *APIError {
	return New(CodeValidation, message, field, http.StatusUnprocessableEntity)
}

func Conflict(message string, details string) *APIError {
	return New(CodeConflict, message, details, http.StatusConflict)
}

func Unauthorized(message string) *APIError {
	return New(CodeUnauthorized, message, "", http.StatusUnauthorized)
}

func Forbidden(message string) *APIError {
	return New(CodeForbidden, message, "", http.StatusForbidden)
}

func NotFound(message string, details string) *APIError {
	return New(CodeNotFound, message, details, http.StatusNotFound)
}

func RateLimited(message string, retryAfter time.Duration) *APIError {
	apiErr := New(CodeRateLimited, message, "", http.StatusTooManyRequests)
	apiErr.RetryAfter = retryAfter
	return apiErr
}
