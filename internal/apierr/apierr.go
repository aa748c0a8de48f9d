// Package apierr defines Kaizen Studio's error taxonomy (spec.md §7) and the
// envelope the error-boundary middleware renders it into (spec.md §6).
package apierr

import "net/http"

// Code is one of the fixed error codes spec.md §6 names.
type Code string

const (
	CodeBadRequest        Code = "BAD_REQUEST"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeValidationError   Code = "VALIDATION_ERROR"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     Code = "INTERNAL_ERROR"
)

var httpStatus = map[Code]int{
	CodeBadRequest:        http.StatusBadRequest,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeNotFound:          http.StatusNotFound,
	CodeConflict:          http.StatusConflict,
	CodeValidationError:   http.StatusUnprocessableEntity,
	CodeRateLimitExceeded: http.StatusTooManyRequests,
	CodeInternalError:     http.StatusInternalServerError,
}

// Error is the typed error every handler and enforcement-pipeline stage
// returns. The error-boundary middleware (spec.md §4 stage 1) is the only
// place that converts it to the wire envelope.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	// Status overrides the code's default HTTP status. Used by the readiness
	// probe to report 503 on an INTERNAL_ERROR code (httpserver.notReady).
	Status int
}

func (e *Error) Error() string { return e.Message }

// HTTPStatus returns the status code to write for this error.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WithDetails(code Code, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

func BadRequest(message string) *Error   { return New(CodeBadRequest, message) }
func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }
func NotFound(message string) *Error     { return New(CodeNotFound, message) }
func Conflict(message string) *Error     { return New(CodeConflict, message) }
func Internal(message string) *Error     { return New(CodeInternalError, message) }

// ForbiddenByPolicy builds a FORBIDDEN error whose details distinguish an
// ABAC deny from a plain RBAC deny (spec.md §7 "Authz").
func ForbiddenByPolicy(message string) *Error {
	return WithDetails(CodeForbidden, message, map[string]any{"by_policy": true})
}

// RateLimited builds a RATE_LIMIT_EXCEEDED error carrying retry_after seconds.
func RateLimited(retryAfterSeconds int) *Error {
	return WithDetails(CodeRateLimitExceeded, "rate limit exceeded", map[string]any{
		"retry_after": retryAfterSeconds,
	})
}

// ValidationFailed builds a VALIDATION_ERROR with a per-field detail list.
func ValidationFailed(fields []FieldError) *Error {
	details := make(map[string]any, 1)
	details["fields"] = fields
	return WithDetails(CodeValidationError, "one or more fields failed validation", details)
}

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
