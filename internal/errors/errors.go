package errors

import (
	"fmt"
	"time"
)

// APIError represents a standardized API error response
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Details string    `json:"details,omitempty"`

	// Reason is the machine-readable engagement rejection reason, if any
	Reason string `json:"reason,omitempty"`

	// RetryAfter is set for rate-limit and availability errors
	RetryAfter time.Duration `json:"-"`

	Status int `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Retryable reports whether the client may retry the same request later
func (e *APIError) Retryable() bool {
	return e.Code == ErrServiceUnavail || e.Code == ErrRateLimited
}

func newError(code ErrorCode, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Status:  code.StatusCode(),
	}
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *APIError {
	return newError(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *APIError {
	return newError(ErrUnauthorized, message)
}

// Conflict creates a CONFLICT error
func Conflict(message string) *APIError {
	return newError(ErrConflict, message)
}

// ValidationError creates a VALIDATION_ERROR
func ValidationError(field, message string) *APIError {
	e := newError(ErrValidation, message)
	e.Field = field
	return e
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return newError(ErrBadRequest, message)
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *APIError {
	return newError(ErrInternalError, message)
}

// RateLimited creates a RATE_LIMITED error
func RateLimited(message string, retryAfter time.Duration) *APIError {
	if message == "" {
		message = "rate limit exceeded"
	}
	e := newError(ErrRateLimited, message)
	e.RetryAfter = retryAfter
	return e
}

// ServiceUnavailable creates a SERVICE_UNAVAILABLE error
func ServiceUnavailable(service string) *APIError {
	return newError(ErrServiceUnavail, fmt.Sprintf("%s is temporarily unavailable", service))
}

// WithDetails adds additional details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// WithReason attaches the engagement rejection reason code
func (e *APIError) WithReason(reason string) *APIError {
	e.Reason = reason
	return e
}

// rejectionCodes maps engagement rejection reasons to API error codes.
// Reasons not listed are validation failures.
var rejectionCodes = map[string]ErrorCode{
	"unauthenticated":  ErrUnauthorized,
	"post_not_found":   ErrNotFound,
	"already_endorsed": ErrAlreadyExists,
	"view_cooldown":    ErrRateLimited,
	"rate_limited":     ErrRateLimited,
}

// FromRejection converts an engagement rejection into an API error
func FromRejection(reason, message string, retryAfter time.Duration) *APIError {
	code, ok := rejectionCodes[reason]
	if !ok {
		code = ErrValidation
	}
	e := newError(code, message)
	e.Reason = reason
	if code == ErrRateLimited {
		e.RetryAfter = retryAfter
	}
	return e
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for the Retry-After header
func (e *APIError) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int((e.RetryAfter + time.Second - 1) / time.Second)
}
