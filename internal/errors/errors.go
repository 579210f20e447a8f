// Package errors provides the service error taxonomy shared by the registry core and the REST layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of service error.
type ErrorCode string

const (
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	CodeBadRequest          ErrorCode = "BAD_REQUEST"
	CodeRateLimitExceeded   ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeTransactionFailed   ErrorCode = "TRANSACTION_FAILED"
	CodeInternal            ErrorCode = "INTERNAL"
)

// ServiceError is an error carrying a code and the HTTP status it maps to.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a detail entry and returns the same error.
func (e *ServiceError) WithDetail(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// =============================================================================
// Constructors
// =============================================================================

// NotFound reports a resource that does not resolve to anything readable.
func NotFound(resource, id string) *ServiceError {
	return &ServiceError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s %s not found", resource, id),
		HTTPStatus: http.StatusNotFound,
	}
}

// UpstreamUnavailable reports a failed call to the chain node.
func UpstreamUnavailable(operation string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeUpstreamUnavailable,
		Message:    fmt.Sprintf("upstream %s failed", operation),
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// TransactionFailed reports a transaction the chain executed but aborted.
func TransactionFailed(digest string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeTransactionFailed,
		Message:    fmt.Sprintf("transaction %s failed on chain", digest),
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

// BadRequest reports invalid caller input.
func BadRequest(message string) *ServiceError {
	return &ServiceError{
		Code:       CodeBadRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// RateLimitExceeded reports a throttled caller.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimitExceeded,
		Message:    fmt.Sprintf("rate limit of %d requests per %s exceeded", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Internal reports an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// =============================================================================
// Helpers
// =============================================================================

// As returns the first ServiceError in err's chain.
func As(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	se, ok := As(err)
	return ok && se.Code == code
}

// HTTPStatus returns the status for err, defaulting to 500.
func HTTPStatus(err error) int {
	if se, ok := As(err); ok && se.HTTPStatus != 0 {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}
