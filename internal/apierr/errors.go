// Package apierr gives every service-layer failure a fixed kind, carrying
// its own HTTP status and audit-log policy, instead of an arbitrary error
// value.
package apierr

import (
	"errors"
	"net/http"

	"adxchange/internal/types"
)

type Error struct {
	Kind    types.ErrorKind
	Message string
	// Audit marks whether the boundary adapter should write an AuditLog
	// entry for this failure.
	Audit bool
	cause error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case types.ErrValidation:
		return http.StatusBadRequest
	case types.ErrAuthentication:
		return http.StatusUnauthorized
	case types.ErrAuthorization:
		return http.StatusForbidden
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrConflict:
		return http.StatusConflict
	case types.ErrRateLimit:
		return http.StatusTooManyRequests
	case types.ErrInsufficientFunds:
		return http.StatusPaymentRequired
	case types.ErrPayment:
		return http.StatusPaymentRequired
	case types.ErrExternalService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(kind types.ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message, Audit: auditsByDefault(kind)}
}

func Wrap(kind types.ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Audit: auditsByDefault(kind), cause: cause}
}

func auditsByDefault(kind types.ErrorKind) bool {
	switch kind {
	case types.ErrAuthorization, types.ErrConflict, types.ErrInsufficientFunds, types.ErrPayment, types.ErrExternalService, types.ErrInternal:
		return true
	default:
		return false
	}
}

func Validation(msg string) *Error        { return New(types.ErrValidation, msg) }
func Authentication(msg string) *Error    { return New(types.ErrAuthentication, msg) }
func Authorization(msg string) *Error     { return New(types.ErrAuthorization, msg) }
func NotFound(msg string) *Error          { return New(types.ErrNotFound, msg) }
func Conflict(msg string) *Error          { return New(types.ErrConflict, msg) }
func RateLimit(msg string) *Error         { return New(types.ErrRateLimit, msg) }
func InsufficientFunds(msg string) *Error { return New(types.ErrInsufficientFunds, msg) }
func Payment(msg string) *Error           { return New(types.ErrPayment, msg) }
func External(msg string, cause error) *Error {
	return Wrap(types.ErrExternalService, msg, cause)
}
func Internal(msg string, cause error) *Error {
	return Wrap(types.ErrInternal, msg, cause)
}

// As extracts an *Error from any error chain so callers at the httpserver
// boundary can translate a service failure into its HTTP shape.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
