// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors, and the HTTP layer maps them to
// appropriate HTTP status codes.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data or missing configuration.
	KindValidation
	// KindConflict indicates a conflict with existing state (e.g., a move
	// already in flight for the same contact).
	KindConflict
	// KindBadRequest indicates a malformed or invalid request.
	KindBadRequest
	// KindInternal indicates an unexpected internal error.
	KindInternal
	// KindUpstream indicates the remote CRM API returned a non-2xx status.
	// The upstream status and decoded body travel with the error so the
	// HTTP layer can relay them verbatim.
	KindUpstream
)

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)

	// UpstreamStatus is the HTTP status returned by the remote CRM.
	// Only meaningful when Kind is KindUpstream.
	UpstreamStatus int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
// Upstream errors relay the remote status when it is a usable HTTP code,
// falling back to 502 otherwise.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindInternal:
		return http.StatusInternalServerError
	case KindUpstream:
		if e.UpstreamStatus >= 400 && e.UpstreamStatus < 600 {
			return e.UpstreamStatus
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithDetails returns the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict creates a conflict error.
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Internal creates an internal server error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// Upstream creates an upstream error carrying the remote status code and
// the decoded remote response body.
func Upstream(status int, body interface{}) *Error {
	message := fmt.Sprintf("chatwoot API error: %d", status)
	if status == 0 {
		message = "chatwoot API unreachable"
	}
	return &Error{
		Kind:           KindUpstream,
		Message:        message,
		Details:        body,
		UpstreamStatus: status,
	}
}

// GetKind extracts the error kind from an error.
// Returns KindUnknown if the error is not an *Error.
func GetKind(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
