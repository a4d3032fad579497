// Package apperr classifies failures at the service boundary. Every error a
// service returns is an *Error, so handlers decide the HTTP status from the
// Kind alone and never have to inspect driver errors.
package apperr

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// Kind tells who is at fault for a failed operation.
type Kind int

const (
	// KindServer covers database and infrastructure failures. The message is
	// generic and the wrapped cause is only logged.
	KindServer Kind = iota
	// KindClient is malformed or incomplete input, or bad credentials.
	KindClient
	// KindConflict is a write rejected by a uniqueness rule, e.g. an email
	// registered between the precheck and the insert.
	KindConflict
	// KindUnauthorized is a missing or invalid session token.
	KindUnauthorized
	// KindForbidden is a valid session acting outside its scope.
	KindForbidden
	// KindConsistency means stored data breaks an invariant the client cannot
	// be blamed for (a credential without a resolvable profile).
	KindConsistency
	// KindTimeout is a pool acquisition or transaction deadline expiry.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConsistency:
		return "consistency"
	case KindTimeout:
		return "timeout"
	default:
		return "server"
	}
}

// Error is the failure half of a service result.
type Error struct {
	Kind    Kind
	Message string // safe to show to the client
	Err     error  // cause, logged only
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int { return HTTPStatus(e.Kind) }

// HTTPStatus maps a kind to a response status.
func HTTPStatus(k Kind) int {
	switch k {
	case KindClient:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Client builds a client input error.
func Client(msg string) *Error { return &Error{Kind: KindClient, Message: msg} }

// Conflict builds a uniqueness conflict error.
func Conflict(msg string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: cause}
}

// Unauthorized builds a session error.
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

// Forbidden builds a scope error.
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// Consistency builds an invariant-violation error reported as a server fault.
func Consistency(msg string, cause error) *Error {
	return &Error{Kind: KindConsistency, Message: msg, Err: cause}
}

// Server builds a generic server error around cause.
func Server(msg string, cause error) *Error {
	return &Error{Kind: KindServer, Message: msg, Err: cause}
}

// TimeoutMessage is the client-facing text for KindTimeout.
const TimeoutMessage = "Database timeout"

// FromDB classifies a storage error. Deadline expiries become KindTimeout,
// everything else KindServer with msg.
func FromDB(msg string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: TimeoutMessage, Err: err}
	}
	return Server(msg, err)
}

// As extracts an *Error from err. Errors that were never classified are
// treated as server errors so nothing leaks to the client.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Server("Internal server error", err)
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
