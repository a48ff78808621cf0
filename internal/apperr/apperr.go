// Package apperr defines the error taxonomy shared by the lifecycle engine,
// the chat relay, the OTP flow and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for the HTTP mapping.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidWorker     Kind = "invalid_worker"
	KindRateLimited       Kind = "rate_limited"
	KindStorage           Kind = "storage"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindDelivery          Kind = "delivery"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrValidation        = &Error{Kind: KindValidation, Code: string(KindValidation)}
	ErrNotFound          = &Error{Kind: KindNotFound, Code: string(KindNotFound)}
	ErrInvalidState      = &Error{Kind: KindInvalidState, Code: string(KindInvalidState)}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Code: string(KindInvalidTransition)}
	ErrInvalidWorker     = &Error{Kind: KindInvalidWorker, Code: string(KindInvalidWorker)}
	ErrRateLimited       = &Error{Kind: KindRateLimited, Code: string(KindRateLimited)}
	ErrStorage           = &Error{Kind: KindStorage, Code: string(KindStorage)}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Code: string(KindUnauthorized)}
	ErrForbidden         = &Error{Kind: KindForbidden, Code: string(KindForbidden)}
	ErrConflict          = &Error{Kind: KindConflict, Code: string(KindConflict)}
	ErrDelivery          = &Error{Kind: KindDelivery, Code: string(KindDelivery)}
)

// Error carries a machine-readable code and a user-facing message.
// Err is the underlying cause and is never shown to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound) works
// regardless of code or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, code, msg string) *Error {
	if code == "" {
		code = string(kind)
	}
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(code, msg string) *Error        { return newErr(KindValidation, code, msg) }
func NotFound(code, msg string) *Error          { return newErr(KindNotFound, code, msg) }
func InvalidState(code, msg string) *Error      { return newErr(KindInvalidState, code, msg) }
func InvalidTransition(code, msg string) *Error { return newErr(KindInvalidTransition, code, msg) }
func InvalidWorker(code, msg string) *Error     { return newErr(KindInvalidWorker, code, msg) }
func Unauthorized(code, msg string) *Error      { return newErr(KindUnauthorized, code, msg) }
func Forbidden(code, msg string) *Error         { return newErr(KindForbidden, code, msg) }
func Conflict(code, msg string) *Error          { return newErr(KindConflict, code, msg) }

// Storage wraps an infrastructure failure. The cause is kept for logs only.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Code: "internal_error", Message: op, Err: err}
}

// Delivery reports that an outbound message (email) could not be handed over.
// The code and message reach the client; the cause is kept for logs.
func Delivery(code, msg string, err error) *Error {
	return &Error{Kind: KindDelivery, Code: code, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindStorage for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// As extracts the *Error from err. Unclassified errors are wrapped as storage errors.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Storage("unclassified", err)
}
