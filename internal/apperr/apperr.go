// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer.
package apperr

import (
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindInvalidToken
	KindNotFound
	KindInvalidInput
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindInvalidToken:
		return "INVALID_TOKEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL_ERROR"
	}
}

// Status returns the HTTP status code reported for the kind. Conflicts are
// reported as 400, the same as any other rejected payload.
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized, KindInvalidToken:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput, KindConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure carrying a message safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Cause keeps pkg/errors.Cause walking through classified errors.
func (e *Error) Cause() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err. A stack trace is attached to the cause.
func Wrap(kind Kind, err error, message string) *Error {
	if err != nil {
		err = errors.WithStack(err)
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthorized(message string) *Error {
	if message == "" {
		message = "Unauthorized"
	}
	return New(KindUnauthorized, message)
}

func InvalidToken(err error) *Error {
	return &Error{Kind: KindInvalidToken, Message: "Invalid token", Err: err}
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func InvalidInput(message string) *Error {
	return New(KindInvalidInput, message)
}

func Conflict(message string) *Error {
	return New(KindConflict, message)
}

func Internal(err error, message string) *Error {
	if message == "" {
		message = "Internal Server Error"
	}
	return Wrap(KindInternal, err, message)
}

// KindOf returns the kind of the first classified error in the chain.
// Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Message returns the client-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal Server Error"
}
