// Package apperr defines the error kinds shared by services and HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindExpired
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExpired:
		return "expired"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unexpected"
	}
}

// Error carries a kind, a machine-readable code and a user-facing message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code, message string) *Error {
	if code == "" {
		code = kind.String()
	}
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return newError(KindValidation, code, message)
}

func Unauthenticated(code, message string) *Error {
	return newError(KindUnauthenticated, code, message)
}

func Forbidden(code, message string) *Error {
	return newError(KindForbidden, code, message)
}

func NotFound(code, message string) *Error {
	return newError(KindNotFound, code, message)
}

func Conflict(code, message string) *Error {
	return newError(KindConflict, code, message)
}

func Expired(code, message string) *Error {
	return newError(KindExpired, code, message)
}

func InvalidState(code, message string) *Error {
	return newError(KindInvalidState, code, message)
}

// Unexpected wraps a storage or internal failure.
func Unexpected(code string, err error) *Error {
	e := newError(KindUnexpected, code, "Internal server error")
	e.Err = err
	return e
}

// KindOf returns the kind of err, or KindUnexpected for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
