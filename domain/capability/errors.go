package capability

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies a capability failure.
type Kind string

const (
	KindNotFound        Kind = "not-found"
	KindDenied          Kind = "denied"
	KindInvalidArgument Kind = "invalid-argument"
	KindConflict        Kind = "conflict"
	KindLimit           Kind = "limit"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

// Sentinels for errors.Is matching on the kind of a *Error.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrDenied          = &Error{Kind: KindDenied}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrLimit           = &Error{Kind: KindLimit}
	ErrUnavailable     = &Error{Kind: KindUnavailable}
	ErrInternal        = &Error{Kind: KindInternal}
)

// Error is the failure returned by every capability operation.
type Error struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is reports whether target is a capability error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the caller may retry the operation.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Denied creates a denied error.
func Denied(format string, args ...any) *Error {
	return &Error{Kind: KindDenied, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument creates an invalid-argument error.
func InvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Limit creates a limit error.
func Limit(format string, args ...any) *Error {
	return &Error{Kind: KindLimit, Message: fmt.Sprintf(format, args...)}
}

// Unavailable creates an unavailable error.
func Unavailable(format string, args ...any) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// FromIO maps an operating system error onto a capability error.
func FromIO(op string, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	msg := fmt.Sprintf("%s failed: %v", op, err)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Error{Kind: KindNotFound, Message: msg}
	case errors.Is(err, fs.ErrPermission):
		return &Error{Kind: KindDenied, Message: msg}
	default:
		return &Error{Kind: KindInternal, Message: msg}
	}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}
