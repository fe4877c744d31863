package control

import (
	"errors"
	"fmt"
)

// Kind classifies a control failure. The kind decides how a client should
// react: NotFound and InvalidArgument need corrected input, Unavailable is
// safe to retry with backoff, Internal is surfaced verbatim.
type Kind string

const (
	KindNotFound        Kind = "NotFound"
	KindInvalidArgument Kind = "InvalidArgument"
	KindUnavailable     Kind = "Unavailable"
	KindInternal        Kind = "Internal"
)

// Error is the error type returned by every control operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying cause (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound creates a NotFound error for an unresolved id or name.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidArgument creates an InvalidArgument error for a malformed or
// out-of-range value.
func InvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Unavailable creates an Unavailable error for transient resource pressure.
func Unavailable(format string, args ...any) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an engine-side failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err. Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is a NotFound control error.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsInvalidArgument reports whether err is an InvalidArgument control error.
func IsInvalidArgument(err error) bool {
	return err != nil && KindOf(err) == KindInvalidArgument
}

// IsUnavailable reports whether err is an Unavailable control error.
func IsUnavailable(err error) bool {
	return err != nil && KindOf(err) == KindUnavailable
}
