// Package apperr defines the error taxonomy shared by the wallet client and the
// relay server. Every failure that crosses a component boundary is an *Error
// carrying one Kind, so callers can branch with errors.Is against the sentinel
// values below instead of matching strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindNoProvider      Kind = "NO_PROVIDER"
	KindNoSession       Kind = "NO_SESSION"
	KindAddressMismatch Kind = "ADDRESS_MISMATCH"
	KindAccountDrift    Kind = "ACCOUNT_DRIFT"
	KindValidation      Kind = "VALIDATION_ERROR"
	KindChainCall       Kind = "CHAIN_CALL_FAILED"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindUpstreamAPI     Kind = "UPSTREAM_API_ERROR"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. They compare by Kind only.
var (
	ErrNoProvider      = &Error{Kind: KindNoProvider}
	ErrNoSession       = &Error{Kind: KindNoSession}
	ErrAddressMismatch = &Error{Kind: KindAddressMismatch}
	ErrAccountDrift    = &Error{Kind: KindAccountDrift}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrChainCall       = &Error{Kind: KindChainCall}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrUpstreamAPI     = &Error{Kind: KindUpstreamAPI}
	ErrInternal        = &Error{Kind: KindInternal}
)

// Error is a classified failure. Message is safe to show to the caller; Err is
// the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New returns an error of the given kind with a fixed message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. The message is err's text verbatim so that provider
// messages pass through unchanged. Wrapping a nil error returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// Validation is shorthand for a validation failure with a fixed message.
func Validation(msg string) *Error {
	return New(KindValidation, msg)
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindInternal when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
