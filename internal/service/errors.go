package service

import (
	"errors"
	"net/http"
)

// Kind classifies a service failure for the transport layer.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
)

// Status maps the kind to an HTTP status. Conflicts are reported as 400 to
// keep the status codes clients already handle.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is a failure whose Message is safe to show to the client.
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

func validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func forbidden(msg string) *Error  { return &Error{Kind: KindForbidden, Message: msg} }
func notFound(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func conflict(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }

func upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// ErrUnauthenticated is returned for a missing, unknown or expired session.
var ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Message: "Unauthorized"}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
