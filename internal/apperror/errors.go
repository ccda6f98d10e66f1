package apperror

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for callers and for the HTTP layer.
type Kind string

const (
	InvalidArgument Kind = "invalid_argument"
	NotFound        Kind = "not_found"
	Unauthorized    Kind = "unauthorized"
	Unavailable     Kind = "unavailable"
)

var (
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrNotFound        = &Error{Kind: NotFound}
	ErrUnauthorized    = &Error{Kind: Unauthorized}
	ErrUnavailable     = &Error{Kind: Unavailable}
)

type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind when target carries no reason,
// so errors.Is(err, ErrNotFound) works for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func Invalid(reason string) *Error { return New(InvalidArgument, reason) }
func Missing(reason string) *Error { return New(NotFound, reason) }
func Forbidden(reason string) *Error { return New(Unauthorized, reason) }
func Unreachable(reason string) *Error { return New(Unavailable, reason) }

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// ReasonOf returns the caller-facing message for err.
func ReasonOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Reason != "" {
		return ae.Reason
	}
	return "something went wrong"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusForbidden
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
