package gtserror

import (
	"fmt"
	"net/http"
)

// WithCode wraps an error with an HTTP status code plus a message that
// is safe to hand back to a remote peer or local API caller, keeping the
// original (possibly sensitive) error for local logs only (§7). The
// inbox and webserver handlers write their HTTP statuses directly and
// do not go through this type.
type WithCode interface {
	error

	// Code returns the HTTP status this error should be rendered as.
	Code() int

	// Safe returns the message that may be shown to the caller.
	Safe() string

	// Unwrap returns the original, possibly sensitive, error.
	Unwrap() error
}

type withCode struct {
	err  error
	code int
	safe string
}

func (w *withCode) Error() string { return w.err.Error() }
func (w *withCode) Code() int     { return w.code }
func (w *withCode) Safe() string  { return w.safe }
func (w *withCode) Unwrap() error { return w.err }

// NewWithCode wraps err with the given status code and safe message.
func NewWithCode(code int, safe string, err error) WithCode {
	return &withCode{err: err, code: code, safe: safe}
}

func NewErrorBadRequest(err error, safe ...string) WithCode {
	return NewWithCode(http.StatusBadRequest, firstOr(safe, "bad request"), err)
}

func NewErrorUnauthorized(err error, safe ...string) WithCode {
	return NewWithCode(http.StatusUnauthorized, firstOr(safe, "unauthorized"), err)
}

func NewErrorForbidden(err error, safe ...string) WithCode {
	return NewWithCode(http.StatusForbidden, firstOr(safe, "forbidden"), err)
}

func NewErrorNotFound(err error, safe ...string) WithCode {
	return NewWithCode(http.StatusNotFound, firstOr(safe, "not found"), err)
}

func NewErrorConflict(err error, safe ...string) WithCode {
	return NewWithCode(http.StatusConflict, firstOr(safe, "conflict"), err)
}

func NewErrorRequestEntityTooLarge(err error, safe ...string) WithCode {
	return NewWithCode(http.StatusRequestEntityTooLarge, firstOr(safe, "request body too large"), err)
}

func NewErrorNotAcceptable(err error, safe ...string) WithCode {
	return NewWithCode(http.StatusNotAcceptable, firstOr(safe, "not acceptable"), err)
}

func NewErrorInternalError(err error, safe ...string) WithCode {
	return NewWithCode(http.StatusInternalServerError, firstOr(safe, "internal server error"), err)
}

func firstOr(s []string, fallback string) string {
	if len(s) > 0 && s[0] != "" {
		return s[0]
	}
	return fallback
}

// NewFromResponse (see new.go) already covers crafting errors from an
// http.Response; this helper turns them into a WithCode for re-raising
// at the inbound boundary when a dereference propagates outward.
func FromResponseStatus(status int, method, url string) WithCode {
	err := fmt.Errorf("%s request to %s failed: status=%q", method, url, http.StatusText(status))
	return NewWithCode(status, "upstream request failed", err)
}
