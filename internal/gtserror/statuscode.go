package gtserror

import (
	"io"
)

// statusCoded decorates an error with an upstream HTTP status code,
// used by NewFromResponse (new.go) when classifying outbound send /
// dereference failures per the §7 error-kind table (UpstreamHttp).
type statusCoded struct {
	err  error
	code int
}

func (s *statusCoded) Error() string { return s.err.Error() }
func (s *statusCoded) Unwrap() error { return s.err }
func (s *statusCoded) Code() int     { return s.code }

// WithStatusCode wraps err, attaching the given upstream HTTP status
// code. Use StatusCode() to retrieve it.
func WithStatusCode(err error, code int) error {
	return &statusCoded{err: err, code: code}
}

// StatusCode extracts a status code previously attached with
// WithStatusCode, if any.
func StatusCode(err error) (int, bool) {
	type coded interface{ Code() int }
	for err != nil {
		if c, ok := err.(coded); ok {
			return c.Code(), true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return 0, false
}

// drainBody reads up to max bytes of the body for inclusion in an
// error message, closing it afterwards. Never panics on nil body.
func drainBody(body io.ReadCloser, max int64) string {
	if body == nil {
		return ""
	}
	defer body.Close()
	b, _ := io.ReadAll(io.LimitReader(body, max))
	return string(b)
}
