// GoToSocial
// Copyright (C) GoToSocial Authors admin@gotosocial.org
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package gtserror

import (
	"net/http"

	errorsv2 "codeberg.org/gruf/go-errors/v2"
)

// New returns a new error, prepended with the calling function name.
// Every §7 error-kind wrap (dispatch, dereferencing) goes through this
// rather than errors.New/fmt.Errorf so the caller is always visible in
// logs without a manual log.Caller shim at each call site.
func New(msg string) error {
	return errorsv2.New(msg)
}

// Newf returns a new formatted error, prepended with the calling
// function name. Used throughout internal/dispatch and
// internal/dereferencing to wrap a sentinel from classify.go with
// call-specific detail: gtserror.Newf("%w: %s", ErrCodecError, detail).
func Newf(msgf string, args ...any) error {
	return errorsv2.Newf(msgf, args...)
}

// Wrap returns err wrapped with the calling function name.
func Wrap(err error) error {
	return errorsv2.Wrap(err)
}

// NewFromResponse crafts an error from an HTTP response's method,
// status, and body (if any), and attaches the status code via
// WithStatusCode so callers can recover it with StatusCode().
func NewFromResponse(rsp *http.Response) error {
	err := Newf("%s request to %s failed: status=%q body=%q",
		rsp.Request.Method,
		rsp.Request.URL.String(),
		rsp.Status,
		drainBody(rsp.Body, 256),
	)
	return WithStatusCode(err, rsp.StatusCode)
}
