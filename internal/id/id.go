// Package id generates the sortable, lexically-ordered string IDs used
// as primary keys across gtsmodel, the same ULID scheme the teacher
// uses for its own database rows.
package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh ULID string, monotonic within a process for IDs
// generated in the same millisecond.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
