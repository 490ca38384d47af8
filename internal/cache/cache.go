// Package cache provides in-process, TTL-bounded caches in front of
// the bun store: an actor cache (keyed by ID, with URI/username+domain
// secondary indices) and a content cache (keyed by ID, with URI
// secondary index), mirroring the lookup shapes the teacher's older
// cache/account.go hand-rolled before the codebase moved to a
// structr-backed cache. Federation-core doesn't need structr's
// multi-column composite-key machinery, so this package keeps the
// teacher's simpler "map of secondary key -> primary key" shape.
package cache

import (
	"time"

	"codeberg.org/gruf/go-cache/v3/ttl"
)

const (
	defaultTTL      = 5 * time.Minute
	defaultSweep    = 30 * time.Second
	defaultCapacity = 2048
)

// TTLCache is the concrete cache type every cache in this package is
// built from: a fixed-capacity, TTL-evicted map.
type TTLCache[K comparable, V any] = ttl.Cache[K, V]

// newTTLCache returns a started TTL cache of the given key/value types,
// sized and swept per the defaults above.
func newTTLCache[K comparable, V any]() *TTLCache[K, V] {
	c := new(TTLCache[K, V])
	c.Init(0, defaultCapacity, defaultTTL)
	c.Start(defaultSweep)
	return c
}
