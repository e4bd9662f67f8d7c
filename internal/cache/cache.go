// internal/cache/cache.go

// Package cache holds the process-wide result caches shared by all requests.
package cache

import (
	"strings"
	"sync"
	"time"

	"discover/internal/metrics"
)

// Option configures a cache
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

type entry[V any] struct {
	storedAt time.Time
	value    V
}

// TTL maps keys to values that expire after a fixed age. A non-positive
// TTL means entries never expire. Expired entries are reported absent and
// stay stored until overwritten, taken or pruned.
type TTL[V any] struct {
	name    string
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]entry[V]
}

// New creates a cache. name labels the cache in metrics.
func New[V any](name string, ttl time.Duration, opts ...Option) *TTL[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &TTL[V]{
		name:    name,
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value for key if present and fresh
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		metrics.ObserveCache(c.name, metrics.CacheMiss)
		var zero V
		return zero, false
	}

	if c.expired(e) {
		metrics.ObserveCache(c.name, metrics.CacheStale)
		var zero V
		return zero, false
	}

	metrics.ObserveCache(c.name, metrics.CacheHit)
	return e.value, true
}

// Set stores value under key, replacing any previous entry
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{storedAt: c.now(), value: value}
}

// Take removes key and returns its value if it was present and fresh
func (c *TTL[V]) Take(key string) (V, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if !ok || c.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Prune drops expired entries
func (c *TTL[V]) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
		}
	}
}

func (c *TTL[V]) expired(e entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl
}

// Len returns the number of stored entries, fresh or not
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Normalize lowercases and trims a cache key component
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Key builds the cache key for a location and category
func Key(location, category string) string {
	return Normalize(location) + "|" + Normalize(category)
}
