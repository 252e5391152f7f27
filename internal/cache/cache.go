// Package cache provides a generic in-memory TTL cache with capacity
// eviction, used to bound the cost of repeated external calls.
package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// entry is a stored value with its lifetime bounds.
// An entry is logically absent once now > expiresAt, even while it is still
// physically present waiting for a sweep.
type entry[V any] struct {
	value     V
	createdAt time.Time
	expiresAt time.Time
}

// Options configures a Cache.
type Options struct {
	DefaultTTL    time.Duration // applied by Set; zero means 5 minutes
	MaxEntries    int           // capacity; zero means 1000
	SweepInterval time.Duration // background sweep period; zero means 1 minute
}

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	Entries     int           `json:"entries"`      // live entries
	Expired     int           `json:"expired"`      // expired but not yet swept
	ApproxBytes int           `json:"approx_bytes"` // serialized-size estimate of live values
	MaxEntries  int           `json:"max_entries"`
	DefaultTTL  time.Duration `json:"default_ttl"`
}

// Cache is a keyed TTL store. All operations are total: malformed input
// (empty key, nil batch) yields a zero result instead of an error.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	opts    Options

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a cache and starts its background sweep.
func New[V any](opts Options) *Cache[V] {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1000
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}

	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		opts:    opts,
		stopCh:  make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Stop terminates the background sweep. The cache remains usable; expired
// entries are still invisible to Get, they just wait for an explicit
// Cleanup instead of the sweep.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache[V]) sweepLoop() {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Set stores value under key with the default TTL. Returns false for an
// empty key.
func (c *Cache[V]) Set(key string, value V) bool {
	return c.SetTTL(key, value, c.opts.DefaultTTL)
}

// SetTTL stores value under key with an explicit TTL. When the cache is at
// capacity and the key is new, the single oldest entry by creation time is
// evicted first.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) bool {
	if key == "" {
		return false
	}
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.opts.MaxEntries {
		c.evictOldestLocked()
	}

	now := time.Now()
	c.entries[key] = entry[V]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	return true
}

// evictOldestLocked removes the entry with the smallest createdAt.
func (c *Cache[V]) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.createdAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Get returns the live value for key. An expired entry is treated as absent
// but left in place so GetStale can still serve it; physical removal belongs
// to Cleanup and capacity eviction.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if key == "" {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// GetStale returns the value for key even if expired. Used by callers that
// prefer a stale answer over no answer when every upstream has failed.
func (c *Cache[V]) GetStale(key string) (V, bool) {
	var zero V
	if key == "" {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	return e.value, true
}

// Has reports whether key holds a live value.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Remove deletes key. Returns false if key was absent or empty.
func (c *Cache[V]) Remove(key string) bool {
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

// Size returns the number of physically present entries, expired or not.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup removes all expired entries and returns how many were removed.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// SetMany stores every pair with the default TTL and returns how many were
// accepted. A nil map is a no-op.
func (c *Cache[V]) SetMany(values map[string]V) int {
	stored := 0
	for k, v := range values {
		if c.Set(k, v) {
			stored++
		}
	}
	return stored
}

// GetMany returns the live values for the given keys. Absent and expired
// keys are simply omitted.
func (c *Cache[V]) GetMany(keys []string) map[string]V {
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		if v, ok := c.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// Stats reports occupancy, expired-but-unswept count, an approximate
// serialized size of live values, and the configured limits.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	s := Stats{
		MaxEntries: c.opts.MaxEntries,
		DefaultTTL: c.opts.DefaultTTL,
	}
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			s.Expired++
			continue
		}
		s.Entries++
		if b, err := json.Marshal(e.value); err == nil {
			s.ApproxBytes += len(b)
		}
	}
	return s
}
