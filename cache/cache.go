// Package cache provides the resilience layer for remote reads: a TTL
// key/value cache plus a rate-limit-aware retry helper. The cache is
// best-effort; staleness or a miss only costs an extra remote read,
// never correctness. Writes always go to the node or ledger directly.
package cache

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/potshotlabs/potshot-client/metrics"
)

// DefaultTTL is how long an entry is considered fresh.
const DefaultTTL = 30 * time.Second

type entry struct {
	value    interface{}
	storedAt time.Time
}

// Cache is a thread-safe TTL store for contract view results.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// New creates a new Cache instance. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.With().Str("component", "cache").Logger(),
	}
}

// Get returns the cached value for key if it is still fresh.
// Stale entries are treated as absent without being evicted (lazy expiry).
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		metrics.CacheMisses.Inc()
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		metrics.CacheMisses.Inc()
		return nil, false
	}
	metrics.CacheHits.Inc()
	return e.value, true
}

// Set overwrites the value and timestamp for key.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate removes the given keys immediately. Called after any
// state-changing transaction to force fresh reads.
func (c *Cache) Invalidate(keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()

	c.logger.Debug().
		Strs("keys", keys).
		Msg("cache entries invalidated")
}

// Clear drops all entries. Used on network or account switch.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()

	c.logger.Debug().Msg("cache cleared")
}

// Len returns the number of stored entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetOrLoad returns the fresh cached value for key, or invokes load,
// stores its result and returns it. Errors from load are returned
// without touching the cache.
func (c *Cache) GetOrLoad(key string, load func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	c.Set(key, v)
	return v, nil
}
