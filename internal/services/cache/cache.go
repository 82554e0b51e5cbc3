// Package cache provides the process-wide TTL cache for query results.
// Entries are immutable once written and replaced wholesale on expiry, so
// readers never observe partial updates.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value   interface{}
	expires time.Time
}

// Cache is a TTL-bound map keyed by operation name plus parameters.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
}

// New creates a cache with the given time-to-live.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Key builds a cache key from an operation name and its parameters.
func Key(operation string, params ...interface{}) string {
	if len(params) == 0 {
		return operation
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%v", p))
	}
	return operation + ":" + strings.Join(parts, ":")
}

// Get returns the cached value for key if present and not expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		c.mu.Lock()
		// Re-check under the write lock; another writer may have replaced it.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the cache's TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate removes all entries whose key starts with prefix. An empty
// prefix clears the whole cache (the manual refresh action).
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prefix == "" {
		c.entries = make(map[string]entry)
		return
	}
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of live entries (expired entries excluded).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, e := range c.entries {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}

// Fetch returns the cached value for key, loading and storing it on a miss.
// Load errors are returned without caching so the next call retries.
func Fetch[T any](c *Cache, key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	value, err := load()
	if err != nil {
		var zero T
		return zero, err
	}

	c.Set(key, value)
	return value, nil
}
