// Package cache memoizes derived dashboard payloads keyed by
// (term, course, view). Entries never expire on their own; the refresh
// jobs invalidate a (term, course) pair on every successful bucket
// overwrite, so an unmanaged entry can never outlive its source data.
package cache

import (
	"sync"

	"github.com/campuspulse/engage/pkg/metrics"
)

type key struct {
	term   string
	course string
	view   string
}

// Cache is a concurrency-safe memoization cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[key]any
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[key]any)}
}

// Get returns the cached payload for (term, course, view), if present.
func (c *Cache) Get(term, course, view string) (any, bool) {
	c.mu.RLock()
	v, ok := c.entries[key{term, course, view}]
	c.mu.RUnlock()
	if ok {
		metrics.RecordCacheHit()
	} else {
		metrics.RecordCacheMiss()
	}
	return v, ok
}

// Set stores a payload for (term, course, view).
func (c *Cache) Set(term, course, view string, payload any) {
	c.mu.Lock()
	c.entries[key{term, course, view}] = payload
	c.mu.Unlock()
}

// InvalidateBucket drops every view cached for (term, course).
func (c *Cache) InvalidateBucket(term, course string) {
	c.mu.Lock()
	for k := range c.entries {
		if k.term == term && k.course == course {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// InvalidateTerm drops every entry cached for a term.
func (c *Cache) InvalidateTerm(term string) {
	c.mu.Lock()
	for k := range c.entries {
		if k.term == term {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// Clear drops every entry, regardless of term.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[key]any)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
