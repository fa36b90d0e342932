// Package cache provides the in-memory plan cache. Planner output for a
// given requirement is expensive to regenerate, so validated responses are
// kept for a bounded time and re-validated on read by the planner.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// InMemoryCache is a thread-safe TTL cache. Expired entries are dropped
// lazily on read and swept by a background loop.
type InMemoryCache struct {
	entries map[string]entry
	mutex   sync.RWMutex
	ttl     time.Duration
	sweep   time.Duration
}

// Option represents an option for configuring the InMemoryCache.
type Option func(*InMemoryCache)

// WithSweepInterval sets how often the background sweep runs.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *InMemoryCache) {
		if interval > 0 {
			c.sweep = interval
		}
	}
}

// NewInMemoryCache creates a cache whose entries expire after ttl.
func NewInMemoryCache(ttl time.Duration, options ...Option) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		sweep:   10 * time.Minute,
	}
	for _, option := range options {
		option(c)
	}
	go c.sweepLoop()
	return c
}

// Get retrieves a live entry. Misses and expired entries both report not
// found.
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return nil, err
	}

	c.mutex.RLock()
	e, found := c.entries[key]
	c.mutex.RUnlock()

	if !found {
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache miss", nil))
	}
	if time.Now().After(e.expiresAt) {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		return nil, errbuilder.NotFoundErr(errbuilder.GenericErr("cache entry expired", nil))
	}
	return e.value, nil
}

// Set stores value under key with the cache's TTL.
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}) error {
	if err := errbuilder.WrapIfContextDone(ctx, nil); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

// Delete removes an entry, a no-op when absent.
func (c *InMemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, key)
}

// Len reports the number of entries, including any not yet swept.
func (c *InMemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

func (c *InMemoryCache) sweepLoop() {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.mutex.Lock()
		for key, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, key)
			}
		}
		c.mutex.Unlock()
	}
}
