package app

import (
	"context"
	"sync"
	"time"
)

// HealthCache remembers the outcome of dependency probes for a TTL so
// frequent health checks do not ping the database on every request.
type HealthCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]healthEntry
}

type healthEntry struct {
	err       error
	checkedAt time.Time
}

// NewHealthCache creates a HealthCache. A TTL of 0 disables caching.
func NewHealthCache(ttl time.Duration) *HealthCache {
	return &HealthCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]healthEntry),
	}
}

// Check returns the cached probe result for name, running probe when the
// entry is missing or expired. Probes for different names may overlap.
func (c *HealthCache) Check(ctx context.Context, name string, probe func(context.Context) error) error {
	c.mu.Lock()
	entry, ok := c.entries[name]
	c.mu.Unlock()

	if ok && c.now().Sub(entry.checkedAt) < c.ttl {
		return entry.err
	}

	err := probe(ctx)
	if ctx.Err() != nil {
		// a cancelled request says nothing about the dependency
		return err
	}

	c.mu.Lock()
	c.entries[name] = healthEntry{err: err, checkedAt: c.now()}
	c.mu.Unlock()
	return err
}

// Invalidate forgets the cached result for name
func (c *HealthCache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

// TTL returns the cache's time-to-live duration
func (c *HealthCache) TTL() time.Duration {
	return c.ttl
}
