package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config configures an in-process cache.
type Config struct {
	// JanitorInterval enables a background sweep of expired entries.
	// Zero disables the sweep; expired entries are still evicted lazily
	// on lookup.
	JanitorInterval time.Duration
}

// Stats is a read-only view of cache effectiveness.
type Stats struct {
	Entries   int    `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

type entry[T any] struct {
	value     T
	createdAt time.Time
	ttl       time.Duration
}

// valid reports whether the entry is still live: now < created_at + ttl.
func (e entry[T]) valid(now time.Time) bool {
	return now.Before(e.createdAt.Add(e.ttl))
}

// Cache is a TTL memoization store, safe for concurrent use. Contention is
// scoped to individual keys through the single-flight group; readers share
// an RWMutex over the entry map.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	sf      singleflight.Group

	hits      uint64
	misses    uint64
	evictions uint64

	stop chan struct{}
	once sync.Once
}

// New creates a Cache. Close must be called when a janitor is configured.
func New[T any](cfg Config) *Cache[T] {
	c := &Cache[T]{
		entries: make(map[string]entry[T]),
		stop:    make(chan struct{}),
	}
	if cfg.JanitorInterval > 0 {
		go c.janitor(cfg.JanitorInterval)
	}
	return c
}

// Get returns the value for key when a live entry exists. An expired entry
// is evicted on the spot.
func (c *Cache[T]) Get(key string) (T, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && e.valid(now) {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return e.value, true
	}

	c.mu.Lock()
	if ok {
		// Lazy eviction; recheck since another writer may have refreshed it.
		if cur, still := c.entries[key]; still && !cur.valid(now) {
			delete(c.entries, key)
			c.evictions++
		}
	}
	c.misses++
	c.mu.Unlock()

	var zero T
	return zero, false
}

// Set stores value under key with the given TTL.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{value: value, createdAt: time.Now(), ttl: ttl}
}

// GetOrCompute returns the cached value for key, or invokes compute and
// caches the result for ttl. Concurrent misses for the same key collapse to
// a single compute invocation; every waiter observes the same result.
// Compute failures are returned but never cached.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// A concurrent flight may have populated the entry already.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate removes the entry for key.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.evictions++
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix.
func (c *Cache[T]) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			c.evictions++
		}
	}
}

// Stats returns a read-only snapshot of cache counters.
func (c *Cache[T]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Close stops the background janitor, if one is running.
func (c *Cache[T]) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache[T]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, e := range c.entries {
				if !e.valid(now) {
					delete(c.entries, key)
					c.evictions++
				}
			}
			c.mu.Unlock()
		}
	}
}
