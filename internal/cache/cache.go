// Package cache holds rendered read models between catalog writes.
package cache

import (
	"sync"
	"time"
)

const defaultMaxEntries = 256

// Cache is a small TTL map. Entries also go away on Clear, which the catalog
// change hook calls after every write. Each Clear starts a new generation; a
// value computed before a Clear is refused by SetIfGeneration.
type Cache[V any] struct {
	mu         sync.RWMutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	m          map[string]entry[V]
	gen        uint64
}

type entry[V any] struct {
	val V
	exp time.Time
}

type Option func(*config)

type config struct {
	maxEntries int
}

// WithMaxEntries bounds the number of live keys. Sets of new keys beyond it
// are dropped once expired entries have been swept.
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

func New[V any](ttl time.Duration, opts ...Option) *Cache[V] {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	cfg := config{maxEntries: defaultMaxEntries}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxEntries <= 0 {
		cfg.maxEntries = defaultMaxEntries
	}

	return &Cache[V]{
		ttl:        ttl,
		maxEntries: cfg.maxEntries,
		now:        time.Now,
		m:          make(map[string]entry[V]),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return zero, false
	}

	return e.val, true
}

func (c *Cache[V]) Set(key string, val V) {
	c.mu.Lock()
	c.setLocked(key, val)
	c.mu.Unlock()
}

// Generation is read before computing a value that SetIfGeneration will
// store.
func (c *Cache[V]) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// SetIfGeneration stores val only when no Clear happened since gen was read.
func (c *Cache[V]) SetIfGeneration(key string, val V, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return false
	}
	return c.setLocked(key, val)
}

func (c *Cache[V]) setLocked(key string, val V) bool {
	if _, ok := c.m[key]; !ok && len(c.m) >= c.maxEntries {
		c.sweepLocked()
		if len(c.m) >= c.maxEntries {
			return false
		}
	}

	c.m[key] = entry[V]{val: val, exp: c.now().Add(c.ttl)}
	return true
}

func (c *Cache[V]) sweepLocked() {
	now := c.now()
	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
		}
	}
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry[V])
	c.gen++
	c.mu.Unlock()
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
