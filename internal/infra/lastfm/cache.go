package lastfm

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value  V
	stored time.Time
}

// ttlCache is a map guarded by a mutex whose entries expire after ttl.
// A zero ttl keeps entries for the lifetime of the process.
type ttlCache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry[V]
	now     func() time.Time
}

func newTTLCache[V any](ttl time.Duration) *ttlCache[V] {
	return &ttlCache[V]{
		ttl:     ttl,
		entries: make(map[string]cacheEntry[V]),
		now:     time.Now,
	}
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(e.stored) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[V]) put(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: v, stored: c.now()}
}
