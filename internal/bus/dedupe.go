package bus

import (
	"sync"
	"time"
)

// DedupeCache remembers recently seen inbound update ids so that transport
// retries (long-poll reconnects, duplicate webhook deliveries) do not run
// the routing engine twice for the same event. Entries expire after the TTL
// and the cache is capped to bound memory.
type DedupeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	seen    map[string]time.Time
}

// NewDedupeCache creates a cache with the given TTL and maximum entry count.
func NewDedupeCache(ttl time.Duration, maxSize int) *DedupeCache {
	return &DedupeCache{
		ttl:     ttl,
		maxSize: maxSize,
		seen:    make(map[string]time.Time),
	}
}

// Seen reports whether the key was observed within the TTL, recording it
// either way. An empty key is never deduplicated.
func (c *DedupeCache) Seen(key string) bool {
	if key == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if at, ok := c.seen[key]; ok && now.Sub(at) < c.ttl {
		return true
	}

	if len(c.seen) >= c.maxSize {
		for k, at := range c.seen {
			if now.Sub(at) >= c.ttl {
				delete(c.seen, k)
			}
		}
		// Hard eviction if pruning expired entries was not enough.
		for len(c.seen) >= c.maxSize {
			for k := range c.seen {
				delete(c.seen, k)
				break
			}
		}
	}

	c.seen[key] = now
	return false
}
