package dispatch

import (
	"sync"
	"time"
)

// resultCache is a small in-memory TTL cache for cacheable read results
// (search/find calls with attrs.cache set). ttlSecs follows the same
// "0 means no expiry" convention as config.CacheTTLSecs.
type resultCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	noExpiry bool
	entries  map[string]cacheEntry
}

type cacheEntry struct {
	value   any
	expires time.Time
}

func newResultCache(ttlSecs int) *resultCache {
	c := &resultCache{entries: make(map[string]cacheEntry)}

	if ttlSecs == 0 {
		c.noExpiry = true
	} else {
		c.ttl = time.Duration(ttlSecs) * time.Second
	}

	return c
}

func (c *resultCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if !c.noExpiry && time.Now().After(e.expires) {
		delete(c.entries, key)

		return nil, false
	}

	return e.value, true
}

func (c *resultCache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if !c.noExpiry {
		expires = time.Now().Add(c.ttl)
	}

	c.entries[key] = cacheEntry{value: value, expires: expires}
}
