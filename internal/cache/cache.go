// Package cache provides an in-memory TTL cache with ETag support. Misses
// for the same key are collapsed into a single load.
package cache

import (
	"crypto/md5"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	TTLContests  = 5 * time.Minute // clist feed listing
	evictionTick = 5 * time.Minute
)

type entry struct {
	data      []byte
	etag      string
	expiresAt time.Time
}

// Cache is a thread-safe in-memory TTL cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	enabled bool
	group   singleflight.Group
	now     func() time.Time

	hits, misses int64
}

// New creates a new cache. Pass enabled=false to create a no-op cache.
func New(enabled bool) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		enabled: enabled,
		now:     time.Now,
	}
	if enabled {
		go c.evictLoop()
	}
	return c
}

// Get retrieves a cached value. Returns data, etag, and whether the entry was found.
func (c *Cache) Get(key string) (data []byte, etag string, ok bool) {
	if !c.enabled {
		return nil, "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, exists := c.entries[key]
	if !exists || c.now().After(e.expiresAt) {
		c.misses++
		return nil, "", false
	}
	c.hits++
	return e.data, e.etag, true
}

// Set stores a value with a TTL.
func (c *Cache) Set(key string, data []byte, ttl time.Duration) string {
	etag := ComputeETag(data)
	if !c.enabled {
		return etag
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		data:      data,
		etag:      etag,
		expiresAt: c.now().Add(ttl),
	}
	return etag
}

// Fetch returns the cached value for key, or calls load once (even under
// concurrent misses) and caches its result. hit reports a cache hit.
func (c *Cache) Fetch(key string, ttl time.Duration, load func() ([]byte, error)) (data []byte, etag string, hit bool, err error) {
	if data, etag, ok := c.Get(key); ok {
		return data, etag, true, nil
	}

	type loaded struct {
		data []byte
		etag string
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		data, err := load()
		if err != nil {
			return nil, err
		}
		return loaded{data: data, etag: c.Set(key, data, ttl)}, nil
	})
	if err != nil {
		return nil, "", false, err
	}
	l := v.(loaded)
	return l.data, l.etag, false, nil
}

// Stats is a point-in-time view of the cache, reported by /health/cache.
type Stats struct {
	Enabled     bool  `json:"enabled"`
	TotalKeys   int   `json:"total_keys"`
	ActiveKeys  int   `json:"active_keys"`
	ExpiredKeys int   `json:"expired_keys"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Stats{Enabled: c.enabled, TotalKeys: len(c.entries), Hits: c.hits, Misses: c.misses}
	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			st.ActiveKeys++
		}
	}
	st.ExpiredKeys = st.TotalKeys - st.ActiveKeys
	return st
}

// evictLoop periodically removes expired entries.
func (c *Cache) evictLoop() {
	ticker := time.NewTicker(evictionTick)
	defer ticker.Stop()
	for range ticker.C {
		c.evict()
	}
}

func (c *Cache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// ComputeETag derives a weak ETag from the first 8 bytes of the payload's MD5.
func ComputeETag(data []byte) string {
	hash := md5.Sum(data)
	return fmt.Sprintf(`W/"%x"`, hash[:8])
}

// CheckETagMatch reports whether an If-None-Match header value matches etag.
// The header may list several tags; weak and strong forms compare equal.
func CheckETagMatch(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimPrefix(strings.TrimSpace(tag), "W/") == want {
			return true
		}
	}
	return false
}
