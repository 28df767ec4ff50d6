package search

import (
	"sync"
	"time"

	"github.com/54b3r/ragstore-go/internal/document"
)

// DefaultCacheTTL is how long a computed result list stays servable.
const DefaultCacheTTL = 5 * time.Minute

// cacheKey identifies one cached search: the normalized query text plus the
// requested result count.
type cacheKey struct {
	query string
	limit int
}

// cacheEntry holds a finalized result list and its expiry instant.
type cacheEntry struct {
	results []document.Chunk
	expires time.Time
}

// Cache is a short-TTL map from (normalized query, limit) to a previously
// computed result list. It absorbs duplicate and retried queries cheaply.
// Expired entries are swept lazily on Put — no background eviction runs.
// Safe for concurrent use; the mutex is never held across backend I/O.
type Cache struct {
	// mu guards entries.
	mu sync.Mutex

	// entries is the keyed result map.
	entries map[cacheKey]cacheEntry

	// ttl is the lifetime of a stored entry.
	ttl time.Duration

	// now returns the current time; injectable for expiry tests.
	now func() time.Time
}

// NewCache constructs a Cache with the given TTL; ttl <= 0 uses
// DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[cacheKey]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a defensive copy of the cached result list for the key, or
// (nil, false) on miss or expiry. Callers can never mutate the cached list
// through the returned slice.
func (c *Cache) Get(query string, limit int) ([]document.Chunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey{query: query, limit: limit}]
	if !ok || c.now().After(e.expires) {
		return nil, false
	}
	return document.CloneChunks(e.results), true
}

// Put stores a copy of results under the key, overwriting any existing
// entry, and opportunistically sweeps every expired entry while the lock is
// held. The amortized sweep replaces a dedicated eviction timer.
func (c *Cache) Put(query string, limit int, results []document.Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}

	c.entries[cacheKey{query: query, limit: limit}] = cacheEntry{
		results: document.CloneChunks(results),
		expires: now.Add(c.ttl),
	}
}

// Len reports the number of live entries, for tests and stats.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
