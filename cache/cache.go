package cache

import (
	"slices"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCapacity is the number of fragments kept when no capacity is given.
const DefaultCapacity = 15

// Entry is a cached product fragment.
// Entries are immutable once stored; Set replaces them wholesale.
type Entry struct {
	// Fragment is the outer HTML of the product detail section.
	Fragment string

	// Product is the parsed window.productObj of the page, if present.
	Product map[string]any

	// SDKScriptURL is the product SDK script the page referenced, if any.
	SDKScriptURL string
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Cache is a bounded least-recently-used cache of fragments keyed by
// canonical product URL. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	lru      *simplelru.LRU[string, Entry]

	// clearing suppresses eviction accounting while Purge runs the callback.
	clearing bool

	hits      uint64
	misses    uint64
	evictions uint64
}

// New creates a Cache holding at most capacity entries.
// A capacity below 1 falls back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	c := &Cache{capacity: capacity}
	// NewLRU only fails for a non-positive size.
	c.lru, _ = simplelru.NewLRU[string, Entry](capacity, c.onEvict)
	return c
}

// onEvict runs under c.mu, from inside Add or Purge.
func (c *Cache) onEvict(string, Entry) {
	if c.clearing {
		return
	}
	c.evictions++
	cacheEvictions.Inc()
}

// Get returns the entry stored for key and promotes it to most recently used.
// A miss does not mutate the cache.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		cacheMisses.Inc()
		return Entry{}, false
	}
	c.hits++
	cacheHits.Inc()
	return entry, true
}

// Set stores entry under key as the most recently used entry, replacing any
// previous entry for key. If the cache then exceeds its capacity the least
// recently used entry is evicted.
func (c *Cache) Set(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry)
	cacheEntries.Set(float64(c.lru.Len()))
}

// Has reports whether key is cached without changing its position.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(key)
}

// Clear removes every entry. Counters are kept and the removed entries do
// not count as evictions.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearing = true
	c.lru.Purge()
	c.clearing = false
	cacheEntries.Set(0)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Cap returns the configured capacity.
func (c *Cache) Cap() int { return c.capacity }

// Keys returns the cached keys ordered from most to least recently used.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.lru.Keys()
	slices.Reverse(keys)
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   c.lru.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
