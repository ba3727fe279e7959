// Package compilecache keeps recently compiled statements keyed by the
// registry they were compiled against and the canonical operation hash.
package compilecache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"gqljoin/internal/planner"
)

// Key identifies one compile result. A registry reload changes the
// fingerprint, so stale entries are never returned.
type Key struct {
	Fingerprint   string
	OperationHash string
	Limits        planner.Limits
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// Cache is a 2Q LRU of compiled statements. A nil *Cache is a valid,
// always-empty cache.
type Cache struct {
	cache  *lru.TwoQueueCache[Key, *planner.CompiledQuery]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New returns a cache holding up to size entries, or nil when size is not
// positive.
func New(size int) (*Cache, error) {
	if size <= 0 {
		return nil, nil
	}
	cache, err := lru.New2Q[Key, *planner.CompiledQuery](size)
	if err != nil {
		return nil, err
	}
	return &Cache{cache: cache}, nil
}

// Get returns the cached statement for key.
func (c *Cache) Get(key Key) (*planner.CompiledQuery, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.cache.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return val, ok
}

// Add stores a compiled statement. Entries must not be modified afterwards.
func (c *Cache) Add(key Key, val *planner.CompiledQuery) {
	if c == nil || val == nil {
		return
	}
	c.cache.Add(key, val)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.cache.Purge()
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: c.cache.Len()}
}
