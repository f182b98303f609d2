// Package cache implements the result cache (spec §4.6): a map from
// (collection, canonicalized filter) to the matching documents, invalidated
// wholesale per-collection by every mutation.
package cache

import (
	"sync"

	"github.com/bisondb/bison/internal/document"
)

type key struct {
	collection string
	filter     string
}

// Cache memoizes query results. The zero value is not usable; use New.
type Cache struct {
	rw      sync.RWMutex
	entries map[key][]*document.Object

	hits   uint64
	misses uint64
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[key][]*document.Object)}
}

func canonicalKey(collection string, filter *document.Object) key {
	return key{collection: collection, filter: document.Canonical(filter)}
}

// Get returns the memoized result for (collection, filter), if present.
// find(name) with no filter and find(name, {}) must canonicalize to the
// same entry (spec §9 Open Question (c)); callers pass an empty Object for
// both cases so this falls out of Canonical's handling of {}.
func (c *Cache) Get(collection string, filter *document.Object) ([]*document.Object, bool) {
	// Write lock: Get updates the hit/miss counters.
	c.rw.Lock()
	defer c.rw.Unlock()

	result, ok := c.entries[canonicalKey(collection, filter)]
	if ok {
		c.hits++
	} else {
		c.misses++
	}

	return result, ok
}

// Put memoizes result for (collection, filter).
func (c *Cache) Put(collection string, filter *document.Object, result []*document.Object) {
	c.rw.Lock()
	defer c.rw.Unlock()

	c.entries[canonicalKey(collection, filter)] = result
}

// InvalidateCollection drops every entry keyed by collection. It is called
// after every insert/update/drop_collection affecting that collection,
// regardless of whether the mutation actually matched anything (spec §4.5
// "side effects").
func (c *Cache) InvalidateCollection(collection string) {
	c.rw.Lock()
	defer c.rw.Unlock()

	for k := range c.entries {
		if k.collection == collection {
			delete(c.entries, k)
		}
	}
}

// Clear empties the cache wholesale (drop_all, clear_cache).
func (c *Cache) Clear() {
	c.rw.Lock()
	defer c.rw.Unlock()

	c.entries = make(map[key][]*document.Object)
}

// Stats reports cumulative hit/miss counts, exposed via the engine's
// Prometheus metrics.
func (c *Cache) Stats() (hits, misses uint64) {
	c.rw.RLock()
	defer c.rw.RUnlock()

	return c.hits, c.misses
}
