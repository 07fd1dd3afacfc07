// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package plancache caches compiled plans keyed by the exact query text.
//
// A Cache belongs to a single worker and is not safe for concurrent use.
// Plans are shared with in-flight requests through reference-counted
// handles, so a plan evicted or invalidated while a request still streams
// from it is closed only when that request lets go of it.
package plancache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/anjanb/questdb/internal/engine"
)

// DefaultSize is the number of plans kept per worker when unconfigured.
const DefaultSize = 256

// Handle is a reference-counted plan.
type Handle struct {
	plan    engine.Plan
	refs    atomic.Int32
	invalid atomic.Bool
}

// NewHandle wraps plan with one reference owned by the caller.
func NewHandle(plan engine.Plan) *Handle {
	h := &Handle{plan: plan}
	h.refs.Store(1)
	return h
}

// Plan returns the wrapped plan.
func (h *Handle) Plan() engine.Plan { return h.plan }

// Retain adds a reference and returns h.
func (h *Handle) Retain() *Handle {
	h.refs.Add(1)
	return h
}

// Release drops a reference; the last one closes the plan.
func (h *Handle) Release() error {
	if h.refs.Add(-1) == 0 {
		return h.plan.Close()
	}
	return nil
}

// Invalidate flags the plan as stale. Any goroutine holding a reference may
// call it; the owning cache drops the entry on its next lookup.
func (h *Handle) Invalidate() { h.invalid.Store(true) }

// Invalid reports whether Invalidate was called.
func (h *Handle) Invalid() bool { return h.invalid.Load() }

// Refs returns the current reference count.
func (h *Handle) Refs() int { return int(h.refs.Load()) }

// Cache is a bounded LRU of plan handles. A nil value is a tombstone and
// reads as a miss.
type Cache struct {
	entries *lru.LRU[string, *Handle]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// New returns a cache holding at most size plans.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.NewLRU[string, *Handle](size, func(_ string, h *Handle) {
		if h != nil {
			_ = h.Release()
		}
	})
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Get returns a retained handle for fingerprint. The caller must Release it.
func (c *Cache) Get(fingerprint string) (*Handle, bool) {
	h, ok := c.entries.Get(fingerprint)
	if !ok || h == nil {
		c.misses.Add(1)
		return nil, false
	}
	if h.Invalid() {
		c.entries.Remove(fingerprint)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return h.Retain(), true
}

// Put stores h under fingerprint; the cache takes its own reference. A nil
// handle stores a tombstone so the next Get misses.
func (c *Cache) Put(fingerprint string, h *Handle) {
	old, ok := c.entries.Peek(fingerprint)
	if ok && old == h {
		return
	}
	if h != nil {
		h.Retain()
	}
	// Updating an existing key does not run the eviction callback.
	if ok && old != nil {
		_ = old.Release()
	}
	c.entries.Add(fingerprint, h)
}

// Invalidate replaces the entry for fingerprint with a tombstone.
func (c *Cache) Invalidate(fingerprint string) { c.Put(fingerprint, nil) }

// Len returns the number of entries, tombstones included.
func (c *Cache) Len() int { return c.entries.Len() }

// Hits returns the number of lookups that found a usable plan.
func (c *Cache) Hits() uint64 { return c.hits.Load() }

// Misses returns the number of lookups that did not.
func (c *Cache) Misses() uint64 { return c.misses.Load() }

// Purge drops every entry, releasing the cache's references.
func (c *Cache) Purge() { c.entries.Purge() }
