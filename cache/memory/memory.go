// Package memory implements an in-process incremental cache backend.
//
// Intended for single-instance deployments and tests. Entries and the tag
// index live in process memory; nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/pithecene-io/kiln/cache"
)

// Cache is a mutex-guarded in-memory incremental cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
	byTag   map[string]map[string]struct{}
}

// New creates an empty in-memory cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*cache.Entry),
		byTag:   make(map[string]map[string]struct{}),
	}
}

// Read returns the entry stored under key, or nil when absent.
// The returned entry is a copy; mutating it does not affect the cache.
func (c *Cache) Read(_ context.Context, key string) (*cache.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return cloneEntry(e), nil
}

// Write stores a copy of entry under key and indexes its tags.
func (c *Cache) Write(_ context.Context, key string, entry *cache.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.unindexLocked(key, old.Tags)
	}

	stored := cloneEntry(entry)
	stored.Key = key
	c.entries[key] = stored

	for _, tag := range stored.Tags {
		if c.byTag[tag] == nil {
			c.byTag[tag] = make(map[string]struct{})
		}
		c.byTag[tag][key] = struct{}{}
	}
	return nil
}

// Delete removes the entry stored under key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.unindexLocked(key, e.Tags)
		delete(c.entries, key)
	}
	return nil
}

// InvalidateTag removes every entry carrying tag and returns the count.
func (c *Cache) InvalidateTag(_ context.Context, tag string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.byTag[tag]
	if len(keys) == 0 {
		return 0, nil
	}

	removed := 0
	for key := range keys {
		if e, ok := c.entries[key]; ok {
			c.unindexLocked(key, e.Tags)
			delete(c.entries, key)
			removed++
		}
	}
	delete(c.byTag, tag)
	return removed, nil
}

// Close is a no-op for the in-memory backend.
func (c *Cache) Close() error { return nil }

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) unindexLocked(key string, tags []string) {
	for _, tag := range tags {
		if keys := c.byTag[tag]; keys != nil {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byTag, tag)
			}
		}
	}
}

func cloneEntry(e *cache.Entry) *cache.Entry {
	out := *e
	if e.Body != nil {
		out.Body = append([]byte(nil), e.Body...)
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	return &out
}

// Verify Cache implements the incremental cache boundary.
var _ cache.Incremental = (*Cache)(nil)
