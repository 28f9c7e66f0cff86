package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	key       string
	vector    map[string]any
	expiresAt time.Time
}

// MemoryCache is an in-process VectorCache with a capacity bound and
// per-entry TTL. Least-recently-used entries are evicted on overflow;
// expired entries are treated as absent and removed lazily on access.
// Get and set are O(1) and safe for concurrent use.
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	entries    map[string]*list.Element
	order      *list.List // front = most recently used

	// now is overridable for expiry tests.
	now func() time.Time
}

var _ VectorCache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache holding at most maxEntries vectors, each
// served for at most ttl after it was set.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, entityID string, featureNames []string, version string) (map[string]any, bool) {
	key := Key(entityID, featureNames, version)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	if c.now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return entry.vector, true
}

func (c *MemoryCache) Set(_ context.Context, entityID string, vector map[string]any, featureNames []string, version string) {
	key := Key(entityID, featureNames, version)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.vector = vector
		entry.expiresAt = c.now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&memoryEntry{
		key:       key,
		vector:    vector,
		expiresAt: c.now().Add(c.ttl),
	})
	c.entries[key] = elem

	if c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*memoryEntry).key)
		}
	}
}

// Len returns the number of physically resident entries, including any not
// yet lazily expired.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
