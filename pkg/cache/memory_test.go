package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_OrderIndependent(t *testing.T) {
	a := Key("entity-1", []string{"b", "a"}, "v1")
	b := Key("entity-1", []string{"a", "b"}, "v1")
	assert.Equal(t, a, b)
}

func TestKey_RequestShapesAreDistinct(t *testing.T) {
	base := Key("entity-1", []string{"a"}, "v1")

	assert.NotEqual(t, base, Key("entity-2", []string{"a"}, "v1"), "entity differs")
	assert.NotEqual(t, base, Key("entity-1", []string{"a", "b"}, "v1"), "feature set differs")
	assert.NotEqual(t, base, Key("entity-1", []string{"a"}, "v2"), "version differs")
	assert.NotEqual(t, base, Key("entity-1", nil, "v1"), "all-features differs from named")
	assert.NotEqual(t, base, Key("entity-1", []string{"a"}, ""), "latest differs from pinned")
}

func TestKey_DoesNotMutateInput(t *testing.T) {
	names := []string{"b", "a"}
	Key("e", names, "")
	assert.Equal(t, []string{"b", "a"}, names)
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "x", nil, "")
	assert.False(t, ok)

	vector := map[string]any{"total": 12.0}
	c.Set(ctx, "x", vector, nil, "")

	got, ok := c.Get(ctx, "x", nil, "")
	require.True(t, ok)
	assert.Equal(t, vector, got)

	// Same entity under a different request shape is a distinct entry
	_, ok = c.Get(ctx, "x", []string{"total"}, "")
	assert.False(t, ok)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c := NewMemoryCache(10, time.Minute)
	ctx := context.Background()

	current := time.Unix(1000, 0)
	c.now = func() time.Time { return current }

	c.Set(ctx, "x", map[string]any{"total": 12.0}, nil, "")

	current = current.Add(59 * time.Second)
	_, ok := c.Get(ctx, "x", nil, "")
	assert.True(t, ok, "entry within TTL should hit")

	current = current.Add(2 * time.Second)
	_, ok = c.Get(ctx, "x", nil, "")
	assert.False(t, ok, "entry past TTL is treated as absent")
	assert.Equal(t, 0, c.Len(), "expired entry is removed on access")
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "a", map[string]any{"f": 1.0}, nil, "")
	c.Set(ctx, "b", map[string]any{"f": 2.0}, nil, "")

	// Touch "a" so "b" becomes least recently used
	_, ok := c.Get(ctx, "a", nil, "")
	require.True(t, ok)

	c.Set(ctx, "c", map[string]any{"f": 3.0}, nil, "")

	_, ok = c.Get(ctx, "b", nil, "")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(ctx, "a", nil, "")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c", nil, "")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestMemoryCache_SetExistingRefreshes(t *testing.T) {
	c := NewMemoryCache(2, time.Minute)
	ctx := context.Background()

	c.Set(ctx, "a", map[string]any{"f": 1.0}, nil, "")
	c.Set(ctx, "a", map[string]any{"f": 9.0}, nil, "")
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get(ctx, "a", nil, "")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"f": 9.0}, got)
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(100, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				entity := fmt.Sprintf("e-%d", j%20)
				c.Set(ctx, entity, map[string]any{"n": float64(worker)}, nil, "")
				c.Get(ctx, entity, nil, "")
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 100)
}
