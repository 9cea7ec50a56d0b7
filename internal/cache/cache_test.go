package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSetMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), val)

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10)
	fixed := time.Now()
	c.now = func() time.Time { return fixed }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	c.now = func() time.Time { return fixed.Add(2 * time.Second) }

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCacheEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), time.Minute))

	_, ok, _ := c.Get(ctx, "a")
	require.False(t, ok, "oldest entry should have been evicted")

	stats := c.Stats()
	require.Equal(t, 2, stats.Size)
	require.Equal(t, int64(1), stats.Evictions)
}

func TestMemoryCacheInvalidateCategory(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10)

	require.NoError(t, c.SetWithCategories(ctx, "post:1", []byte("a"), time.Minute, "post:1"))
	require.NoError(t, c.SetWithCategories(ctx, "statistics", []byte("b"), time.Minute, "statistics", "post:1"))

	require.NoError(t, c.InvalidateCategory(ctx, "post:1"))

	_, ok, _ := c.Get(ctx, "post:1")
	require.False(t, ok)
	_, ok, _ = c.Get(ctx, "statistics")
	require.False(t, ok)

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Invalidations)
	require.Equal(t, int64(0), stats.MemoryBytes)
}

func TestRedisCacheGetSetAndInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedis(client, "tagflow-test")
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.SetWithCategories(ctx, "post:1", []byte("v"), time.Minute, "post:1"))
	val, ok, err := c.Get(ctx, "post:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), val)

	require.NoError(t, c.InvalidateCategory(ctx, "post:1"))
	_, ok, err = c.Get(ctx, "post:1")
	require.NoError(t, err)
	require.False(t, ok)
}
