package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zidane0ma/tagflow/internal/metrics"
)

// RedisCache is a Cache implementation backed by Redis, for deployments that
// run the extractor/normalize/probe pipeline across more than one process.
// Category membership is tracked with a Redis set per category so an
// invalidation fans out to every key it tagged.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string

	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

// NewRedis wraps an existing go-redis client. keyPrefix namespaces all keys
// this cache touches, so one Redis instance can serve multiple caches.
func NewRedis(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

func (c *RedisCache) k(key string) string { return c.keyPrefix + ":" + key }

func (c *RedisCache) categoryKey(category string) string { return c.keyPrefix + ":cat:" + category }

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.k(key)).Bytes()
	if err == redis.Nil {
		c.misses.Add(1)
		metrics.CacheMisses.WithLabelValues(categoryOf(key)).Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	c.hits.Add(1)
	metrics.CacheHits.WithLabelValues(categoryOf(key)).Inc()
	return val, true, nil
}

func (c *RedisCache) SetWithCategories(ctx context.Context, key string, value []byte, ttl time.Duration, categories ...string) error {
	if err := c.client.Set(ctx, c.k(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	for _, cat := range categories {
		if err := c.client.SAdd(ctx, c.categoryKey(cat), key).Err(); err != nil {
			return fmt.Errorf("redis sadd category %q: %w", cat, err)
		}
	}
	return nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.SetWithCategories(ctx, key, value, ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.k(key)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

func (c *RedisCache) InvalidateCategory(ctx context.Context, category string) error {
	c.invalidations.Add(1)
	catKey := c.categoryKey(category)
	keys, err := c.client.SMembers(ctx, catKey).Result()
	if err != nil {
		return fmt.Errorf("redis smembers %q: %w", category, err)
	}
	if len(keys) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, c.k(key))
	}
	pipe.Del(ctx, catKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate category %q: %w", category, err)
	}
	return nil
}

// Stats reports hit/miss/invalidation counters for this process. Size and
// memory usage live server-side in Redis and are not mirrored here.
func (c *RedisCache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Invalidations: c.invalidations.Load(),
	}
}

func (c *RedisCache) Close() error { return c.client.Close() }
