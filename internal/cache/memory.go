package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/zidane0ma/tagflow/internal/metrics"
)

type entry struct {
	key        string
	value      []byte
	expiresAt  time.Time
	categories []string
}

// MemoryCache is a bounded, TTL-aware, LRU in-process cache. Entries may be
// tagged with one or more categories at Set time so a write to storage can
// invalidate every cached read it affects with one call.
type MemoryCache struct {
	mu         sync.Mutex
	capacity   int
	ll         *list.List
	items      map[string]*list.Element
	categories map[string]map[string]struct{} // category -> set of keys
	stats      Stats
	now        func() time.Time
}

// NewMemory creates a MemoryCache holding at most capacity entries.
func NewMemory(capacity int) *MemoryCache {
	return &MemoryCache{
		capacity:   capacity,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		categories: make(map[string]map[string]struct{}),
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		metrics.CacheMisses.WithLabelValues(categoryOf(key)).Inc()
		return nil, false, nil
	}
	e := elem.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.removeElement(elem)
		c.stats.Misses++
		metrics.CacheMisses.WithLabelValues(categoryOf(key)).Inc()
		return nil, false, nil
	}
	c.ll.MoveToFront(elem)
	c.stats.Hits++
	metrics.CacheHits.WithLabelValues(categoryOf(key)).Inc()
	return e.value, true, nil
}

// SetWithCategories stores value under key, tagging it with the given
// categories for later bulk invalidation.
func (c *MemoryCache) SetWithCategories(_ context.Context, key string, value []byte, ttl time.Duration, categoriesTag ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}

	e := &entry{key: key, value: value, expiresAt: c.now().Add(ttl), categories: categoriesTag}
	elem := c.ll.PushFront(e)
	c.items[key] = elem
	c.stats.MemoryBytes += int64(len(value))

	for _, cat := range categoriesTag {
		set, ok := c.categories[cat]
		if !ok {
			set = make(map[string]struct{})
			c.categories[cat] = set
		}
		set[key] = struct{}{}
	}

	if c.capacity > 0 {
		for c.ll.Len() > c.capacity {
			oldest := c.ll.Back()
			if oldest == nil {
				break
			}
			c.removeElement(oldest)
			c.stats.Evictions++
		}
	}
	return nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.SetWithCategories(ctx, key, value, ttl)
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

func (c *MemoryCache) InvalidateCategory(_ context.Context, category string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Invalidations++
	keys, ok := c.categories[category]
	if !ok {
		return nil
	}
	for key := range keys {
		if elem, ok := c.items[key]; ok {
			c.removeElement(elem)
		}
	}
	delete(c.categories, category)
	return nil
}

func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.ll.Len()
	s.Capacity = c.capacity
	return s
}

func (c *MemoryCache) Close() error { return nil }

// removeElement must be called with c.mu held.
func (c *MemoryCache) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	c.ll.Remove(elem)
	delete(c.items, e.key)
	c.stats.MemoryBytes -= int64(len(e.value))
	for _, cat := range e.categories {
		if set, ok := c.categories[cat]; ok {
			delete(set, e.key)
			if len(set) == 0 {
				delete(c.categories, cat)
			}
		}
	}
}
