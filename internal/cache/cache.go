// Package cache implements the TTL/LRU lookup cache fronting the storage
// layer: a bounded in-process cache, with
// an optional Redis-backed implementation for multi-process deployments.
package cache

import (
	"context"
	"time"
)

// Cache is the backend-agnostic contract every cache implementation honors.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetWithCategories stores value under key and tags it with the given
	// categories, so a later InvalidateCategory drops it.
	SetWithCategories(ctx context.Context, key string, value []byte, ttl time.Duration, categories ...string) error
	Delete(ctx context.Context, key string) error
	// InvalidateCategory drops every entry tagged with the given category,
	// e.g. "post:123" or "statistics" — used when a write to storage makes a
	// class of cached reads stale.
	InvalidateCategory(ctx context.Context, category string) error
	Stats() Stats
	Close() error
}

// Stats captures runtime cache statistics, also mirrored into Prometheus via
// metrics.CacheHits/CacheMisses.
type Stats struct {
	Hits          int64
	Misses        int64
	Evictions     int64
	Invalidations int64
	Size          int
	Capacity      int
	// MemoryBytes approximates resident value bytes (keys and bookkeeping
	// excluded).
	MemoryBytes int64
}

// HitRate returns the fraction of lookups that were hits, or 0 if there have
// been no lookups yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Category-specific default TTLs.
const (
	TTLStatistics     = 10 * time.Minute
	TTLPostLookup     = 5 * time.Minute
	TTLExistingPaths  = 10 * time.Minute
	TTLCreatorResolve = 10 * time.Minute
	TTLPendingMedia   = 5 * time.Minute
	TTLDurationProbe  = 30 * 24 * time.Hour
)

// categoryOf extracts the metric label from a key of the form
// "<category>:<rest>"; keys without a prefix report as "default".
func categoryOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return "default"
}
