// Package storage implements the single logical read/write store:
// Post/Media/Category/Creator/Subscription
// persistence over the owned SQLite database, with per-method performance
// monitoring and a database health surface.
package storage

import (
	"time"

	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/database"
)

// Store is the façade over the owned database. All exported methods except
// Health, Vacuum and Analyze funnel through timeQuery, so their calls are
// captured by the ring buffer.
type Store struct {
	db     *database.DB
	logger *zap.Logger
	perf   *perfMonitor
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithSlowQueryThreshold overrides the default 100ms slow-query threshold.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(s *Store) { s.perf.slowThreshold = d }
}

// New creates a Store backed by db. ringSize is the capacity of the
// performance-monitoring ring buffer.
func New(db *database.DB, logger *zap.Logger, ringSize int, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: logger,
		perf:   newPerfMonitor(ringSize, 100*time.Millisecond),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
