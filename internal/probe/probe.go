// Package probe implements batched media-metadata extraction: bounded
// worker pools for file stats,
// video duration (via ffprobe with a persistent JSON cache) and image/video
// resolution. Every method tolerates missing external tools, returning null
// fields and logging at debug level rather than failing the batch.
package probe

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/pkg/semaphore"
)

// Prober batches file-stat, duration and resolution lookups behind bounded
// worker pools.
type Prober struct {
	logger        *zap.Logger
	statSem       *semaphore.Semaphore
	durationSem   *semaphore.Semaphore
	resolutionSem *semaphore.Semaphore
	durationCache *durationCache
	probeTimeout  time.Duration
}

// Config configures worker pool sizes; zero values fall back to the
// defaults (16/8/6).
type Config struct {
	StatWorkers       int
	DurationWorkers   int
	ResolutionWorkers int
	ProbeTimeout      time.Duration
	CachePath         string
}

// New creates a Prober, loading the on-disk duration cache from cfg.CachePath
// if present (purging entries older than 30 days).
func New(logger *zap.Logger, cfg Config) (*Prober, error) {
	if cfg.StatWorkers <= 0 {
		cfg.StatWorkers = 16
	}
	if cfg.DurationWorkers <= 0 {
		cfg.DurationWorkers = 8
	}
	if cfg.ResolutionWorkers <= 0 {
		cfg.ResolutionWorkers = 6
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}

	dc, err := loadDurationCache(cfg.CachePath, 30*24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Prober{
		logger:        logger,
		statSem:       semaphore.New(cfg.StatWorkers),
		durationSem:   semaphore.New(cfg.DurationWorkers),
		resolutionSem: semaphore.New(cfg.ResolutionWorkers),
		durationCache: dc,
		probeTimeout:  cfg.ProbeTimeout,
	}, nil
}

// FileStat is what StatBatch returns for an existing file; nil means missing.
type FileStat struct {
	SizeBytes int64
	ModTime   time.Time
}

// StatBatch runs os.Stat for every path concurrently, bounded by StatWorkers.
func (p *Prober) StatBatch(ctx context.Context, paths []string) (map[string]*FileStat, error) {
	results := make(map[string]*FileStat, len(paths))
	type outcome struct {
		path string
		stat *FileStat
	}
	out := make(chan outcome, len(paths))

	for _, path := range paths {
		if err := p.statSem.Acquire(ctx); err != nil {
			return nil, err
		}
		go func(path string) {
			defer p.statSem.Release()
			info, err := os.Stat(path)
			if err != nil {
				out <- outcome{path: path}
				return
			}
			out <- outcome{path: path, stat: &FileStat{SizeBytes: info.Size(), ModTime: info.ModTime()}}
		}(path)
	}

	for range paths {
		o := <-out
		results[o.path] = o.stat
	}
	return results, nil
}

// Close persists the duration cache to disk.
func (p *Prober) Close() error {
	return p.durationCache.save()
}
