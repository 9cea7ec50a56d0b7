package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/internal/metrics"
	"github.com/zidane0ma/tagflow/internal/recovery"
)

// durationCacheEntry is one on-disk cache record.
type durationCacheEntry struct {
	DurationSeconds float64   `json:"duration_seconds"`
	FileSizeBytes   int64     `json:"file_size"`
	ModifiedTime    time.Time `json:"modified_time"`
	CachedAt        time.Time `json:"cached_at"`
}

// durationCache is a path-keyed JSON cache persisted at the Prober's
// configured CachePath, purging entries older than a configurable max age on
// load. One file serves every source the Prober probes for; cmd/tagflow
// uses data/duration_cache_organized.json.
type durationCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]durationCacheEntry
	dirty   bool
}

func loadDurationCache(path string, maxAge time.Duration) (*durationCache, error) {
	dc := &durationCache{path: path, entries: make(map[string]durationCacheEntry)}
	if path == "" {
		return dc, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return dc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read duration cache %s: %w", path, err)
	}

	var loaded map[string]durationCacheEntry
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse duration cache %s: %w", path, err)
	}

	cutoff := time.Now().Add(-maxAge)
	for key, entry := range loaded {
		if entry.CachedAt.After(cutoff) {
			dc.entries[key] = entry
		}
	}
	return dc, nil
}

func (dc *durationCache) get(path string, currentSize int64, currentModTime time.Time) (durationCacheEntry, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.entries[path]
	if !ok {
		return durationCacheEntry{}, false
	}
	if entry.FileSizeBytes != currentSize || !entry.ModifiedTime.Equal(currentModTime) {
		return durationCacheEntry{}, false
	}
	return entry, true
}

func (dc *durationCache) put(path string, entry durationCacheEntry) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	entry.CachedAt = time.Now()
	dc.entries[path] = entry
	dc.dirty = true
}

func (dc *durationCache) save() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.path == "" || !dc.dirty {
		return nil
	}
	data, err := json.Marshal(dc.entries)
	if err != nil {
		return fmt.Errorf("marshal duration cache: %w", err)
	}
	if dir := filepath.Dir(dc.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create duration cache dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(dc.path, data, 0o644); err != nil {
		return fmt.Errorf("write duration cache %s: %w", dc.path, err)
	}
	dc.dirty = false
	return nil
}

// DurationBatch probes video durations, bounded by DurationWorkers, with
// cache-hit short-circuit keyed on path+size+mtime.
func (p *Prober) DurationBatch(ctx context.Context, paths []string) (map[string]*float64, error) {
	stats, err := p.StatBatch(ctx, paths)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*float64, len(paths))
	type outcome struct {
		path     string
		duration *float64
	}
	out := make(chan outcome, len(paths))

	for _, path := range paths {
		path := path
		stat := stats[path]
		if stat == nil {
			out <- outcome{path: path}
			continue
		}
		if cached, ok := p.durationCache.get(path, stat.SizeBytes, stat.ModTime); ok {
			d := cached.DurationSeconds
			out <- outcome{path: path, duration: &d}
			continue
		}

		if err := p.durationSem.Acquire(ctx); err != nil {
			return nil, err
		}
		go func() {
			defer p.durationSem.Release()
			d, err := p.probeDuration(ctx, path)
			if err != nil {
				p.logger.Debug("duration probe failed", zap.String("path", path), zap.Error(err))
				out <- outcome{path: path}
				return
			}
			p.durationCache.put(path, durationCacheEntry{
				DurationSeconds: d,
				FileSizeBytes:   stat.SizeBytes,
				ModifiedTime:    stat.ModTime,
			})
			out <- outcome{path: path, duration: &d}
		}()
	}

	for range paths {
		o := <-out
		results[o.path] = o.duration
	}

	// The cache is flushed after each batch so a crash mid-ingest at most
	// re-probes the batch in flight.
	if err := p.durationCache.save(); err != nil {
		p.logger.Warn("failed to persist duration cache", zap.Error(err))
	}
	return results, nil
}

// durationRetryConfig bounds retries of the ffprobe subprocess to transient
// process-spawn failures (e.g. the OS momentarily out of file descriptors
// under the probe worker pool's load); a parse or timeout failure is not
// worth retrying and is surfaced immediately by probeDuration.
var durationRetryConfig = recovery.RetryConfig{
	MaxAttempts:  2,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     200 * time.Millisecond,
}

// probeDuration shells out to ffprobe, bounded by p.probeTimeout.
func (p *Prober) probeDuration(ctx context.Context, path string) (float64, error) {
	start := time.Now()
	defer func() { metrics.RecordMediaProbe(time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	var stdout bytes.Buffer
	runErr := recovery.Retry(ctx, durationRetryConfig, func() error {
		stdout.Reset()
		cmd := exec.CommandContext(ctx, "ffprobe",
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			path)
		cmd.Stdout = &stdout
		if err := cmd.Run(); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return recovery.NewRetryableError(err, false)
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return recovery.NewRetryableError(err, false)
			}
			return recovery.NewRetryableError(err, true)
		}
		return nil
	})
	if runErr != nil {
		return 0, fmt.Errorf("ffprobe: %w", runErr)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration output: %w", err)
	}
	return seconds, nil
}
