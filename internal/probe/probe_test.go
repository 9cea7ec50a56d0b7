package probe

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProber(t *testing.T) *Prober {
	t.Helper()
	p, err := New(zap.NewNop(), Config{})
	require.NoError(t, err)
	return p
}

func TestStatBatchExistingAndMissing(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	p := newTestProber(t)
	stats, err := p.StatBatch(context.Background(), []string{file, filepath.Join(dir, "missing.txt")})
	require.NoError(t, err)

	require.NotNil(t, stats[file])
	require.EqualValues(t, 5, stats[file].SizeBytes)
	require.Nil(t, stats[filepath.Join(dir, "missing.txt")])
}

func TestDurationBatchCacheHitShortCircuits(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "video.mp4")
	require.NoError(t, os.WriteFile(file, []byte("not a real video"), 0o644))
	info, err := os.Stat(file)
	require.NoError(t, err)

	p := newTestProber(t)
	p.durationCache.put(file, durationCacheEntry{
		DurationSeconds: 42.5,
		FileSizeBytes:   info.Size(),
		ModifiedTime:    info.ModTime(),
	})

	durations, err := p.DurationBatch(context.Background(), []string{file})
	require.NoError(t, err)
	require.NotNil(t, durations[file])
	require.InDelta(t, 42.5, *durations[file], 0.001)
}

func TestDurationBatchMissingFileYieldsNil(t *testing.T) {
	p := newTestProber(t)
	durations, err := p.DurationBatch(context.Background(), []string{"/does/not/exist.mp4"})
	require.NoError(t, err)
	require.Nil(t, durations["/does/not/exist.mp4"])
}

func TestDurationCacheStaleEntriesPurgedOnLoad(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")

	dc := &durationCache{path: cachePath, entries: map[string]durationCacheEntry{}}
	dc.entries["/old.mp4"] = durationCacheEntry{
		DurationSeconds: 10,
		CachedAt:        time.Now().Add(-40 * 24 * time.Hour),
	}
	dc.dirty = true
	require.NoError(t, dc.save())

	loaded, err := loadDurationCache(cachePath, 30*24*time.Hour)
	require.NoError(t, err)
	_, ok := loaded.entries["/old.mp4"]
	require.False(t, ok, "entries older than maxAge must be purged on load")
}

func TestResolutionBatchDecodesPNGImage(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "img.png")

	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(file, buf.Bytes(), 0o644))

	p := newTestProber(t)
	resolutions, err := p.ResolutionBatch(context.Background(), []string{file})
	require.NoError(t, err)
	require.NotNil(t, resolutions[file])
	require.Equal(t, 20, resolutions[file].Width)
	require.Equal(t, 10, resolutions[file].Height)
}

func TestResolutionBatchUnreadableFileYieldsNil(t *testing.T) {
	p := newTestProber(t)
	resolutions, err := p.ResolutionBatch(context.Background(), []string{"/does/not/exist.jpg"})
	require.NoError(t, err)
	require.Nil(t, resolutions["/does/not/exist.jpg"])
}
