package normalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/config"
	"github.com/zidane0ma/tagflow/database"
	"github.com/zidane0ma/tagflow/internal/cache"
	"github.com/zidane0ma/tagflow/internal/extractors"
	"github.com/zidane0ma/tagflow/internal/probe"
	"github.com/zidane0ma/tagflow/internal/storage"
	"github.com/zidane0ma/tagflow/models"
)

// stubProber returns nil for everything, exercising the tool-unavailable
// tolerance path.
type stubProber struct {
	resolutions map[string]*probe.Resolution
	durations   map[string]*float64
}

func (s *stubProber) StatBatch(ctx context.Context, paths []string) (map[string]*probe.FileStat, error) {
	return map[string]*probe.FileStat{}, nil
}

func (s *stubProber) DurationBatch(ctx context.Context, paths []string) (map[string]*float64, error) {
	return s.durations, nil
}

func (s *stubProber) ResolutionBatch(ctx context.Context, paths []string) (map[string]*probe.Resolution, error) {
	return s.resolutions, nil
}

func newTestEngine(t *testing.T, prober Prober) (*Engine, *storage.Store) {
	t.Helper()
	db, err := database.NewConnection(&config.DatabaseConfig{
		Path:               ":memory:",
		MaxOpenConnections: 1,
		MaxIdleConnections: 1,
		BusyTimeout:        5000,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	store := storage.New(db, zap.NewNop(), 1000)
	c := cache.NewMemory(100)
	return New(store, c, prober, zap.NewNop()), store
}

func TestProcessBatchCreatesPostWithCategory(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(t, &stubProber{})

	items := []extractors.RawItem{
		{
			FilePath:         "/organized/youtube/alice/video1.mp4",
			FileName:         "video1.mp4",
			Platform:         "youtube",
			PostID:           "p1",
			PostURL:          "https://www.youtube.com/watch?v=p1",
			Title:            "My Video",
			Creator:          extractors.CreatorHint{Name: "Alice", URL: "https://www.youtube.com/@Alice", PlatformCreatorID: "@Alice"},
			ExternalDBSource: "4k_youtube",
			DownloadItemID:   "1",
			IsVideo:          true,
		},
	}

	result, err := engine.ProcessBatch(ctx, items, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 0, result.Skipped)

	rec, err := store.Lookup(ctx, "/organized/youtube/alice/video1.mp4")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Contains(t, rec.Categories, models.CategoryVideos)
	require.NotNil(t, rec.CreatorName)
	require.Equal(t, "Alice", *rec.CreatorName)
}

func TestProcessBatchSkipsExistingFilePath(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, &stubProber{})

	item := extractors.RawItem{
		FilePath:         "/organized/youtube/alice/video1.mp4",
		FileName:         "video1.mp4",
		Platform:         "youtube",
		Creator:          extractors.CreatorHint{Name: "Alice"},
		ExternalDBSource: "4k_youtube",
		IsVideo:          true,
	}

	first, err := engine.ProcessBatch(ctx, []extractors.RawItem{item}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	second, err := engine.ProcessBatch(ctx, []extractors.RawItem{item}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 1, second.Skipped)
}

func TestDeriveCategoriesYoutubeShortVsVideo(t *testing.T) {
	width, height, duration := 1080, 1920, 45.0
	shortMedia := []storage.MediaInput{{ResolutionWidth: &width, ResolutionHeight: &height, DurationSeconds: &duration}}
	require.Equal(t, "shorts", string(deriveCategories(extractors.RawItem{Platform: "youtube"}, shortMedia)[0]))

	longDuration := 180.0
	videoMedia := []storage.MediaInput{{ResolutionWidth: &width, ResolutionHeight: &height, DurationSeconds: &longDuration}}
	require.Equal(t, "videos", string(deriveCategories(extractors.RawItem{Platform: "youtube"}, videoMedia)[0]))
}
