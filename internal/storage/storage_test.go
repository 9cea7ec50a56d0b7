package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/config"
	"github.com/zidane0ma/tagflow/database"
	"github.com/zidane0ma/tagflow/models"
)

func newTestStore(t *testing.T) *Store {
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
	return New(db, zap.NewNop(), 1000)
}

func TestCreatePostWithMediaThenLookupAndFindPost(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	post := models.Post{PlatformID: 1}
	media := []MediaInput{
		{FilePath: "/organized/youtube/creator/video1.mp4", FileName: "video1.mp4", MediaType: models.MediaVideo},
	}

	result, err := store.CreatePostWithMedia(ctx, post, media, nil, nil)
	require.NoError(t, err)
	require.False(t, result.Duplicate)
	require.NotZero(t, result.PostID)
	require.Len(t, result.MediaIDs, 1)

	rec, err := store.Lookup(ctx, "/organized/youtube/creator/video1.mp4")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.True(t, rec.Media.IsPrimary)
	require.Equal(t, 1, rec.Post.CarouselCount)
	require.False(t, rec.Post.IsCarousel)

	records, meta, err := store.FindPost(ctx, Filters{}, Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, meta.TotalCount)
}

func TestCreatePostWithMediaDuplicateIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	media := []MediaInput{{FilePath: "/dup.mp4", FileName: "dup.mp4", MediaType: models.MediaVideo}}

	first, err := store.CreatePostWithMedia(ctx, models.Post{PlatformID: 1}, media, nil, nil)
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := store.CreatePostWithMedia(ctx, models.Post{PlatformID: 1}, media, nil, nil)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
}

func TestCarouselPrimaryIsSmallestOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	media := []MediaInput{
		{FilePath: "/c/1.jpg", FileName: "1.jpg", MediaType: models.MediaImage},
		{FilePath: "/c/2.jpg", FileName: "2.jpg", MediaType: models.MediaImage},
		{FilePath: "/c/3.jpg", FileName: "3.jpg", MediaType: models.MediaImage},
	}

	result, err := store.CreatePostWithMedia(ctx, models.Post{PlatformID: 1}, media, nil, nil)
	require.NoError(t, err)

	rec, err := store.Lookup(ctx, "/c/1.jpg")
	require.NoError(t, err)
	require.True(t, rec.Post.IsCarousel)
	require.Equal(t, 3, rec.Post.CarouselCount)
	require.True(t, rec.Media.IsPrimary)

	rec2, err := store.Lookup(ctx, "/c/2.jpg")
	require.NoError(t, err)
	require.False(t, rec2.Media.IsPrimary)
	_ = result
}

func TestSoftDeleteRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	result, err := store.CreatePostWithMedia(ctx, models.Post{PlatformID: 1},
		[]MediaInput{{FilePath: "/s.mp4", FileName: "s.mp4", MediaType: models.MediaVideo}}, nil, nil)
	require.NoError(t, err)

	ok, err := store.SoftDelete(ctx, result.PostID, "user1", "testing")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.SoftDelete(ctx, result.PostID, "user1", "testing")
	require.NoError(t, err)
	require.False(t, ok, "re-deleting an already-deleted post is a no-op")

	ok, err = store.Restore(ctx, result.PostID)
	require.NoError(t, err)
	require.True(t, ok)

	rec, err := store.Lookup(ctx, "/s.mp4")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Nil(t, rec.Post.DeletedAt)
}

func TestBatchExistsAndGetByPaths(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.CreatePostWithMedia(ctx, models.Post{PlatformID: 1},
		[]MediaInput{{FilePath: "/b1.mp4", FileName: "b1.mp4", MediaType: models.MediaVideo}}, nil, nil)
	require.NoError(t, err)

	exists, err := store.BatchExists(ctx, []string{"/b1.mp4", "/missing.mp4"})
	require.NoError(t, err)
	require.True(t, exists["/b1.mp4"])
	require.False(t, exists["/missing.mp4"])

	got, err := store.BatchGetByPaths(ctx, []string{"/b1.mp4", "/missing.mp4"})
	require.NoError(t, err)
	require.Contains(t, got, "/b1.mp4")
	require.NotContains(t, got, "/missing.mp4")
}

func TestUpdateMediaWhitelistRejectsUnknownField(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	err := store.UpdateMedia(ctx, 1, map[string]any{"file_path": "/new.mp4"})
	require.Error(t, err)
}

func TestFindPostCursorMatchesOffsetPagination(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := store.CreatePostWithMedia(ctx, models.Post{PlatformID: 1},
			[]MediaInput{{
				FilePath:  fmt.Sprintf("/cursor/%d.mp4", i),
				FileName:  fmt.Sprintf("%d.mp4", i),
				MediaType: models.MediaVideo,
			}}, nil, nil)
		require.NoError(t, err)
	}

	var byOffset []string
	for offset := 0; ; offset += 2 {
		page, _, err := store.FindPost(ctx, Filters{}, Pagination{Offset: offset, Limit: 2})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, rec := range page {
			byOffset = append(byOffset, rec.Media.FilePath)
		}
	}

	// Posts created in one test run share wall-clock timestamps, so this
	// also exercises the id tiebreaker.
	var byCursor []string
	cursor := Pagination{Limit: 2}
	for {
		page, meta, err := store.FindPost(ctx, Filters{}, cursor)
		require.NoError(t, err)
		for _, rec := range page {
			byCursor = append(byCursor, rec.Media.FilePath)
		}
		if !meta.HasMore {
			break
		}
		cursor.CursorCreatedAt = meta.NextCursorCreatedAt
		cursor.CursorID = meta.NextCursorID
	}

	require.Equal(t, byOffset, byCursor)
	require.Len(t, byCursor, 5)
}

func TestHealthReportsPerfMetrics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.ExistingFilePaths(ctx)
	require.NoError(t, err)

	report, err := store.Health(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, report.TotalQueries, 1)
	require.GreaterOrEqual(t, report.SuccessRatePct, 0.0)
}
