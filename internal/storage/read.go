package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/zidane0ma/tagflow/models"
)

// MediaRecord is a media row joined with its post, creator, platform,
// subscription and categories — the shape find_post/lookup return.
type MediaRecord struct {
	Media        models.Media
	Post         models.Post
	CreatorName  *string
	PlatformName string
	Subscription *string
	Categories   []models.CategoryType
}

// Filters narrows FindPost.
type Filters struct {
	CreatorName      string
	Platform         string
	EditStatus       string
	ProcessingStatus string
	Search           string
}

// Pagination is either offset-based or cursor-based. The cursor is a keyset
// on posts.created_at descending — clients pass back the last-seen timestamp
// from PageMeta — with the post id as a tiebreaker so rows sharing a
// timestamp paginate deterministically.
type Pagination struct {
	Offset int
	Limit  int
	// CursorCreatedAt/CursorID, when CursorCreatedAt is non-zero, select
	// rows strictly older than the last-seen (created_at, id) pair.
	CursorCreatedAt time.Time
	CursorID        int64
}

// PageMeta reports pagination bookkeeping back to the caller.
type PageMeta struct {
	TotalCount          int
	NextCursorCreatedAt time.Time
	NextCursorID        int64
	HasMore             bool
}

const mediaJoinSelect = `
	SELECT
		m.id, m.post_id, m.file_path, m.file_name, m.thumbnail_path, m.file_size,
		m.duration_seconds, m.media_type, m.resolution_width, m.resolution_height, m.fps,
		m.carousel_order, m.is_primary, m.detected_music, m.detected_music_artist,
		m.detected_music_confidence, m.detected_characters, m.music_source, m.final_music,
		m.final_music_artist, m.final_characters, m.difficulty_level, m.edit_status,
		m.edited_video_path, m.notes, m.processing_status,
		p.id, p.platform_id, p.platform_post_id, p.post_url, p.title_post, p.use_filename,
		p.creator_id, p.subscription_id, p.publication_date, p.publication_date_source,
		p.publication_date_confidence, p.download_date, p.is_carousel, p.carousel_count,
		p.created_at, p.updated_at, p.deleted_at, p.deleted_by, p.deletion_reason,
		c.name, pl.name, s.name
	FROM media m
	JOIN posts p ON p.id = m.post_id
	LEFT JOIN creators c ON c.id = p.creator_id
	JOIN platforms pl ON pl.id = p.platform_id
	LEFT JOIN subscriptions s ON s.id = p.subscription_id
`

func scanMediaRecord(row interface{ Scan(...any) error }) (MediaRecord, error) {
	var r MediaRecord
	err := row.Scan(
		&r.Media.ID, &r.Media.PostID, &r.Media.FilePath, &r.Media.FileName, &r.Media.ThumbnailPath, &r.Media.FileSize,
		&r.Media.DurationSeconds, &r.Media.MediaType, &r.Media.ResolutionWidth, &r.Media.ResolutionHeight, &r.Media.FPS,
		&r.Media.CarouselOrder, &r.Media.IsPrimary, &r.Media.DetectedMusic, &r.Media.DetectedMusicArtist,
		&r.Media.DetectedMusicConfidence, &r.Media.DetectedCharacters, &r.Media.MusicSource, &r.Media.FinalMusic,
		&r.Media.FinalMusicArtist, &r.Media.FinalCharacters, &r.Media.DifficultyLevel, &r.Media.EditStatus,
		&r.Media.EditedVideoPath, &r.Media.Notes, &r.Media.ProcessingStatus,
		&r.Post.ID, &r.Post.PlatformID, &r.Post.PlatformPostID, &r.Post.PostURL, &r.Post.TitlePost, &r.Post.UseFilename,
		&r.Post.CreatorID, &r.Post.SubscriptionID, &r.Post.PublicationDate, &r.Post.PublicationDateSource,
		&r.Post.PublicationDateConfidence, &r.Post.DownloadDate, &r.Post.IsCarousel, &r.Post.CarouselCount,
		&r.Post.CreatedAt, &r.Post.UpdatedAt, &r.Post.DeletedAt, &r.Post.DeletedBy, &r.Post.DeletionReason,
		&r.CreatorName, &r.PlatformName, &r.Subscription,
	)
	if err == nil {
		r.Media.ProcessingStatus = models.MapLegacyProcessingStatus(string(r.Media.ProcessingStatus))
	}
	return r, err
}

// FindPost implements the find_post read operation.
func (s *Store) FindPost(ctx context.Context, f Filters, p Pagination) ([]MediaRecord, PageMeta, error) {
	var records []MediaRecord
	var meta PageMeta

	err := s.timeQuery(ctx, "find_post", "SELECT ... FROM media JOIN posts", func(ctx context.Context) error {
		where := []string{"p.deleted_at IS NULL"}
		args := []any{}

		if f.CreatorName != "" {
			where = append(where, "c.name = ?")
			args = append(args, f.CreatorName)
		}
		if f.Platform != "" {
			where = append(where, "pl.name = ?")
			args = append(args, f.Platform)
		}
		if f.EditStatus != "" {
			where = append(where, "m.edit_status = ?")
			args = append(args, f.EditStatus)
		}
		if f.ProcessingStatus != "" {
			where = append(where, "m.processing_status = ?")
			args = append(args, f.ProcessingStatus)
		}
		if f.Search != "" {
			where = append(where, "(p.title_post LIKE ? OR m.file_name LIKE ? OR c.name LIKE ?)")
			needle := "%" + f.Search + "%"
			args = append(args, needle, needle, needle)
		}
		if !p.CursorCreatedAt.IsZero() {
			where = append(where, "(p.created_at < ? OR (p.created_at = ? AND p.id < ?))")
			args = append(args, p.CursorCreatedAt, p.CursorCreatedAt, p.CursorID)
		}

		countQuery := "SELECT COUNT(*) FROM media m JOIN posts p ON p.id = m.post_id " +
			"LEFT JOIN creators c ON c.id = p.creator_id JOIN platforms pl ON pl.id = p.platform_id " +
			"WHERE " + strings.Join(where, " AND ")
		if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&meta.TotalCount); err != nil {
			return fmt.Errorf("count find_post: %w", err)
		}

		limit := p.Limit
		if limit <= 0 {
			limit = 100
		}
		query := mediaJoinSelect + " WHERE " + strings.Join(where, " AND ") +
			" ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?"
		args = append(args, limit+1, p.Offset)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query find_post: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanMediaRecord(rows)
			if err != nil {
				return fmt.Errorf("scan find_post row: %w", err)
			}
			records = append(records, rec)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate find_post rows: %w", err)
		}

		if len(records) > limit {
			meta.HasMore = true
			records = records[:limit]
			last := records[len(records)-1].Post
			meta.NextCursorCreatedAt = last.CreatedAt
			meta.NextCursorID = last.ID
		}
		return nil
	})

	if err != nil {
		return nil, PageMeta{}, err
	}

	if len(records) == 0 {
		return records, meta, nil
	}
	if err := s.attachCategories(ctx, records); err != nil {
		return nil, PageMeta{}, err
	}
	return records, meta, nil
}

func (s *Store) attachCategories(ctx context.Context, records []MediaRecord) error {
	postIDs := make([]int64, 0, len(records))
	index := make(map[int64]int, len(records))
	for i, r := range records {
		postIDs = append(postIDs, r.Post.ID)
		index[r.Post.ID] = i
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(postIDs)), ",")
	args := make([]any, len(postIDs))
	for i, id := range postIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT post_id, category_type FROM post_categories WHERE post_id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID int64
		var category models.CategoryType
		if err := rows.Scan(&postID, &category); err != nil {
			return fmt.Errorf("scan category: %w", err)
		}
		if i, ok := index[postID]; ok {
			records[i].Categories = append(records[i].Categories, category)
		}
	}
	return rows.Err()
}

// ExistingFilePaths returns the set of all active media file paths, for
// O(1) duplicate-path lookups during extraction.
func (s *Store) ExistingFilePaths(ctx context.Context) (map[string]struct{}, error) {
	paths := make(map[string]struct{})
	err := s.timeQuery(ctx, "existing_file_paths", "SELECT file_path FROM media JOIN posts", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT m.file_path FROM media m JOIN posts p ON p.id = m.post_id WHERE p.deleted_at IS NULL`)
		if err != nil {
			return fmt.Errorf("query existing paths: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				return fmt.Errorf("scan existing path: %w", err)
			}
			paths[path] = struct{}{}
		}
		return rows.Err()
	})
	return paths, err
}

// Lookup finds a single active media row by file path, falling back to file
// name if no exact path match exists.
func (s *Store) Lookup(ctx context.Context, filePathOrName string) (*MediaRecord, error) {
	var rec *MediaRecord
	err := s.timeQuery(ctx, "lookup", "SELECT ... FROM media WHERE file_path = ? OR file_name = ?", func(ctx context.Context) error {
		query := mediaJoinSelect + " WHERE p.deleted_at IS NULL AND (m.file_path = ? OR m.file_name = ?)" +
			" ORDER BY m.file_path = ? DESC LIMIT 1"
		row := s.db.QueryRowContext(ctx, query, filePathOrName, filePathOrName, filePathOrName)
		r, err := scanMediaRecord(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan lookup row: %w", err)
		}
		rec = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rec != nil {
		single := []MediaRecord{*rec}
		if err := s.attachCategories(ctx, single); err != nil {
			return nil, err
		}
		rec = &single[0]
	}
	return rec, nil
}

// PendingMedia returns media rows with processing_status='pending',
// optionally filtered by platform.
func (s *Store) PendingMedia(ctx context.Context, platform string, limit int) ([]MediaRecord, error) {
	var records []MediaRecord
	err := s.timeQuery(ctx, "pending_media", "SELECT ... WHERE m.processing_status = 'pending'", func(ctx context.Context) error {
		where := []string{"p.deleted_at IS NULL", "m.processing_status = 'pending'"}
		args := []any{}
		if platform != "" {
			where = append(where, "pl.name = ?")
			args = append(args, platform)
		}
		if limit <= 0 {
			limit = 100
		}
		query := mediaJoinSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY p.created_at ASC LIMIT ?"
		args = append(args, limit)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query pending_media: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanMediaRecord(rows)
			if err != nil {
				return fmt.Errorf("scan pending_media row: %w", err)
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	return records, err
}

// BatchExists reports, for each path, whether it exists as an active media row.
func (s *Store) BatchExists(ctx context.Context, paths []string) (map[string]bool, error) {
	existing, err := s.ExistingFilePaths(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		_, ok := existing[p]
		out[p] = ok
	}
	return out, nil
}

// BatchGetByPaths returns the active media rows matching any of paths, keyed
// by file path.
func (s *Store) BatchGetByPaths(ctx context.Context, paths []string) (map[string]MediaRecord, error) {
	out := make(map[string]MediaRecord)
	if len(paths) == 0 {
		return out, nil
	}
	err := s.timeQuery(ctx, "batch_get_by_paths", "SELECT ... WHERE m.file_path IN (...)", func(ctx context.Context) error {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(paths)), ",")
		args := make([]any, len(paths))
		for i, p := range paths {
			args[i] = p
		}
		query := mediaJoinSelect + " WHERE p.deleted_at IS NULL AND m.file_path IN (" + placeholders + ")"
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query batch_get_by_paths: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanMediaRecord(rows)
			if err != nil {
				return fmt.Errorf("scan batch_get_by_paths row: %w", err)
			}
			out[rec.Media.FilePath] = rec
		}
		return rows.Err()
	})
	return out, err
}

// Statistics aggregates counts for the system health / dashboard surface.
type Statistics struct {
	ActivePosts           int
	DeletedPosts          int
	ByPlatform            map[string]int
	ByEditStatus          map[string]int
	ByProcessingStatus    map[string]int
	MediaWithMusic        int
	MediaWithCharacters   int
	PrimaryCreators       int
	SecondaryCreators     int
	SubscriptionsByType   map[string]int
}

// Statistics computes the aggregate counters for the dashboard surface.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	err := s.timeQuery(ctx, "statistics", "SELECT COUNT(*) ... aggregates", func(ctx context.Context) error {
		stats.ByPlatform = make(map[string]int)
		stats.ByEditStatus = make(map[string]int)
		stats.ByProcessingStatus = make(map[string]int)
		stats.SubscriptionsByType = make(map[string]int)

		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts WHERE deleted_at IS NULL").Scan(&stats.ActivePosts); err != nil {
			return fmt.Errorf("count active posts: %w", err)
		}
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts WHERE deleted_at IS NOT NULL").Scan(&stats.DeletedPosts); err != nil {
			return fmt.Errorf("count deleted posts: %w", err)
		}

		if err := scanCountsByKey(ctx, s.db,
			`SELECT pl.name, COUNT(*) FROM posts p JOIN platforms pl ON pl.id = p.platform_id
			 WHERE p.deleted_at IS NULL GROUP BY pl.name`, stats.ByPlatform); err != nil {
			return err
		}
		if err := scanCountsByKey(ctx, s.db,
			`SELECT m.edit_status, COUNT(*) FROM media m JOIN posts p ON p.id = m.post_id
			 WHERE p.deleted_at IS NULL GROUP BY m.edit_status`, stats.ByEditStatus); err != nil {
			return err
		}
		if err := scanCountsByKey(ctx, s.db,
			`SELECT m.processing_status, COUNT(*) FROM media m JOIN posts p ON p.id = m.post_id
			 WHERE p.deleted_at IS NULL GROUP BY m.processing_status`, stats.ByProcessingStatus); err != nil {
			return err
		}
		if err := scanCountsByKey(ctx, s.db,
			`SELECT s.subscription_type, COUNT(*) FROM subscriptions s GROUP BY s.subscription_type`,
			stats.SubscriptionsByType); err != nil {
			return err
		}

		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM media m JOIN posts p ON p.id = m.post_id
			 WHERE p.deleted_at IS NULL AND (m.detected_music IS NOT NULL OR m.final_music IS NOT NULL)`,
		).Scan(&stats.MediaWithMusic); err != nil {
			return fmt.Errorf("count media with music: %w", err)
		}
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM media m JOIN posts p ON p.id = m.post_id
			 WHERE p.deleted_at IS NULL AND (m.detected_characters IS NOT NULL OR m.final_characters IS NOT NULL)`,
		).Scan(&stats.MediaWithCharacters); err != nil {
			return fmt.Errorf("count media with characters: %w", err)
		}
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM creators WHERE is_primary = 1`).Scan(&stats.PrimaryCreators); err != nil {
			return fmt.Errorf("count primary creators: %w", err)
		}
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM creators WHERE is_primary = 0`).Scan(&stats.SecondaryCreators); err != nil {
			return fmt.Errorf("count secondary creators: %w", err)
		}
		return nil
	})
	return stats, err
}

func scanCountsByKey(ctx context.Context, db interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, query string, into map[string]int) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query grouped counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan grouped count: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}
