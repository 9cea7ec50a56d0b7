package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/zidane0ma/tagflow/models"
)

// MediaInput is one media item to attach to a new post, in carousel order.
type MediaInput struct {
	FilePath           string
	FileName           string
	FileSize           *int64
	MediaType          models.MediaType
	DurationSeconds    *float64
	ResolutionWidth    *int
	ResolutionHeight   *int
	FPS                *float64
	DetectedCharacters models.StringList
}

// MappingInput mirrors models.DownloaderMapping minus the media ID, which is
// filled in once the media row is created.
type MappingInput struct {
	DownloadItemID   string
	ExternalDBSource models.ExternalDBSource
	IsCarouselItem   bool
	CarouselOrder    *int
	CarouselBaseID   *string
}

// CreateResult reports the outcome of create_post_with_media.
type CreateResult struct {
	Duplicate bool
	PostID    int64
	MediaIDs  []int64
}

// CreatePostWithMedia is the at-most-once atomic post assembly: before
// inserting, every media file_path is checked against
// the active set; if any already exists the whole call is skipped and
// reported as a duplicate rather than partially inserted.
func (s *Store) CreatePostWithMedia(ctx context.Context, post models.Post, mediaList []MediaInput, categories []models.CategoryType, mappings []MappingInput) (CreateResult, error) {
	if len(mediaList) == 0 {
		return CreateResult{}, fmt.Errorf("create_post_with_media: media list is empty")
	}
	if len(mappings) != 0 && len(mappings) != len(mediaList) {
		return CreateResult{}, fmt.Errorf("create_post_with_media: mappings count %d does not match media count %d", len(mappings), len(mediaList))
	}

	var result CreateResult
	err := s.timeQuery(ctx, "create_post_with_media", "INSERT INTO posts ... media ... categories ... mappings", func(ctx context.Context) error {
		existing, err := s.ExistingFilePaths(ctx)
		if err != nil {
			return err
		}
		for _, m := range mediaList {
			if _, ok := existing[m.FilePath]; ok {
				result.Duplicate = true
				return nil
			}
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin create_post_with_media tx: %w", err)
		}
		defer tx.Rollback()

		post.SetCarouselFields(len(mediaList))
		now := time.Now()
		post.CreatedAt, post.UpdatedAt = now, now

		postID, err := s.db.TxInsertReturningID(ctx, tx,
			`INSERT INTO posts (
				platform_id, platform_post_id, post_url, title_post, use_filename,
				creator_id, subscription_id, publication_date, publication_date_source,
				publication_date_confidence, download_date, is_carousel, carousel_count,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			post.PlatformID, post.PlatformPostID, post.PostURL, post.TitlePost, post.UseFilename,
			post.CreatorID, post.SubscriptionID, post.PublicationDate, post.PublicationDateSource,
			post.PublicationDateConfidence, post.DownloadDate, post.IsCarousel, post.CarouselCount,
			post.CreatedAt, post.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert post: %w", err)
		}

		mediaIDs := make([]int64, 0, len(mediaList))
		for i, m := range mediaList {
			mediaID, err := s.db.TxInsertReturningID(ctx, tx,
				`INSERT INTO media (
					post_id, file_path, file_name, file_size, media_type,
					duration_seconds, resolution_width, resolution_height, fps,
					carousel_order, is_primary, detected_characters,
					edit_status, processing_status
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				postID, m.FilePath, m.FileName, m.FileSize, m.MediaType,
				m.DurationSeconds, m.ResolutionWidth, m.ResolutionHeight, m.FPS,
				i, i == 0, m.DetectedCharacters,
				models.EditPending, models.ProcessingPending,
			)
			if err != nil {
				return fmt.Errorf("insert media %q: %w", m.FilePath, err)
			}
			mediaIDs = append(mediaIDs, mediaID)
		}

		for _, category := range categories {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO post_categories (post_id, category_type) VALUES (?, ?)
				 ON CONFLICT(post_id, category_type) DO NOTHING`,
				postID, category); err != nil {
				return fmt.Errorf("insert category %q: %w", category, err)
			}
		}

		for i, mapping := range mappings {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO downloader_mapping (
					media_id, download_item_id, external_db_source,
					is_carousel_item, carousel_order, carousel_base_id
				) VALUES (?, ?, ?, ?, ?, ?)`,
				mediaIDs[i], mapping.DownloadItemID, mapping.ExternalDBSource,
				mapping.IsCarouselItem, mapping.CarouselOrder, mapping.CarouselBaseID); err != nil {
				return fmt.Errorf("insert downloader mapping: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit create_post_with_media: %w", err)
		}

		result.PostID = postID
		result.MediaIDs = mediaIDs
		return nil
	})
	return result, err
}

// postUpdatableFields whitelists the columns update_post may touch.
var postUpdatableFields = map[string]bool{
	"title_post": true, "post_url": true, "publication_date": true,
	"publication_date_source": true, "publication_date_confidence": true,
	"creator_id": true, "subscription_id": true,
}

// UpdatePost applies a whitelisted set of field updates and refreshes updated_at.
func (s *Store) UpdatePost(ctx context.Context, postID int64, fields map[string]any) error {
	return s.timeQuery(ctx, "update_post", "UPDATE posts SET ...", func(ctx context.Context) error {
		set, args, err := buildWhitelistedSet(fields, postUpdatableFields)
		if err != nil {
			return fmt.Errorf("update_post: %w", err)
		}
		set = append(set, "updated_at = ?")
		args = append(args, time.Now(), postID)

		query := "UPDATE posts SET " + joinAssignments(set) + " WHERE id = ?"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update post %d: %w", postID, err)
		}
		return nil
	})
}

// mediaUpdatableFields whitelists the columns update_media may touch.
var mediaUpdatableFields = map[string]bool{
	"thumbnail_path": true, "duration_seconds": true, "resolution_width": true,
	"resolution_height": true, "fps": true, "detected_music": true,
	"detected_music_artist": true, "detected_music_confidence": true,
	"detected_characters": true, "music_source": true, "final_music": true,
	"final_music_artist": true, "final_characters": true, "difficulty_level": true,
	"edit_status": true, "edited_video_path": true, "notes": true, "processing_status": true,
}

// UpdateMedia applies a whitelisted set of field updates. StringList fields
// (detected_characters, final_characters) are re-serialized atomically via
// models.StringList's driver.Valuer.
func (s *Store) UpdateMedia(ctx context.Context, mediaID int64, fields map[string]any) error {
	return s.timeQuery(ctx, "update_media", "UPDATE media SET ...", func(ctx context.Context) error {
		set, args, err := buildWhitelistedSet(fields, mediaUpdatableFields)
		if err != nil {
			return fmt.Errorf("update_media: %w", err)
		}
		args = append(args, mediaID)

		query := "UPDATE media SET " + joinAssignments(set) + " WHERE id = ?"
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update media %d: %w", mediaID, err)
		}
		return nil
	})
}

func buildWhitelistedSet(fields map[string]any, allowed map[string]bool) ([]string, []any, error) {
	set := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for field, value := range fields {
		if !allowed[field] {
			return nil, nil, fmt.Errorf("field %q is not updatable", field)
		}
		set = append(set, field+" = ?")
		args = append(args, value)
	}
	if len(set) == 0 {
		return nil, nil, fmt.Errorf("no fields given")
	}
	return set, args, nil
}

func joinAssignments(set []string) string {
	out := set[0]
	for _, s := range set[1:] {
		out += ", " + s
	}
	return out
}

// SoftDelete marks a post deleted. Idempotent: re-deleting an already
// deleted post is a no-op that reports false.
func (s *Store) SoftDelete(ctx context.Context, postID int64, by, reason string) (bool, error) {
	var changed bool
	err := s.timeQuery(ctx, "soft_delete", "UPDATE posts SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE posts SET deleted_at = ?, deleted_by = ?, deletion_reason = ? WHERE id = ? AND deleted_at IS NULL`,
			time.Now(), by, reason, postID)
		if err != nil {
			return fmt.Errorf("soft delete post %d: %w", postID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		changed = n > 0
		return nil
	})
	return changed, err
}

// Restore clears soft-delete bookkeeping on a post.
func (s *Store) Restore(ctx context.Context, postID int64) (bool, error) {
	var changed bool
	err := s.timeQuery(ctx, "restore", "UPDATE posts SET deleted_at = NULL WHERE id = ? AND deleted_at IS NOT NULL", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE posts SET deleted_at = NULL, deleted_by = NULL, deletion_reason = NULL WHERE id = ? AND deleted_at IS NOT NULL`,
			postID)
		if err != nil {
			return fmt.Errorf("restore post %d: %w", postID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		changed = n > 0
		return nil
	})
	return changed, err
}

// BulkSoftDelete and BulkRestore report per-row success counts.
func (s *Store) BulkSoftDelete(ctx context.Context, postIDs []int64, by, reason string) (succeeded int, err error) {
	for _, id := range postIDs {
		ok, e := s.SoftDelete(ctx, id, by, reason)
		if e != nil {
			err = e
			continue
		}
		if ok {
			succeeded++
		}
	}
	return succeeded, err
}

func (s *Store) BulkRestore(ctx context.Context, postIDs []int64) (succeeded int, err error) {
	for _, id := range postIDs {
		ok, e := s.Restore(ctx, id)
		if e != nil {
			err = e
			continue
		}
		if ok {
			succeeded++
		}
	}
	return succeeded, err
}

// CleanupOldDeleted hard-deletes posts (and their media/mappings/categories)
// whose deleted_at is older than the given number of days.
func (s *Store) CleanupOldDeleted(ctx context.Context, days int) (int, error) {
	var removed int
	err := s.timeQuery(ctx, "cleanup_old_deleted", "DELETE FROM posts WHERE deleted_at < ?", func(ctx context.Context) error {
		cutoff := time.Now().AddDate(0, 0, -days)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin cleanup tx: %w", err)
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `SELECT id FROM posts WHERE deleted_at IS NOT NULL AND deleted_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("select old deleted posts: %w", err)
		}
		var postIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan old deleted post id: %w", err)
			}
			postIDs = append(postIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, postID := range postIDs {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM downloader_mapping WHERE media_id IN (SELECT id FROM media WHERE post_id = ?)`, postID); err != nil {
				return fmt.Errorf("cascade delete mappings for post %d: %w", postID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM post_categories WHERE post_id = ?`, postID); err != nil {
				return fmt.Errorf("cascade delete categories for post %d: %w", postID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM media WHERE post_id = ?`, postID); err != nil {
				return fmt.Errorf("cascade delete media for post %d: %w", postID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, postID); err != nil {
				return fmt.Errorf("delete post %d: %w", postID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit cleanup: %w", err)
		}
		removed = len(postIDs)
		return nil
	})
	return removed, err
}

// Vacuum and Analyze are maintenance operations; they run outside the
// performance ring buffer since they are infrequent and administrator-driven.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}

func (s *Store) Analyze(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	return nil
}
