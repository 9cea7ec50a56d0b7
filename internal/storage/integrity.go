package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MediaByIDs returns the active media rows whose id is in ids.
func (s *Store) MediaByIDs(ctx context.Context, ids []int64) ([]MediaRecord, error) {
	var records []MediaRecord
	if len(ids) == 0 {
		return records, nil
	}
	err := s.timeQuery(ctx, "media_by_ids", "SELECT ... WHERE m.id IN (...)", func(ctx context.Context) error {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		query := mediaJoinSelect + " WHERE p.deleted_at IS NULL AND m.id IN (" + placeholders + ")"
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query media_by_ids: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanMediaRecord(rows)
			if err != nil {
				return fmt.Errorf("scan media_by_ids row: %w", err)
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	return records, err
}

// MediaMissingThumbnails returns active media rows with no thumbnail_path,
// optionally narrowed to a platform, for populate_thumbnails, oldest post
// first and at most limit rows (500 when limit is 0 or less).
// When force is true, rows that already have a thumbnail are included too,
// so populate_thumbnails(force=true) can redo them.
func (s *Store) MediaMissingThumbnails(ctx context.Context, platform string, limit int, force bool) ([]MediaRecord, error) {
	var records []MediaRecord
	err := s.timeQuery(ctx, "media_missing_thumbnails", "SELECT ... WHERE m.thumbnail_path IS NULL", func(ctx context.Context) error {
		where := []string{"p.deleted_at IS NULL"}
		args := []any{}
		if !force {
			where = append(where, "m.thumbnail_path IS NULL")
		}
		if platform != "" {
			where = append(where, "pl.name = ?")
			args = append(args, platform)
		}
		if limit <= 0 {
			limit = 500
		}
		query := mediaJoinSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY p.created_at ASC LIMIT ?"
		args = append(args, limit)

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query media_missing_thumbnails: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanMediaRecord(rows)
			if err != nil {
				return fmt.Errorf("scan media_missing_thumbnails row: %w", err)
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	return records, err
}

// AllThumbnailPaths returns every non-null thumbnail_path currently
// referenced by an active media row, for clean_thumbnails to
// tell which on-disk thumbnail files are still in use.
func (s *Store) AllThumbnailPaths(ctx context.Context) (map[string]struct{}, error) {
	paths := make(map[string]struct{})
	err := s.timeQuery(ctx, "all_thumbnail_paths", "SELECT thumbnail_path FROM media JOIN posts", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT m.thumbnail_path FROM media m JOIN posts p ON p.id = m.post_id
			 WHERE p.deleted_at IS NULL AND m.thumbnail_path IS NOT NULL`)
		if err != nil {
			return fmt.Errorf("query all_thumbnail_paths: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				return fmt.Errorf("scan thumbnail path: %w", err)
			}
			paths[path] = struct{}{}
		}
		return rows.Err()
	})
	return paths, err
}

// ClearPlatform hard-deletes every post (and cascading media/mappings/
// categories) under one platform, or every platform when platform is "".
// This is the storage-layer half of clear_database; the force confirmation
// gate lives in the façade.
func (s *Store) ClearPlatform(ctx context.Context, platform string) (int, error) {
	var removed int
	err := s.timeQuery(ctx, "clear_platform", "DELETE FROM posts WHERE platform_id = ?", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin clear_platform tx: %w", err)
		}
		defer tx.Rollback()

		where := ""
		args := []any{}
		if platform != "" {
			where = "WHERE p.platform_id = (SELECT id FROM platforms WHERE name = ?)"
			args = append(args, platform)
		}
		rows, err := tx.QueryContext(ctx, "SELECT p.id FROM posts p "+where, args...)
		if err != nil {
			return fmt.Errorf("select posts to clear: %w", err)
		}
		var postIDs []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scan post id to clear: %w", err)
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
			return fmt.Errorf("commit clear_platform: %w", err)
		}
		removed = len(postIDs)
		return nil
	})
	return removed, err
}

// Backup writes a consistent point-in-time copy of the database to destPath
// using SQLite's online "VACUUM INTO", so backup_database never has to stop
// writers or hold a long-lived lock the way a raw file copy would.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	return s.timeQuery(ctx, "backup_database", "VACUUM INTO ?", func(ctx context.Context) error {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(destPath, "'", "''"))); err != nil {
			return fmt.Errorf("vacuum into %q: %w", destPath, err)
		}
		return nil
	})
}

// IntegrityIssue describes one inconsistency verify_integrity found.
type IntegrityIssue struct {
	PostID      int64
	Description string
	Fixed       bool
}

// IntegrityReport is the result of verify_integrity.
type IntegrityReport struct {
	PostsChecked int
	Issues       []IntegrityIssue
}

// VerifyIntegrity checks the carousel_count/is_carousel bookkeeping and
// exactly-one-primary invariants for every active post. When fix is true, each issue found is corrected in
// place instead of only being reported.
func (s *Store) VerifyIntegrity(ctx context.Context, fix bool) (IntegrityReport, error) {
	var report IntegrityReport
	err := s.timeQuery(ctx, "verify_integrity", "SELECT ... posts/media consistency", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, carousel_count, is_carousel FROM posts WHERE deleted_at IS NULL`)
		if err != nil {
			return fmt.Errorf("select posts for integrity check: %w", err)
		}
		type postRow struct {
			id            int64
			carouselCount int
			isCarousel    bool
		}
		var posts []postRow
		for rows.Next() {
			var p postRow
			if err := rows.Scan(&p.id, &p.carouselCount, &p.isCarousel); err != nil {
				rows.Close()
				return fmt.Errorf("scan post for integrity check: %w", err)
			}
			posts = append(posts, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		report.PostsChecked = len(posts)

		for _, p := range posts {
			var actualCount int
			if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media WHERE post_id = ?`, p.id).Scan(&actualCount); err != nil {
				return fmt.Errorf("count media for post %d: %w", p.id, err)
			}
			wantCarousel := actualCount > 1
			if actualCount != p.carouselCount || wantCarousel != p.isCarousel {
				issue := IntegrityIssue{
					PostID: p.id,
					Description: fmt.Sprintf("carousel_count=%d is_carousel=%v but %d active media rows exist",
						p.carouselCount, p.isCarousel, actualCount),
				}
				if fix {
					if _, err := s.db.ExecContext(ctx,
						`UPDATE posts SET carousel_count = ?, is_carousel = ?, updated_at = ? WHERE id = ?`,
						actualCount, wantCarousel, time.Now(), p.id); err != nil {
						return fmt.Errorf("fix carousel bookkeeping for post %d: %w", p.id, err)
					}
					issue.Fixed = true
				}
				report.Issues = append(report.Issues, issue)
			}

			var primaryCount int
			var minOrder int64
			if err := s.db.QueryRowContext(ctx,
				`SELECT COUNT(*), COALESCE(MIN(carousel_order), -1) FROM media WHERE post_id = ? AND is_primary = 1`,
				p.id).Scan(&primaryCount, &minOrder); err != nil {
				return fmt.Errorf("count primary media for post %d: %w", p.id, err)
			}
			if actualCount > 0 && primaryCount != 1 {
				issue := IntegrityIssue{
					PostID:      p.id,
					Description: fmt.Sprintf("expected exactly one primary media, found %d", primaryCount),
				}
				if fix {
					if _, err := s.db.ExecContext(ctx, `UPDATE media SET is_primary = 0 WHERE post_id = ?`, p.id); err != nil {
						return fmt.Errorf("clear primary flags for post %d: %w", p.id, err)
					}
					if _, err := s.db.ExecContext(ctx,
						`UPDATE media SET is_primary = 1 WHERE id = (
							SELECT id FROM media WHERE post_id = ? ORDER BY carousel_order ASC LIMIT 1
						)`, p.id); err != nil {
						return fmt.Errorf("reassign primary media for post %d: %w", p.id, err)
					}
					issue.Fixed = true
				}
				report.Issues = append(report.Issues, issue)
			}
		}
		return nil
	})
	return report, err
}
