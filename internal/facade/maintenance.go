package facade

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/zidane0ma/tagflow/internal/operations"
	"github.com/zidane0ma/tagflow/internal/storage"
)

// StartPopulateDatabase starts a populate_database operation: like
// start_process_videos, but narrowed to one source ("db" or "folders") and
// optionally one platform, and capped at limit items total. It takes no
// force flag: ingestion is already at-most-once via create_post_with_media's
// duplicate check, and already-ingested files are always skipped.
func (f *Facade) StartPopulateDatabase(source, platform string, limit int, priority operations.Priority) string {
	selected := selectExtractors(f.extractors, source, platform)
	return f.manager.Start(operations.TypePopulateDatabase, priority, 0, func(ctx context.Context, h *Handle) (any, error) {
		return f.runIngest(ctx, h, selected, limit)
	})
}

// selectExtractors narrows the configured extractor list to
// populate_database's (source, platform) parameters. source="folders" selects
// the organized-folders extractor; source="db" (or "") selects the three
// database-backed extractors, further narrowed to the one that owns
// `platform` when given (platform="tiktok" selects only the Tokkit
// extractor). Any other
// source value is matched against Extractor.Source() directly.
func selectExtractors(all []Extractor, source, platform string) []Extractor {
	switch source {
	case "folders":
		return filterBySource(all, "organized_folders")
	case "db", "":
		dbExtractors := filterOutSource(all, "organized_folders")
		preferred := platformExtractorSource(platform)
		if preferred == "" {
			return dbExtractors
		}
		return filterBySource(dbExtractors, preferred)
	default:
		return filterBySource(all, source)
	}
}

func platformExtractorSource(platform string) string {
	switch platform {
	case "":
		return ""
	case "tiktok":
		return "4k_tokkit"
	case "instagram":
		return "4k_stogram"
	default:
		return "4k_youtube"
	}
}

func filterBySource(all []Extractor, source string) []Extractor {
	var out []Extractor
	for _, ex := range all {
		if ex.Source() == source {
			out = append(out, ex)
		}
	}
	return out
}

func filterOutSource(all []Extractor, source string) []Extractor {
	var out []Extractor
	for _, ex := range all {
		if ex.Source() != source {
			out = append(out, ex)
		}
	}
	return out
}

// StartAnalyzeVideos starts an analyze_videos(video_ids, force) operation.
func (f *Facade) StartAnalyzeVideos(videoIDs []int64, force bool, priority operations.Priority) string {
	return f.manager.Start(operations.TypeAnalyzeVideos, priority, len(videoIDs), func(ctx context.Context, h *Handle) (any, error) {
		return f.engine.AnalyzeVideos(ctx, videoIDs, force, h, func(processed, total int) {
			h.Progress(processed, total, "analyzing videos")
		})
	})
}

// StartAnalyzeCharacters starts an analyze_characters(limit) operation.
func (f *Facade) StartAnalyzeCharacters(limit int, priority operations.Priority) string {
	return f.manager.Start(operations.TypeAnalyzeCharacters, priority, 0, func(ctx context.Context, h *Handle) (any, error) {
		return f.engine.AnalyzeCharacters(ctx, limit, h, func(processed, total int) {
			h.Progress(processed, total, "analyzing characters")
		})
	})
}

// StartCleanFalsePositives starts a clean_false_positives(force) operation.
func (f *Facade) StartCleanFalsePositives(force bool, priority operations.Priority) string {
	return f.manager.Start(operations.TypeCleanFalsePositives, priority, 0, func(ctx context.Context, h *Handle) (any, error) {
		cleared, err := f.engine.CleanFalsePositives(ctx, cleanFalsePositiveThreshold, force)
		h.Progress(cleared, cleared, "cleaned false positives")
		return cleared, err
	})
}

// cleanFalsePositiveThreshold is the minimum recognition confidence (0-100)
// a detected_music match must clear to survive clean_false_positives.
const cleanFalsePositiveThreshold = 40.0

// StartRegenerateThumbnails starts a regenerate_thumbnails(video_ids)
// operation.
func (f *Facade) StartRegenerateThumbnails(videoIDs []int64, priority operations.Priority) string {
	return f.manager.Start(operations.TypeRegenerateThumbnails, priority, len(videoIDs), func(ctx context.Context, h *Handle) (any, error) {
		return f.engine.RegenerateThumbnails(ctx, videoIDs, h, func(processed, total int) {
			h.Progress(processed, total, "regenerating thumbnails")
		})
	})
}

// StartPopulateThumbnails starts a populate_thumbnails(platform?, limit?,
// force) operation.
func (f *Facade) StartPopulateThumbnails(platform string, limit int, force bool, priority operations.Priority) string {
	return f.manager.Start(operations.TypePopulateThumbnails, priority, 0, func(ctx context.Context, h *Handle) (any, error) {
		return f.engine.PopulateThumbnails(ctx, platform, limit, force, h, func(processed, total int) {
			h.Progress(processed, total, "populating thumbnails")
		})
	})
}

// StartCleanThumbnails starts a clean_thumbnails(force) operation:
// removes on-disk thumbnail files no active media row references.
func (f *Facade) StartCleanThumbnails(force bool, priority operations.Priority) string {
	return f.manager.Start(operations.TypeCleanThumbnails, priority, 0, func(ctx context.Context, h *Handle) (any, error) {
		return f.cleanOrphanedThumbnails(ctx, force)
	})
}

// StartOptimizeDatabase starts an optimize_database operation:
// VACUUM + ANALYZE, run outside the performance ring buffer since it's an
// infrequent, administrator-driven maintenance pass.
func (f *Facade) StartOptimizeDatabase(priority operations.Priority) string {
	return f.manager.Start(operations.TypeOptimizeDatabase, priority, 0, func(ctx context.Context, h *Handle) (any, error) {
		store := f.engine.Store()
		if err := store.Vacuum(ctx); err != nil {
			return nil, fmt.Errorf("optimize_database vacuum: %w", err)
		}
		h.Progress(1, 2, "vacuumed")
		if err := store.Analyze(ctx); err != nil {
			return nil, fmt.Errorf("optimize_database analyze: %w", err)
		}
		h.Progress(2, 2, "analyzed")
		return nil, nil
	})
}

// StartClearDatabase starts a clear_database(platform?, force) operation.
// force must be true or the call returns without touching the
// database, since this hard-deletes active data.
func (f *Facade) StartClearDatabase(platform string, force bool, priority operations.Priority) string {
	return f.manager.Start(operations.TypeClearDatabase, priority, 0, func(ctx context.Context, h *Handle) (any, error) {
		if !force {
			return 0, fmt.Errorf("clear_database requires force=true")
		}
		removed, err := f.engine.Store().ClearPlatform(ctx, platform)
		h.Progress(removed, removed, "cleared")
		return removed, err
	})
}

// StartBackupDatabase starts a backup_database(path?) operation. The
// point-in-time copy is brotli-compressed after the VACUUM INTO completes, so
// what lands on disk is <path>.br; restoring is a decompress plus rename.
func (f *Facade) StartBackupDatabase(path string, priority operations.Priority) string {
	if path == "" {
		path = fmt.Sprintf("backup-%s.db", time.Now().Format("20060102-150405"))
	}
	return f.manager.Start(operations.TypeBackupDatabase, priority, 0, func(ctx context.Context, h *Handle) (any, error) {
		if err := f.engine.Store().Backup(ctx, path); err != nil {
			return nil, fmt.Errorf("backup_database: %w", err)
		}
		h.Progress(1, 2, "backup written")
		compressed, err := compressBackup(path)
		if err != nil {
			return nil, fmt.Errorf("backup_database: %w", err)
		}
		h.Progress(2, 2, "backup compressed")
		return compressed, nil
	})
}

// compressBackup brotli-compresses src to src+".br" and removes the
// uncompressed copy once the compressed file is fully flushed.
func compressBackup(src string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open backup %s: %w", src, err)
	}
	defer in.Close()

	dst := src + ".br"
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create compressed backup %s: %w", dst, err)
	}

	w := brotli.NewWriterLevel(out, brotli.BestCompression)
	if _, err := io.Copy(w, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("compress backup: %w", err)
	}
	if err := w.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("flush compressed backup: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close compressed backup: %w", err)
	}

	in.Close()
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("remove uncompressed backup %s: %w", src, err)
	}
	return dst, nil
}

// StartVerifyIntegrity starts a verify_integrity(fix_issues) operation.
func (f *Facade) StartVerifyIntegrity(fixIssues bool, priority operations.Priority) string {
	return f.manager.Start(operations.TypeVerifyIntegrity, priority, 0, func(ctx context.Context, h *Handle) (any, error) {
		report, err := f.engine.Store().VerifyIntegrity(ctx, fixIssues)
		if err != nil {
			return nil, fmt.Errorf("verify_integrity: %w", err)
		}
		h.Progress(report.PostsChecked, report.PostsChecked, fmt.Sprintf("%d issues found", len(report.Issues)))
		return report, nil
	})
}

// cleanOrphanedThumbnails implements clean_thumbnails's body: any file under
// the thumbnails directory not referenced by an active media row is removed
// when force is true; with force=false (the default) it only counts what
// would be removed.
func (f *Facade) cleanOrphanedThumbnails(ctx context.Context, force bool) (any, error) {
	return cleanOrphanedThumbnails(ctx, f.engine.Store(), f.thumbnailsDir, force)
}

// cleanOrphanedThumbnails walks dir and reports every regular file under it
// whose path isn't in store.AllThumbnailPaths. With force it removes them;
// otherwise it only counts. Destructive cleanup passes default to a dry run.
func cleanOrphanedThumbnails(ctx context.Context, store *storage.Store, dir string, force bool) (any, error) {
	referenced, err := store.AllThumbnailPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("clean_thumbnails: %w", err)
	}

	var orphaned int
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if _, ok := referenced[path]; ok {
			return nil
		}
		orphaned++
		if force {
			if rmErr := os.Remove(path); rmErr != nil {
				return fmt.Errorf("remove orphaned thumbnail %s: %w", path, rmErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("clean_thumbnails: %w", err)
	}
	return orphaned, nil
}
