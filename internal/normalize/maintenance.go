package normalize

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/internal/storage"
	"github.com/zidane0ma/tagflow/models"
)

// Control lets a long-running engine method cooperate with the operation
// manager's cancel/pause gates without importing internal/operations.
// operations.Handle is the only thing satisfying this shape; the interface
// keeps the two packages decoupled, the same way Broadcaster is defined on
// the operations side of its boundary with internal/realtime.
type Control interface {
	CancelIfRequested() error
	WaitIfPaused(ctx context.Context) error
}

// noopControl is used by call sites (tests, one-off scripts) that don't run
// under an operations.Handle.
type noopControl struct{}

func (noopControl) CancelIfRequested() error               { return nil }
func (noopControl) WaitIfPaused(ctx context.Context) error { return nil }

// MaintenanceProgress reports per-item progress for the maintenance
// operations below as (processed, total) counts.
type MaintenanceProgress func(processed, total int)

// AnalyzeVideos is the analyze_videos operation body: it reruns the
// music/character recognizers over the given media ids (or, when ids is
// empty, every media row still pending enrichment), skipping rows already
// analyzed unless force is set.
func (e *Engine) AnalyzeVideos(ctx context.Context, ids []int64, force bool, ctrl Control, onProgress MaintenanceProgress) (Result, error) {
	if ctrl == nil {
		ctrl = noopControl{}
	}

	records, err := e.loadAnalysisTargets(ctx, ids)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for i, rec := range records {
		if err := ctrl.WaitIfPaused(ctx); err != nil {
			return result, err
		}
		if err := ctrl.CancelIfRequested(); err != nil {
			return result, err
		}

		if !force && rec.Media.ProcessingStatus == models.ProcessingCompleted {
			result.Skipped++
			if onProgress != nil {
				onProgress(i+1, len(records))
			}
			continue
		}

		if err := e.analyzeOne(ctx, rec); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			e.logger.Error("analyze_videos item failed", zap.Int64("media_id", rec.Media.ID), zap.Error(err))
		} else {
			result.Created++
		}
		if onProgress != nil {
			onProgress(i+1, len(records))
		}
	}

	if result.Created > 0 {
		_ = e.cache.InvalidateCategory(ctx, "pending_videos")
		_ = e.cache.InvalidateCategory(ctx, "global_stats")
	}
	return result, nil
}

// AnalyzeCharacters is the analyze_characters operation body: the
// character-only half of AnalyzeVideos, over the oldest `limit` pending rows.
func (e *Engine) AnalyzeCharacters(ctx context.Context, limit int, ctrl Control, onProgress MaintenanceProgress) (Result, error) {
	if ctrl == nil {
		ctrl = noopControl{}
	}

	records, err := e.store.PendingMedia(ctx, "", limit)
	if err != nil {
		return Result{}, fmt.Errorf("load pending media for analyze_characters: %w", err)
	}

	var result Result
	for i, rec := range records {
		if err := ctrl.WaitIfPaused(ctx); err != nil {
			return result, err
		}
		if err := ctrl.CancelIfRequested(); err != nil {
			return result, err
		}

		matches, err := e.characterRecognizer.DetectCharacters(ctx, rec.Media.FilePath)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			e.logger.Error("analyze_characters item failed", zap.Int64("media_id", rec.Media.ID), zap.Error(err))
			if onProgress != nil {
				onProgress(i+1, len(records))
			}
			continue
		}

		var characters models.StringList
		for _, m := range matches {
			characters.Add(m.Name)
		}
		if err := e.store.UpdateMedia(ctx, rec.Media.ID, map[string]any{
			"detected_characters": characters,
		}); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
		} else {
			result.Created++
		}
		if onProgress != nil {
			onProgress(i+1, len(records))
		}
	}
	return result, nil
}

func (e *Engine) loadAnalysisTargets(ctx context.Context, ids []int64) ([]storage.MediaRecord, error) {
	if len(ids) > 0 {
		return e.store.MediaByIDs(ctx, ids)
	}
	return e.store.PendingMedia(ctx, "", 0)
}

func (e *Engine) analyzeOne(ctx context.Context, rec storage.MediaRecord) error {
	fields := map[string]any{}

	music, err := e.musicRecognizer.RecognizeMusic(ctx, rec.Media.FilePath)
	if err != nil {
		return fmt.Errorf("recognize music for media %d: %w", rec.Media.ID, err)
	}
	if music != nil {
		fields["detected_music"] = music.Title
		fields["detected_music_artist"] = music.Artist
		fields["detected_music_confidence"] = music.Confidence
	}

	matches, err := e.characterRecognizer.DetectCharacters(ctx, rec.Media.FilePath)
	if err != nil {
		return fmt.Errorf("detect characters for media %d: %w", rec.Media.ID, err)
	}
	var characters models.StringList
	for _, m := range matches {
		characters.Add(m.Name)
	}
	if len(characters) > 0 {
		fields["detected_characters"] = characters
	}

	fields["processing_status"] = models.ProcessingCompleted
	return e.store.UpdateMedia(ctx, rec.Media.ID, fields)
}

// CleanFalsePositives is the clean_false_positives operation body: it
// clears detected_music* for rows whose recognition confidence fell below
// confidenceThreshold. Character detections carry no per-entry confidence in
// the data model, so this pass is scoped to music matches only. Without
// force it changes nothing and returns 0, since it is a destructive edit to
// recognition state.
func (e *Engine) CleanFalsePositives(ctx context.Context, confidenceThreshold float64, force bool) (int, error) {
	if !force {
		return 0, nil
	}

	records, _, err := e.store.FindPost(ctx, storage.Filters{}, storage.Pagination{Limit: 100000})
	if err != nil {
		return 0, fmt.Errorf("load media for clean_false_positives: %w", err)
	}

	cleared := 0
	for _, rec := range records {
		if rec.Media.DetectedMusicConfidence == nil || *rec.Media.DetectedMusicConfidence >= confidenceThreshold {
			continue
		}
		if err := e.store.UpdateMedia(ctx, rec.Media.ID, map[string]any{
			"detected_music":            nil,
			"detected_music_artist":     nil,
			"detected_music_confidence": nil,
		}); err != nil {
			return cleared, fmt.Errorf("clear false positive for media %d: %w", rec.Media.ID, err)
		}
		cleared++
	}
	return cleared, nil
}

// RegenerateThumbnails is the regenerate_thumbnails operation body: it
// (re)runs the thumbnail producer over the given media ids, overwriting any
// existing thumbnail_path.
func (e *Engine) RegenerateThumbnails(ctx context.Context, ids []int64, ctrl Control, onProgress MaintenanceProgress) (Result, error) {
	records, err := e.store.MediaByIDs(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("load media for regenerate_thumbnails: %w", err)
	}
	return e.generateThumbnails(ctx, records, ctrl, onProgress)
}

// PopulateThumbnails is the populate_thumbnails operation body: it
// generates thumbnails for media rows that don't have one yet (or, with
// force, every matching row).
func (e *Engine) PopulateThumbnails(ctx context.Context, platform string, limit int, force bool, ctrl Control, onProgress MaintenanceProgress) (Result, error) {
	records, err := e.store.MediaMissingThumbnails(ctx, platform, limit, force)
	if err != nil {
		return Result{}, fmt.Errorf("load media for populate_thumbnails: %w", err)
	}
	return e.generateThumbnails(ctx, records, ctrl, onProgress)
}

func (e *Engine) generateThumbnails(ctx context.Context, records []storage.MediaRecord, ctrl Control, onProgress MaintenanceProgress) (Result, error) {
	if ctrl == nil {
		ctrl = noopControl{}
	}

	var result Result
	for i, rec := range records {
		if err := ctrl.WaitIfPaused(ctx); err != nil {
			return result, err
		}
		if err := ctrl.CancelIfRequested(); err != nil {
			return result, err
		}

		out := filepath.Join(e.thumbnailsDir, fmt.Sprintf("%d.jpg", rec.Media.ID))
		if err := e.thumbnailProducer.GenerateThumbnail(ctx, rec.Media.FilePath, out); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			e.logger.Debug("thumbnail generation failed", zap.Int64("media_id", rec.Media.ID), zap.Error(err))
			if onProgress != nil {
				onProgress(i+1, len(records))
			}
			continue
		}

		if err := e.store.UpdateMedia(ctx, rec.Media.ID, map[string]any{"thumbnail_path": out}); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
		} else {
			result.Created++
		}
		if onProgress != nil {
			onProgress(i+1, len(records))
		}
	}

	if result.Created > 0 {
		_ = e.cache.InvalidateCategory(ctx, "global_stats")
	}
	return result, nil
}
