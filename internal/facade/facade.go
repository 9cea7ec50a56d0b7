// Package facade is the public operation surface: a thin wrapper over the
// normalization engine, operation manager and realtime hub that exposes the
// handful of entry points a CLI or HTTP layer calls into.
package facade

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/internal/extractors"
	"github.com/zidane0ma/tagflow/internal/metrics"
	"github.com/zidane0ma/tagflow/internal/normalize"
	"github.com/zidane0ma/tagflow/internal/operations"
	"github.com/zidane0ma/tagflow/internal/realtime"
	"github.com/zidane0ma/tagflow/internal/recovery"
)

// Extractor is re-exported so callers don't need to import internal/extractors
// just to build a Facade.
type Extractor = extractors.Extractor

// Facade wires the normalization engine, operation manager and realtime hub
// together behind one public surface.
type Facade struct {
	engine     *normalize.Engine
	manager    *operations.Manager
	hub        *realtime.Hub
	extractors []Extractor
	logger     *zap.Logger

	batchSize     int
	diskUsagePath string
	thumbnailsDir string

	// extractorBulkhead bounds how many extractor.Extract calls run at once
	// across all in-flight operations, so several concurrently running
	// process_videos operations don't each open their own handle onto the
	// same external downloader database at the same time.
	extractorBulkhead *recovery.Bulkhead
}

// New builds a Facade. extractorList is consulted in order when a
// start_<operation> call doesn't name a specific source. diskUsagePath is
// the filesystem path get_system_health measures disk usage against
// (typically the organized library root); an empty string falls back to "/".
// thumbnailsDir is where populate_thumbnails/regenerate_thumbnails write
// generated files and clean_thumbnails looks for orphans.
func New(engine *normalize.Engine, manager *operations.Manager, hub *realtime.Hub, extractorList []Extractor, batchSize int, diskUsagePath, thumbnailsDir string, logger *zap.Logger) *Facade {
	if batchSize <= 0 {
		batchSize = 200
	}
	if thumbnailsDir == "" {
		thumbnailsDir = "thumbnails"
	}
	return &Facade{
		engine:        engine,
		manager:       manager,
		hub:           hub,
		extractors:    extractorList,
		batchSize:     batchSize,
		diskUsagePath: diskUsagePath,
		thumbnailsDir: thumbnailsDir,
		logger:        logger,
		extractorBulkhead: recovery.NewBulkhead(recovery.BulkheadConfig{
			MaxConcurrent: 2,
			Timeout:       30 * time.Second,
			Logger:        logger,
		}),
	}
}

// StartProcessVideos runs the normalization pipeline over every available
// extractor as a managed background operation.
func (f *Facade) StartProcessVideos(priority operations.Priority) string {
	return f.manager.Start(operations.TypeProcessVideos, priority, 0, func(ctx context.Context, h *Handle) (any, error) {
		return f.runIngest(ctx, h, f.extractors, 0)
	})
}

// Handle is re-exported so callers constructing a Body don't need to import
// internal/operations directly.
type Handle = operations.Handle

// runIngest drives the extract/normalize loop over extractorList, the shared
// body behind both start_process_videos (every extractor, no cap) and
// start_populate_database (a source/platform-narrowed subset with an
// optional total-item cap). totalLimit<=0 means unbounded.
func (f *Facade) runIngest(ctx context.Context, h *Handle, extractorList []Extractor, totalLimit int) (any, error) {
	var total normalize.Result
	for _, ex := range extractorList {
		available := ex.IsAvailable()
		metrics.SetExtractorHealth(ex.Source(), available)
		if !available {
			continue
		}
		if err := h.CancelIfRequested(); err != nil {
			return nil, err
		}

		offset := 0
		for {
			if totalLimit > 0 && offset >= totalLimit {
				break
			}
			if err := h.WaitIfPaused(ctx); err != nil {
				return nil, err
			}

			fetch := f.batchSize
			if totalLimit > 0 && totalLimit-offset < fetch {
				fetch = totalLimit - offset
			}

			var items []extractors.RawItem
			extractStart := time.Now()
			bulkheadErr := f.extractorBulkhead.Execute(ctx, func() error {
				var extractErr error
				items, extractErr = ex.Extract(offset, fetch)
				return extractErr
			})
			if bulkheadErr != nil {
				metrics.RecordExtractorPass(ex.Source(), "error", 0, time.Since(extractStart))
				return nil, fmt.Errorf("extract from %s: %w", ex.Source(), bulkheadErr)
			}
			metrics.RecordExtractorPass(ex.Source(), "ok", len(items), time.Since(extractStart))
			if len(items) == 0 {
				break
			}

			// Progress counts are cumulative across batches and extractors,
			// so a subscriber never sees the percent move backwards.
			base := total.Created + total.Skipped + total.Failed
			result, err := f.engine.ProcessBatch(ctx, items, func(n int, _ normalize.ItemOutcome) {
				h.Progress(base+n, 0, fmt.Sprintf("processing %s", ex.Source()))
			})
			if err != nil {
				return nil, fmt.Errorf("process batch from %s: %w", ex.Source(), err)
			}

			total.Created += result.Created
			total.Skipped += result.Skipped
			total.Failed += result.Failed
			total.Errors = append(total.Errors, result.Errors...)

			// Extractors paginate positionally over their (missing-file
			// filtered) post sets, so the window always advances by what was
			// requested, even when fewer items came back.
			offset += fetch
			if err := h.CancelIfRequested(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// GetOperationProgress returns a snapshot of one operation's progress.
func (f *Facade) GetOperationProgress(id string) (operations.Operation, bool) {
	return f.manager.Get(id)
}

// Cancel, Pause and Resume forward to the operation manager.
func (f *Facade) Cancel(id string) error { return f.manager.Cancel(id) }
func (f *Facade) Pause(id string) error  { return f.manager.Pause(id) }
func (f *Facade) Resume(id string) error { return f.manager.Resume(id) }

// GetAllOperations and GetActiveOperations list tracked operations.
func (f *Facade) GetAllOperations() []operations.Operation    { return f.manager.All() }
func (f *Facade) GetActiveOperations() []operations.Operation { return f.manager.Active() }

// SendCustomNotification broadcasts an ad-hoc notification frame to every
// connected client.
func (f *Facade) SendCustomNotification(message string, level realtime.NotificationLevel, data any) {
	f.hub.Notify(realtime.NotificationPayload{Message: message, Level: level, Data: data})
}
