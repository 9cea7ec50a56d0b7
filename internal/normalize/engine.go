// Package normalize implements the normalization engine: it consumes
// RawItems produced by the source extractors, resolves
// platforms/creators/subscriptions/categories, and writes the assembled
// Post+Media atomically through the storage layer.
package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zidane0ma/tagflow/internal/cache"
	"github.com/zidane0ma/tagflow/internal/enrich"
	"github.com/zidane0ma/tagflow/internal/extractors"
	"github.com/zidane0ma/tagflow/internal/metrics"
	"github.com/zidane0ma/tagflow/internal/probe"
	"github.com/zidane0ma/tagflow/internal/storage"
	"github.com/zidane0ma/tagflow/models"
	"github.com/zidane0ma/tagflow/pkg/lazy"
)

// Prober is the subset of probe.Prober the engine needs to hydrate media
// metadata. Captured as an interface so tests can substitute a stub.
type Prober interface {
	StatBatch(ctx context.Context, paths []string) (map[string]*probe.FileStat, error)
	DurationBatch(ctx context.Context, paths []string) (map[string]*float64, error)
	ResolutionBatch(ctx context.Context, paths []string) (map[string]*probe.Resolution, error)
}

// ItemOutcome classifies how one RawItem was handled.
type ItemOutcome string

const (
	OutcomeCreated ItemOutcome = "created"
	OutcomeSkipped ItemOutcome = "skipped"
	OutcomeFailed  ItemOutcome = "failed"
)

// Result is the per-batch report ProcessBatch returns.
type Result struct {
	Created int
	Skipped int
	Failed  int
	Errors  []error
}

// Engine is the normalization engine. It is stateless between batches except
// for the storage/cache/prober collaborators it was built with.
type Engine struct {
	store  *storage.Store
	cache  cache.Cache
	prober Prober
	logger *zap.Logger

	platformIDsMu sync.Mutex
	platformIDs   map[string]*lazy.Value[int64]

	musicRecognizer     enrich.MusicRecognizer
	characterRecognizer enrich.CharacterRecognizer
	thumbnailProducer   enrich.ThumbnailProducer
	thumbnailsDir       string
}

// Option configures optional Engine collaborators at construction time. The
// recognizer/thumbnail-producer capabilities default to enrich's Null
// implementations, so the engine runs end to end (producing no
// detections/thumbnails) even when a deployment hasn't wired a real
// recognition or rasterization backend.
type Option func(*Engine)

// WithRecognizers wires the music and face/character recognition
// collaborators analyze_videos and analyze_characters call into.
func WithRecognizers(music enrich.MusicRecognizer, character enrich.CharacterRecognizer) Option {
	return func(e *Engine) {
		if music != nil {
			e.musicRecognizer = music
		}
		if character != nil {
			e.characterRecognizer = character
		}
	}
}

// WithThumbnailProducer wires the thumbnail rasterization collaborator
// regenerate_thumbnails/populate_thumbnails call into, and the directory
// generated thumbnails are written under.
func WithThumbnailProducer(producer enrich.ThumbnailProducer, dir string) Option {
	return func(e *Engine) {
		if producer != nil {
			e.thumbnailProducer = producer
		}
		e.thumbnailsDir = dir
	}
}

// New builds a normalization Engine.
func New(store *storage.Store, c cache.Cache, prober Prober, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:               store,
		cache:               c,
		prober:              prober,
		logger:              logger,
		platformIDs:         make(map[string]*lazy.Value[int64]),
		musicRecognizer:     enrich.NullMusicRecognizer{},
		characterRecognizer: enrich.NullCharacterRecognizer{},
		thumbnailProducer:   enrich.NullThumbnailProducer{},
		thumbnailsDir:       "thumbnails",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the storage collaborator the engine was built with, so
// callers needing a direct maintenance operation (backup, clear, optimize,
// verify_integrity) don't need their own *storage.Store wiring.
func (e *Engine) Store() *storage.Store { return e.store }

// resolvePlatformID looks up a platform's id, loading it from the store at
// most once per platform name for the engine's lifetime: platform rows are
// seeded at migration time and never renamed, so every item after the first
// one naming a given platform is served from the lazy.Value instead of
// round-tripping to the database.
func (e *Engine) resolvePlatformID(ctx context.Context, name string) (int64, error) {
	e.platformIDsMu.Lock()
	v, ok := e.platformIDs[name]
	if !ok {
		v = lazy.NewValue(func() (int64, error) {
			return e.store.PlatformIDByName(ctx, name)
		})
		e.platformIDs[name] = v
	}
	e.platformIDsMu.Unlock()
	return v.Get()
}

// ProgressFunc is invoked after each item in a batch is processed, letting
// the operation manager report progress without the engine depending
// on it directly.
type ProgressFunc func(processed int, outcome ItemOutcome)

// ProcessBatch runs the per-item normalization pipeline over a batch,
// front-loading the probe work into one pass over the file paths that still
// need enrichment.
func (e *Engine) ProcessBatch(ctx context.Context, items []extractors.RawItem, onProgress ProgressFunc) (Result, error) {
	var result Result

	existing, err := e.loadExistingPaths(ctx)
	if err != nil {
		return result, fmt.Errorf("load existing file paths: %w", err)
	}

	// Pre-existence filter, applied to every file in the batch
	// (including carousel siblings) before spending probe work on it.
	var toProbe []string
	var pending []extractors.RawItem
	for _, item := range items {
		_, dup := existing[item.FilePath]
		for _, sib := range item.CarouselSiblings {
			if _, ok := existing[sib.FilePath]; ok {
				dup = true
			}
		}
		if dup {
			result.Skipped++
			if onProgress != nil {
				onProgress(result.Created+result.Skipped+result.Failed, OutcomeSkipped)
			}
			continue
		}
		pending = append(pending, item)
		toProbe = append(toProbe, item.FilePath)
		for _, sib := range item.CarouselSiblings {
			toProbe = append(toProbe, sib.FilePath)
		}
	}

	enrichment, err := e.hydrate(ctx, toProbe)
	if err != nil {
		return result, fmt.Errorf("hydrate media metadata: %w", err)
	}

	for _, item := range pending {
		outcome, err := e.processItem(ctx, item, enrichment)
		switch outcome {
		case OutcomeCreated:
			result.Created++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeFailed:
			result.Failed++
			result.Errors = append(result.Errors, err)
			metrics.RecordError("normalize", "item_failed")
			e.logger.Error("normalize item failed", zap.String("file_path", item.FilePath), zap.Error(err))
		}
		if onProgress != nil {
			onProgress(result.Created+result.Skipped+result.Failed, outcome)
		}
	}

	if result.Created > 0 {
		_ = e.cache.InvalidateCategory(ctx, "existing_paths")
		_ = e.cache.InvalidateCategory(ctx, "global_stats")
		_ = e.cache.InvalidateCategory(ctx, "pending_videos")
	}

	return result, nil
}

// loadExistingPaths serves the active file-path set through the cache. A
// stale entry is harmless: CreatePostWithMedia re-checks the database
// before it opens its transaction, so the cache only saves the common-case
// full scan.
func (e *Engine) loadExistingPaths(ctx context.Context) (map[string]struct{}, error) {
	const key = "existing_paths:all"

	if raw, ok, err := e.cache.Get(ctx, key); err == nil && ok {
		var paths []string
		if json.Unmarshal(raw, &paths) == nil {
			set := make(map[string]struct{}, len(paths))
			for _, p := range paths {
				set[p] = struct{}{}
			}
			return set, nil
		}
	}

	existing, err := e.store.ExistingFilePaths(ctx)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(existing))
	for p := range existing {
		paths = append(paths, p)
	}
	if raw, err := json.Marshal(paths); err == nil {
		if err := e.cache.SetWithCategories(ctx, key, raw, cache.TTLExistingPaths, "existing_paths"); err != nil {
			e.logger.Debug("failed to cache existing paths", zap.Error(err))
		}
	}
	return existing, nil
}

type enrichedMedia struct {
	stat       *probe.FileStat
	duration   *float64
	resolution *probe.Resolution
}

func (e *Engine) hydrate(ctx context.Context, paths []string) (map[string]enrichedMedia, error) {
	out := make(map[string]enrichedMedia, len(paths))
	if len(paths) == 0 {
		return out, nil
	}

	// The three probe batches are independent and each bounded by its own
	// worker pool, so they run concurrently.
	var (
		stats       map[string]*probe.FileStat
		durations   map[string]*float64
		resolutions map[string]*probe.Resolution
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if stats, err = e.prober.StatBatch(gctx, paths); err != nil {
			return fmt.Errorf("stat batch: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if durations, err = e.prober.DurationBatch(gctx, paths); err != nil {
			return fmt.Errorf("duration batch: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if resolutions, err = e.prober.ResolutionBatch(gctx, paths); err != nil {
			return fmt.Errorf("resolution batch: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range paths {
		out[p] = enrichedMedia{stat: stats[p], duration: durations[p], resolution: resolutions[p]}
	}
	return out, nil
}

// processItem normalizes and persists a single raw item.
func (e *Engine) processItem(ctx context.Context, item extractors.RawItem, enrichment map[string]enrichedMedia) (ItemOutcome, error) {
	platformID, err := e.resolvePlatformID(ctx, item.Platform)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("resolve platform %q: %w", item.Platform, err)
	}

	creatorID, err := e.resolveCreator(ctx, platformID, item)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("resolve creator: %w", err)
	}

	subscriptionID, err := e.resolveSubscription(ctx, platformID, creatorID, item)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("resolve subscription: %w", err)
	}

	title := item.Title
	useFilename := false
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(item.FileName, filepath.Ext(item.FileName))
		useFilename = true
	}

	post := models.Post{
		PlatformID:      platformID,
		PlatformPostID:  nonEmpty(item.PostID),
		PostURL:         nonEmpty(item.PostURL),
		TitlePost:       nonEmpty(title),
		UseFilename:     useFilename,
		CreatorID:       creatorID,
		SubscriptionID:  subscriptionID,
		PublicationDate: item.PublicationDate,
		DownloadDate:    item.DownloadDate,
	}

	mediaList, mappings, err := e.buildMediaAndMappings(item, enrichment)
	if err != nil {
		return OutcomeFailed, err
	}

	categories := deriveCategories(item, mediaList)

	createResult, err := e.store.CreatePostWithMedia(ctx, post, mediaList, categories, mappings)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("create post with media: %w", err)
	}
	if createResult.Duplicate {
		return OutcomeSkipped, nil
	}
	return OutcomeCreated, nil
}

// buildMediaAndMappings assembles the ordered MediaInput/MappingInput lists
// for the primary item plus any carousel siblings, in carousel order.
func (e *Engine) buildMediaAndMappings(item extractors.RawItem, enrichment map[string]enrichedMedia) ([]storage.MediaInput, []storage.MappingInput, error) {
	type member struct {
		path           string
		name           string
		order          int
		downloadItemID string
	}

	var members []member
	if len(item.CarouselSiblings) > 0 {
		for _, sib := range item.CarouselSiblings {
			members = append(members, member{path: sib.FilePath, name: sib.FileName, order: sib.Order, downloadItemID: sib.DownloadItemID})
		}
	} else {
		members = append(members, member{path: item.FilePath, name: item.FileName, downloadItemID: item.DownloadItemID})
	}

	// Organized-folders items have no originating downloader row, so they get
	// no traceability mapping; only the three downloader DB sources do.
	source := models.ExternalDBSource(item.ExternalDBSource)
	withMappings := source == models.SourceVideoDownloader || source == models.SourceTokkit || source == models.SourceStogram

	mediaList := make([]storage.MediaInput, 0, len(members))
	mappings := make([]storage.MappingInput, 0, len(members))
	for _, m := range members {
		en := enrichment[m.path]
		mediaType := models.MediaImage
		if item.IsVideo {
			mediaType = models.MediaVideo
		}

		mi := storage.MediaInput{
			FilePath:  m.path,
			FileName:  m.name,
			MediaType: mediaType,
		}
		if en.stat != nil {
			size := en.stat.SizeBytes
			mi.FileSize = &size
		}
		if en.duration != nil {
			mi.DurationSeconds = en.duration
		}
		if en.resolution != nil {
			mi.ResolutionWidth = &en.resolution.Width
			mi.ResolutionHeight = &en.resolution.Height
		}
		// The 4K Video Downloader DB decodes duration and resolution itself;
		// those values cover files the probe couldn't read (or read faster
		// than ffprobe would have).
		if m.path == item.FilePath {
			if mi.DurationSeconds == nil && item.DurationSeconds != nil {
				mi.DurationSeconds = item.DurationSeconds
			}
			if mi.ResolutionWidth == nil && item.Width != nil && item.Height != nil {
				mi.ResolutionWidth = item.Width
				mi.ResolutionHeight = item.Height
			}
		}
		mediaList = append(mediaList, mi)

		if !withMappings {
			continue
		}
		mapping := storage.MappingInput{
			DownloadItemID:   m.downloadItemID,
			ExternalDBSource: source,
			IsCarouselItem:   len(members) > 1,
			CarouselOrder:    intPtr(m.order),
		}
		if len(members) > 1 {
			mapping.CarouselBaseID = nonEmpty(item.PostID)
		}
		mappings = append(mappings, mapping)
	}
	return mediaList, mappings, nil
}

func intPtr(v int) *int { return &v }

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
