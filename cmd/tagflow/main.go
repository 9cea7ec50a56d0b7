package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/config"
	"github.com/zidane0ma/tagflow/database"
	"github.com/zidane0ma/tagflow/internal/cache"
	"github.com/zidane0ma/tagflow/internal/enrich"
	"github.com/zidane0ma/tagflow/internal/extractors"
	"github.com/zidane0ma/tagflow/internal/facade"
	"github.com/zidane0ma/tagflow/internal/metrics"
	"github.com/zidane0ma/tagflow/internal/normalize"
	"github.com/zidane0ma/tagflow/internal/operations"
	"github.com/zidane0ma/tagflow/internal/probe"
	"github.com/zidane0ma/tagflow/internal/realtime"
	"github.com/zidane0ma/tagflow/internal/recovery"
	"github.com/zidane0ma/tagflow/internal/storage"
	"github.com/zidane0ma/tagflow/pkg/memory"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to build logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	store := storage.New(db, logger, 1000,
		storage.WithSlowQueryThreshold(time.Duration(cfg.Storage.SlowQueryMS)*time.Millisecond))
	engineCache := buildCache(cfg, logger)

	prober, err := probe.New(logger, probe.Config{
		CachePath: "data/duration_cache_organized.json",
	})
	if err != nil {
		logger.Fatal("failed to start media prober", zap.Error(err))
	}
	defer func() {
		if err := prober.Close(); err != nil {
			logger.Warn("failed to persist duration cache", zap.Error(err))
		}
	}()

	engine := normalize.New(store, engineCache, prober, logger,
		normalize.WithThumbnailProducer(enrich.NullThumbnailProducer{}, cfg.Processing.ThumbnailsPath))

	hub := realtime.NewHub(logger)
	defer hub.Close()

	manager := operations.NewManager(operations.Config{
		MaxConcurrentOperations: cfg.Processing.MaxConcurrentProcessing,
	}, hub, logger)
	defer manager.Close()
	manager.MarkInterruptedAsFailed()

	metrics.StartRuntimeCollector(30 * time.Second)
	defer metrics.StopRuntimeCollector()

	memMonitor := memory.NewMemoryMonitor(5*time.Minute, 3.0)
	memMonitor.SetAlertCallback(func(report memory.LeakReport) {
		logger.Warn("potential memory leak detected",
			zap.Uint64("heap_alloc_bytes", report.HeapAlloc),
			zap.Float64("heap_growth_ratio", report.HeapGrowthRatio),
			zap.Int("goroutine_count", report.GoroutineCount),
			zap.Float64("goroutine_growth_rate", report.GoroutineGrowthRate))
	})
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	if err := memMonitor.Start(monitorCtx); err != nil {
		logger.Error("failed to start memory monitor", zap.Error(err))
	}
	defer func() {
		memMonitor.Stop()
		stopMonitor()
	}()

	sourceExtractors := buildExtractors(cfg, logger)

	app := facade.New(engine, manager, hub, sourceExtractors, 200, cfg.Sources.OrganizedBasePath, cfg.Processing.ThumbnailsPath, logger)

	if cfg.Sources.WatchOrganized {
		watcher := facade.NewWatcher(app, cfg.Sources.OrganizedBasePath, logger)
		if err := watcher.Start(); err != nil {
			logger.Error("failed to start organized-tree watcher", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	go runCleanupLoop(manager, logger)

	healthChecker := buildHealthChecker(db, cfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeHTTP)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := healthChecker.CheckHealth(r.Context())
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		writeJSON(w, logger, status)
	})
	registerAPIRoutes(mux, app, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Realtime.WebsocketHost, cfg.Realtime.WebsocketPort)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("tagflow server listening", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
}

// buildCache picks the cache backend for the normalization engine. Setting
// REDIS_ADDR opts into the shared RedisCache, so the same tagflow process
// can be scaled to more than one instance without losing cache invalidation
// fan-out; otherwise it falls back to the single-process MemoryCache.
func buildCache(cfg *config.Config, logger *zap.Logger) cache.Cache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return cache.NewMemory(cfg.Cache.MaxSize)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to in-process cache",
			zap.String("address", addr), zap.Error(err))
		return cache.NewMemory(cfg.Cache.MaxSize)
	}

	logger.Info("using redis cache backend", zap.String("address", addr))
	return cache.NewRedis(client, "tagflow")
}

// buildExtractors wires the four source extractors, each
// reporting itself unavailable rather than erroring when its backing path
// is unset or missing.
func buildExtractors(cfg *config.Config, logger *zap.Logger) []facade.Extractor {
	return []facade.Extractor{
		extractors.NewVideoDownloaderExtractor(cfg.Sources.ExternalYoutubeDB, logger),
		extractors.NewTokkitExtractor(cfg.Sources.ExternalTiktokDB, cfg.Sources.OrganizedBasePath, logger),
		extractors.NewStogramExtractor(cfg.Sources.ExternalInstagramDB, logger),
		extractors.NewFoldersExtractor(cfg.Sources.OrganizedBasePath, logger),
	}
}

// buildHealthChecker registers the process-liveness checks served at
// /healthz. This is distinct from the facade's GetSystemHealth: that one
// reports a weighted host-resource score for the UI, this one is a plain
// dependency-reachability probe for an orchestrator's liveness/readiness gate.
func buildHealthChecker(db *database.DB, cfg *config.Config, logger *zap.Logger) *recovery.HealthChecker {
	hc := recovery.NewHealthChecker(30*time.Second, 3*time.Second, logger)

	hc.AddCheck(recovery.HealthCheck{
		Name:     "database",
		Critical: true,
		Check:    func(ctx context.Context) error { return db.HealthCheck() },
	})

	hc.AddCheck(recovery.HealthCheck{
		Name:     "organized_path",
		Critical: false,
		Check: func(ctx context.Context) error {
			if cfg.Sources.OrganizedBasePath == "" {
				return nil
			}
			_, err := os.Stat(cfg.Sources.OrganizedBasePath)
			return err
		},
	})

	return hc
}

// runCleanupLoop periodically removes terminal operation records older than
// 24 hours.
func runCleanupLoop(manager *operations.Manager, logger *zap.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		removed := manager.CleanupCompleted(24 * time.Hour)
		if removed > 0 {
			logger.Info("cleaned up completed operations", zap.Int("removed", removed))
		}
	}
}

func registerAPIRoutes(mux *http.ServeMux, app *facade.Facade, logger *zap.Logger) {
	mux.HandleFunc("/api/operations/process-videos", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := app.StartProcessVideos(operations.PriorityMedium)
		writeJSON(w, logger, map[string]string{"operation_id": id})
	})

	mux.HandleFunc("/api/operations/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/api/operations/"):]
		if id == "" {
			writeJSON(w, logger, app.GetAllOperations())
			return
		}
		op, ok := app.GetOperationProgress(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, logger, op)
	})

	mux.HandleFunc("/api/operations/active", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, app.GetActiveOperations())
	})

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, app.GetSystemHealth(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
