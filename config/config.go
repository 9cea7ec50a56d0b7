package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Config is the full set of environment-configurable options.
type Config struct {
	Database   DatabaseConfig   `validate:"required"`
	Sources    SourcesConfig    `validate:"required"`
	Processing ProcessingConfig `validate:"required"`
	Realtime   RealtimeConfig   `validate:"required"`
	Storage    StorageConfig    `validate:"required"`
	Cache      CacheConfig      `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
}

// DatabaseConfig configures the owned SQLite store.
type DatabaseConfig struct {
	Path               string `validate:"required"`
	EnableWAL          bool
	CacheSize          int
	BusyTimeout        int `validate:"gte=0"`
	MaxOpenConnections int `validate:"gt=0"`
	MaxIdleConnections int `validate:"gte=0"`
	ConnMaxLifetime    int
	ConnMaxIdleTime    int
}

// SourcesConfig points at the organized folder tree and the three external
// downloader databases. Each external DB path is optional: a missing path
// means that extractor reports unavailable rather than failing startup.
type SourcesConfig struct {
	OrganizedBasePath   string `validate:"required"`
	ExternalYoutubeDB   string
	ExternalTiktokDB    string
	ExternalInstagramDB string
	// WatchOrganized turns on the continuous-ingestion trigger: the organized
	// tree is watched for new files and a process_videos operation is enqueued
	// when it settles, instead of only ingesting on demand.
	WatchOrganized bool
}

// ProcessingConfig configures how many operations run at once and where
// thumbnails and known faces live.
type ProcessingConfig struct {
	MaxConcurrentProcessing int `validate:"gt=0"`
	ThumbnailsPath          string
	KnownFacesPath          string
}

// RealtimeConfig configures the websocket live-update fabric.
type RealtimeConfig struct {
	WebsocketHost string `validate:"required"`
	WebsocketPort int    `validate:"gt=0,lte=65535"`
}

// StorageConfig configures storage-layer perf monitoring.
type StorageConfig struct {
	SlowQueryMS int `validate:"gt=0"`
}

// CacheConfig configures the in-process/redis cache layer.
type CacheConfig struct {
	MaxSize           int `validate:"gt=0"`
	DefaultTTLSeconds int `validate:"gt=0"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
}

var validate = validator.New()

// Load reads configuration from the environment, applying the defaults
// documented below, then validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path:               envOr("DATABASE_PATH", "./tagflow.db"),
			EnableWAL:          true,
			CacheSize:          -2000,
			BusyTimeout:        5000,
			MaxOpenConnections: 10,
			MaxIdleConnections: 5,
			ConnMaxLifetime:    300,
			ConnMaxIdleTime:    60,
		},
		Sources: SourcesConfig{
			OrganizedBasePath:   envOr("ORGANIZED_BASE_PATH", "./organized"),
			ExternalYoutubeDB:   os.Getenv("EXTERNAL_YOUTUBE_DB"),
			ExternalTiktokDB:    os.Getenv("EXTERNAL_TIKTOK_DB"),
			ExternalInstagramDB: os.Getenv("EXTERNAL_INSTAGRAM_DB"),
			WatchOrganized:      os.Getenv("WATCH_ORGANIZED") == "true",
		},
		Processing: ProcessingConfig{
			MaxConcurrentProcessing: envOrInt("MAX_CONCURRENT_PROCESSING", runtime.NumCPU()),
			ThumbnailsPath:          envOr("THUMBNAILS_PATH", "./thumbnails"),
			KnownFacesPath:          envOr("KNOWN_FACES_PATH", "./known_faces"),
		},
		Realtime: RealtimeConfig{
			WebsocketHost: envOr("WEBSOCKET_HOST", "localhost"),
			WebsocketPort: envOrInt("WEBSOCKET_PORT", 8766),
		},
		Storage: StorageConfig{
			SlowQueryMS: envOrInt("SLOW_QUERY_MS", 100),
		},
		Cache: CacheConfig{
			MaxSize:           envOrInt("CACHE_MAX_SIZE", 2000),
			DefaultTTLSeconds: envOrInt("CACHE_DEFAULT_TTL_S", 600),
		},
		Logging: LoggingConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// DSN returns the SQLite connection string for the owned database.
func (c *DatabaseConfig) DSN() string {
	dsn := c.Path + "?_busy_timeout=" + strconv.Itoa(c.BusyTimeout) +
		"&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=1"
	if c.EnableWAL {
		dsn += "&_wal_autocheckpoint=1000"
	}
	if c.CacheSize != 0 {
		dsn += fmt.Sprintf("&_cache_size=%d", c.CacheSize)
	}
	return dsn
}
