package database

import (
	"context"
	"fmt"

	"github.com/zidane0ma/tagflow/models"
)

// schemaStatements creates the owned SQLite schema: Platform, Creator,
// Subscription, Post, Media, PostCategory and DownloaderMapping tables plus
// the indexes the hot read and dedup paths rely on.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS platforms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		base_url TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS creators (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		platform_id INTEGER NOT NULL REFERENCES platforms(id),
		parent_creator_id INTEGER REFERENCES creators(id),
		is_primary BOOLEAN NOT NULL DEFAULT 1,
		alias_type TEXT NOT NULL DEFAULT 'main',
		platform_creator_id TEXT,
		profile_url TEXT,
		creator_name_source TEXT NOT NULL DEFAULT 'manual',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS creator_urls (
		creator_id INTEGER NOT NULL REFERENCES creators(id),
		platform TEXT NOT NULL,
		url TEXT NOT NULL,
		PRIMARY KEY (creator_id, platform, url)
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		platform_id INTEGER NOT NULL REFERENCES platforms(id),
		subscription_type TEXT NOT NULL,
		is_account BOOLEAN NOT NULL DEFAULT 0,
		creator_id INTEGER REFERENCES creators(id),
		subscription_url TEXT,
		external_uuid TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		platform_id INTEGER NOT NULL REFERENCES platforms(id),
		platform_post_id TEXT,
		post_url TEXT,
		title_post TEXT,
		use_filename BOOLEAN NOT NULL DEFAULT 0,
		creator_id INTEGER REFERENCES creators(id),
		subscription_id INTEGER REFERENCES subscriptions(id),
		publication_date DATETIME,
		publication_date_source TEXT,
		publication_date_confidence INTEGER,
		download_date DATETIME,
		is_carousel BOOLEAN NOT NULL DEFAULT 0,
		carousel_count INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME,
		deleted_by TEXT,
		deletion_reason TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS media (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL REFERENCES posts(id),
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL,
		thumbnail_path TEXT,
		file_size INTEGER,
		duration_seconds REAL,
		media_type TEXT NOT NULL,
		resolution_width INTEGER,
		resolution_height INTEGER,
		fps REAL,
		carousel_order INTEGER NOT NULL DEFAULT 0,
		is_primary BOOLEAN NOT NULL DEFAULT 0,
		detected_music TEXT,
		detected_music_artist TEXT,
		detected_music_confidence REAL,
		detected_characters TEXT,
		music_source TEXT,
		final_music TEXT,
		final_music_artist TEXT,
		final_characters TEXT,
		difficulty_level TEXT,
		edit_status TEXT NOT NULL DEFAULT 'pendiente',
		edited_video_path TEXT,
		notes TEXT,
		processing_status TEXT NOT NULL DEFAULT 'pending'
	)`,
	`CREATE TABLE IF NOT EXISTS post_categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL REFERENCES posts(id),
		category_type TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS downloader_mapping (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		media_id INTEGER NOT NULL REFERENCES media(id),
		download_item_id TEXT NOT NULL,
		external_db_source TEXT NOT NULL,
		is_carousel_item BOOLEAN NOT NULL DEFAULT 0,
		carousel_order INTEGER,
		carousel_base_id TEXT
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_media_file_path ON media(file_path)`,
	`CREATE INDEX IF NOT EXISTS idx_media_post_id ON media(post_id)`,
	`CREATE INDEX IF NOT EXISTS idx_media_post_carousel_order ON media(post_id, carousel_order)`,
	`CREATE INDEX IF NOT EXISTS idx_media_processing_status ON media(processing_status)`,
	`CREATE INDEX IF NOT EXISTS idx_media_edit_status ON media(edit_status)`,

	`CREATE INDEX IF NOT EXISTS idx_posts_platform_id ON posts(platform_id)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_creator_id ON posts(creator_id)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_subscription_id ON posts(subscription_id)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_publication_date ON posts(publication_date)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_download_date ON posts(download_date)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_deleted_at ON posts(deleted_at)`,

	`CREATE INDEX IF NOT EXISTS idx_creators_platform_id ON creators(platform_id)`,
	`CREATE INDEX IF NOT EXISTS idx_creators_parent_creator_id ON creators(parent_creator_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_creators_platform_creator_id
		ON creators(platform_id, platform_creator_id) WHERE platform_creator_id IS NOT NULL`,

	`CREATE INDEX IF NOT EXISTS idx_subscriptions_platform_id ON subscriptions(platform_id)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_creator_id ON subscriptions(creator_id)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_subscription_type ON subscriptions(subscription_type)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_is_account ON subscriptions(is_account)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_post_categories_unique ON post_categories(post_id, category_type)`,

	`CREATE INDEX IF NOT EXISTS idx_downloader_mapping_media_id ON downloader_mapping(media_id)`,
	`CREATE INDEX IF NOT EXISTS idx_downloader_mapping_item_source
		ON downloader_mapping(download_item_id, external_db_source)`,
}

// Migrate creates the schema if it does not already exist and seeds the
// bootstrap platform list on first run. Platforms are immutable afterward:
// this only inserts rows that are missing by name.
func Migrate(ctx context.Context, db *DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}

	for _, p := range models.BootstrapPlatforms {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO platforms (name, display_name, base_url) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO NOTHING`,
			p.Name, p.DisplayName, p.BaseURL); err != nil {
			return fmt.Errorf("seed platform %s: %w", p.Name, err)
		}
	}

	return tx.Commit()
}
