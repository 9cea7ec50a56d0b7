package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zidane0ma/tagflow/models"
)

// PlatformIDByName resolves a platform's id from its bootstrap-seeded name.
// Unknown names are fatal for the caller.
func (s *Store) PlatformIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.timeQuery(ctx, "platform_id_by_name", "SELECT id FROM platforms WHERE name = ?", func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx, `SELECT id FROM platforms WHERE name = ?`, name).Scan(&id)
		if err == sql.ErrNoRows {
			return fmt.Errorf("unknown platform %q", name)
		}
		if err != nil {
			return fmt.Errorf("lookup platform %q: %w", name, err)
		}
		return nil
	})
	return id, err
}

// FindCreatorByPlatformID looks up a creator by (platform, platform_creator_id).
func (s *Store) FindCreatorByPlatformID(ctx context.Context, platformID int64, platformCreatorID string) (*models.Creator, error) {
	return s.queryOneCreator(ctx, "find_creator_by_platform_id",
		`SELECT id, name, platform_id, parent_creator_id, is_primary, alias_type,
		        platform_creator_id, profile_url, creator_name_source, created_at
		 FROM creators WHERE platform_id = ? AND platform_creator_id = ?`,
		platformID, platformCreatorID)
}

// FindCreatorByNameAndURL looks up a creator by (platform, name, profile_url).
func (s *Store) FindCreatorByNameAndURL(ctx context.Context, platformID int64, name, profileURL string) (*models.Creator, error) {
	return s.queryOneCreator(ctx, "find_creator_by_name_url",
		`SELECT id, name, platform_id, parent_creator_id, is_primary, alias_type,
		        platform_creator_id, profile_url, creator_name_source, created_at
		 FROM creators WHERE platform_id = ? AND name = ? AND profile_url = ?`,
		platformID, name, profileURL)
}

// FindCreatorsByName returns every creator sharing (platform, name), oldest
// first, used to detect a same-name/different-URL variation.
func (s *Store) FindCreatorsByName(ctx context.Context, platformID int64, name string) ([]models.Creator, error) {
	var out []models.Creator
	err := s.timeQuery(ctx, "find_creators_by_name", "SELECT ... FROM creators WHERE platform_id = ? AND name = ?", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, name, platform_id, parent_creator_id, is_primary, alias_type,
			        platform_creator_id, profile_url, creator_name_source, created_at
			 FROM creators WHERE platform_id = ? AND name = ? ORDER BY created_at ASC`,
			platformID, name)
		if err != nil {
			return fmt.Errorf("query creators by name: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCreator(rows)
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) queryOneCreator(ctx context.Context, queryName, query string, args ...any) (*models.Creator, error) {
	var out *models.Creator
	err := s.timeQuery(ctx, queryName, query, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, query, args...)
		c, err := scanCreator(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		out = &c
		return nil
	})
	return out, err
}

func scanCreator(row interface{ Scan(...any) error }) (models.Creator, error) {
	var c models.Creator
	err := row.Scan(&c.ID, &c.Name, &c.PlatformID, &c.ParentCreatorID, &c.IsPrimary, &c.AliasType,
		&c.PlatformCreatorID, &c.ProfileURL, &c.CreatorNameSource, &c.CreatedAt)
	if err != nil {
		return c, fmt.Errorf("scan creator row: %w", err)
	}
	return c, nil
}

// CreateCreator inserts a new creator row and returns its id.
func (s *Store) CreateCreator(ctx context.Context, c models.Creator) (int64, error) {
	var id int64
	err := s.timeQuery(ctx, "create_creator", "INSERT INTO creators ...", func(ctx context.Context) error {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now()
		}
		newID, err := s.db.InsertReturningID(ctx,
			`INSERT INTO creators (
				name, platform_id, parent_creator_id, is_primary, alias_type,
				platform_creator_id, profile_url, creator_name_source, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Name, c.PlatformID, c.ParentCreatorID, c.IsPrimary, c.AliasType,
			c.PlatformCreatorID, c.ProfileURL, c.CreatorNameSource, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert creator %q: %w", c.Name, err)
		}
		id = newID
		return nil
	})
	return id, err
}

// AddCreatorURL records a supplemental per-platform URL for a creator.
func (s *Store) AddCreatorURL(ctx context.Context, creatorID int64, platform, url string) error {
	return s.timeQuery(ctx, "add_creator_url", "INSERT INTO creator_urls ...", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO creator_urls (creator_id, platform, url) VALUES (?, ?, ?)
			 ON CONFLICT(creator_id, platform, url) DO NOTHING`,
			creatorID, platform, url)
		if err != nil {
			return fmt.Errorf("add creator url: %w", err)
		}
		return nil
	})
}

// FindSubscription looks up a subscription by (name, platform, type).
func (s *Store) FindSubscription(ctx context.Context, platformID int64, name string, subType models.SubscriptionType) (*models.Subscription, error) {
	var out *models.Subscription
	err := s.timeQuery(ctx, "find_subscription", "SELECT ... FROM subscriptions WHERE ...", func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, name, platform_id, subscription_type, is_account, creator_id,
			        subscription_url, external_uuid, created_at
			 FROM subscriptions WHERE platform_id = ? AND name = ? AND subscription_type = ?`,
			platformID, name, subType)
		sub, err := scanSubscription(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		out = &sub
		return nil
	})
	return out, err
}

func scanSubscription(row interface{ Scan(...any) error }) (models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(&sub.ID, &sub.Name, &sub.PlatformID, &sub.SubscriptionType, &sub.IsAccount,
		&sub.CreatorID, &sub.SubscriptionURL, &sub.ExternalUUID, &sub.CreatedAt)
	if err != nil {
		return sub, fmt.Errorf("scan subscription row: %w", err)
	}
	return sub, nil
}

// CreateSubscription inserts a new subscription row and returns its id.
func (s *Store) CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	if err := sub.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.timeQuery(ctx, "create_subscription", "INSERT INTO subscriptions ...", func(ctx context.Context) error {
		if sub.CreatedAt.IsZero() {
			sub.CreatedAt = time.Now()
		}
		newID, err := s.db.InsertReturningID(ctx,
			`INSERT INTO subscriptions (
				name, platform_id, subscription_type, is_account, creator_id,
				subscription_url, external_uuid, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sub.Name, sub.PlatformID, sub.SubscriptionType, sub.IsAccount, sub.CreatorID,
			sub.SubscriptionURL, sub.ExternalUUID, sub.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert subscription %q: %w", sub.Name, err)
		}
		id = newID
		return nil
	})
	return id, err
}
