package models

import "time"

// Subscription is the logical source a post was collected from: an
// account feed, a playlist, a hashtag, a saved/liked list, and so on.
type Subscription struct {
	ID               int64            `json:"id" db:"id"`
	Name             string           `json:"name" db:"name"`
	PlatformID       int64            `json:"platform_id" db:"platform_id"`
	SubscriptionType SubscriptionType `json:"subscription_type" db:"subscription_type"`
	IsAccount        bool             `json:"is_account" db:"is_account"`
	CreatorID        *int64           `json:"creator_id" db:"creator_id"`
	SubscriptionURL  *string          `json:"subscription_url" db:"subscription_url"`
	ExternalUUID     *string          `json:"external_uuid" db:"external_uuid"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
}

// Validate enforces that an account subscription belongs to a creator.
// Playlists are exempt: their ownership cannot be reliably inferred from the
// downloader data, so they carry is_account=true with no creator.
func (s *Subscription) Validate() error {
	if s.IsAccount && s.SubscriptionType != SubscriptionPlaylist && s.CreatorID == nil {
		return InvariantError("account subscription must have a creator")
	}
	return nil
}
