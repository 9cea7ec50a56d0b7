package models

import "time"

// Post is a unit of content published by a creator on a platform. A post may
// bundle multiple media (a carousel); carousel_count and is_carousel are
// derived from the attached media rather than set independently.
type Post struct {
	ID                        int64      `json:"id" db:"id"`
	PlatformID                int64      `json:"platform_id" db:"platform_id"`
	PlatformPostID            *string    `json:"platform_post_id" db:"platform_post_id"`
	PostURL                   *string    `json:"post_url" db:"post_url"`
	TitlePost                 *string    `json:"title_post" db:"title_post"`
	UseFilename               bool       `json:"use_filename" db:"use_filename"`
	CreatorID                 *int64     `json:"creator_id" db:"creator_id"`
	SubscriptionID            *int64     `json:"subscription_id" db:"subscription_id"`
	PublicationDate           *time.Time `json:"publication_date" db:"publication_date"`
	PublicationDateSource     *string    `json:"publication_date_source" db:"publication_date_source"`
	PublicationDateConfidence *int       `json:"publication_date_confidence" db:"publication_date_confidence"`
	DownloadDate              *time.Time `json:"download_date" db:"download_date"`
	IsCarousel                bool       `json:"is_carousel" db:"is_carousel"`
	CarouselCount             int        `json:"carousel_count" db:"carousel_count"`
	CreatedAt                 time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt                 *time.Time `json:"deleted_at" db:"deleted_at"`
	DeletedBy                 *string    `json:"deleted_by" db:"deleted_by"`
	DeletionReason            *string    `json:"deletion_reason" db:"deletion_reason"`
}

// Active reports whether the post has not been soft-deleted.
func (p *Post) Active() bool { return p.DeletedAt == nil }

// SetCarouselFields derives carousel_count and is_carousel from the number
// of media rows attached to the post.
func (p *Post) SetCarouselFields(mediaCount int) {
	p.CarouselCount = mediaCount
	p.IsCarousel = mediaCount > 1
}

// PostCategory is a platform-specific tag attached to a post. Uniqueness is
// enforced on (post_id, category_type); conflicting inserts are ignored.
type PostCategory struct {
	ID           int64        `json:"id" db:"id"`
	PostID       int64        `json:"post_id" db:"post_id"`
	CategoryType CategoryType `json:"category_type" db:"category_type"`
}

// SoftDelete marks the post as deleted without removing its row.
func (p *Post) SoftDelete(now time.Time, by, reason string) {
	p.DeletedAt = &now
	p.DeletedBy = &by
	p.DeletionReason = &reason
}

// Restore clears soft-delete bookkeeping.
func (p *Post) Restore() {
	p.DeletedAt = nil
	p.DeletedBy = nil
	p.DeletionReason = nil
}
