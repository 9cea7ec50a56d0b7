// Package extractors implements the four source extractors: 4K Video
// Downloader+, 4K Tokkit, 4K Stogram and the organized-folders filesystem
// layout. Each extractor reads its
// source read-only and yields RawItems for the normalization engine.
package extractors

import "time"

// CarouselSibling is one ordered member of a multi-media post.
type CarouselSibling struct {
	FilePath       string
	FileName       string
	Order          int
	DownloadItemID string
}

// CreatorHint carries what an extractor could determine about the creator
// behind a RawItem, for resolution by the normalization engine.
type CreatorHint struct {
	Name              string
	URL               string
	PlatformCreatorID string
}

// SubscriptionHint carries what an extractor could determine about the
// subscription (playlist/account/hashtag/...) a RawItem belongs to.
type SubscriptionHint struct {
	Name         string
	Type         string
	URL          string
	ExternalUUID string
	IsAccount    bool
	ListType     string
	// OwnerName is the account holder the subscription belongs to, when it
	// differs from the post's creator (e.g. a liked list collects other
	// creators' posts but belongs to the list owner).
	OwnerName string
}

// RawItem is the common currency produced by every extractor.
type RawItem struct {
	FilePath          string
	FileName          string
	Platform          string
	PostID            string
	PostURL           string
	Title             string
	TitleFromFilename bool
	Creator           CreatorHint
	Subscription      SubscriptionHint
	CarouselSiblings  []CarouselSibling
	CategoryHint      string
	PublicationDate   *time.Time
	DownloadDate      *time.Time
	DownloadItemID    string
	ExternalDBSource  string
	IsVideo           bool
	DurationSeconds   *float64
	Width             *int
	Height            *int
}

// Extractor is implemented by every source reader in this package.
type Extractor interface {
	// Extract yields up to limit items starting at offset, preserving
	// carousel integrity (a limited query still returns every sibling of
	// any carousel it touches).
	Extract(offset, limit int) ([]RawItem, error)
	// IsAvailable reports whether the underlying source can currently be
	// read (e.g. the SQLite file or folder exists).
	IsAvailable() bool
	// Source names the external_db_source tag written to downloader_mapping.
	Source() string
}
