package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is an ordered set of unique strings, persisted as a JSON array.
// Used for detected_characters/final_characters: insertion order
// is preserved and duplicates are dropped on Add, since the column is
// documented as "ordered set of unique strings" rather than a plain list.
type StringList []string

// Add appends value if it is not already present, preserving order.
func (l *StringList) Add(value string) {
	for _, existing := range *l {
		if existing == value {
			return
		}
	}
	*l = append(*l, value)
}

// Value implements driver.Valuer, serializing the list as a JSON array.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner, deserializing a JSON array column.
func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported scan type %T for StringList", src)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("unmarshal string list: %w", err)
	}
	*l = StringList(out)
	return nil
}

// Media is a single file attached to a Post. Exactly one media per post has
// IsPrimary=true, namely the one with the smallest CarouselOrder.
type Media struct {
	ID                       int64            `json:"id" db:"id"`
	PostID                   int64            `json:"post_id" db:"post_id"`
	FilePath                 string           `json:"file_path" db:"file_path"`
	FileName                 string           `json:"file_name" db:"file_name"`
	ThumbnailPath            *string          `json:"thumbnail_path" db:"thumbnail_path"`
	FileSize                 *int64           `json:"file_size" db:"file_size"`
	DurationSeconds          *float64         `json:"duration_seconds" db:"duration_seconds"`
	MediaType                MediaType        `json:"media_type" db:"media_type"`
	ResolutionWidth          *int             `json:"resolution_width" db:"resolution_width"`
	ResolutionHeight         *int             `json:"resolution_height" db:"resolution_height"`
	FPS                      *float64         `json:"fps" db:"fps"`
	CarouselOrder            int              `json:"carousel_order" db:"carousel_order"`
	IsPrimary                bool             `json:"is_primary" db:"is_primary"`
	DetectedMusic            *string          `json:"detected_music" db:"detected_music"`
	DetectedMusicArtist      *string          `json:"detected_music_artist" db:"detected_music_artist"`
	DetectedMusicConfidence  *float64         `json:"detected_music_confidence" db:"detected_music_confidence"`
	DetectedCharacters       StringList       `json:"detected_characters" db:"detected_characters"`
	MusicSource              *MusicSource     `json:"music_source" db:"music_source"`
	FinalMusic               *string          `json:"final_music" db:"final_music"`
	FinalMusicArtist         *string          `json:"final_music_artist" db:"final_music_artist"`
	FinalCharacters          StringList       `json:"final_characters" db:"final_characters"`
	DifficultyLevel          *DifficultyLevel `json:"difficulty_level" db:"difficulty_level"`
	EditStatus               EditStatus       `json:"edit_status" db:"edit_status"`
	EditedVideoPath          *string          `json:"edited_video_path" db:"edited_video_path"`
	Notes                    *string          `json:"notes" db:"notes"`
	ProcessingStatus         ProcessingStatus `json:"processing_status" db:"processing_status"`
}

// DownloaderMapping traces a Media row back to the external downloader item
// it was ingested from. One mapping per (media, external_db_source) pair.
type DownloaderMapping struct {
	ID               int64            `json:"id" db:"id"`
	MediaID          int64            `json:"media_id" db:"media_id"`
	DownloadItemID   string           `json:"download_item_id" db:"download_item_id"`
	ExternalDBSource ExternalDBSource `json:"external_db_source" db:"external_db_source"`
	IsCarouselItem   bool             `json:"is_carousel_item" db:"is_carousel_item"`
	CarouselOrder    *int             `json:"carousel_order" db:"carousel_order"`
	CarouselBaseID   *string          `json:"carousel_base_id" db:"carousel_base_id"`
}
