package normalize

import (
	"github.com/zidane0ma/tagflow/internal/extractors"
	"github.com/zidane0ma/tagflow/internal/storage"
	"github.com/zidane0ma/tagflow/models"
)

// deriveCategories derives the platform-specific post categories.
// For YouTube, mediaList[0] (the is_primary member) decides the
// shorts-vs-videos split through its resolution and duration.
func deriveCategories(item extractors.RawItem, mediaList []storage.MediaInput) []models.CategoryType {
	switch item.Platform {
	case "youtube":
		if isShort(mediaList) {
			return []models.CategoryType{models.CategoryShorts}
		}
		return []models.CategoryType{models.CategoryVideos}
	case "tiktok":
		return []models.CategoryType{models.CategoryVideos}
	case "instagram":
		return []models.CategoryType{instagramCategory(item.CategoryHint)}
	default:
		return []models.CategoryType{models.CategoryVideos}
	}
}

// isShort reports a vertical video no longer than 60 seconds.
func isShort(mediaList []storage.MediaInput) bool {
	if len(mediaList) == 0 {
		return false
	}
	primary := mediaList[0]
	if primary.ResolutionWidth == nil || primary.ResolutionHeight == nil || primary.DurationSeconds == nil {
		return false
	}
	vertical := *primary.ResolutionHeight > *primary.ResolutionWidth
	return vertical && *primary.DurationSeconds <= 60
}

// instagramCategory maps the list-type hint extracted by the Stogram
// extractor onto the Instagram category set.
func instagramCategory(hint string) models.CategoryType {
	switch hint {
	case "reels":
		return models.CategoryReels
	case "stories", "story":
		return models.CategoryStories
	case "highlights":
		return models.CategoryHighlights
	case "tagged":
		return models.CategoryTagged
	default:
		return models.CategoryFeed
	}
}
