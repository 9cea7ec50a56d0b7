package models

// AliasType classifies a creator relative to its primary account.
type AliasType string

const (
	AliasMain      AliasType = "main"
	AliasAlias     AliasType = "alias"
	AliasVariation AliasType = "variation"
)

// CreatorNameSource records where a creator's display name came from.
type CreatorNameSource string

const (
	CreatorSourceDB       CreatorNameSource = "db"
	CreatorSourceFolder   CreatorNameSource = "folder"
	CreatorSourceAPI      CreatorNameSource = "api"
	CreatorSourceScraping CreatorNameSource = "scraping"
	CreatorSourceManual   CreatorNameSource = "manual"
)

// SubscriptionType is the logical source a post was collected from.
type SubscriptionType string

const (
	SubscriptionAccount  SubscriptionType = "account"
	SubscriptionPlaylist SubscriptionType = "playlist"
	SubscriptionHashtag  SubscriptionType = "hashtag"
	SubscriptionLocation SubscriptionType = "location"
	SubscriptionMusic    SubscriptionType = "music"
	SubscriptionSearch   SubscriptionType = "search"
	SubscriptionLiked    SubscriptionType = "liked"
	SubscriptionSaved    SubscriptionType = "saved"
	SubscriptionFolder   SubscriptionType = "folder"
	SubscriptionSingle   SubscriptionType = "single"
)

// MediaType is the kind of file a Media row points to.
type MediaType string

const (
	MediaVideo MediaType = "video"
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
)

// MusicSource identifies which recognizer produced a music match.
type MusicSource string

const (
	MusicSourceYoutube  MusicSource = "youtube"
	MusicSourceSpotify  MusicSource = "spotify"
	MusicSourceACRCloud MusicSource = "acrcloud"
	MusicSourceManual   MusicSource = "manual"
)

// DifficultyLevel is a manual triage tag for edit workload.
type DifficultyLevel string

const (
	DifficultyLow    DifficultyLevel = "low"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHigh   DifficultyLevel = "high"
)

// EditStatus tracks manual editing workflow state for a media item. Unlike
// ProcessingStatus below, this enum is genuinely Spanish-named in the source
// data and is kept as-is rather than translated.
type EditStatus string

const (
	EditPending    EditStatus = "pendiente"
	EditInProgress EditStatus = "en_proceso"
	EditCompleted  EditStatus = "completado"
	EditDiscarded  EditStatus = "descartado"
)

// ProcessingStatus tracks the normalization/enrichment pipeline state of a
// media item. English is the canonical spelling; legacy Spanish values are
// mapped on read.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
	ProcessingSkipped    ProcessingStatus = "skipped"
)

// legacyProcessingStatus maps the Spanish-spelled legacy values observed in
// some source rows onto the canonical English set.
var legacyProcessingStatus = map[string]ProcessingStatus{
	"pendiente":  ProcessingPending,
	"procesando": ProcessingInProgress,
	"completado": ProcessingCompleted,
	"error":      ProcessingFailed,
}

// MapLegacyProcessingStatus normalizes a processing-status value read from
// legacy data (either spelling) onto the canonical English set.
func MapLegacyProcessingStatus(raw string) ProcessingStatus {
	if canonical, ok := legacyProcessingStatus[raw]; ok {
		return canonical
	}
	switch ProcessingStatus(raw) {
	case ProcessingPending, ProcessingInProgress, ProcessingCompleted, ProcessingFailed, ProcessingSkipped:
		return ProcessingStatus(raw)
	default:
		return ProcessingPending
	}
}

// CategoryType is a platform-specific tag attached to a post.
type CategoryType string

const (
	CategoryVideos     CategoryType = "videos"
	CategoryShorts     CategoryType = "shorts"
	CategoryFeed       CategoryType = "feed"
	CategoryReels      CategoryType = "reels"
	CategoryStories    CategoryType = "stories"
	CategoryHighlights CategoryType = "highlights"
	CategoryTagged     CategoryType = "tagged"
	CategoryPlaylist   CategoryType = "playlist"
	CategoryHashtag    CategoryType = "hashtag"
	CategoryMusic      CategoryType = "music"
	CategoryLiked      CategoryType = "liked"
	CategoryFavorites  CategoryType = "favorites"
	CategorySaved      CategoryType = "saved"
	CategorySingle     CategoryType = "single"
	CategoryFolder     CategoryType = "folder"
	CategoryLocation   CategoryType = "location"
)

// ExternalDBSource identifies which third-party downloader produced a row.
type ExternalDBSource string

const (
	SourceVideoDownloader ExternalDBSource = "4k_youtube"
	SourceTokkit          ExternalDBSource = "4k_tokkit"
	SourceStogram         ExternalDBSource = "4k_stogram"
)
