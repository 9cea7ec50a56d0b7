package extractors

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var metadataTypeNames = map[int]string{
	0: "creator_name",
	1: "creator_url",
	3: "playlist_name",
	4: "playlist_url",
	5: "channel_name",
	6: "channel_url",
	7: "subscription_info",
}

var serviceNameToPlatform = map[string]string{
	"youtube":     "youtube",
	"facebook":    "facebook",
	"twitter":     "twitter",
	"x":           "twitter",
	"vimeo":       "vimeo",
	"dailymotion": "dailymotion",
	"twitch":      "twitch",
	"soundcloud":  "soundcloud",
}

var resolutionCodes = map[int][2]int{
	5:  {640, 360},
	6:  {854, 480},
	7:  {1280, 720},
	8:  {1080, 1920},
	9:  {1440, 1080},
	10: {1920, 1080},
	11: {2560, 1440},
}

// VideoDownloaderExtractor reads 4K Video Downloader+'s SQLite database.
type VideoDownloaderExtractor struct {
	dbPath string
	logger *zap.Logger
}

// NewVideoDownloaderExtractor builds an extractor over a 4K Video
// Downloader+ database file; dbPath may not exist yet (IsAvailable reports
// that).
func NewVideoDownloaderExtractor(dbPath string, logger *zap.Logger) *VideoDownloaderExtractor {
	return &VideoDownloaderExtractor{dbPath: dbPath, logger: logger}
}

func (e *VideoDownloaderExtractor) Source() string { return "4k_youtube" }

func (e *VideoDownloaderExtractor) IsAvailable() bool {
	if e.dbPath == "" {
		return false
	}
	_, err := os.Stat(e.dbPath)
	return err == nil
}

func (e *VideoDownloaderExtractor) open() (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", e.dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open video downloader db: %w", err)
	}
	return db, nil
}

type downloadItemRow struct {
	id       int64
	filename string
	title    string
	duration sql.NullInt64
	service  string
	url      string
	fps      sql.NullInt64
	resCode  sql.NullInt64
}

// Extract implements Extractor.
func (e *VideoDownloaderExtractor) Extract(offset, limit int) ([]RawItem, error) {
	db, err := e.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT di.id, di.filename,
		       COALESCE(mid.title, ''), mid.duration,
		       COALESCE(ud.service_name, ''), COALESCE(ud.url, ''),
		       vi.fps, vi.resolution
		FROM download_item di
		LEFT JOIN media_item_description mid ON mid.download_item_id = di.id
		LEFT JOIN url_description ud ON ud.media_item_description_id = mid.id
		LEFT JOIN media_info mi ON mi.download_item_id = di.id
		LEFT JOIN video_info vi ON vi.media_info_id = mi.id
		ORDER BY di.id`)
	if err != nil {
		return nil, fmt.Errorf("query download_item: %w", err)
	}
	defer rows.Close()

	// Missing files are dropped before pagination, so offset/limit index a
	// stable filtered set and a zero-item return means the source is
	// exhausted.
	var surviving []downloadItemRow
	for rows.Next() {
		var r downloadItemRow
		if err := rows.Scan(&r.id, &r.filename, &r.title, &r.duration, &r.service, &r.url, &r.fps, &r.resCode); err != nil {
			return nil, fmt.Errorf("scan download_item row: %w", err)
		}
		if _, statErr := os.Stat(r.filename); statErr != nil {
			e.logger.Debug("video downloader source file missing, skipping",
				zap.String("path", r.filename), zap.String("post_url", r.url))
			continue
		}
		surviving = append(surviving, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if offset >= len(surviving) {
		return nil, nil
	}
	end := len(surviving)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	var items []RawItem
	for _, r := range surviving[offset:end] {
		metadata, err := e.loadMetadata(db, r.id)
		if err != nil {
			return nil, err
		}
		items = append(items, e.buildItem(r, metadata))
	}
	return items, nil
}

func (e *VideoDownloaderExtractor) loadMetadata(db *sql.DB, downloadItemID int64) (map[string]string, error) {
	rows, err := db.Query(`SELECT type, value FROM media_item_metadata WHERE download_item_id = ?`, downloadItemID)
	if err != nil {
		return nil, fmt.Errorf("query media_item_metadata: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var typ int
		var value string
		if err := rows.Scan(&typ, &value); err != nil {
			return nil, fmt.Errorf("scan media_item_metadata row: %w", err)
		}
		if name, ok := metadataTypeNames[typ]; ok {
			out[name] = value
		}
	}
	return out, rows.Err()
}

func (e *VideoDownloaderExtractor) buildItem(r downloadItemRow, meta map[string]string) RawItem {
	platform := normalizeServiceName(r.service)

	width, height := decodeResolution(int(r.resCode.Int64))
	durationSeconds := float64(r.duration.Int64) / 1000.0
	var durationPtr *float64
	if r.duration.Valid {
		durationPtr = &durationSeconds
	}

	category := "videos"
	if width != nil && height != nil && *height > *width && durationPtr != nil && *durationPtr <= 60 {
		category = "shorts"
	}

	item := RawItem{
		FilePath:         r.filename,
		FileName:         fileNameOf(r.filename),
		Platform:         platform,
		Title:            r.title,
		PostURL:          r.url,
		CategoryHint:     category,
		DownloadItemID:   strconv.FormatInt(r.id, 10),
		ExternalDBSource: e.Source(),
		IsVideo:          true,
		DurationSeconds:  durationPtr,
		Width:            width,
		Height:           height,
	}

	if creatorURL, ok := meta["creator_url"]; ok {
		item.Creator.URL = creatorURL
		item.Creator.PlatformCreatorID = extractPlatformCreatorID(platform, creatorURL)
	}
	if creatorName, ok := meta["creator_name"]; ok {
		item.Creator.Name = creatorName
	}

	item.Subscription = resolveVideoDownloaderSubscription(meta)

	return item
}

func resolveVideoDownloaderSubscription(meta map[string]string) SubscriptionHint {
	if playlistName, ok := meta["playlist_name"]; ok {
		name := canonicalizePlaylistName(playlistName)
		return SubscriptionHint{
			Name:      name,
			Type:      "playlist",
			IsAccount: true,
			URL:       meta["playlist_url"],
		}
	}
	channelName, hasChannel := meta["channel_name"]
	_, hasSubInfo := meta["subscription_info"]
	if hasChannel && hasSubInfo {
		return SubscriptionHint{
			Name:      channelName,
			Type:      "account",
			IsAccount: true,
			OwnerName: channelName,
			URL:       meta["channel_url"],
		}
	}
	return SubscriptionHint{}
}

func canonicalizePlaylistName(name string) string {
	switch name {
	case "Liked videos", "Videos que me gustan":
		return "Liked videos"
	}
	if strings.HasPrefix(strings.ToLower(name), "watch later") {
		return "Watch Later"
	}
	return name
}

func normalizeServiceName(service string) string {
	key := strings.ToLower(strings.TrimSpace(service))
	if key == "bilibili" || strings.HasPrefix(key, "bilibili/video") {
		return "bilibili"
	}
	if platform, ok := serviceNameToPlatform[key]; ok {
		return platform
	}
	return key
}

func decodeResolution(code int) (*int, *int) {
	dims, ok := resolutionCodes[code]
	if !ok {
		return nil, nil
	}
	w, h := dims[0], dims[1]
	return &w, &h
}

// extractPlatformCreatorID pulls the handle/segment identifying a creator
// out of their profile URL: the @-prefixed handle for YouTube/TikTok, the
// bare first path segment for Instagram.
func extractPlatformCreatorID(platform, profileURL string) string {
	switch platform {
	case "youtube", "tiktok":
		idx := strings.LastIndex(profileURL, "@")
		if idx == -1 {
			return ""
		}
		rest := profileURL[idx+1:]
		if cut := strings.IndexAny(rest, "/?"); cut != -1 {
			rest = rest[:cut]
		}
		if rest == "" {
			return ""
		}
		return "@" + rest
	case "instagram":
		trimmed := strings.TrimPrefix(profileURL, "https://")
		trimmed = strings.TrimPrefix(trimmed, "http://")
		parts := strings.SplitN(trimmed, "/", 2)
		if len(parts) < 2 {
			return ""
		}
		segments := strings.Split(strings.Trim(parts[1], "/"), "/")
		if len(segments) == 0 {
			return ""
		}
		return segments[0]
	default:
		return ""
	}
}

func fileNameOf(path string) string {
	idx := strings.LastIndexAny(path, `/\`)
	if idx == -1 {
		return path
	}
	return path[idx+1:]
}
