package extractors

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
}

// StogramExtractor reads 4K Stogram's SQLite database.
type StogramExtractor struct {
	dbPath string
	logger *zap.Logger
}

func NewStogramExtractor(dbPath string, logger *zap.Logger) *StogramExtractor {
	return &StogramExtractor{dbPath: dbPath, logger: logger}
}

func (e *StogramExtractor) Source() string { return "4k_stogram" }

func (e *StogramExtractor) IsAvailable() bool {
	if e.dbPath == "" {
		return false
	}
	_, err := os.Stat(e.dbPath)
	return err == nil
}

func (e *StogramExtractor) open() (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", e.dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open stogram db: %w", err)
	}
	return db, nil
}

type stogramPhotoRow struct {
	id          int64
	subID       sql.NullInt64
	webURL      string
	title       string
	file        string
	ownerName   string
	ownerID     string
	createdTime sql.NullInt64
}

type stogramSubscriptionRow struct {
	subType     int
	displayName string
}

func (e *StogramExtractor) Extract(offset, limit int) ([]RawItem, error) {
	db, err := e.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	subs, err := e.loadSubscriptions(db)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT id, subscriptionId, COALESCE(web_url, ''), COALESCE(title, ''),
		       file, COALESCE(ownerName, ''), COALESCE(ownerId, ''), created_time
		FROM photos
		WHERE state = 4 AND file IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	defer rows.Close()

	// Missing files are dropped before grouping, so offset/limit index a
	// stable filtered set of posts and a zero-item return means the source
	// is exhausted.
	var all []stogramPhotoRow
	for rows.Next() {
		var r stogramPhotoRow
		if err := rows.Scan(&r.id, &r.subID, &r.webURL, &r.title, &r.file, &r.ownerName, &r.ownerID, &r.createdTime); err != nil {
			return nil, fmt.Errorf("scan photos row: %w", err)
		}
		if _, statErr := os.Stat(r.file); statErr != nil {
			e.logger.Debug("stogram source file missing, skipping", zap.String("path", r.file))
			continue
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups, order := groupStogramRowsByPost(all)
	page := paginateGroups(order, offset, limit)

	var items []RawItem
	for _, webURL := range page {
		members := groups[webURL]
		var siblings []CarouselSibling
		if len(members) > 1 {
			for i, m := range members {
				siblings = append(siblings, CarouselSibling{
					FilePath:       m.file,
					FileName:       fileNameOf(m.file),
					Order:          i,
					DownloadItemID: fmt.Sprintf("%d", m.id),
				})
			}
		}

		items = append(items, e.buildItem(members[0], siblings, subs))
	}
	return items, nil
}

func (e *StogramExtractor) loadSubscriptions(db *sql.DB) (map[int64]stogramSubscriptionRow, error) {
	rows, err := db.Query(`SELECT id, type, COALESCE(display_name, '') FROM subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]stogramSubscriptionRow)
	for rows.Next() {
		var id int64
		var s stogramSubscriptionRow
		if err := rows.Scan(&id, &s.subType, &s.displayName); err != nil {
			return nil, fmt.Errorf("scan subscriptions row: %w", err)
		}
		out[id] = s
	}
	return out, rows.Err()
}

func (e *StogramExtractor) buildItem(m stogramPhotoRow, siblings []CarouselSibling, subs map[int64]stogramSubscriptionRow) RawItem {
	isVideo := videoExtensions[strings.ToLower(extensionOf(m.file))]

	item := RawItem{
		FilePath:         m.file,
		FileName:         fileNameOf(m.file),
		Platform:         "instagram",
		PostURL:          m.webURL,
		Title:            m.title,
		Creator:          CreatorHint{Name: m.ownerName, PlatformCreatorID: m.ownerName},
		CarouselSiblings: siblings,
		CategoryHint:     stogramListType(m.file),
		DownloadItemID:   fmt.Sprintf("%d", m.id),
		ExternalDBSource: e.Source(),
		IsVideo:          isVideo,
	}
	if m.createdTime.Valid {
		t := time.Unix(m.createdTime.Int64, 0)
		item.PublicationDate = &t
	}
	if m.subID.Valid {
		item.Subscription = resolveStogramSubscription(subs[m.subID.Int64], m.file)
	}
	return item
}

func resolveStogramSubscription(sub stogramSubscriptionRow, filePath string) SubscriptionHint {
	name := sub.displayName
	switch sub.subType {
	case 1:
		name = strings.TrimSuffix(name, " - saved")
		return SubscriptionHint{Name: name, Type: "account", IsAccount: true, OwnerName: name, ListType: stogramListType(filePath)}
	case 2:
		return SubscriptionHint{Name: name, Type: "hashtag", ListType: "hashtag"}
	case 3:
		return SubscriptionHint{Name: name, Type: "location", ListType: "location"}
	case 4:
		name = strings.TrimSuffix(name, " - saved")
		return SubscriptionHint{Name: name, Type: "saved", ListType: "saved"}
	default:
		return SubscriptionHint{}
	}
}

func stogramListType(filePath string) string {
	switch {
	case strings.Contains(filePath, "/reels/"):
		return "reels"
	case strings.Contains(filePath, "/highlights/"):
		return "highlights"
	case strings.Contains(filePath, "/story/"):
		return "story"
	case strings.Contains(filePath, "/tagged/"):
		return "tagged"
	default:
		return "feed"
	}
}

func groupStogramRowsByPost(rows []stogramPhotoRow) (map[string][]stogramPhotoRow, []string) {
	groups := make(map[string][]stogramPhotoRow)
	var order []string
	for _, r := range rows {
		key := r.webURL
		if key == "" {
			key = fmt.Sprintf("__no_url_%d", r.id)
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	return groups, order
}

func extensionOf(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx == -1 {
		return ""
	}
	return path[idx:]
}
