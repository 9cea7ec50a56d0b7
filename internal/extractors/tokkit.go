package extractors

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// TokkitExtractor reads 4K Tokkit's SQLite database.
type TokkitExtractor struct {
	dbPath   string
	basePath string
	logger   *zap.Logger
}

// NewTokkitExtractor builds an extractor over a 4K Tokkit database file.
// basePath is prepended to relativePath when reconstructing absolute paths.
func NewTokkitExtractor(dbPath, basePath string, logger *zap.Logger) *TokkitExtractor {
	return &TokkitExtractor{dbPath: dbPath, basePath: basePath, logger: logger}
}

func (e *TokkitExtractor) Source() string { return "4k_tokkit" }

func (e *TokkitExtractor) IsAvailable() bool {
	if e.dbPath == "" {
		return false
	}
	_, err := os.Stat(e.dbPath)
	return err == nil
}

func (e *TokkitExtractor) open() (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", e.dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open tokkit db: %w", err)
	}
	return db, nil
}

type tokkitRow struct {
	databaseID   []byte
	subID        sql.NullInt64
	tiktokID     string
	author       string
	description  string
	relativePath string
	mediaType    int
}

type subscriptionRow struct {
	subType int
	name    string
	extID   string
}

// Extract implements Extractor. Carousel integrity is preserved by grouping
// rows by carousel base id before applying offset/limit to whole groups.
func (e *TokkitExtractor) Extract(offset, limit int) ([]RawItem, error) {
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
		SELECT databaseId, subscriptionDatabaseId, id, COALESCE(authorName, ''),
		       COALESCE(description, ''), relativePath, MediaType
		FROM MediaItems
		WHERE downloaded = 1 AND relativePath IS NOT NULL AND MediaType IN (2, 3)
		ORDER BY databaseId`)
	if err != nil {
		return nil, fmt.Errorf("query MediaItems: %w", err)
	}
	defer rows.Close()

	// Missing files are dropped before grouping, so offset/limit index a
	// stable filtered set of carousel bases and a zero-item return means the
	// source is exhausted.
	var all []tokkitRow
	for rows.Next() {
		var r tokkitRow
		if err := rows.Scan(&r.databaseID, &r.subID, &r.tiktokID, &r.author, &r.description, &r.relativePath, &r.mediaType); err != nil {
			return nil, fmt.Errorf("scan MediaItems row: %w", err)
		}
		if _, statErr := os.Stat(e.absolutePath(r.relativePath)); statErr != nil {
			e.logger.Debug("tokkit source file missing, skipping",
				zap.String("path", e.absolutePath(r.relativePath)))
			continue
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	groups, order := groupTokkitRowsByCarouselBase(all)
	page := paginateGroups(order, offset, limit)

	var items []RawItem
	for _, base := range page {
		members := groups[base]
		sort.SliceStable(members, func(i, j int) bool {
			_, oi := tokkitCarouselOrder(members[i].tiktokID)
			_, oj := tokkitCarouselOrder(members[j].tiktokID)
			return oi < oj
		})

		var siblings []CarouselSibling
		if len(members) > 1 {
			for _, m := range members {
				_, order := tokkitCarouselOrder(m.tiktokID)
				siblings = append(siblings, CarouselSibling{
					FilePath:       e.absolutePath(m.relativePath),
					FileName:       fileNameOf(m.relativePath),
					Order:          order,
					DownloadItemID: fmt.Sprintf("%x", m.databaseID),
				})
			}
		}

		items = append(items, e.buildItem(members[0], siblings, subs))
	}
	return items, nil
}

func (e *TokkitExtractor) absolutePath(relativePath string) string {
	clean := strings.TrimLeft(relativePath, `/\`)
	if e.basePath == "" {
		return clean
	}
	return strings.TrimRight(e.basePath, `/\`) + "/" + clean
}

func (e *TokkitExtractor) loadSubscriptions(db *sql.DB) (map[int64]subscriptionRow, error) {
	rows, err := db.Query(`SELECT databaseId, type, COALESCE(name, ''), COALESCE(id, '') FROM Subscriptions`)
	if err != nil {
		return nil, fmt.Errorf("query Subscriptions: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]subscriptionRow)
	for rows.Next() {
		var id int64
		var s subscriptionRow
		if err := rows.Scan(&id, &s.subType, &s.name, &s.extID); err != nil {
			return nil, fmt.Errorf("scan Subscriptions row: %w", err)
		}
		out[id] = s
	}
	return out, rows.Err()
}

func (e *TokkitExtractor) buildItem(m tokkitRow, siblings []CarouselSibling, subs map[int64]subscriptionRow) RawItem {
	isVideo := m.mediaType == 2
	cleanID, _ := tokkitCarouselOrder(m.tiktokID)

	kind := "video"
	if !isVideo {
		kind = "photo"
	}
	postURL := fmt.Sprintf("https://www.tiktok.com/@%s/%s/%s", m.author, kind, cleanID)

	item := RawItem{
		FilePath:         e.absolutePath(m.relativePath),
		FileName:         fileNameOf(m.relativePath),
		Platform:         "tiktok",
		PostID:           cleanID,
		PostURL:          postURL,
		Title:            m.description,
		Creator:          CreatorHint{Name: m.author, PlatformCreatorID: "@" + m.author},
		CarouselSiblings: siblings,
		CategoryHint:     "videos",
		DownloadItemID:   fmt.Sprintf("%x", m.databaseID),
		ExternalDBSource: e.Source(),
		IsVideo:          isVideo,
	}

	if m.subID.Valid {
		item.Subscription = resolveTokkitSubscription(subs[m.subID.Int64], m.relativePath)
	}
	return item
}

// tokkitCarouselOrder splits a tiktok_id of the form "<base>_index_<n>" into
// the URL-facing clean id and the numeric carousel order (0 when absent).
func tokkitCarouselOrder(tiktokID string) (cleanID string, order int) {
	idx := strings.Index(tiktokID, "_index_")
	if idx == -1 {
		return tiktokID, 0
	}
	cleanID = tiktokID[:idx]
	rest := tiktokID[idx+len("_index_"):]
	digits := rest
	for i, r := range rest {
		if r < '0' || r > '9' {
			digits = rest[:i]
			break
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return cleanID, 0
	}
	return cleanID, n
}

func carouselBaseID(tiktokID string) string {
	base, _ := tokkitCarouselOrder(tiktokID)
	return base
}

func groupTokkitRowsByCarouselBase(rows []tokkitRow) (map[string][]tokkitRow, []string) {
	groups := make(map[string][]tokkitRow)
	var order []string
	for _, r := range rows {
		base := carouselBaseID(r.tiktokID)
		if _, seen := groups[base]; !seen {
			order = append(order, base)
		}
		groups[base] = append(groups[base], r)
	}
	return groups, order
}

func paginateGroups(order []string, offset, limit int) []string {
	if offset >= len(order) {
		return nil
	}
	end := offset + limit
	if end > len(order) || limit <= 0 {
		end = len(order)
	}
	return order[offset:end]
}

func resolveTokkitSubscription(sub subscriptionRow, relativePath string) SubscriptionHint {
	switch sub.subType {
	case 1:
		hint := SubscriptionHint{Name: sub.name, Type: "account", IsAccount: true, OwnerName: sub.name}
		switch {
		case strings.Contains(relativePath, "/liked/"):
			hint.ListType = "liked"
			hint.Name += " - Liked"
		case strings.Contains(relativePath, "/favorites/"):
			hint.ListType = "favorites"
			hint.Name += " - Favorites"
		default:
			hint.ListType = "feed"
		}
		return hint
	case 2:
		return SubscriptionHint{
			Name:     sub.name,
			Type:     "hashtag",
			URL:      fmt.Sprintf("https://www.tiktok.com/tag/%s", sub.name),
			ListType: "hashtag",
		}
	case 3:
		slug := strings.ReplaceAll(sub.name, " ", "-")
		return SubscriptionHint{
			Name:         slug,
			Type:         "music",
			ExternalUUID: sub.extID,
			ListType:     "music",
		}
	default:
		return SubscriptionHint{}
	}
}

// MarkMissing flips downloaded=0 for the given databaseIds in the Tokkit
// database, the sole outbound mutation this system ever makes to a
// downloader DB. When dryRun is true no write is issued and the would-be
// affected count is returned.
func (e *TokkitExtractor) MarkMissing(ctx context.Context, ids [][]byte, dryRun bool) (int, error) {
	if dryRun {
		return len(ids), nil
	}
	db, err := sql.Open("sqlite3", e.dbPath)
	if err != nil {
		return 0, fmt.Errorf("open tokkit db for write: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tokkit tx: %w", err)
	}
	defer tx.Rollback()

	var affected int
	for _, id := range ids {
		result, err := tx.ExecContext(ctx, `UPDATE MediaItems SET downloaded = 0 WHERE databaseId = ?`, id)
		if err != nil {
			return affected, fmt.Errorf("mark missing: %w", err)
		}
		n, _ := result.RowsAffected()
		affected += int(n)
	}
	if err := tx.Commit(); err != nil {
		return affected, fmt.Errorf("commit mark missing: %w", err)
	}
	return affected, nil
}
