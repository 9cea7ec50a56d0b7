package extractors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTokkitCarouselOrderParsing(t *testing.T) {
	clean, order := tokkitCarouselOrder("7301234567890_index_2_3")
	require.Equal(t, "7301234567890", clean)
	require.Equal(t, 2, order)

	clean, order = tokkitCarouselOrder("7301234567890")
	require.Equal(t, "7301234567890", clean)
	require.Equal(t, 0, order)
}

func TestGroupTokkitRowsByCarouselBase(t *testing.T) {
	rows := []tokkitRow{
		{tiktokID: "B1_index_0_3"},
		{tiktokID: "B1_index_1_3"},
		{tiktokID: "B1_index_2_3"},
		{tiktokID: "B2_index_0_2"},
		{tiktokID: "B2_index_1_2"},
		{tiktokID: "S"},
	}
	groups, order := groupTokkitRowsByCarouselBase(rows)
	require.Equal(t, []string{"B1", "B2", "S"}, order)
	require.Len(t, groups["B1"], 3)
	require.Len(t, groups["B2"], 2)
	require.Len(t, groups["S"], 1)

	page := paginateGroups(order, 0, 2)
	require.Equal(t, []string{"B1", "B2"}, page)
	require.Nil(t, paginateGroups(order, 3, 2))
}

func TestResolveTokkitSubscriptionListTypes(t *testing.T) {
	liked := resolveTokkitSubscription(subscriptionRow{subType: 1, name: "alice"}, "/tiktok/alice/liked/v.mp4")
	require.Equal(t, "alice - Liked", liked.Name)
	require.Equal(t, "liked", liked.ListType)
	require.True(t, liked.IsAccount)

	favorites := resolveTokkitSubscription(subscriptionRow{subType: 1, name: "alice"}, "/tiktok/alice/favorites/v.mp4")
	require.Equal(t, "alice - Favorites", favorites.Name)

	feed := resolveTokkitSubscription(subscriptionRow{subType: 1, name: "alice"}, "/tiktok/alice/v.mp4")
	require.Equal(t, "feed", feed.ListType)

	hashtag := resolveTokkitSubscription(subscriptionRow{subType: 2, name: "dance"}, "")
	require.Equal(t, "hashtag", hashtag.Type)
	require.Equal(t, "https://www.tiktok.com/tag/dance", hashtag.URL)

	music := resolveTokkitSubscription(subscriptionRow{subType: 3, name: "some song", extID: "m1"}, "")
	require.Equal(t, "some-song", music.Name)
	require.Equal(t, "m1", music.ExternalUUID)
}

func TestCanonicalizePlaylistName(t *testing.T) {
	require.Equal(t, "Liked videos", canonicalizePlaylistName("Videos que me gustan"))
	require.Equal(t, "Liked videos", canonicalizePlaylistName("Liked videos"))
	require.Equal(t, "Watch Later", canonicalizePlaylistName("Watch later"))
	require.Equal(t, "My Mix", canonicalizePlaylistName("My Mix"))
}

func TestExtractPlatformCreatorID(t *testing.T) {
	require.Equal(t, "@Alice", extractPlatformCreatorID("youtube", "http://www.youtube.com/@Alice"))
	require.Equal(t, "@bob", extractPlatformCreatorID("tiktok", "https://www.tiktok.com/@bob?lang=en"))
	require.Equal(t, "carol", extractPlatformCreatorID("instagram", "https://www.instagram.com/carol/"))
	require.Empty(t, extractPlatformCreatorID("youtube", "http://www.youtube.com/channel/UC123"))
	require.Empty(t, extractPlatformCreatorID("vimeo", "https://vimeo.com/dave"))
}

func TestNormalizeServiceName(t *testing.T) {
	require.Equal(t, "twitter", normalizeServiceName("x"))
	require.Equal(t, "bilibili", normalizeServiceName("bilibili/video/tv"))
	require.Equal(t, "youtube", normalizeServiceName(" YouTube "))
}

func TestDecodeResolution(t *testing.T) {
	w, h := decodeResolution(8)
	require.NotNil(t, w)
	require.Equal(t, 1080, *w)
	require.Equal(t, 1920, *h)

	w, h = decodeResolution(99)
	require.Nil(t, w)
	require.Nil(t, h)
}

func TestCleanCreatorName(t *testing.T) {
	name, ok := cleanCreatorName("Alice_B-2.0")
	require.True(t, ok)
	require.Equal(t, "Alice_B-2.0", name)

	_, ok = cleanCreatorName("12345")
	require.False(t, ok, "pure-digit names are rejected")

	_, ok = cleanCreatorName("Downloads")
	require.False(t, ok, "generic folder names are rejected")

	_, ok = cleanCreatorName("a")
	require.False(t, ok, "too short after cleaning")

	name, ok = cleanCreatorName("Ali ce!")
	require.True(t, ok)
	require.Equal(t, "Alice", name)
}

func TestStogramListType(t *testing.T) {
	require.Equal(t, "reels", stogramListType("/ig/alice/reels/x.mp4"))
	require.Equal(t, "highlights", stogramListType("/ig/alice/highlights/x.jpg"))
	require.Equal(t, "story", stogramListType("/ig/alice/story/x.jpg"))
	require.Equal(t, "tagged", stogramListType("/ig/alice/tagged/x.jpg"))
	require.Equal(t, "feed", stogramListType("/ig/alice/x.jpg"))
}

func TestResolveStogramSubscriptionSavedNameCleaned(t *testing.T) {
	sub := resolveStogramSubscription(stogramSubscriptionRow{subType: 4, displayName: "alice - saved"}, "/ig/alice/x.jpg")
	require.Equal(t, "alice", sub.Name)
	require.Equal(t, "saved", sub.Type)
}

func TestFoldersExtractorWalksPlatformsAndCreators(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "youtube", "Alice"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "youtube", "Alice", "v1.mp4"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "youtube", "Alice", "notes.txt"), []byte("x"), 0o644))

	// An extra folder with media becomes an additional platform.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Newgrounds", "Bob"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Newgrounds", "Bob", "pic.png"), []byte("x"), 0o644))

	// A folder without any media is ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	e := NewFoldersExtractor(root, zap.NewNop())
	require.True(t, e.IsAvailable())

	items, err := e.Extract(0, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byPlatform := map[string]RawItem{}
	for _, it := range items {
		byPlatform[it.Platform] = it
	}

	yt := byPlatform["youtube"]
	require.Equal(t, "Alice", yt.Creator.Name)
	require.Equal(t, "https://www.youtube.com/@Alice", yt.Creator.URL)
	require.True(t, yt.IsVideo)
	require.True(t, yt.TitleFromFilename)
	require.Equal(t, "v1", yt.Title)

	ng := byPlatform["newgrounds"]
	require.Equal(t, "Bob", ng.Creator.Name)
	require.Empty(t, ng.Creator.URL, "no URL template for auto-detected platforms")
	require.False(t, ng.IsVideo)
}

func TestFoldersExtractorPagination(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "youtube", "Alice")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	e := NewFoldersExtractor(root, zap.NewNop())

	first, err := e.Extract(0, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := e.Extract(2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	empty, err := e.Extract(4, 2)
	require.NoError(t, err)
	require.Empty(t, empty)
}
