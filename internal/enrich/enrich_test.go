package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNullMusicRecognizerReturnsNoMatch(t *testing.T) {
	match, err := NullMusicRecognizer{}.RecognizeMusic(context.Background(), "/some/file.mp4")
	require.NoError(t, err)
	require.Nil(t, match)
}

func TestNullCharacterRecognizerReturnsNoMatches(t *testing.T) {
	matches, err := NullCharacterRecognizer{}.DetectCharacters(context.Background(), "/some/file.mp4")
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestNullThumbnailProducerReportsNotConfigured(t *testing.T) {
	err := NullThumbnailProducer{}.GenerateThumbnail(context.Background(), "/in.mp4", "/out.jpg")
	require.ErrorIs(t, err, ErrNotConfigured)
}
