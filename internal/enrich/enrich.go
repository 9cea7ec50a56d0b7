// Package enrich defines the capability interfaces the normalization engine
// consumes for music/face recognition and thumbnail generation. Recognition
// and rasterization backends live outside this module: the core depends only
// on the narrow capability, never on a concrete cloud or local
// implementation.
package enrich

import (
	"context"
	"errors"
)

// MusicMatch is one music-recognition result for a media file's audio track.
type MusicMatch struct {
	Title      string
	Artist     string
	Confidence float64
}

// CharacterMatch is one face/character-recognition hit against a known-faces
// gallery.
type CharacterMatch struct {
	Name       string
	Confidence float64
}

// MusicRecognizer identifies the track playing in a media file. A nil
// *MusicMatch with a nil error means no match was found, not a failure.
type MusicRecognizer interface {
	RecognizeMusic(ctx context.Context, filePath string) (*MusicMatch, error)
}

// CharacterRecognizer detects known faces/characters appearing in a media
// file.
type CharacterRecognizer interface {
	DetectCharacters(ctx context.Context, filePath string) ([]CharacterMatch, error)
}

// ThumbnailProducer rasterizes a representative still frame for a media
// file.
type ThumbnailProducer interface {
	GenerateThumbnail(ctx context.Context, mediaPath, outputPath string) error
}

// ErrNotConfigured is returned by the Null* implementations below, so a
// deployment that hasn't wired a real recognizer/producer still runs every
// operation end to end, just producing no detections.
var ErrNotConfigured = errors.New("enrich: capability not configured")

// NullMusicRecognizer reports no match for every file.
type NullMusicRecognizer struct{}

func (NullMusicRecognizer) RecognizeMusic(ctx context.Context, filePath string) (*MusicMatch, error) {
	return nil, nil
}

// NullCharacterRecognizer reports no characters for every file.
type NullCharacterRecognizer struct{}

func (NullCharacterRecognizer) DetectCharacters(ctx context.Context, filePath string) ([]CharacterMatch, error) {
	return nil, nil
}

// NullThumbnailProducer always fails, since there's no way to degrade a
// thumbnail request gracefully — the caller needs to know the row was left
// untouched rather than silently succeeding with nothing written.
type NullThumbnailProducer struct{}

func (NullThumbnailProducer) GenerateThumbnail(ctx context.Context, mediaPath, outputPath string) error {
	return ErrNotConfigured
}
