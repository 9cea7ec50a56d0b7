package extractors

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

var mainPlatformFolders = map[string]bool{
	"youtube": true, "tiktok": true, "instagram": true,
}

var genericCreatorNames = map[string]bool{
	"downloads": true, "videos": true, "content": true, "media": true, "files": true,
}

var creatorURLTemplates = map[string]string{
	"youtube":   "https://www.youtube.com/@%s",
	"tiktok":    "https://www.tiktok.com/@%s",
	"instagram": "https://www.instagram.com/%s/",
}

var invalidCreatorChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)
var allDigits = regexp.MustCompile(`^[0-9]+$`)

// FoldersExtractor walks an organized media folder tree: one subfolder per
// platform, first-level directories inside it named after creators.
type FoldersExtractor struct {
	rootPath string
	logger   *zap.Logger
}

func NewFoldersExtractor(rootPath string, logger *zap.Logger) *FoldersExtractor {
	return &FoldersExtractor{rootPath: rootPath, logger: logger}
}

func (e *FoldersExtractor) Source() string { return "organized_folders" }

func (e *FoldersExtractor) IsAvailable() bool {
	if e.rootPath == "" {
		return false
	}
	info, err := os.Stat(e.rootPath)
	return err == nil && info.IsDir()
}

// Extract implements Extractor. Items are emitted one per media file;
// organized folders carry no subscription hints and no native carousel
// concept (each file is its own post).
func (e *FoldersExtractor) Extract(offset, limit int) ([]RawItem, error) {
	platformDirs, err := e.discoverPlatformFolders()
	if err != nil {
		return nil, err
	}

	var items []RawItem
	for _, platform := range platformDirs {
		platformPath := filepath.Join(e.rootPath, platform.dirName)
		found, err := e.extractPlatformFolder(platform.key, platformPath)
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}

	if offset >= len(items) {
		return nil, nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end], nil
}

type platformFolder struct {
	dirName string
	key     string
}

func (e *FoldersExtractor) discoverPlatformFolders() ([]platformFolder, error) {
	entries, err := os.ReadDir(e.rootPath)
	if err != nil {
		return nil, fmt.Errorf("read organized root %s: %w", e.rootPath, err)
	}

	var folders []platformFolder
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		key := strings.ToLower(entry.Name())
		if mainPlatformFolders[key] {
			folders = append(folders, platformFolder{dirName: entry.Name(), key: key})
			continue
		}
		hasMedia, err := e.containsMediaFile(filepath.Join(e.rootPath, entry.Name()))
		if err != nil {
			return nil, err
		}
		if hasMedia {
			folders = append(folders, platformFolder{dirName: entry.Name(), key: key})
		}
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].key < folders[j].key })
	return folders, nil
}

func (e *FoldersExtractor) containsMediaFile(dir string) (bool, error) {
	found := false
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isMediaFile(path) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found, err
}

func (e *FoldersExtractor) extractPlatformFolder(platformKey, platformPath string) ([]RawItem, error) {
	var items []RawItem
	err := filepath.WalkDir(platformPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isMediaFile(path) {
			return nil
		}

		rel, relErr := filepath.Rel(platformPath, path)
		if relErr != nil {
			return relErr
		}
		segments := strings.Split(filepath.ToSlash(rel), "/")
		creatorRaw := segments[0]
		creatorName, ok := cleanCreatorName(creatorRaw)
		if !ok {
			e.logger.Debug("skipping file under unrecognized creator folder",
				zap.String("path", path), zap.String("raw_creator", creatorRaw))
			return nil
		}

		item := RawItem{
			FilePath:          path,
			FileName:          filepath.Base(path),
			Platform:          platformKey,
			TitleFromFilename: true,
			Title:             strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Creator: CreatorHint{
				Name: creatorName,
				URL:  creatorURL(platformKey, creatorName),
			},
			CategoryHint:     "videos",
			ExternalDBSource: e.Source(),
			IsVideo:          isVideoFile(path),
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

func cleanCreatorName(raw string) (string, bool) {
	// Folder names arrive in whatever form the filesystem stored them in;
	// NFC-normalize first so a decomposed accent doesn't survive the filter
	// as a stray combining mark.
	cleaned := invalidCreatorChars.ReplaceAllString(norm.NFC.String(raw), "")
	if len(cleaned) < 2 || len(cleaned) > 100 {
		return "", false
	}
	if allDigits.MatchString(cleaned) {
		return "", false
	}
	if genericCreatorNames[strings.ToLower(cleaned)] {
		return "", false
	}
	return cleaned, true
}

func creatorURL(platformKey, creatorName string) string {
	if tmpl, ok := creatorURLTemplates[platformKey]; ok {
		return fmt.Sprintf(tmpl, creatorName)
	}
	return ""
}

func isMediaFile(path string) bool {
	ext := strings.ToLower(extensionOf(path))
	if videoExtensions[ext] || imageExtensions[ext] {
		return true
	}
	if ext != "" {
		return false
	}
	return sniffedMediaKind(path) != ""
}

func isVideoFile(path string) bool {
	ext := strings.ToLower(extensionOf(path))
	if videoExtensions[ext] {
		return true
	}
	if ext != "" {
		return false
	}
	return sniffedMediaKind(path) == "video"
}

// sniffedMediaKind content-sniffs a file with no extension to decide. Only
// extensionless files pay the read; everything else resolves from the
// extension tables above.
func sniffedMediaKind(path string) string {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	switch {
	case strings.HasPrefix(mime.String(), "video/"):
		return "video"
	case strings.HasPrefix(mime.String(), "image/"):
		return "image"
	}
	return ""
}
