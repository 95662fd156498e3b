package beatmap

import (
	"path/filepath"
	"strconv"
	"strings"
)

const (
	UnknownArtist     = "Unknown Artist"
	UnknownTitle      = "Unknown Title"
	UnknownDifficulty = "Unknown Difficulty"
)

// InferArtistTitle derives artist and title from a set folder named like
// "<id> <artist> - <title>".
func InferArtistTitle(folder string) (artist, title string) {
	normalized := strings.TrimSpace(folder)
	if normalized == "" {
		return UnknownArtist, UnknownTitle
	}

	if space := strings.IndexByte(normalized, ' '); space > 0 {
		if _, err := strconv.Atoi(normalized[:space]); err == nil {
			normalized = strings.TrimSpace(normalized[space+1:])
		}
	}

	if sep := strings.Index(normalized, " - "); sep > 0 && sep < len(normalized)-3 {
		artist = strings.TrimSpace(normalized[:sep])
		title = strings.TrimSpace(normalized[sep+3:])
		if artist != "" && title != "" {
			return artist, title
		}
	}
	if normalized == "" {
		return UnknownArtist, UnknownTitle
	}
	return UnknownArtist, normalized
}

// folderName returns the last element of a set directory path.
func folderName(setDir string) string {
	trimmed := strings.TrimRight(setDir, `/\`)
	if trimmed == "" {
		return ""
	}
	return filepath.Base(trimmed)
}

// difficultyFromFile strips the extension from a descriptor file name.
func difficultyFromFile(descriptorPath string) string {
	base := filepath.Base(descriptorPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
