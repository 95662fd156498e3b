package beatmap

import (
	"path/filepath"
	"runtime"
	"strings"
)

// ValidateRelative reports whether value is safe to join under a trusted
// root: non-blank, not rooted, free of ".." and of characters the host OS
// rejects in paths.
func ValidateRelative(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	if isRooted(value) {
		return false
	}
	if strings.Contains(value, "..") {
		return false
	}
	return !strings.ContainsFunc(value, func(r rune) bool { return invalidPathRune(runtime.GOOS, r) })
}

func isRooted(value string) bool {
	if filepath.IsAbs(value) || filepath.VolumeName(value) != "" {
		return true
	}
	return strings.HasPrefix(value, "/") || strings.HasPrefix(value, `\`)
}

// invalidPathRune reports whether goos rejects r in a path component.
// Windows refuses control characters and <>:"|?*; elsewhere only NUL.
func invalidPathRune(goos string, r rune) bool {
	if r == 0 {
		return true
	}
	if goos != "windows" {
		return false
	}
	if r < 32 {
		return true
	}
	return strings.ContainsRune(`<>:"|?*`, r)
}
