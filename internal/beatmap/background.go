package beatmap

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

var backgroundExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
	".gif":  {},
	".webp": {},
}

// FindBackground scans the [Events] section of descriptor text and returns
// the first background image path that passes validation, or "".
func FindBackground(text string) string {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inEvents := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inEvents = strings.EqualFold(line, "[Events]")
			continue
		}
		if !inEvents {
			continue
		}

		typeToken, _, _ := strings.Cut(line, ",")
		typeToken = strings.TrimSpace(typeToken)
		if typeToken != "0" && !strings.EqualFold(typeToken, "Background") {
			continue
		}

		candidate := eventPathToken(line)
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		candidate = strings.TrimSpace(normalizeSeparators(candidate))
		if !ValidateRelative(candidate) {
			continue
		}
		if _, ok := backgroundExtensions[strings.ToLower(filepath.Ext(candidate))]; !ok {
			continue
		}
		return candidate
	}
	return ""
}

// eventPathToken returns the first quoted token, else the third comma field.
func eventPathToken(line string) string {
	if first := strings.IndexByte(line, '"'); first >= 0 {
		if second := strings.IndexByte(line[first+1:], '"'); second > 0 {
			return line[first+1 : first+1+second]
		}
	}
	fields := strings.Split(line, ",")
	if len(fields) >= 3 {
		return strings.Trim(strings.TrimSpace(fields[2]), `"`)
	}
	return ""
}

func normalizeSeparators(value string) string {
	sep := string(filepath.Separator)
	value = strings.ReplaceAll(value, "/", sep)
	return strings.ReplaceAll(value, `\`, sep)
}

// ResolveBackground joins rel onto setDir and returns the canonical path when
// it stays inside setDir and exists, otherwise "".
func ResolveBackground(setDir, rel string) string {
	if strings.TrimSpace(rel) == "" {
		return ""
	}
	base, err := canonical(setDir)
	if err != nil {
		return ""
	}
	candidate, err := canonical(filepath.Join(base, rel))
	if err != nil {
		return ""
	}
	inside, err := filepath.Rel(base, candidate)
	if err != nil || inside == "." || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) || filepath.IsAbs(inside) {
		return ""
	}
	info, err := os.Stat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return candidate
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
