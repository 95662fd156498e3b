package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"oszshare/internal/detect"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func colorText(text, color string, colorize bool) string {
	if !colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

func formatRating(rating *float64) string {
	if rating == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f★", *rating)
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

// formatExpiry renders an absolute expiry in local time with the remaining
// lifetime relative to now.
func formatExpiry(expires, now time.Time) string {
	if expires.IsZero() {
		return "-"
	}
	local := expires.Local().Format("2006-01-02 15:04:05")
	remaining := expires.Sub(now)
	if remaining <= 0 {
		return local + " (expired)"
	}
	return fmt.Sprintf("%s (in %s)", local, remaining.Round(time.Second))
}

func beatmapLabel(info *detect.Info) string {
	if info == nil {
		return "-"
	}
	return fmt.Sprintf("%s - %s [%s]", info.Artist, info.Title, info.Difficulty)
}

func printBeatmap(out io.Writer, info *detect.Info) {
	rows := [][]string{
		{"Artist", info.Artist},
		{"Title", info.Title},
		{"Difficulty", info.Difficulty},
		{"Stars", formatRating(info.StarRating)},
		{"AR / CS / OD / HP", fmt.Sprintf("%g / %g / %g / %g", info.AR, info.CS, info.OD, info.HP)},
		{"Set directory", info.SetDir},
	}
	if strings.TrimSpace(info.BackgroundPath) != "" {
		rows = append(rows, []string{"Background", info.BackgroundPath})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
}
