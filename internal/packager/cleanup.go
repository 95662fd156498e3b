package packager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"oszshare/internal/logging"
)

const archivePrefix = "osz-share-"

// CleanupResult contains the outcome of a stale archive sweep.
type CleanupResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs an archive path with its removal error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes archives in the scratch directory older than maxAge.
// Archives are normally deleted after each upload; leftovers come from a
// process killed mid-share. Only files matching the archive name pattern are
// touched.
func (p *Packager) CleanStale(ctx context.Context, maxAge time.Duration) CleanupResult {
	result := CleanupResult{}

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: p.dir, Error: err})
		}
		return result
	}

	cutoff := p.now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, archivePrefix) || !strings.EqualFold(filepath.Ext(name), ".osz") {
			continue
		}
		path := filepath.Join(p.dir, name)
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			p.logger.Warn("failed to remove stale archive",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "archive_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check temp_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		p.logger.Info("removed stale archive",
			logging.String("path", path),
			logging.Duration("age", p.now().Sub(info.ModTime())),
			logging.String(logging.FieldEventType, "archive_cleanup"),
		)
	}
	return result
}
