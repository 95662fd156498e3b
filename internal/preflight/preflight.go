package preflight

import (
	"context"

	"oszshare/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// The songs directory is only checked when an override is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Archive directory", cfg.ArchiveDir()))

	if cfg.Paths.SongsDir != "" {
		results = append(results, CheckReadableDirectory("Songs directory", cfg.Paths.SongsDir))
	}

	results = append(results, CheckShareServer(ctx, cfg.Server.BaseURL, cfg.Server.UploadKey))
	results = append(results, CheckLiveState(ctx, cfg.Detection.LiveStateURL))

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
