package process

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"oszshare/internal/fileutil"
	"oszshare/internal/logging"
)

// CandidateFunc lists possible Songs directories for a process, in order.
type CandidateFunc func(ctx context.Context, h *Handle) []string

// SongsResolver caches the Songs directory for one process identity.
type SongsResolver struct {
	mu         sync.Mutex
	override   string
	candidates CandidateFunc
	logger     *slog.Logger

	identity Identity
	dir      string
	cached   bool
}

// NewSongsResolver returns a resolver that tries override first, then the
// standard install locations.
func NewSongsResolver(override string, logger *slog.Logger) *SongsResolver {
	return &SongsResolver{
		override:   strings.TrimSpace(override),
		candidates: DefaultCandidates,
		logger:     logging.NewComponentLogger(logger, "songs"),
	}
}

// WithCandidates replaces the candidate list builder.
func (r *SongsResolver) WithCandidates(fn CandidateFunc) *SongsResolver {
	r.candidates = fn
	return r
}

// Resolve returns the cached directory when it belongs to h and still
// exists, otherwise it refreshes.
func (r *SongsResolver) Resolve(ctx context.Context, h *Handle) string {
	r.mu.Lock()
	if r.cached && r.identity == h.Identity() && fileutil.DirExists(r.dir) {
		dir := r.dir
		r.mu.Unlock()
		return dir
	}
	r.mu.Unlock()
	return r.Refresh(ctx, h)
}

// Refresh recomputes the directory for h and stores the result, including an
// empty result, against h's identity.
func (r *SongsResolver) Refresh(ctx context.Context, h *Handle) string {
	var list []string
	if r.override != "" {
		list = append(list, r.override)
	}
	if r.candidates != nil {
		list = append(list, r.candidates(ctx, h)...)
	}

	resolved := ""
	for _, candidate := range list {
		if strings.TrimSpace(candidate) == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if fileutil.DirExists(abs) {
			resolved = abs
			break
		}
	}

	r.mu.Lock()
	changed := r.dir != resolved
	r.identity = h.Identity()
	r.dir = resolved
	r.cached = true
	r.mu.Unlock()

	if changed {
		if resolved == "" {
			r.logger.Debug("songs directory not found", logging.Int("pid", int(h.PID)))
		} else {
			r.logger.Info("songs directory resolved",
				logging.String("path", resolved),
				logging.Int("pid", int(h.PID)),
				logging.String(logging.FieldEventType, "songs_dir_resolved"),
			)
		}
	}
	return resolved
}

// DefaultCandidates lists <install dir>/Songs followed by the per-user and
// program files install locations. Lookup failures drop the candidate.
func DefaultCandidates(ctx context.Context, h *Handle) []string {
	var out []string
	if h != nil {
		if exe, err := h.Executable(ctx); err == nil && strings.TrimSpace(exe) != "" {
			out = append(out, filepath.Join(filepath.Dir(exe), "Songs"))
		}
	}
	if local := localAppData(); local != "" {
		out = append(out, filepath.Join(local, "osu!", "Songs"))
	}
	for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
		if dir := strings.TrimSpace(os.Getenv(env)); dir != "" {
			out = append(out, filepath.Join(dir, "osu!", "Songs"))
		}
	}
	return out
}

func localAppData() string {
	if dir := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return dir
	}
	return ""
}
