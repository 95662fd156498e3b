package livestate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"oszshare/internal/logging"
)

// ErrNoData means the source has nothing to report yet.
var ErrNoData = errors.New("live state unavailable")

// Snapshot is the game state relevant to detection.
type Snapshot struct {
	// FolderName is the beatmap set folder relative to the Songs directory.
	FolderName string
	// FileName is the .osu file inside the set folder.
	FileName string
	AR       float64
	CS       float64
	HP       float64
	OD       float64
	// Difficulty is the difficulty name the feed reports, if any.
	Difficulty string
	// StarRating is the feed's unmodded star rating; zero when absent.
	StarRating float64
}

// Source produces the current Snapshot.
type Source interface {
	Poll(ctx context.Context) (Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Snapshot, error)

func (f SourceFunc) Poll(ctx context.Context) (Snapshot, error) { return f(ctx) }

// Reader guards a Source with an exclusive cursor lock.
type Reader struct {
	mu     sync.Mutex
	source Source
	logger *slog.Logger
}

// NewReader wraps source.
func NewReader(source Source, logger *slog.Logger) *Reader {
	return &Reader{source: source, logger: logging.NewComponentLogger(logger, "livestate")}
}

// Read returns the current snapshot. ok is false when the source failed or
// panicked.
func (r *Reader) Read(ctx context.Context) (snap Snapshot, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Debug("live state source panicked", logging.Any("panic", rec))
			snap, ok = Snapshot{}, false
		}
	}()
	if r.source == nil {
		return Snapshot{}, false
	}
	s, err := r.source.Poll(ctx)
	if err != nil {
		r.logger.Debug("live state read failed", logging.Error(err))
		return Snapshot{}, false
	}
	return s, true
}
