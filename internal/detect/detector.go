package detect

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"oszshare/internal/beatmap"
	"oszshare/internal/fileutil"
	"oszshare/internal/livestate"
	"oszshare/internal/logging"
	"oszshare/internal/process"
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 40 * time.Millisecond
)

// ErrDetectionInProgress is returned when DetectCurrent is called while
// another call is still running. Callers on a timer should ignore it.
var ErrDetectionInProgress = errors.New("detection already in progress")

// Info describes the beatmap difficulty currently open in the game.
type Info struct {
	SetDir         string   `json:"set_dir"`
	DescriptorPath string   `json:"descriptor_path"`
	Artist         string   `json:"artist"`
	Title          string   `json:"title"`
	Difficulty     string   `json:"difficulty"`
	BackgroundPath string   `json:"background_path,omitempty"`
	HP             float64  `json:"hp"`
	OD             float64  `json:"od"`
	AR             float64  `json:"ar"`
	CS             float64  `json:"cs"`
	StarRating     *float64 `json:"star_rating,omitempty"`
}

// ProcessFinder locates the game process.
type ProcessFinder interface {
	FindLive(ctx context.Context) (*process.Handle, error)
}

// SongsLocator resolves the Songs directory of a process.
type SongsLocator interface {
	Resolve(ctx context.Context, h *process.Handle) string
	Refresh(ctx context.Context, h *process.Handle) string
}

// StateReader reads the live game state.
type StateReader interface {
	Read(ctx context.Context) (livestate.Snapshot, bool)
}

// MetadataResolver resolves display metadata for a descriptor.
type MetadataResolver interface {
	Resolve(descriptorPath, setDir string) beatmap.Metadata
}

// Detector combines process, live state and metadata lookups into a single
// "what is open right now" answer.
type Detector struct {
	finder   ProcessFinder
	songs    SongsLocator
	reader   StateReader
	metadata MetadataResolver
	logger   *slog.Logger

	attempts   int
	retryDelay time.Duration

	running atomic.Bool

	mu   sync.Mutex
	last *Info
}

// Option configures a Detector.
type Option func(*Detector)

// WithRetry overrides the attempt count and the wait between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(d *Detector) {
		if attempts > 0 {
			d.attempts = attempts
		}
		if delay >= 0 {
			d.retryDelay = delay
		}
	}
}

// New constructs a Detector.
func New(finder ProcessFinder, songs SongsLocator, reader StateReader, metadata MetadataResolver, logger *slog.Logger, opts ...Option) *Detector {
	d := &Detector{
		finder:     finder,
		songs:      songs,
		reader:     reader,
		metadata:   metadata,
		logger:     logging.NewComponentLogger(logger, "detector"),
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectCurrent returns the currently open difficulty, or nil when nothing
// could be detected after all attempts. Only context errors and
// ErrDetectionInProgress are returned.
func (d *Detector) DetectCurrent(ctx context.Context) (*Info, error) {
	if !d.running.CompareAndSwap(false, true) {
		return nil, ErrDetectionInProgress
	}
	defer d.running.Store(false)

	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if info := d.detectOnce(ctx); info != nil {
			d.mu.Lock()
			d.last = info
			d.mu.Unlock()
			copied := *info
			return &copied, nil
		}
		if attempt == d.attempts {
			break
		}
		timer := time.NewTimer(d.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, nil
}

// Last returns the most recent successful detection.
func (d *Detector) Last() *Info {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return nil
	}
	copied := *d.last
	return &copied
}

func (d *Detector) detectOnce(ctx context.Context) *Info {
	handle, err := d.finder.FindLive(ctx)
	if err != nil {
		d.logger.Debug("process lookup failed", logging.Error(err))
		return nil
	}
	if handle == nil {
		return nil
	}

	snap, ok := d.reader.Read(ctx)
	if !ok {
		return nil
	}
	folder := strings.TrimRight(strings.TrimSpace(snap.FolderName), `/\`)
	file := strings.TrimSpace(snap.FileName)
	if !beatmap.ValidateRelative(folder) || !beatmap.ValidateRelative(file) {
		d.logger.Debug("live state path rejected",
			logging.String("folder", snap.FolderName),
			logging.String("file", snap.FileName),
		)
		return nil
	}

	root := d.songs.Resolve(ctx, handle)
	setDir, descriptor, found := locate(root, folder, file)
	if !found {
		root = d.songs.Refresh(ctx, handle)
		setDir, descriptor, found = locate(root, folder, file)
		if !found {
			d.logger.Debug("beatmap files not found",
				logging.String("songs_dir", root),
				logging.String("folder", folder),
				logging.String("file", file),
			)
			return nil
		}
	}

	meta := d.metadata.Resolve(descriptor, setDir)
	return &Info{
		SetDir:         setDir,
		DescriptorPath: descriptor,
		Artist:         meta.Artist,
		Title:          meta.Title,
		Difficulty:     meta.Difficulty,
		BackgroundPath: meta.BackgroundPath,
		HP:             snap.HP,
		OD:             snap.OD,
		AR:             snap.AR,
		CS:             snap.CS,
		StarRating:     meta.StarRating,
	}
}

func locate(root, folder, file string) (string, string, bool) {
	if root == "" {
		return "", "", false
	}
	setDir := filepath.Join(root, folder)
	descriptor := filepath.Join(setDir, file)
	if !fileutil.DirExists(setDir) || !fileutil.FileExists(descriptor) {
		return "", "", false
	}
	return setDir, descriptor, true
}
