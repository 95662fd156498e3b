package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"oszshare/internal/config"
	"oszshare/internal/detect"
	"oszshare/internal/fileutil"
	"oszshare/internal/history"
	"oszshare/internal/logging"
	"oszshare/internal/retry"
	"oszshare/internal/services"
	"oszshare/internal/shareapi"
)

var (
	// ErrUploadInProgress is returned when another share is still running.
	ErrUploadInProgress = fmt.Errorf("%w: upload already in progress", services.ErrBusy)
	// ErrNoBeatmap is returned when no beatmap set could be detected.
	ErrNoBeatmap = fmt.Errorf("%w: no beatmap set could be detected", services.ErrNotFound)
)

const (
	detectWaitStep     = 50 * time.Millisecond
	detectWaitAttempts = 20
)

// Detector supplies the beatmap to share.
type Detector interface {
	DetectCurrent(ctx context.Context) (*detect.Info, error)
	Last() *detect.Info
}

// Packager builds the archive for a set directory.
type Packager interface {
	Package(ctx context.Context, setDir string) (string, error)
}

// Uploader sends an archive to the share server.
type Uploader interface {
	Upload(ctx context.Context, archivePath string, expiryMinutes int) (shareapi.Result, error)
	BaseURL() string
}

// Recorder stores completed shares.
type Recorder interface {
	Record(ctx context.Context, entry history.Entry) (history.Entry, error)
}

// Request customizes one share.
type Request struct {
	// ExpiryMinutes of zero uses the configured default.
	ExpiryMinutes int
	// SetDir bypasses detection when set.
	SetDir string
}

// Outcome describes a completed share.
type Outcome struct {
	Result        shareapi.Result `json:"result"`
	Beatmap       *detect.Info    `json:"beatmap,omitempty"`
	SetDir        string          `json:"set_dir"`
	Server        string          `json:"server"`
	ExpiryMinutes int             `json:"expiry_minutes"`
	Elapsed       time.Duration   `json:"elapsed"`
}

// Dependencies groups the collaborators of a Service. Recorder is optional.
type Dependencies struct {
	Detector Detector
	Packager Packager
	Uploader Uploader
	Recorder Recorder
}

// Service coordinates single-flight shares.
type Service struct {
	cfg    *config.Config
	deps   Dependencies
	delays []time.Duration
	logger *slog.Logger

	gate     sync.Mutex
	fileLock *flock.Flock
}

// Option configures a Service.
type Option func(*Service)

// WithRetryDelays overrides the upload back-off schedule.
func WithRetryDelays(delays ...time.Duration) Option {
	return func(s *Service) { s.delays = append([]time.Duration(nil), delays...) }
}

// NewService constructs a Service.
func NewService(cfg *config.Config, deps Dependencies, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		deps:     deps,
		delays:   retry.DefaultDelays,
		logger:   logging.NewComponentLogger(logger, "share"),
		fileLock: flock.New(cfg.UploadLockPath()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Busy reports whether a share is currently running in this process.
func (s *Service) Busy() bool {
	if s.gate.TryLock() {
		s.gate.Unlock()
		return false
	}
	return true
}

// Share packages and uploads the current beatmap set.
func (s *Service) Share(ctx context.Context, req Request) (*Outcome, error) {
	logger := logging.WithContext(ctx, s.logger)

	if !s.gate.TryLock() {
		logging.WarnWithContext(logger, "share skipped; another upload is running", "upload_skipped",
			logging.String(logging.FieldErrorHint, services.Hint(ErrUploadInProgress)),
			logging.String(logging.FieldImpact, "request ignored"),
		)
		return nil, ErrUploadInProgress
	}
	defer s.gate.Unlock()

	locked, err := s.fileLock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "share", "lock", "acquire upload lock", err)
	}
	if !locked {
		logging.WarnWithContext(logger, "share skipped; another process is uploading", "upload_skipped",
			logging.String("lock_path", s.cfg.UploadLockPath()),
			logging.String(logging.FieldErrorHint, services.Hint(ErrUploadInProgress)),
			logging.String(logging.FieldImpact, "request ignored"),
		)
		return nil, ErrUploadInProgress
	}
	defer func() {
		if err := s.fileLock.Unlock(); err != nil {
			logger.Debug("upload lock release failed", logging.Error(err))
		}
	}()

	started := time.Now()
	info, setDir, err := s.selectSet(ctx, req)
	if err != nil {
		return nil, s.logFailure(logger, err)
	}
	if setDir == "" {
		logging.WarnWithContext(logger, "share cancelled; no beatmap set detected", "upload_no_beatmap",
			logging.String(logging.FieldErrorHint, services.Hint(ErrNoBeatmap)),
			logging.String(logging.FieldImpact, "nothing uploaded"),
		)
		return nil, ErrNoBeatmap
	}

	expiry := s.cfg.ClampExpiry(req.ExpiryMinutes)
	server := s.deps.Uploader.BaseURL()
	logger.Info("packaging beatmap set",
		logging.String(logging.FieldEventType, "upload_started"),
		logging.String("set_dir", setDir),
		logging.String("server", server),
		logging.Int("expiry_minutes", expiry),
	)

	archive, err := s.deps.Packager.Package(ctx, setDir)
	if err != nil {
		return nil, s.logFailure(logger, err)
	}
	defer func() {
		if rmErr := fileutil.RemoveIfExists(archive); rmErr != nil {
			logger.Debug("archive cleanup failed", logging.String("archive", archive), logging.Error(rmErr))
		}
	}()

	result, err := retry.Do(ctx, func(ctx context.Context) (shareapi.Result, error) {
		res, upErr := s.deps.Uploader.Upload(ctx, archive, expiry)
		if upErr != nil && ctx.Err() == nil {
			logger.Debug("upload attempt failed", logging.Error(upErr))
		}
		return res, upErr
	}, s.delays)
	if err != nil {
		return nil, s.logFailure(logger, err)
	}

	outcome := &Outcome{
		Result:        result,
		Beatmap:       info,
		SetDir:        setDir,
		Server:        server,
		ExpiryMinutes: expiry,
		Elapsed:       time.Since(started),
	}
	logger.Info("beatmap shared",
		logging.String(logging.FieldEventType, "upload_succeeded"),
		logging.String("share_id", result.ID),
		logging.String("url", result.URL),
		logging.String("expires_at", result.ExpiresAt.Format(time.RFC3339)),
		logging.Int64("size_bytes", result.SizeBytes),
		logging.Duration("elapsed", outcome.Elapsed),
	)
	s.record(ctx, logger, outcome)
	return outcome, nil
}

// selectSet prefers the last detected set while it still exists on disk and
// otherwise runs a fresh detection.
func (s *Service) selectSet(ctx context.Context, req Request) (*detect.Info, string, error) {
	if dir := strings.TrimSpace(req.SetDir); dir != "" {
		if !fileutil.DirExists(dir) {
			return nil, "", services.Wrap(services.ErrValidation, "share", "select", fmt.Sprintf("beatmap directory %q does not exist", dir), nil)
		}
		return nil, dir, nil
	}
	if last := s.deps.Detector.Last(); last != nil && fileutil.DirExists(last.SetDir) {
		return last, last.SetDir, nil
	}

	for attempt := 0; ; attempt++ {
		info, err := s.deps.Detector.DetectCurrent(ctx)
		if errors.Is(err, detect.ErrDetectionInProgress) && attempt < detectWaitAttempts {
			timer := time.NewTimer(detectWaitStep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, "", ctx.Err()
			case <-timer.C:
			}
			continue
		}
		if errors.Is(err, detect.ErrDetectionInProgress) {
			info = s.deps.Detector.Last()
		} else if err != nil {
			return nil, "", err
		}
		if info == nil || !fileutil.DirExists(info.SetDir) {
			return nil, "", nil
		}
		return info, info.SetDir, nil
	}
}

func (s *Service) logFailure(logger *slog.Logger, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logging.WarnWithContext(logger, "share cancelled", "upload_cancelled",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "retry the share"),
			logging.String(logging.FieldImpact, "nothing uploaded"),
		)
		return err
	}
	logging.ErrorWithContext(logger, "share failed", "upload_failed",
		logging.String("server", s.deps.Uploader.BaseURL()),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Hint(err)),
	)
	return err
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, outcome *Outcome) {
	if s.deps.Recorder == nil {
		return
	}
	entry := history.Entry{
		ShareID:   outcome.Result.ID,
		URL:       outcome.Result.URL,
		ExpiresAt: outcome.Result.ExpiresAt,
		SizeBytes: outcome.Result.SizeBytes,
		SetDir:    outcome.SetDir,
		Server:    outcome.Server,
	}
	if outcome.Beatmap != nil {
		entry.Artist = outcome.Beatmap.Artist
		entry.Title = outcome.Beatmap.Title
		entry.Difficulty = outcome.Beatmap.Difficulty
	}
	if _, err := s.deps.Recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logging.WarnWithContext(logger, "share history not recorded", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "last share link unavailable after restart"),
		)
	}
}
