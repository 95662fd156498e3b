package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"oszshare/internal/config"
	"oszshare/internal/detect"
	"oszshare/internal/endpoint"
	"oszshare/internal/history"
	"oszshare/internal/logging"
	"oszshare/internal/services"
	"oszshare/internal/share"
)

// Detector reports the beatmap currently open in the game.
type Detector interface {
	DetectCurrent(ctx context.Context) (*detect.Info, error)
	Last() *detect.Info
}

// Sharer runs the upload flow.
type Sharer interface {
	Share(ctx context.Context, req share.Request) (*share.Outcome, error)
	Busy() bool
}

// EndpointResolver probes share server candidates.
type EndpointResolver interface {
	Resolve(ctx context.Context, configured string) (endpoint.Resolution, error)
}

// ServerTarget is the upload client's swappable base URL.
type ServerTarget interface {
	BaseURL() string
	SetBaseURL(baseURL string)
}

// HistoryReader exposes recorded shares.
type HistoryReader interface {
	Last(ctx context.Context) (*history.Entry, error)
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// Dependencies groups the collaborators the daemon coordinates. History is
// optional.
type Dependencies struct {
	Detector  Detector
	Sharer    Sharer
	Endpoints EndpointResolver
	Server    ServerTarget
	History   HistoryReader
}

// Daemon coordinates background detection and the local API, and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	deps    Dependencies
	logger  *slog.Logger
	logPath string

	lockPath string
	lock     *flock.Flock

	monitor *monitor
	api     *apiServer

	running atomic.Bool
	group   *errgroup.Group

	// mu guards the run state read by API handlers.
	mu         sync.Mutex
	startedAt  time.Time
	ctx        context.Context
	cancel     context.CancelFunc
	resolution *endpoint.Resolution
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                 `json:"running"`
	PID          int                  `json:"pid"`
	StartedAt    time.Time            `json:"started_at,omitempty"`
	Server       string               `json:"server"`
	Endpoint     *endpoint.Resolution `json:"endpoint,omitempty"`
	Uploading    bool                 `json:"uploading"`
	Current      *detect.Info         `json:"current,omitempty"`
	LastShare    *history.Entry       `json:"last_share,omitempty"`
	LockFilePath string               `json:"lock_file_path"`
	HistoryPath  string               `json:"history_path"`
	LogPath      string               `json:"log_path,omitempty"`
	APIAddress   string               `json:"api_address,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger, logPath string) (*Daemon, error) {
	if cfg == nil || deps.Detector == nil || deps.Sharer == nil || deps.Endpoints == nil || deps.Server == nil {
		return nil, errors.New("daemon requires config, detector, sharer, endpoint resolver, and server target")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		logPath:  logPath,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.monitor = newMonitor(deps.Detector, time.Duration(cfg.Detection.IntervalSeconds)*time.Second, logger)
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches detection, endpoint resolution
// and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrBusy, "daemon", "start", "another oszshare daemon instance is already running", nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	d.mu.Lock()
	d.ctx = groupCtx
	d.cancel = cancel
	d.startedAt = time.Now()
	d.mu.Unlock()
	d.group = group

	if err := d.api.start(groupCtx); err != nil {
		d.clearRunState()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	if d.cfg.Server.AutoDetect {
		group.Go(func() error {
			if _, err := d.ResolveEndpoint(services.WithTrigger(groupCtx, "startup")); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Warn("startup endpoint resolution failed", logging.Error(err))
			}
			return nil
		})
	}
	group.Go(func() error {
		return d.monitor.run(services.WithTrigger(groupCtx, "ticker"))
	})

	d.running.Store(true)
	d.logger.Info("oszshare daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("server", d.deps.Server.BaseURL()),
		logging.Duration("detect_interval", d.monitor.interval),
	)
	return nil
}

// Stop stops background work and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.api.stop()
	if d.group != nil {
		if err := d.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("background task ended with error", logging.Error(err))
		}
		d.group = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.clearRunState()
	d.running.Store(false)
	d.logger.Info("oszshare daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// clearRunState cancels and forgets the run context.
func (d *Daemon) clearRunState() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
	d.startedAt = time.Time{}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Running reports whether Start succeeded and Stop has not run.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddress returns the bound API address once started.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// ResolveEndpoint probes the configured server and local fallbacks and, when
// a healthy one is found, points uploads at it. An unhealthy result leaves
// the current server untouched.
func (d *Daemon) ResolveEndpoint(ctx context.Context) (endpoint.Resolution, error) {
	logger := logging.WithContext(ctx, d.logger)
	res, err := d.deps.Endpoints.Resolve(ctx, d.cfg.Server.BaseURL)
	if err != nil {
		return endpoint.Resolution{}, err
	}

	d.mu.Lock()
	copied := res
	d.resolution = &copied
	d.mu.Unlock()

	if res.OK {
		previous := d.deps.Server.BaseURL()
		d.deps.Server.SetBaseURL(res.BaseURL)
		logger.Info("share server resolved",
			logging.String(logging.FieldEventType, "endpoint_resolved"),
			logging.String("server", res.BaseURL),
			logging.String("previous", previous),
			logging.Bool("auto_detected", res.AutoDetected),
		)
		return res, nil
	}

	logging.WarnWithContext(logger, "no healthy share server found", "endpoint_unreachable",
		logging.String("server", d.deps.Server.BaseURL()),
		logging.Int("candidates", len(res.Probes)),
		logging.String(logging.FieldErrorHint, "check that the share server is reachable"),
		logging.String(logging.FieldImpact, "uploads use the configured server"),
	)
	return res, nil
}

// Current returns the most recently detected beatmap, optionally detecting
// afresh first.
func (d *Daemon) Current(ctx context.Context, refresh bool) (*detect.Info, error) {
	if refresh {
		info, err := d.deps.Detector.DetectCurrent(ctx)
		if err != nil && !errors.Is(err, detect.ErrDetectionInProgress) {
			return nil, err
		}
		if info != nil {
			return info, nil
		}
		if err == nil {
			return nil, nil
		}
	}
	return d.deps.Detector.Last(), nil
}

// Share uploads the current beatmap. The share is bound to the daemon's
// lifetime rather than the caller's.
func (d *Daemon) Share(ctx context.Context, req share.Request) (*share.Outcome, error) {
	d.mu.Lock()
	runCtx := d.ctx
	d.mu.Unlock()
	if runCtx == nil {
		runCtx = ctx
	} else {
		if trigger, ok := services.TriggerFromContext(ctx); ok {
			runCtx = services.WithTrigger(runCtx, trigger)
		}
		if id, ok := services.RequestIDFromContext(ctx); ok {
			runCtx = services.WithRequestID(runCtx, id)
		}
	}
	return d.deps.Sharer.Share(runCtx, req)
}

// Shares lists recorded shares, newest first.
func (d *Daemon) Shares(ctx context.Context, limit int) ([]history.Entry, error) {
	if d.deps.History == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "shares", "share history unavailable", nil)
	}
	return d.deps.History.List(ctx, limit)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Server:       d.deps.Server.BaseURL(),
		Uploading:    d.deps.Sharer.Busy(),
		Current:      d.deps.Detector.Last(),
		LockFilePath: d.lockPath,
		HistoryPath:  d.cfg.HistoryPath(),
		LogPath:      d.logPath,
		APIAddress:   d.api.address(),
	}
	d.mu.Lock()
	status.StartedAt = d.startedAt
	if d.resolution != nil {
		copied := *d.resolution
		status.Endpoint = &copied
	}
	d.mu.Unlock()
	if d.deps.History != nil {
		if last, err := d.deps.History.Last(ctx); err == nil {
			status.LastShare = last
		} else {
			d.logger.Debug("last share lookup failed", logging.Error(err))
		}
	}
	return status
}
