// Package daemonrun assembles the client engine and runs the daemon until a
// termination signal arrives.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"oszshare/internal/config"
	"oszshare/internal/daemon"
	"oszshare/internal/logging"
	"oszshare/internal/logs"
)

const staleArchiveAge = time.Hour

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the oszshare daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	logger, logPath, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logs.CurrentName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: logging.RunLogPattern, Exclude: []string{logPath}},
	)

	components, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build client engine", logging.Error(err))
		return err
	}
	defer components.Close()
	components.Packager.CleanStale(signalCtx, staleArchiveAge)

	d, err := daemon.New(cfg, daemon.Dependencies{
		Detector:  components.Detector,
		Sharer:    components.Share,
		Endpoints: components.Endpoints,
		Server:    components.Uploader,
		History:   components.History,
	}, logger, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other oszshare daemon or check the state directory"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("oszshare daemon shutting down")
	if err := cmdCtx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
