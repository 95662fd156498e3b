package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"oszshare/internal/config"
	"oszshare/internal/daemonctl"
	"oszshare/internal/daemonrun"
	"oszshare/internal/detect"
	"oszshare/internal/logging"
)

// One-shot commands start before the live-state feed has delivered a frame,
// so they allow more and longer detection attempts than the daemon ticker.
const (
	cliDetectAttempts = 15
	cliDetectDelay    = 100 * time.Millisecond
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *slog.Logger {
	cfg, _ := c.ensureConfig()
	verbose := c.verbose != nil && *c.verbose
	logger, err := logging.NewCLI(cfg, verbose)
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) daemonClient() (*daemonctl.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return daemonctl.New(cfg.Paths.APIBind, cfg.Paths.APIToken), nil
}

// withDaemon runs fn against a running daemon. It reports false when no
// daemon answers so the caller can fall back to the local engine.
func (c *commandContext) withDaemon(ctx context.Context, fn func(*daemonctl.Client) error) (bool, error) {
	client, err := c.daemonClient()
	if err != nil {
		return false, err
	}
	if _, err := client.Status(ctx); err != nil {
		if errors.Is(err, daemonctl.ErrDaemonUnavailable) {
			return false, nil
		}
		return false, err
	}
	return true, fn(client)
}

// withEngine builds the in-process client engine for one command.
func (c *commandContext) withEngine(fn func(*daemonrun.Components, *slog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger := c.logger()
	components, err := daemonrun.Build(cfg, logger, detect.WithRetry(cliDetectAttempts, cliDetectDelay))
	if err != nil {
		return fmt.Errorf("build client engine: %w", err)
	}
	defer components.Close()
	return fn(components, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
