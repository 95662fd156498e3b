package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateExpiry(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if !isAbsoluteURL(c.Server.BaseURL) {
		return fmt.Errorf("server.base_url must be an absolute URL, got %q", c.Server.BaseURL)
	}
	return nil
}

func (c *Config) validateExpiry() error {
	if c.Expiry.MinMinutes < 1 {
		return errors.New("expiry.min_minutes must be at least 1")
	}
	if c.Expiry.MaxMinutes < c.Expiry.MinMinutes {
		return errors.New("expiry.max_minutes must be >= expiry.min_minutes")
	}
	if c.Expiry.DefaultMinutes < c.Expiry.MinMinutes || c.Expiry.DefaultMinutes > c.Expiry.MaxMinutes {
		return errors.New("expiry.default_minutes must be within [min_minutes, max_minutes]")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind: %w", err)
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.IntervalSeconds <= 0 {
		return errors.New("detection.interval_seconds must be positive")
	}
	if c.Detection.StaleAfterSeconds <= 0 {
		return errors.New("detection.stale_after_seconds must be positive")
	}
	if !isAbsoluteURL(c.Detection.LiveStateURL) {
		return fmt.Errorf("detection.live_state_url must be an absolute URL, got %q", c.Detection.LiveStateURL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}
