package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize(env map[string]string) error {
	if err := c.normalizePaths(env); err != nil {
		return err
	}
	c.normalizeServer(env)
	c.normalizeExpiry()
	c.normalizeDetection()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths(env map[string]string) error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(strings.TrimSpace(c.Paths.TempDir)); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if c.Paths.SongsDir, err = expandPath(strings.TrimSpace(c.Paths.SongsDir)); err != nil {
		return fmt.Errorf("paths.songs_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupSetting(env, envAPIToken)
	}
	return nil
}

// normalizeServer falls back to the default server when the configured value
// is not an absolute URL.
func (c *Config) normalizeServer(env map[string]string) {
	c.Server.BaseURL = strings.TrimSpace(c.Server.BaseURL)
	if value := lookupSetting(env, envServerURL); value != "" {
		c.Server.BaseURL = value
	}
	if !isAbsoluteURL(c.Server.BaseURL) {
		c.Server.BaseURL = defaultServerBaseURL
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")

	c.Server.UploadKey = strings.TrimSpace(c.Server.UploadKey)
	if c.Server.UploadKey == "" {
		c.Server.UploadKey = lookupSetting(env, envUploadKey)
	}
}

func (c *Config) normalizeExpiry() {
	if c.Expiry.MinMinutes < 1 {
		c.Expiry.MinMinutes = 1
	}
	if c.Expiry.MaxMinutes < c.Expiry.MinMinutes {
		c.Expiry.MaxMinutes = c.Expiry.MinMinutes
	}
	c.Expiry.DefaultMinutes = clamp(c.Expiry.DefaultMinutes, c.Expiry.MinMinutes, c.Expiry.MaxMinutes)
}

func (c *Config) normalizeDetection() {
	if c.Detection.IntervalSeconds <= 0 {
		c.Detection.IntervalSeconds = defaultDetectIntervalSeconds
	}
	c.Detection.LiveStateURL = strings.TrimSpace(c.Detection.LiveStateURL)
	if c.Detection.LiveStateURL == "" {
		c.Detection.LiveStateURL = defaultLiveStateURL
	}
	if c.Detection.StaleAfterSeconds <= 0 {
		c.Detection.StaleAfterSeconds = defaultLiveStateStaleSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// lookupSetting prefers the process environment over values read from the
// optional .env file.
func lookupSetting(env map[string]string, key string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(env[key])
}

func isAbsoluteURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.IsAbs() && parsed.Host != ""
}
