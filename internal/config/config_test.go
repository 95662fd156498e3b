package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"oszshare/internal/config"
)

func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OSZSHARE_UPLOAD_KEY", "")
	t.Setenv("OSZSHARE_SERVER_URL", "")
	t.Setenv("OSZSHARE_API_TOKEN", "")
	return home
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	home := isolateEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(home, ".local", "share", "oszshare")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.LogDir != filepath.Join(wantState, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Server.BaseURL != "https://168.107.57.128.sslip.io" {
		t.Fatalf("unexpected server url: %q", cfg.Server.BaseURL)
	}
	if cfg.Expiry.DefaultMinutes != 5 || cfg.Expiry.MinMinutes != 1 || cfg.Expiry.MaxMinutes != 60 {
		t.Fatalf("unexpected expiry defaults: %+v", cfg.Expiry)
	}
	if cfg.Detection.IntervalSeconds != 2 {
		t.Fatalf("unexpected detection interval: %d", cfg.Detection.IntervalSeconds)
	}
	if cfg.Logging.RetentionDays != 7 {
		t.Fatalf("unexpected retention: %d", cfg.Logging.RetentionDays)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadNormalizesInvalidServerAndExpiry(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, t.TempDir(), `
[server]
base_url = "not a url"

[expiry]
default_minutes = 500
min_minutes = 0
max_minutes = -3
`)

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Server.BaseURL != config.Default().Server.BaseURL {
		t.Fatalf("expected default server url, got %q", cfg.Server.BaseURL)
	}
	if cfg.Expiry.MinMinutes != 1 || cfg.Expiry.MaxMinutes != 1 || cfg.Expiry.DefaultMinutes != 1 {
		t.Fatalf("unexpected expiry normalization: %+v", cfg.Expiry)
	}
}

func TestLoadTrimsTrailingSlashFromServer(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, t.TempDir(), `
[server]
base_url = "http://share.example.test:8080/"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.BaseURL != "http://share.example.test:8080" {
		t.Fatalf("unexpected server url: %q", cfg.Server.BaseURL)
	}
}

func TestLoadReadsSecretsFromDotEnv(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, "[logging]\nlevel = \"debug\"\n")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OSZSHARE_UPLOAD_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.UploadKey != "from-file" {
		t.Fatalf("expected upload key from .env, got %q", cfg.Server.UploadKey)
	}

	t.Setenv("OSZSHARE_UPLOAD_KEY", "from-env")
	cfg, _, _, err = config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.UploadKey != "from-env" {
		t.Fatalf("expected process env to win, got %q", cfg.Server.UploadKey)
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	isolateEnv(t)
	path := writeConfig(t, t.TempDir(), "[logging]\nlevel = \"chatty\"\n")
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for log level")
	}
}

func TestClampExpiry(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		in   int
		want int
	}{
		{0, 5},
		{-1, 5},
		{30, 30},
		{61, 60},
		{1, 1},
	}
	for _, tt := range tests {
		if got := cfg.ClampExpiry(tt.in); got != tt.want {
			t.Fatalf("ClampExpiry(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCreateSampleLoads(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
}
