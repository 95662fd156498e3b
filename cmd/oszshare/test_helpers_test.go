package main

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	stateDir   string
	apiBind    string
}

type cliConfig struct {
	serverURL  string
	autoDetect bool
}

func freeAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	return addr
}

func setupCLITestEnv(t *testing.T, opts cliConfig) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("OSZSHARE_UPLOAD_KEY", "")
	t.Setenv("OSZSHARE_SERVER_URL", "")
	t.Setenv("OSZSHARE_API_TOKEN", "")

	if opts.serverURL == "" {
		opts.serverURL = "http://" + freeAddress(t)
	}
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(homeDir, ".config", "oszshare", "config.toml"),
		stateDir:   filepath.Join(base, "state"),
		apiBind:    freeAddress(t),
	}
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(`[server]
base_url = %q
auto_detect = %t

[paths]
state_dir = %q
log_dir = %q
temp_dir = %q
api_bind = %q

[detection]
interval_seconds = 1
live_state_url = %q
`,
		opts.serverURL,
		opts.autoDetect,
		env.stateDir,
		filepath.Join(base, "logs"),
		filepath.Join(base, "tmp"),
		env.apiBind,
		"ws://"+freeAddress(t)+"/ws",
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
