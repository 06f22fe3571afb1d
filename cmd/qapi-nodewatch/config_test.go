package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodewatch.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
systemd_unit = "polkadot.service"
endpoint = "ws://127.0.0.1:9944"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SystemdUnit != "polkadot.service" {
		t.Errorf("expected systemd unit polkadot.service, got %q", cfg.SystemdUnit)
	}
	if cfg.PollInterval != 15*time.Second {
		t.Errorf("expected default poll interval 15s, got %v", cfg.PollInterval)
	}
}

func TestLoadConfigRequiresSystemdUnit(t *testing.T) {
	path := writeConfig(t, `endpoint = "ws://127.0.0.1:9944"`)

	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected an error when systemd_unit is missing")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
