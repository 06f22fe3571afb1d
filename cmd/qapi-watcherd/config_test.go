package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watcherd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsTemporalHost(t *testing.T) {
	path := writeConfig(t, `
endpoint = "ws://127.0.0.1:9944"
systemd_unit = "polkadot.service"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TemporalHost != "localhost:7233" {
		t.Errorf("expected default temporal host, got %q", cfg.TemporalHost)
	}
	if cfg.TemporalNamespace != "default" {
		t.Errorf("expected default temporal namespace, got %q", cfg.TemporalNamespace)
	}
}

func TestLoadConfigRequiresEndpointAndUnit(t *testing.T) {
	cases := map[string]string{
		"missing endpoint": `systemd_unit = "polkadot.service"`,
		"missing unit":     `endpoint = "ws://127.0.0.1:9944"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, body)
			if _, err := loadConfig(path); err == nil {
				t.Fatalf("expected an error for %s", name)
			}
		})
	}
}

func TestLoadConfigOverridesTemporalHost(t *testing.T) {
	path := writeConfig(t, `
endpoint = "ws://127.0.0.1:9944"
systemd_unit = "polkadot.service"
temporal_host = "temporal.internal:7233"
temporal_namespace = "qapi"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TemporalHost != "temporal.internal:7233" {
		t.Errorf("expected overridden temporal host, got %q", cfg.TemporalHost)
	}
	if cfg.TemporalNamespace != "qapi" {
		t.Errorf("expected overridden temporal namespace, got %q", cfg.TemporalNamespace)
	}
}
