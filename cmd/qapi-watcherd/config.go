package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the on-disk shape of a qapi-watcherd configuration file.
type fileConfig struct {
	Endpoint         string        `toml:"endpoint"`
	SystemdUnit      string        `toml:"systemd_unit"`
	RestartMode      string        `toml:"restart_mode"`
	RestartCooldown  time.Duration `toml:"restart_cooldown"`
	PollInterval     time.Duration `toml:"poll_interval"`
	FailureThreshold int           `toml:"failure_threshold"`
	RestartBackoff   time.Duration `toml:"restart_backoff"`
	MaxRestarts      int           `toml:"max_restarts"`
	TemporalHost      string        `toml:"temporal_host"`
	TemporalNamespace string        `toml:"temporal_namespace"`
}

func loadConfig(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("qapi-watcherd: read config %s: %w", path, err)
	}

	cfg := fileConfig{
		TemporalHost:      "localhost:7233",
		TemporalNamespace: "default",
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("qapi-watcherd: parse config %s: %w", path, err)
	}
	if cfg.Endpoint == "" {
		return fileConfig{}, fmt.Errorf("qapi-watcherd: endpoint is required in %s", path)
	}
	if cfg.SystemdUnit == "" {
		return fileConfig{}, fmt.Errorf("qapi-watcherd: systemd_unit is required in %s", path)
	}
	return cfg, nil
}
