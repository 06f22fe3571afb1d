package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the on-disk shape of a qapi-nodewatch configuration file,
// decoded with go-toml/v2.
type fileConfig struct {
	SystemdUnit     string        `toml:"systemd_unit"`
	RestartMode     string        `toml:"restart_mode"`
	RestartCooldown time.Duration `toml:"restart_cooldown"`
	PollInterval    time.Duration `toml:"poll_interval"`
	Endpoint        string        `toml:"endpoint"`
}

func loadConfig(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("qapi-nodewatch: read config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("qapi-nodewatch: parse config %s: %w", path, err)
	}
	if cfg.SystemdUnit == "" {
		return fileConfig{}, fmt.Errorf("qapi-nodewatch: systemd_unit is required in %s", path)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 15 * time.Second
	}
	return cfg, nil
}
