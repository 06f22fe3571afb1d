// Package watchdog restarts the locally connected node's systemd unit when
// the transport layer reports sustained connection failure. Unlike a
// multi-service orchestrator supervising a tree of units, this package
// supervises exactly one: the node this client is talking to.
package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
)

// dbusConnInterface is the subset of *dbus.Conn this package calls,
// narrowed so tests can substitute a fake connection without a running
// systemd/dbus.
type dbusConnInterface interface {
	Close()
	GetUnitProperties(unit string) (map[string]interface{}, error)
	RestartUnit(name string, mode string, ch chan<- string) (int, error)
}

var newDbusConnectionFunc = func() (dbusConnInterface, error) { return dbus.New() }

// Config describes the unit to supervise and the restart policy applied
// once the transport is declared unhealthy.
type Config struct {
	SystemdUnit     string
	RestartMode     string // e.g. "replace"; defaults to "replace" when empty
	RestartCooldown time.Duration
}

// Manager restarts Config.SystemdUnit on demand, rate-limited by
// RestartCooldown so a flapping transport cannot hammer systemd.
type Manager struct {
	cfg          Config
	dbusConn     dbusConnInterface
	lastRestart  time.Time
	restartCount int
}

// New opens a dbus connection and returns a Manager for cfg.SystemdUnit.
func New(cfg Config) (*Manager, error) {
	if cfg.SystemdUnit == "" {
		return nil, fmt.Errorf("watchdog: SystemdUnit is required")
	}
	if cfg.RestartMode == "" {
		cfg.RestartMode = "replace"
	}
	conn, err := newDbusConnectionFunc()
	if err != nil {
		return nil, fmt.Errorf("watchdog: connect to dbus: %w", err)
	}
	return &Manager{cfg: cfg, dbusConn: conn}, nil
}

// Close releases the underlying dbus connection.
func (m *Manager) Close() {
	m.dbusConn.Close()
}

// ActiveState reports the unit's current ActiveState (e.g. "active",
// "failed"), as seen by systemd right now.
func (m *Manager) ActiveState(ctx context.Context) (string, error) {
	props, err := m.dbusConn.GetUnitProperties(m.cfg.SystemdUnit)
	if err != nil {
		return "", fmt.Errorf("watchdog: get unit properties for %s: %w", m.cfg.SystemdUnit, err)
	}
	state, ok := props["ActiveState"].(string)
	if !ok {
		return "", fmt.Errorf("watchdog: ActiveState missing or not a string for %s", m.cfg.SystemdUnit)
	}
	return state, nil
}

// OnTransportUnhealthy is called by a caller (directly, or via healthflow)
// after N consecutive reconnect failures. It restarts the supervised unit
// unless RestartCooldown has not yet elapsed since the last restart.
func (m *Manager) OnTransportUnhealthy(ctx context.Context) error {
	if m.cfg.RestartCooldown > 0 && !m.lastRestart.IsZero() {
		if elapsed := time.Since(m.lastRestart); elapsed < m.cfg.RestartCooldown {
			return fmt.Errorf("watchdog: restart of %s skipped, cooldown active for %s", m.cfg.SystemdUnit, m.cfg.RestartCooldown-elapsed)
		}
	}

	ch := make(chan string, 1)
	if _, err := m.dbusConn.RestartUnit(m.cfg.SystemdUnit, m.cfg.RestartMode, ch); err != nil {
		return fmt.Errorf("watchdog: restart unit %s: %w", m.cfg.SystemdUnit, err)
	}

	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("watchdog: restart unit %s finished with result %q", m.cfg.SystemdUnit, result)
		}
	case <-ctx.Done():
		return fmt.Errorf("watchdog: restart unit %s: %w", m.cfg.SystemdUnit, ctx.Err())
	}

	m.lastRestart = time.Now()
	m.restartCount++
	return nil
}

// RestartCount reports how many restarts this Manager has performed.
func (m *Manager) RestartCount() int {
	return m.restartCount
}
