// Package healthflow drives a Temporal workflow that periodically pings a
// connected node through the façade and restarts its systemd unit via
// watchdog once failures cross a threshold.
package healthflow

import (
	"context"
	"fmt"
	"time"
)

// Pinger is the subset of *qapi.Qapi this package depends on -- kept
// narrow so activities can be unit tested without a live transport.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Restarter is the subset of *watchdog.Manager this package depends on.
type Restarter interface {
	OnTransportUnhealthy(ctx context.Context) error
}

// Activities holds the dependencies Temporal activities need. Unlike the
// upstream watcher's Activities, which opens its own dbus connection,
// this one is handed already-constructed Pinger/Restarter so the caller
// controls their lifecycle.
type Activities struct {
	Pinger    Pinger
	Restarter Restarter
}

// PingResult is the outcome of one PingActivity invocation.
type PingResult struct {
	Healthy      bool
	Error        string
	ResponseTime time.Duration
}

// PingActivity calls Pinger.Ping and reports the outcome without failing
// the activity itself -- a down node is an expected, not exceptional,
// result.
func (a *Activities) PingActivity(ctx context.Context) (*PingResult, error) {
	start := time.Now()
	err := a.Pinger.Ping(ctx)
	result := &PingResult{ResponseTime: time.Since(start)}
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.Healthy = true
	return result, nil
}

// RestartActivity triggers the watchdog restart. Unlike PingActivity this
// one does fail on error, so Temporal's retry policy applies to it.
func (a *Activities) RestartActivity(ctx context.Context) error {
	if a.Restarter == nil {
		return fmt.Errorf("healthflow: no restarter configured")
	}
	return a.Restarter.OnTransportUnhealthy(ctx)
}
