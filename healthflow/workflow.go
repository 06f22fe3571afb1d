package healthflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Config configures NodeHealthWorkflow's polling and restart policy.
type Config struct {
	PollInterval     time.Duration
	FailureThreshold int           // consecutive failed pings before a restart is attempted
	RestartBackoff   time.Duration // applied before each restart attempt beyond the first
	MaxRestarts      int           // 0 means unlimited
}

func (c Config) withDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.RestartBackoff == 0 {
		c.RestartBackoff = 30 * time.Second
	}
	return c
}

// Status describes one node's health at a point in time. NodeHealthWorkflow
// does not send it to any other workflow.
type Status struct {
	Healthy   bool
	Timestamp time.Time
	Message   string
}

// NodeHealthWorkflow polls PingActivity on PollInterval and, after
// FailureThreshold consecutive failures, calls RestartActivity. It runs
// until its context is cancelled, matching the long-lived per-node
// workflow this package is modeled on.
func NodeHealthWorkflow(ctx workflow.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	logger := workflow.GetLogger(ctx)
	logger.Info("NodeHealthWorkflow started", "pollInterval", cfg.PollInterval, "failureThreshold", cfg.FailureThreshold)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	consecutiveFailures := 0
	restartCount := 0

	for {
		var result PingResult
		err := workflow.ExecuteActivity(ctx, "PingActivity").Get(ctx, &result)

		switch {
		case err != nil:
			logger.Error("ping activity failed", "error", err)
			consecutiveFailures++
		case !result.Healthy:
			logger.Warn("node unhealthy", "error", result.Error, "consecutiveFailures", consecutiveFailures+1)
			consecutiveFailures++
		default:
			consecutiveFailures = 0
		}

		if consecutiveFailures >= cfg.FailureThreshold && (cfg.MaxRestarts == 0 || restartCount < cfg.MaxRestarts) {
			restartCount++
			if restartCount > 1 {
				_ = workflow.Sleep(ctx, cfg.RestartBackoff)
			}
			logger.Info("restarting node", "attempt", restartCount)
			if err := workflow.ExecuteActivity(ctx, "RestartActivity").Get(ctx, nil); err != nil {
				logger.Error("restart activity failed", "error", err)
			} else {
				consecutiveFailures = 0
			}
		}

		if err := workflow.Sleep(ctx, cfg.PollInterval); err != nil {
			return err
		}
	}
}
