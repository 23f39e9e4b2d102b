// Package settle implements the pause taken before the health check is
// re-enabled after a backup, so the load spike left by the backup does not
// trip it.
package settle

import (
	"context"
	"fmt"
	"time"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/logging"
)

// DefaultDelay is the pause used when none is configured.
const DefaultDelay = 15 * time.Minute

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Controller runs the settling delay. A zero Delay or Bypass skips it.
// Progress, when positive, splits the wait and logs the remaining time
// after each slice.
type Controller struct {
	Delay    time.Duration
	Bypass   bool
	Progress time.Duration
	Sleep    SleepFunc
	Logger   *logging.Logger
}

// Wait returns nil once the delay has elapsed (or was skipped). It returns
// an error when ctx is cancelled first; callers must not re-enable the
// check in that case.
func (c *Controller) Wait(ctx context.Context) error {
	if c.Bypass {
		c.Logger.Skip("Settling delay bypassed")
		return nil
	}
	if c.Delay <= 0 {
		c.Logger.Debug("Settling delay disabled")
		return nil
	}

	sleep := c.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}

	c.Logger.Info("Waiting %s for system load to settle", c.Delay)
	remaining := c.Delay
	for remaining > 0 {
		slice := remaining
		if c.Progress > 0 && c.Progress < slice {
			slice = c.Progress
		}
		if err := sleep(ctx, slice); err != nil {
			return fmt.Errorf("settling delay interrupted with %s left: %w", remaining, err)
		}
		remaining -= slice
		if remaining > 0 {
			c.Logger.Debug("Settling delay: %s remaining", remaining)
		}
	}
	return nil
}

// SleepWithContext waits for d unless ctx is done first.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
