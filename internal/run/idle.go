package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/REBAR-SHOP-OS/cusum-brain-flow-sub011/internal/model"
	"go.uber.org/zap"
)

// PauseIdle pauses every active run whose last event is older than
// threshold at now, and returns the IDs of the machines it paused.
func (c *Coordinator) PauseIdle(ctx context.Context, now time.Time, threshold time.Duration) ([]string, error) {
	if threshold <= 0 {
		return nil, nil
	}

	var paused []string
	for _, l := range c.allLanes() {
		machineID, err := c.pauseIfIdle(ctx, l, now, threshold)
		if err != nil {
			return paused, err
		}
		if machineID != "" {
			paused = append(paused, machineID)
		}
	}
	return paused, nil
}

func (c *Coordinator) pauseIfIdle(ctx context.Context, l *lane, now time.Time, threshold time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.run == nil || l.run.Status != model.RunActive {
		return "", nil
	}
	idle := now.Sub(l.run.LastEventAt)
	if idle < threshold {
		return "", nil
	}

	out, err := c.transition(ctx, l, model.ActionPause, model.RunActive, model.RunPaused)
	if err != nil {
		return "", err
	}
	c.logger.Info("Idle run paused",
		zap.String("machine", out.Run.MachineID),
		zap.Duration("idle", idle))
	return out.Run.MachineID, nil
}

// ErrInvalidInterval is returned by WatchIdle for a non-positive interval.
var ErrInvalidInterval = errors.New("idle check interval must be positive")

// WatchIdle calls PauseIdle every interval until ctx is done. It blocks;
// run it in its own goroutine.
func (c *Coordinator) WatchIdle(ctx context.Context, interval, threshold time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w, got %s", ErrInvalidInterval, interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.PauseIdle(ctx, c.now(), threshold); err != nil {
				c.logger.Error("Idle check failed", zap.Error(err))
			}
		}
	}
}
