// Package maintenance runs periodic background tasks as Go tickers:
// purging NotificationRecords and preferences for contests that are long
// over. Nothing can fire once a contest has started, so these rows are only
// kept for a retention period to aid debugging.
package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration // How often cleanup runs
	RecordRetention time.Duration // Keep rows for contests that started within this period
}

// Purger deletes rows for contests that started before a cutoff.
type Purger interface {
	PurgeRecords(ctx context.Context, before time.Time) (int64, error)
	PurgeStaleReminders(ctx context.Context, before time.Time) (int64, error)
}

// CleanupResult counts rows removed by one cleanup.
type CleanupResult struct {
	Records   int64
	Reminders int64
}

// Start launches the configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, purger Purger, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"cleanup", cfg.CleanupInterval,
		"retention", cfg.RecordRetention)

	if cfg.CleanupInterval > 0 {
		t := time.NewTicker(cfg.CleanupInterval)
		defer t.Stop()
		go runLoop(ctx, t.C, func() {
			Cleanup(ctx, purger, time.Now().Add(-cfg.RecordRetention), logger)
		})
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// Cleanup removes NotificationRecords and stored-start preferences for
// contests that started before cutoff. Failures are logged, not returned, so
// one failing purge does not block the other.
func Cleanup(ctx context.Context, purger Purger, cutoff time.Time, logger *slog.Logger) CleanupResult {
	var res CleanupResult

	n, err := purger.PurgeRecords(ctx, cutoff)
	if err != nil {
		logger.Warn("Cleanup: failed to purge notification records", "error", err)
	} else if n > 0 {
		logger.Info("Cleanup: purged notification records", "count", n, "before", cutoff)
	}
	res.Records = n

	n, err = purger.PurgeStaleReminders(ctx, cutoff)
	if err != nil {
		logger.Warn("Cleanup: failed to purge stale reminders", "error", err)
	} else if n > 0 {
		logger.Info("Cleanup: purged stale reminders", "count", n, "before", cutoff)
	}
	res.Reminders = n

	return res
}
