package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the sweeper on a cron schedule. Ticks that arrive while a
// sweep is still running are skipped.
type Scheduler struct {
	sweeper  *Sweeper
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for the given cron spec
// (e.g. "@every 1m" or "*/5 * * * *").
func NewScheduler(sweeper *Sweeper, schedule string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	return &Scheduler{sweeper: sweeper, schedule: schedule, logger: logger}, nil
}

// Start runs sweeps until ctx is cancelled, then waits for the running sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	l := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(s.schedule, func() { s.Trigger(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.logger.Info("Sweep scheduler started", "schedule", s.schedule)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("Sweep scheduler stopped")
	return nil
}

// Trigger runs one sweep and logs its outcome.
func (s *Scheduler) Trigger(ctx context.Context) (Result, error) {
	result, err := s.sweeper.Run(ctx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.logger.Info("Sweep skipped, previous run still in progress")
	case err != nil:
		s.logger.Error("Sweep failed", "run_id", result.RunID, "error", err)
	default:
		s.logger.Info("Sweep complete", "run_id", result.RunID, "summary", result.Summary())
		if result.FeedError != "" {
			s.logger.Warn("Sweep ran without contest feed", "run_id", result.RunID, "feed_error", result.FeedError)
		}
	}
	return result, err
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
