// Package app assembles the reminder service's components from config.
// Shared by cmd/api and cmd/remind.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pacemakerx/contest-tracker/internal/clist"
	"github.com/pacemakerx/contest-tracker/internal/config"
	"github.com/pacemakerx/contest-tracker/internal/db"
	"github.com/pacemakerx/contest-tracker/internal/notify"
	"github.com/pacemakerx/contest-tracker/internal/store"
	"github.com/pacemakerx/contest-tracker/internal/sweep"
)

// Backend names reported by health checks.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Stores is an opened store plus what is needed to close it.
type Stores struct {
	store.Store
	Backend string
	Pool    *db.Pool // nil for the memory backend
}

// Close releases the pool, if any.
func (s *Stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStore opens Postgres (migrating first when configured) or falls back
// to the in-memory store when DATABASE_URL is unset.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	if cfg.UseMemoryStore() {
		logger.Warn("DATABASE_URL not set; using in-memory store (records are lost on restart)")
		return &Stores{Store: store.NewMemory(cfg.ClaimLease), Backend: BackendMemory}, nil
	}

	if cfg.AutoMigrate {
		applied, err := db.Migrate(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("Schema up to date", "applied", len(applied))
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	return &Stores{
		Store:   store.NewPostgres(pool, cfg.ClaimLease),
		Backend: BackendPostgres,
		Pool:    pool,
	}, nil
}

// NewFeed creates the clist client. Returns nil when no API key is set.
func NewFeed(cfg *config.Config, logger *slog.Logger) *clist.Client {
	if cfg.ClistAPIKey == "" {
		logger.Warn("CLIST_API_KEY not set; contest feed disabled")
		return nil
	}
	return clist.NewClient(cfg.ClistBaseURL, cfg.ClistAPIKey, cfg.ClistRequestsPerMinute, logger)
}

// NewDispatcher wires the configured email and SMS channels. With dryRun
// set, both channels only log.
func NewDispatcher(cfg *config.Config, dryRun bool, logger *slog.Logger) (*notify.Dispatcher, error) {
	loc := cfg.DisplayLocation()
	if dryRun {
		l := notify.NewLogSender(logger)
		return notify.NewDispatcher(l, l, loc, logger), nil
	}

	var email notify.EmailSender
	smtp, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
	}, logger)
	if err != nil {
		return nil, err
	}
	if smtp != nil {
		email = smtp
	} else {
		logger.Warn("SMTP_HOST not set; email reminders disabled")
	}

	var sms notify.SMSSender
	if twilio := notify.NewTwilioSender(notify.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioFromNumber,
	}, logger); twilio != nil {
		sms = twilio
	} else {
		logger.Warn("Twilio credentials not set; SMS reminders disabled")
	}

	return notify.NewDispatcher(email, sms, loc, logger), nil
}

// NewSweeper assembles a sweeper over the store, feed and dispatcher.
func NewSweeper(cfg *config.Config, st store.Store, feed *clist.Client, d *notify.Dispatcher, logger *slog.Logger, opts ...sweep.Option) *sweep.Sweeper {
	var f sweep.ContestFeed
	if feed != nil {
		f = feed
	}
	opts = append([]sweep.Option{sweep.WithWorkers(cfg.SweepWorkers)}, opts...)
	return sweep.New(st, st, f, d, logger, opts...)
}
