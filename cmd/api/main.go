// Command api is the Contest Tracker reminder server: HTTP API, cron-driven
// reminder sweeps, the preference change listener and maintenance tickers.
//
// Usage:
//
//	contest-tracker-api
//	API_PORT=8080 SWEEP_SCHEDULE="@every 30s" contest-tracker-api

// @title Contest Tracker API
// @version 1.0.0
// @description Contest listing and per-contest reminder preferences for Codeforces, CodeChef and Leetcode. Reminders are sent by email or SMS once per contest and method.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name Contest Tracker
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pacemakerx/contest-tracker/internal/api"
	"github.com/pacemakerx/contest-tracker/internal/api/handler"
	"github.com/pacemakerx/contest-tracker/internal/app"
	"github.com/pacemakerx/contest-tracker/internal/cache"
	"github.com/pacemakerx/contest-tracker/internal/config"
	"github.com/pacemakerx/contest-tracker/internal/listener"
	"github.com/pacemakerx/contest-tracker/internal/maintenance"
	"github.com/pacemakerx/contest-tracker/internal/sweep"

	_ "github.com/pacemakerx/contest-tracker/docs" // swagger docs
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Open store (Postgres, or memory when DATABASE_URL is unset)
	stores, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Contest feed and notification channels
	feed := app.NewFeed(cfg, logger)
	dispatcher, err := app.NewDispatcher(cfg, false, logger)
	if err != nil {
		logger.Error("Failed to configure notification channels", "error", err)
		os.Exit(1)
	}

	// Reminder sweep scheduler
	sweeper := app.NewSweeper(cfg, stores.Store, feed, dispatcher, logger)
	scheduler, err := sweep.NewScheduler(sweeper, cfg.SweepSchedule, logger)
	if err != nil {
		logger.Error("Failed to create sweep scheduler", "error", err)
		os.Exit(1)
	}
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Sweep scheduler failed", "error", err)
		}
	}()

	// Postgres-only background work
	if stores.Pool != nil {
		// Early sweep when preferences change
		go listener.Start(ctx, cfg.DatabaseURL, scheduler, logger)
	}

	// Maintenance tickers (record and stale preference cleanup)
	go maintenance.Start(ctx, stores.Store, maintenance.Config{
		CleanupInterval: cfg.CleanupInterval,
		RecordRetention: cfg.RecordRetention,
	}, logger)

	// Create router
	deps := api.Deps{
		Store:   stores.Store,
		Sweeps:  scheduler,
		Cache:   appCache,
		Backend: stores.Backend,
		Logger:  logger,
	}
	if feed != nil {
		deps.Feed = handler.ContestFeed(feed)
	}
	router := api.NewRouter(deps, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Contest Tracker API",
			"addr", addr,
			"environment", cfg.Environment,
			"store", stores.Backend,
			"sweep_schedule", cfg.SweepSchedule,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	// Wait for an in-flight sweep to record its outcomes. Its sends are
	// cancelled with ctx; claims are still marked sent or released.
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn("Sweep still running at shutdown deadline")
	}
	logger.Info("Server stopped")
}
