package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SWEEP_SCHEDULE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.UseMemoryStore() {
		t.Errorf("expected memory store without DATABASE_URL")
	}
	if cfg.SweepSchedule != "@every 1m" || cfg.SweepWorkers != 4 || cfg.ClaimLease != 5*time.Minute {
		t.Errorf("sweep defaults = %q %d %s", cfg.SweepSchedule, cfg.SweepWorkers, cfg.ClaimLease)
	}

	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, cfg.DisplayLocation()).Zone()
	if offset != 330*60 {
		t.Errorf("display offset = %d, want %d", offset, 330*60)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/contests")
	t.Setenv("SWEEP_SCHEDULE", "*/5 * * * *")
	t.Setenv("CLAIM_LEASE", "90s")
	t.Setenv("RECORD_RETENTION", "3600")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USERNAME", "bot@example.com")
	t.Setenv("EMAIL_FROM", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UseMemoryStore() {
		t.Errorf("expected postgres store")
	}
	if cfg.ClaimLease != 90*time.Second {
		t.Errorf("ClaimLease = %s", cfg.ClaimLease)
	}
	if cfg.RecordRetention != time.Hour {
		t.Errorf("RecordRetention = %s", cfg.RecordRetention)
	}
	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowOrigins = %v", cfg.CORSAllowOrigins)
	}
	if cfg.EmailFrom != "bot@example.com" {
		t.Errorf("EmailFrom = %q", cfg.EmailFrom)
	}
}

func TestLoad_RejectsBadSchedule(t *testing.T) {
	t.Setenv("SWEEP_SCHEDULE", "every minute")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for bad schedule")
	}
}

func TestLoad_RejectsZeroWorkers(t *testing.T) {
	t.Setenv("SWEEP_SCHEDULE", "")
	t.Setenv("SWEEP_WORKERS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero workers")
	}
}
