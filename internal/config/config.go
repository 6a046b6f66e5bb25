// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/remind.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// --------------------------------------------------------------------------
// Config is populated from environment variables.
// --------------------------------------------------------------------------

type Config struct {
	// Database. Empty DatabaseURL selects the in-memory store.
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration
	AutoMigrate    bool

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Contest feed (clist.by)
	ClistBaseURL           string
	ClistAPIKey            string
	ClistRequestsPerMinute int

	// Sweep
	SweepSchedule string
	SweepWorkers  int
	ClaimLease    time.Duration

	// Display zone for rendered start times
	DisplayTZName          string
	DisplayTZOffsetMinutes int

	// Email (SMTP). Empty host disables email.
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	// SMS (Twilio). Missing credentials disable SMS.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// Cache
	CacheEnabled bool

	// Maintenance
	RecordRetention time.Duration
	CleanupInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,
		AutoMigrate:    envBool("AUTO_MIGRATE", true),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		ClistBaseURL:           envOr("CLIST_BASE_URL", "https://clist.by/api/v4"),
		ClistAPIKey:            envOr("CLIST_API_KEY", ""),
		ClistRequestsPerMinute: envInt("CLIST_REQUESTS_PER_MINUTE", 10),

		SweepSchedule: envOr("SWEEP_SCHEDULE", "@every 1m"),
		SweepWorkers:  envInt("SWEEP_WORKERS", 4),
		ClaimLease:    envDuration("CLAIM_LEASE", 5*time.Minute),

		DisplayTZName:          envOr("DISPLAY_TZ_NAME", "IST"),
		DisplayTZOffsetMinutes: envInt("DISPLAY_TZ_OFFSET_MINUTES", 330),

		SMTPHost:     envOr("SMTP_HOST", ""),
		SMTPPort:     envInt("SMTP_PORT", 587),
		SMTPUsername: envOr("SMTP_USERNAME", ""),
		SMTPPassword: envOr("SMTP_PASSWORD", ""),
		EmailFrom:    envOr("EMAIL_FROM", ""),

		TwilioAccountSID: envOr("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  envOr("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: envOr("TWILIO_FROM_NUMBER", ""),

		CacheEnabled: envBool("CACHE_ENABLED", true),

		RecordRetention: envDuration("RECORD_RETENTION", 30*24*time.Hour),
		CleanupInterval: envDuration("CLEANUP_INTERVAL", 30*time.Minute),
	}

	if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
		return nil, fmt.Errorf("SWEEP_SCHEDULE %q: %w", cfg.SweepSchedule, err)
	}
	if cfg.SweepWorkers < 1 {
		return nil, fmt.Errorf("SWEEP_WORKERS must be at least 1, got %d", cfg.SweepWorkers)
	}
	if cfg.ClaimLease <= 0 {
		return nil, fmt.Errorf("CLAIM_LEASE must be positive, got %s", cfg.ClaimLease)
	}
	if cfg.SMTPHost != "" && cfg.EmailFrom == "" {
		cfg.EmailFrom = cfg.SMTPUsername
	}
	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UseMemoryStore reports whether no database is configured.
func (c *Config) UseMemoryStore() bool {
	return c.DatabaseURL == ""
}

// DisplayLocation returns the fixed zone reminder times are rendered in.
func (c *Config) DisplayLocation() *time.Location {
	return time.FixedZone(c.DisplayTZName, c.DisplayTZOffsetMinutes*60)
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("90s", "5m") or plain seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
