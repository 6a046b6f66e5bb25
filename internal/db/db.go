// Package db provides a pgxpool-based connection pool with prepared statement
// registration, embedded migrations and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacemakerx/contest-tracker/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool. The schema must already
// exist since statements are prepared on connect; see Migrate.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// Statements maps prepared statement names to SQL. Exported so callers can
// reference names and tests can check them.
var Statements = map[string]string{
	// Health
	"health_check": "SELECT 1",

	// Users
	"user_upsert_by_username": `
		INSERT INTO users (id, username, email, phone_number) VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET email = EXCLUDED.email, phone_number = EXCLUDED.phone_number, updated_at = NOW()
		RETURNING id::text`,
	"user_upsert_by_id": `
		INSERT INTO users (id, username, email, phone_number) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username, email = EXCLUDED.email,
		    phone_number = EXCLUDED.phone_number, updated_at = NOW()
		RETURNING id::text`,
	"user_get": "SELECT id::text, username, email, phone_number FROM users WHERE id = $1",

	// Reminder preferences
	"users_with_reminders": `
		SELECT u.id::text, u.username, u.email, u.phone_number,
		       p.contest_id, p.platform, p.method, p.time_before_minutes, p.contest_start
		FROM users u
		JOIN reminder_preferences p ON p.user_id = u.id
		ORDER BY u.username, p.contest_id`,
	"reminders_by_user": `
		SELECT contest_id, platform, method, time_before_minutes, contest_start
		FROM reminder_preferences WHERE user_id = $1 ORDER BY contest_id`,
	"reminder_upsert": `
		INSERT INTO reminder_preferences (user_id, contest_id, platform, method, time_before_minutes, contest_start)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, contest_id) DO UPDATE
		SET platform = EXCLUDED.platform, method = EXCLUDED.method,
		    time_before_minutes = EXCLUDED.time_before_minutes,
		    contest_start = EXCLUDED.contest_start, updated_at = NOW()`,
	"reminder_delete":       "DELETE FROM reminder_preferences WHERE user_id = $1 AND contest_id = $2",
	"reminders_purge_stale": "DELETE FROM reminder_preferences WHERE contest_start IS NOT NULL AND contest_start < $1",

	// Notification records. A conflicting row is only taken over when it is
	// an unfinished claim older than the lease cutoff ($6).
	"record_claim": `
		INSERT INTO notification_records (user_id, contest_id, method, status, contest_start, claimed_at)
		VALUES ($1, $2, $3, 'sending', $4, $5)
		ON CONFLICT (user_id, contest_id, method) DO UPDATE
		SET contest_start = EXCLUDED.contest_start, claimed_at = EXCLUDED.claimed_at
		WHERE notification_records.status = 'sending' AND notification_records.claimed_at < $6
		RETURNING claimed_at`,
	"record_mark_sent": `
		UPDATE notification_records SET status = 'sent', sent_at = $4
		WHERE user_id = $1 AND contest_id = $2 AND method = $3`,
	"record_release": `
		DELETE FROM notification_records
		WHERE user_id = $1 AND contest_id = $2 AND method = $3 AND status = 'sending'
		  AND claimed_at = $4`,
	"records_purge": "DELETE FROM notification_records WHERE contest_start < $1",
}

// registerPreparedStatements registers all statements the store layer uses.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	for name, sql := range Statements {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
