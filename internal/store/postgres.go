package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pacemakerx/contest-tracker/internal/db"
	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

const pgUniqueViolation = "23505"

// Postgres is the durable Store. Statements are prepared by package db.
type Postgres struct {
	pool       *db.Pool
	claimLease time.Duration
}

// NewPostgres creates a store over an open pool.
func NewPostgres(pool *db.Pool, claimLease time.Duration) *Postgres {
	return &Postgres{pool: pool, claimLease: claimLease}
}

func (s *Postgres) UpsertUser(ctx context.Context, u reminder.User) (reminder.User, error) {
	u, err := prepareUser(u)
	if err != nil {
		return reminder.User{}, err
	}

	stmt := "user_upsert_by_id"
	id := uuid.New()
	if u.ID == "" {
		stmt = "user_upsert_by_username"
	} else {
		id = uuid.MustParse(u.ID)
	}

	err = s.pool.QueryRow(ctx, stmt, id, u.Username, u.Email, u.Phone).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return reminder.User{}, fmt.Errorf("%w: username %q already taken", reminder.ErrInvalidUser, u.Username)
		}
		return reminder.User{}, fmt.Errorf("upsert user: %w", err)
	}

	u.Reminders, err = s.ListReminders(ctx, u.ID)
	if err != nil {
		return reminder.User{}, err
	}
	return u, nil
}

func (s *Postgres) GetUser(ctx context.Context, id string) (reminder.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return reminder.User{}, fmt.Errorf("user %s: %w", id, reminder.ErrNotFound)
	}

	var u reminder.User
	err = s.pool.QueryRow(ctx, "user_get", uid).Scan(&u.ID, &u.Username, &u.Email, &u.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return reminder.User{}, fmt.Errorf("user %s: %w", id, reminder.ErrNotFound)
	}
	if err != nil {
		return reminder.User{}, fmt.Errorf("get user: %w", err)
	}

	u.Reminders, err = s.ListReminders(ctx, u.ID)
	if err != nil {
		return reminder.User{}, err
	}
	return u, nil
}

// ListUsersWithReminders loads every user that has at least one preference,
// with preferences attached, in a single query.
func (s *Postgres) ListUsersWithReminders(ctx context.Context) ([]reminder.User, error) {
	rows, err := s.pool.Query(ctx, "users_with_reminders")
	if err != nil {
		return nil, fmt.Errorf("list users with reminders: %w", err)
	}
	defer rows.Close()

	var users []reminder.User
	index := make(map[string]int)
	for rows.Next() {
		var (
			u reminder.User
			p reminder.Preference
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Phone,
			&p.ContestID, &p.Platform, &p.Method, &p.TimeBeforeMinutes, &p.ContestStart); err != nil {
			return nil, fmt.Errorf("scan user reminder: %w", err)
		}
		i, ok := index[u.ID]
		if !ok {
			i = len(users)
			index[u.ID] = i
			users = append(users, u)
		}
		users[i].Reminders = append(users[i].Reminders, p)
	}
	return users, rows.Err()
}

func (s *Postgres) ListReminders(ctx context.Context, userID string) ([]reminder.Preference, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, reminder.ErrNotFound)
	}
	if err := s.ensureUser(ctx, uid); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, "reminders_by_user", uid)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	prefs := []reminder.Preference{}
	for rows.Next() {
		var p reminder.Preference
		if err := rows.Scan(&p.ContestID, &p.Platform, &p.Method, &p.TimeBeforeMinutes, &p.ContestStart); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

func (s *Postgres) UpsertReminder(ctx context.Context, userID string, p reminder.Preference) (reminder.Preference, error) {
	p, err := preparePreference(p)
	if err != nil {
		return reminder.Preference{}, err
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return reminder.Preference{}, fmt.Errorf("user %s: %w", userID, reminder.ErrNotFound)
	}
	if err := s.ensureUser(ctx, uid); err != nil {
		return reminder.Preference{}, err
	}

	_, err = s.pool.Exec(ctx, "reminder_upsert",
		uid, p.ContestID, string(p.Platform), string(p.Method), p.TimeBeforeMinutes, p.ContestStart)
	if err != nil {
		return reminder.Preference{}, fmt.Errorf("upsert reminder: %w", err)
	}
	return p, nil
}

func (s *Postgres) DeleteReminder(ctx context.Context, userID string, contestID int64) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("reminder %s/%d: %w", userID, contestID, reminder.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, "reminder_delete", uid, contestID)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder %s/%d: %w", userID, contestID, reminder.ErrNotFound)
	}
	return nil
}

// Claim inserts a 'sending' row, or takes over one whose lease expired. A
// conflicting row that is sent or still leased yields no RETURNING row.
func (s *Postgres) Claim(ctx context.Context, key reminder.Key, contestStart, now time.Time) (bool, error) {
	uid, err := uuid.Parse(key.UserID)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}

	var claimedAt time.Time
	err = s.pool.QueryRow(ctx, "record_claim",
		uid, key.ContestID, string(key.Method), contestStart.UTC(), claimStamp(now), now.Add(-s.claimLease).UTC(),
	).Scan(&claimedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return true, nil
}

func (s *Postgres) MarkSent(ctx context.Context, key reminder.Key, now time.Time) error {
	uid, err := uuid.Parse(key.UserID)
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", key, err)
	}
	tag, err := s.pool.Exec(ctx, "record_mark_sent", uid, key.ContestID, string(key.Method), now.UTC())
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", key, reminder.ErrNotFound)
	}
	return nil
}

func (s *Postgres) Release(ctx context.Context, key reminder.Key, claimedAt time.Time) error {
	uid, err := uuid.Parse(key.UserID)
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if _, err := s.pool.Exec(ctx, "record_release", uid, key.ContestID, string(key.Method), claimStamp(claimedAt)); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

func (s *Postgres) PurgeRecords(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "records_purge", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) PurgeStaleReminders(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "reminders_purge_stale", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge stale reminders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.HealthCheck(ctx)
}

func (s *Postgres) ensureUser(ctx context.Context, uid uuid.UUID) error {
	var id, name, email, phone string
	err := s.pool.QueryRow(ctx, "user_get", uid).Scan(&id, &name, &email, &phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("user %s: %w", uid, reminder.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	return nil
}
