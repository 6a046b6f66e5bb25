// Package store persists users, their reminder preferences, and the
// NotificationRecords that make each reminder fire at most once.
//
// Two implementations share the same semantics: Postgres for production and
// Memory for development and tests.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

// Record statuses.
const (
	StatusSending = "sending"
	StatusSent    = "sent"
)

// Store is the full persistence surface used by the API, the sweep and
// maintenance.
type Store interface {
	UpsertUser(ctx context.Context, u reminder.User) (reminder.User, error)
	GetUser(ctx context.Context, id string) (reminder.User, error)
	ListUsersWithReminders(ctx context.Context) ([]reminder.User, error)

	ListReminders(ctx context.Context, userID string) ([]reminder.Preference, error)
	UpsertReminder(ctx context.Context, userID string, p reminder.Preference) (reminder.Preference, error)
	DeleteReminder(ctx context.Context, userID string, contestID int64) error

	// Claim takes the send lease for key. It returns false when the key was
	// already sent or another claim is still live.
	Claim(ctx context.Context, key reminder.Key, contestStart, now time.Time) (bool, error)
	MarkSent(ctx context.Context, key reminder.Key, now time.Time) error
	// Release drops the 'sending' row for key only if it is still the claim
	// taken at claimedAt, so a sweep whose lease was taken over cannot free
	// the new holder's claim.
	Release(ctx context.Context, key reminder.Key, claimedAt time.Time) error

	// PurgeRecords deletes records for contests that started before the cutoff.
	PurgeRecords(ctx context.Context, before time.Time) (int64, error)
	// PurgeStaleReminders deletes preferences with a stored start before the cutoff.
	PurgeStaleReminders(ctx context.Context, before time.Time) (int64, error)

	Ping(ctx context.Context) error
}

// prepareUser validates and normalizes a user for upsert.
func prepareUser(u reminder.User) (reminder.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	u.Phone = strings.TrimSpace(u.Phone)
	if u.Username == "" {
		return u, fmt.Errorf("%w: username is required", reminder.ErrInvalidUser)
	}
	if u.ID != "" {
		if _, err := uuid.Parse(u.ID); err != nil {
			return u, fmt.Errorf("%w: user id %q is not a uuid", reminder.ErrInvalidUser, u.ID)
		}
	}
	return u, nil
}

// preparePreference normalizes and validates a preference for upsert.
func preparePreference(p reminder.Preference) (reminder.Preference, error) {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// claimStamp normalizes claim times to what Postgres stores (UTC,
// microseconds) so a Release can match the claim it belongs to.
func claimStamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
