package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

type memRecord struct {
	status       string
	contestStart time.Time
	claimedAt    time.Time
	sentAt       time.Time
}

// Memory is an in-process Store. State is lost on restart.
type Memory struct {
	mu         sync.Mutex
	users      map[string]reminder.User
	byName     map[string]string
	prefs      map[string]map[int64]reminder.Preference
	records    map[reminder.Key]memRecord
	claimLease time.Duration
}

// NewMemory creates an empty store. claimLease bounds how long a claim is
// honoured before another sweep may take it over.
func NewMemory(claimLease time.Duration) *Memory {
	return &Memory{
		users:      make(map[string]reminder.User),
		byName:     make(map[string]string),
		prefs:      make(map[string]map[int64]reminder.Preference),
		records:    make(map[reminder.Key]memRecord),
		claimLease: claimLease,
	}
}

func (m *Memory) UpsertUser(ctx context.Context, u reminder.User) (reminder.User, error) {
	u, err := prepareUser(u)
	if err != nil {
		return reminder.User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	owner, taken := m.byName[u.Username]
	switch {
	case u.ID == "" && taken:
		u.ID = owner
	case u.ID == "":
		u.ID = uuid.NewString()
	case taken && owner != u.ID:
		return reminder.User{}, fmt.Errorf("%w: username %q already taken", reminder.ErrInvalidUser, u.Username)
	}

	if prev, ok := m.users[u.ID]; ok && prev.Username != u.Username {
		delete(m.byName, prev.Username)
	}
	u.Reminders = nil
	m.users[u.ID] = u
	m.byName[u.Username] = u.ID
	return m.withReminders(u), nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (reminder.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return reminder.User{}, fmt.Errorf("user %s: %w", id, reminder.ErrNotFound)
	}
	return m.withReminders(u), nil
}

func (m *Memory) ListUsersWithReminders(ctx context.Context) ([]reminder.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []reminder.User
	for id, prefs := range m.prefs {
		if len(prefs) == 0 {
			continue
		}
		out = append(out, m.withReminders(m.users[id]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *Memory) ListReminders(ctx context.Context, userID string) ([]reminder.Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return nil, fmt.Errorf("user %s: %w", userID, reminder.ErrNotFound)
	}
	return m.sortedPrefs(userID), nil
}

func (m *Memory) UpsertReminder(ctx context.Context, userID string, p reminder.Preference) (reminder.Preference, error) {
	p, err := preparePreference(p)
	if err != nil {
		return reminder.Preference{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return reminder.Preference{}, fmt.Errorf("user %s: %w", userID, reminder.ErrNotFound)
	}
	if m.prefs[userID] == nil {
		m.prefs[userID] = make(map[int64]reminder.Preference)
	}
	m.prefs[userID][p.ContestID] = p
	return p, nil
}

func (m *Memory) DeleteReminder(ctx context.Context, userID string, contestID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.prefs[userID][contestID]; !ok {
		return fmt.Errorf("reminder %s/%d: %w", userID, contestID, reminder.ErrNotFound)
	}
	delete(m.prefs[userID], contestID)
	return nil
}

func (m *Memory) Claim(ctx context.Context, key reminder.Key, contestStart, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[key]; ok {
		if rec.status == StatusSent {
			return false, nil
		}
		if now.Before(rec.claimedAt.Add(m.claimLease)) {
			return false, nil
		}
	}
	m.records[key] = memRecord{status: StatusSending, contestStart: contestStart.UTC(), claimedAt: claimStamp(now)}
	return true, nil
}

func (m *Memory) MarkSent(ctx context.Context, key reminder.Key, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return fmt.Errorf("record %s: %w", key, reminder.ErrNotFound)
	}
	rec.status = StatusSent
	rec.sentAt = now.UTC()
	m.records[key] = rec
	return nil
}

func (m *Memory) Release(ctx context.Context, key reminder.Key, claimedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.records[key]; ok && rec.status == StatusSending && rec.claimedAt.Equal(claimStamp(claimedAt)) {
		delete(m.records, key)
	}
	return nil
}

func (m *Memory) PurgeRecords(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, rec := range m.records {
		if rec.contestStart.Before(before) {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}

func (m *Memory) PurgeStaleReminders(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, prefs := range m.prefs {
		for id, p := range prefs {
			if p.ContestStart != nil && p.ContestStart.Before(before) {
				delete(prefs, id)
				n++
			}
		}
	}
	return n, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

// withReminders returns u with its preferences attached. Caller holds mu.
func (m *Memory) withReminders(u reminder.User) reminder.User {
	u.Reminders = m.sortedPrefs(u.ID)
	return u
}

func (m *Memory) sortedPrefs(userID string) []reminder.Preference {
	prefs := make([]reminder.Preference, 0, len(m.prefs[userID]))
	for _, p := range m.prefs[userID] {
		prefs = append(prefs, p)
	}
	sort.Slice(prefs, func(i, j int) bool { return prefs[i].ContestID < prefs[j].ContestID })
	return prefs
}
