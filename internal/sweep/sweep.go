// Package sweep runs the periodic reminder sweep: load every user's reminder
// preferences, resolve contest start times, and dispatch each reminder whose
// firing window [start-lead, start) contains now, exactly once per
// (user, contest, method).
//
// Pipeline: load users → resolve starts (feed) → filter due → claim → send →
// mark sent (or release on failure so the next tick retries).
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pacemakerx/contest-tracker/internal/clist"
	"github.com/pacemakerx/contest-tracker/internal/notify"
	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

// ErrSweepInProgress is returned when a sweep is already running.
var ErrSweepInProgress = errors.New("sweep already in progress")

const (
	defaultWorkers = 4

	// recordTimeout bounds MarkSent/Release, which run detached from the
	// sweep's context so shutdown cannot strand a claim.
	recordTimeout = 10 * time.Second
)

// --------------------------------------------------------------------------
// Collaborators
// --------------------------------------------------------------------------

// UserSource lists users that have at least one reminder preference.
type UserSource interface {
	ListUsersWithReminders(ctx context.Context) ([]reminder.User, error)
}

// RecordStore holds NotificationRecords. Claim must be atomic per key: it
// succeeds only if no sent record and no live claim exist for the key. The
// claim is stamped with now; Release only drops a claim carrying that stamp.
type RecordStore interface {
	Claim(ctx context.Context, key reminder.Key, contestStart, now time.Time) (bool, error)
	MarkSent(ctx context.Context, key reminder.Key, now time.Time) error
	Release(ctx context.Context, key reminder.Key, claimedAt time.Time) error
}

// ContestFeed fetches contests whose start lies in a range.
type ContestFeed interface {
	FetchContests(ctx context.Context, r clist.Range) ([]clist.Contest, error)
}

// Dispatcher delivers a rendered reminder to a user.
type Dispatcher interface {
	Dispatch(ctx context.Context, u reminder.User, n notify.Notice) error
}

// --------------------------------------------------------------------------
// Sweeper
// --------------------------------------------------------------------------

// Sweeper evaluates all reminder preferences once per Run.
type Sweeper struct {
	users      UserSource
	records    RecordStore
	feed       ContestFeed
	dispatcher Dispatcher
	workers    int
	dryRun     bool
	now        func() time.Time
	logger     *slog.Logger

	running sync.Mutex
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithWorkers sets the number of concurrent dispatch workers.
func WithWorkers(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithDryRun evaluates windows and dispatches (normally to a logging sender)
// without claiming or recording anything, so a preview never consumes a
// reminder.
func WithDryRun() Option {
	return func(s *Sweeper) { s.dryRun = true }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New creates a Sweeper. feed may be nil, in which case preferences without
// a stored start time are never resolved.
func New(users UserSource, records RecordStore, feed ContestFeed, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		users:      users,
		records:    records,
		feed:       feed,
		dispatcher: dispatcher,
		workers:    defaultWorkers,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sweep at the current time.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	return s.RunAt(ctx, s.now())
}

// RunAt performs one sweep as of now. Returns ErrSweepInProgress without
// doing any work if another sweep is running. The returned error is non-nil
// only when the user list could not be loaded at all.
func (s *Sweeper) RunAt(ctx context.Context, now time.Time) (Result, error) {
	if !s.running.TryLock() {
		return Result{}, ErrSweepInProgress
	}
	defer s.running.Unlock()

	now = now.UTC()
	start := time.Now()
	result := Result{RunID: uuid.NewString(), At: now, DryRun: s.dryRun}

	users, err := s.users.ListUsersWithReminders(ctx)
	if err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("list users with reminders: %w", err)
	}
	result.Users = len(users)

	jobs := s.collect(ctx, users, now, &result)
	result.Due = len(jobs)
	if len(jobs) > 0 {
		s.dispatchAll(ctx, jobs, now, &result)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// job is one due (user, preference) pair with a resolved start time.
type job struct {
	user    reminder.User
	pref    reminder.Preference
	start   time.Time
	contest *clist.Contest
}

func (j job) key() reminder.Key {
	return reminder.Key{UserID: j.user.ID, ContestID: j.pref.ContestID, Method: j.pref.Method}
}

func (j job) notice() notify.Notice {
	n := notify.Notice{
		Key:       j.key(),
		Platform:  j.pref.Platform,
		ContestID: j.pref.ContestID,
		Start:     j.start,
		Lead:      j.pref.Lead(),
	}
	if j.contest != nil {
		n.Event = j.contest.Event
		n.URL = j.contest.Href
	}
	return n
}

// collect validates preferences, resolves start times and keeps due pairs.
func (s *Sweeper) collect(ctx context.Context, users []reminder.User, now time.Time, result *Result) []job {
	type pending struct {
		user reminder.User
		pref reminder.Preference
	}

	var (
		stored     []job
		unresolved []pending
		maxLead    time.Duration
	)

	for _, u := range users {
		for _, raw := range u.Reminders {
			result.Preferences++
			p := raw.Normalize()
			if err := p.Validate(); err != nil {
				result.Invalid++
				s.logger.Warn("Skipping invalid reminder preference",
					"user_id", u.ID, "contest_id", raw.ContestID, "error", err)
				continue
			}
			if p.ContestStart != nil {
				stored = append(stored, job{user: u, pref: p, start: *p.ContestStart})
				continue
			}
			unresolved = append(unresolved, pending{user: u, pref: p})
			maxLead = max(maxLead, p.Lead())
		}
	}

	var contests map[int64]clist.Contest
	if len(unresolved) > 0 {
		contests = s.fetchContests(ctx, now, maxLead, result)
	}

	candidates := stored
	for _, pe := range unresolved {
		c, ok := contests[pe.pref.ContestID]
		if !ok {
			result.Unresolved++
			continue
		}
		candidates = append(candidates, job{user: pe.user, pref: pe.pref, start: c.Start.Time, contest: &c})
	}

	var due []job
	for _, j := range candidates {
		if reminder.InWindow(now, j.start, j.pref.TimeBeforeMinutes) {
			due = append(due, j)
		} else {
			result.NotDue++
		}
	}
	return due
}

// fetchContests loads contests starting within [now, now+maxLead]. A feed
// failure is recorded on the result and yields no contests.
func (s *Sweeper) fetchContests(ctx context.Context, now time.Time, maxLead time.Duration, result *Result) map[int64]clist.Contest {
	if s.feed == nil {
		result.FeedError = "contest feed not configured"
		return nil
	}
	contests, err := s.feed.FetchContests(ctx, clist.Range{From: now, To: now.Add(maxLead)})
	if err != nil {
		result.FeedError = err.Error()
		result.AddErrorf("fetch contests: %v", err)
		s.logger.Warn("Contest feed fetch failed; unresolved reminders skipped this tick", "error", err)
		return nil
	}
	return clist.Index(contests)
}

// dispatchAll sends due reminders with a bounded worker pool.
func (s *Sweeper) dispatchAll(ctx context.Context, jobs []job, now time.Time, result *Result) {
	workers := s.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	ch := make(chan job, len(jobs))
	for _, j := range jobs {
		ch <- j
	}
	close(ch)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range ch {
				var out outcome
				if err := ctx.Err(); err != nil {
					// Shutting down: leave the pair unclaimed for the next tick.
					out = outcome{status: statusFailed, err: fmt.Errorf("not attempted: %w", err)}
				} else {
					out = s.dispatchOne(ctx, j, now)
				}
				mu.Lock()
				result.record(j.key(), out)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

// outcome of a single pair.
type outcome struct {
	status pairStatus
	err    error
}

type pairStatus int

const (
	statusSent pairStatus = iota
	statusDuplicate
	statusFailed
	statusNoContact
)

// dispatchOne claims, sends and records a single pair. Errors never escape.
func (s *Sweeper) dispatchOne(ctx context.Context, j job, now time.Time) outcome {
	key := j.key()

	if s.dryRun {
		return s.preview(ctx, j)
	}

	claimed, err := s.records.Claim(ctx, key, j.start, now)
	if err != nil {
		s.logger.Error("Claim failed", "key", key.String(), "error", err)
		return outcome{status: statusFailed, err: fmt.Errorf("claim: %w", err)}
	}
	if !claimed {
		return outcome{status: statusDuplicate}
	}

	// The claim outcome must be written even if ctx is cancelled mid-send.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := s.dispatcher.Dispatch(ctx, j.user, j.notice()); err != nil {
		if relErr := s.records.Release(rctx, key, now); relErr != nil {
			s.logger.Error("Release failed", "key", key.String(), "error", relErr)
		}
		if errors.Is(err, reminder.ErrNoContact) {
			s.logger.Debug("No contact for reminder", "key", key.String(), "error", err)
			return outcome{status: statusNoContact, err: err}
		}
		s.logger.Warn("Reminder send failed; will retry while window is open",
			"key", key.String(), "contest_start", j.start, "error", err)
		return outcome{status: statusFailed, err: err}
	}

	if err := s.records.MarkSent(rctx, key, now); err != nil {
		// The send happened; the claim stays held until its lease expires.
		s.logger.Error("Mark sent failed", "key", key.String(), "error", err)
	}
	return outcome{status: statusSent}
}

// preview dispatches without touching the record store.
func (s *Sweeper) preview(ctx context.Context, j job) outcome {
	if err := s.dispatcher.Dispatch(ctx, j.user, j.notice()); err != nil {
		if errors.Is(err, reminder.ErrNoContact) {
			return outcome{status: statusNoContact, err: err}
		}
		return outcome{status: statusFailed, err: err}
	}
	return outcome{status: statusSent}
}
