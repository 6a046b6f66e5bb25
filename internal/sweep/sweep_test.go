package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pacemakerx/contest-tracker/internal/clist"
	"github.com/pacemakerx/contest-tracker/internal/notify"
	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeUsers struct {
	users []reminder.User
	err   error
}

func (f *fakeUsers) ListUsersWithReminders(ctx context.Context) ([]reminder.User, error) {
	return f.users, f.err
}

// fakeRecords honours ctx on writes the way the Postgres store does.
type fakeRecords struct {
	mu      sync.Mutex
	sending map[reminder.Key]bool
	sent    map[reminder.Key]bool
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{sending: map[reminder.Key]bool{}, sent: map[reminder.Key]bool{}}
}

func (f *fakeRecords) Claim(ctx context.Context, key reminder.Key, contestStart, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent[key] || f.sending[key] {
		return false, nil
	}
	f.sending[key] = true
	return true, nil
}

func (f *fakeRecords) MarkSent(ctx context.Context, key reminder.Key, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sending, key)
	f.sent[key] = true
	return nil
}

func (f *fakeRecords) Release(ctx context.Context, key reminder.Key, claimedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sending, key)
	return nil
}

type fakeFeed struct {
	contests []clist.Contest
	err      error
	calls    int
	last     clist.Range
}

func (f *fakeFeed) FetchContests(ctx context.Context, r clist.Range) ([]clist.Contest, error) {
	f.calls++
	f.last = r
	return f.contests, f.err
}

type fakeDispatcher struct {
	mu      sync.Mutex
	sent    []reminder.Key
	failN   map[reminder.Key]int
	entered chan struct{}
	block   chan struct{}
	onSend  func()
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, u reminder.User, n notify.Notice) error {
	if f.onSend != nil {
		f.onSend()
	}
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	if _, err := u.Contact(n.Key.Method); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failN[n.Key] > 0 {
		f.failN[n.Key]--
		return fmt.Errorf("%w: smtp 421", reminder.ErrTransport)
	}
	f.sent = append(f.sent, n.Key)
	return nil
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

var contestStart = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func at(hh, mm, ss int) time.Time {
	return time.Date(2025, 1, 1, hh, mm, ss, 0, time.UTC)
}

func storedPref(id int64, minutes int) reminder.Preference {
	start := contestStart
	return reminder.Preference{
		ContestID:         id,
		Platform:          reminder.Codeforces,
		Method:            reminder.Email,
		TimeBeforeMinutes: minutes,
		ContestStart:      &start,
	}
}

func user(id string, prefs ...reminder.Preference) reminder.User {
	return reminder.User{ID: id, Username: id, Email: id + "@example.com", Reminders: prefs}
}

func newSweeper(users []reminder.User, feed ContestFeed, d *fakeDispatcher) (*Sweeper, *fakeRecords) {
	rec := newFakeRecords()
	return New(&fakeUsers{users: users}, rec, feed, d, discard, WithWorkers(2)), rec
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRunAt_FiringWindowBoundaries(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"before window", at(8, 59, 0), 0},
		{"window opens", at(9, 0, 0), 1},
		{"inside window", at(9, 59, 59), 1},
		{"at start", at(10, 0, 0), 0},
		{"after start", at(10, 1, 0), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			s, _ := newSweeper([]reminder.User{user("u1", storedPref(1, 60))}, nil, d)

			res, err := s.RunAt(context.Background(), tc.now)
			if err != nil {
				t.Fatalf("RunAt: %v", err)
			}
			if d.count() != tc.want || res.Sent != tc.want {
				t.Fatalf("sent = %d (result %d), want %d", d.count(), res.Sent, tc.want)
			}
		})
	}
}

func TestRunAt_SendsOncePerKey(t *testing.T) {
	d := &fakeDispatcher{}
	s, _ := newSweeper([]reminder.User{user("u1", storedPref(1, 60))}, nil, d)

	for _, now := range []time.Time{at(9, 0, 0), at(9, 1, 0), at(9, 30, 0), at(9, 59, 0)} {
		if _, err := s.RunAt(context.Background(), now); err != nil {
			t.Fatalf("RunAt(%s): %v", now, err)
		}
	}
	if d.count() != 1 {
		t.Fatalf("sent = %d, want 1", d.count())
	}

	res, _ := s.RunAt(context.Background(), at(9, 59, 30))
	if res.Duplicates != 1 || res.Sent != 0 {
		t.Fatalf("repeat tick: %+v", res)
	}
}

// A reminder configured with a 30-minute lead on a contest at 10:00: ticks at
// 09:29 and after 10:00 send nothing, the first tick at or after 09:30 sends.
func TestRunAt_ThirtyMinuteLeadScenario(t *testing.T) {
	d := &fakeDispatcher{}
	s, _ := newSweeper([]reminder.User{user("u1", storedPref(7, 30))}, nil, d)

	steps := []struct {
		now  time.Time
		want int
	}{
		{at(9, 29, 0), 0},
		{at(9, 30, 0), 1},
		{at(9, 31, 0), 1},
		{at(10, 0, 1), 1},
	}
	for _, st := range steps {
		if _, err := s.RunAt(context.Background(), st.now); err != nil {
			t.Fatalf("RunAt: %v", err)
		}
		if d.count() != st.want {
			t.Fatalf("at %s sent = %d, want %d", st.now.Format("15:04:05"), d.count(), st.want)
		}
	}
}

func TestRunAt_NoRetroactiveFiring(t *testing.T) {
	d := &fakeDispatcher{}
	s, _ := newSweeper([]reminder.User{user("u1", storedPref(1, 60))}, nil, d)

	// Scheduler was down for the whole window.
	res, err := s.RunAt(context.Background(), at(10, 5, 0))
	if err != nil {
		t.Fatalf("RunAt: %v", err)
	}
	if d.count() != 0 || res.NotDue != 1 {
		t.Fatalf("late tick: sent=%d result=%+v", d.count(), res)
	}
}

func TestRunAt_ZoneOfNowIrrelevant(t *testing.T) {
	d := &fakeDispatcher{}
	s, _ := newSweeper([]reminder.User{user("u1", storedPref(1, 60))}, nil, d)

	ist := time.FixedZone("IST", 330*60)
	if _, err := s.RunAt(context.Background(), at(9, 15, 0).In(ist)); err != nil {
		t.Fatalf("RunAt: %v", err)
	}
	if d.count() != 1 {
		t.Fatalf("sent = %d, want 1", d.count())
	}
}

func TestRunAt_ResolvesStartFromFeed(t *testing.T) {
	feed := &fakeFeed{contests: []clist.Contest{
		{ID: 42, Event: "Round 42", Host: "codeforces.com", Href: "https://codeforces.com/contests/42", Start: clist.Timestamp{Time: contestStart}},
	}}
	pref := reminder.Preference{ContestID: 42, Platform: reminder.Codeforces, TimeBeforeMinutes: 45}
	missing := reminder.Preference{ContestID: 99, Platform: reminder.Codeforces, TimeBeforeMinutes: 120}

	d := &fakeDispatcher{}
	s, _ := newSweeper([]reminder.User{user("u1", pref, missing)}, feed, d)

	res, err := s.RunAt(context.Background(), at(9, 20, 0))
	if err != nil {
		t.Fatalf("RunAt: %v", err)
	}
	if feed.calls != 1 {
		t.Fatalf("feed calls = %d, want 1", feed.calls)
	}
	if !feed.last.From.Equal(at(9, 20, 0)) || !feed.last.To.Equal(at(11, 20, 0)) {
		t.Fatalf("feed range = %+v", feed.last)
	}
	if res.Sent != 1 || res.Unresolved != 1 {
		t.Fatalf("result = %+v", res)
	}
	if d.sent[0] != (reminder.Key{UserID: "u1", ContestID: 42, Method: reminder.Email}) {
		t.Fatalf("sent key = %v", d.sent[0])
	}
}

func TestRunAt_UnresolvedContestFiresOnceItAppears(t *testing.T) {
	feed := &fakeFeed{}
	pref := reminder.Preference{ContestID: 42, Platform: reminder.Codeforces, TimeBeforeMinutes: 60}

	d := &fakeDispatcher{}
	s, _ := newSweeper([]reminder.User{user("u1", pref)}, feed, d)

	res, err := s.RunAt(context.Background(), at(9, 10, 0))
	if err != nil {
		t.Fatalf("RunAt: %v", err)
	}
	if res.Unresolved != 1 || res.Sent != 0 || d.count() != 0 {
		t.Fatalf("first tick: %+v", res)
	}

	feed.contests = []clist.Contest{{ID: 42, Host: "codeforces.com", Start: clist.Timestamp{Time: contestStart}}}
	res, err = s.RunAt(context.Background(), at(9, 11, 0))
	if err != nil {
		t.Fatalf("RunAt: %v", err)
	}
	if res.Unresolved != 0 || res.Sent != 1 || d.count() != 1 {
		t.Fatalf("second tick: %+v", res)
	}
}

func TestRunAt_FeedErrorSkipsOnlyUnresolved(t *testing.T) {
	feed := &fakeFeed{err: fmt.Errorf("%w: clist returned 503", reminder.ErrFeedUnavailable)}
	feedPref := reminder.Preference{ContestID: 42, Platform: reminder.Codeforces}

	d := &fakeDispatcher{}
	s, _ := newSweeper([]reminder.User{user("u1", storedPref(1, 60), feedPref)}, feed, d)

	res, err := s.RunAt(context.Background(), at(9, 30, 0))
	if err != nil {
		t.Fatalf("RunAt: %v", err)
	}
	if res.FeedError == "" || res.Unresolved != 1 || res.Sent != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunAt_IsolatesFailures(t *testing.T) {
	bad := reminder.Preference{ContestID: 2, Platform: "Topcoder", TimeBeforeMinutes: 60}
	noPhone := storedPref(3, 60)
	noPhone.Method = reminder.SMS
	failing := reminder.Key{UserID: "u2", ContestID: 1, Method: reminder.Email}

	users := []reminder.User{
		user("u1", storedPref(1, 60), bad, noPhone),
		user("u2", storedPref(1, 60)),
		user("u3", storedPref(1, 60)),
	}
	d := &fakeDispatcher{failN: map[reminder.Key]int{failing: 1}}
	s, _ := newSweeper(users, nil, d)

	res, err := s.RunAt(context.Background(), at(9, 30, 0))
	if err != nil {
		t.Fatalf("RunAt: %v", err)
	}
	if res.Invalid != 1 || res.NoContact != 1 || res.Failed != 1 || res.Sent != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestRunAt_FailedSendRetriedNextTick(t *testing.T) {
	key := reminder.Key{UserID: "u1", ContestID: 1, Method: reminder.Email}
	d := &fakeDispatcher{failN: map[reminder.Key]int{key: 1}}
	s, rec := newSweeper([]reminder.User{user("u1", storedPref(1, 60))}, nil, d)

	res, _ := s.RunAt(context.Background(), at(9, 30, 0))
	if res.Failed != 1 || rec.sending[key] || rec.sent[key] {
		t.Fatalf("after failure: result=%+v sending=%v sent=%v", res, rec.sending[key], rec.sent[key])
	}

	res, _ = s.RunAt(context.Background(), at(9, 31, 0))
	if res.Sent != 1 || !rec.sent[key] {
		t.Fatalf("retry: result=%+v", res)
	}
}

func TestRunAt_UserLoadError(t *testing.T) {
	s := New(&fakeUsers{err: errors.New("db down")}, newFakeRecords(), nil, &fakeDispatcher{}, discard)
	if _, err := s.RunAt(context.Background(), at(9, 30, 0)); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunAt_RejectsOverlappingSweep(t *testing.T) {
	d := &fakeDispatcher{entered: make(chan struct{}, 1), block: make(chan struct{})}
	s, _ := newSweeper([]reminder.User{user("u1", storedPref(1, 60))}, nil, d)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.RunAt(context.Background(), at(9, 30, 0))
	}()
	<-d.entered

	if _, err := s.RunAt(context.Background(), at(9, 30, 0)); !errors.Is(err, ErrSweepInProgress) {
		t.Fatalf("overlapping sweep err = %v", err)
	}

	close(d.block)
	<-done
	if d.count() != 1 {
		t.Fatalf("sent = %d, want 1", d.count())
	}
}

func TestNewScheduler_RejectsBadSchedule(t *testing.T) {
	if _, err := NewScheduler(&Sweeper{}, "every minute", discard); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := NewScheduler(&Sweeper{}, "@every 1m", discard); err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
}

func TestRunAt_CancelledMidSendStillMarksSent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	key := reminder.Key{UserID: "u1", ContestID: 1, Method: reminder.Email}

	d := &fakeDispatcher{onSend: cancel}
	s, rec := newSweeper([]reminder.User{user("u1", storedPref(1, 60))}, nil, d)

	res, err := s.RunAt(ctx, at(9, 0, 0))
	if err != nil {
		t.Fatalf("RunAt: %v", err)
	}
	if res.Sent != 1 || !rec.sent[key] || rec.sending[key] {
		t.Fatalf("result=%+v sent=%v sending=%v", res, rec.sent[key], rec.sending[key])
	}

	// Well past any claim lease: the record, not the lease, blocks a resend.
	d.onSend = nil
	res, _ = s.RunAt(context.Background(), at(9, 6, 0))
	if d.count() != 1 || res.Duplicates != 1 {
		t.Fatalf("dispatched %d times, want 1 (result %+v)", d.count(), res)
	}
}

func TestRunAt_CancelledFailedSendReleasesClaim(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	key := reminder.Key{UserID: "u1", ContestID: 1, Method: reminder.Email}

	d := &fakeDispatcher{onSend: cancel, failN: map[reminder.Key]int{key: 1}}
	s, rec := newSweeper([]reminder.User{user("u1", storedPref(1, 60))}, nil, d)

	res, _ := s.RunAt(ctx, at(9, 0, 0))
	if res.Failed != 1 || rec.sending[key] {
		t.Fatalf("result=%+v sending=%v", res, rec.sending[key])
	}

	d.onSend = nil
	res, _ = s.RunAt(context.Background(), at(9, 1, 0))
	if res.Sent != 1 {
		t.Fatalf("retry: %+v", res)
	}
}

func TestRunAt_StopsTakingJobsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	skipped := reminder.Key{UserID: "u2", ContestID: 1, Method: reminder.Email}

	d := &fakeDispatcher{onSend: cancel}
	rec := newFakeRecords()
	users := []reminder.User{user("u1", storedPref(1, 60)), user("u2", storedPref(1, 60))}
	s := New(&fakeUsers{users: users}, rec, nil, d, discard, WithWorkers(1))

	res, _ := s.RunAt(ctx, at(9, 0, 0))
	if d.count() != 1 || res.Sent != 1 || res.Failed != 1 {
		t.Fatalf("sent=%d result=%+v", d.count(), res)
	}
	if rec.sending[skipped] || rec.sent[skipped] {
		t.Fatal("skipped pair was claimed")
	}
}

func TestRunAt_DryRunRecordsNothing(t *testing.T) {
	key := reminder.Key{UserID: "u1", ContestID: 1, Method: reminder.Email}
	users := &fakeUsers{users: []reminder.User{user("u1", storedPref(1, 60))}}
	rec := newFakeRecords()

	preview := &fakeDispatcher{}
	res, err := New(users, rec, nil, preview, discard, WithDryRun()).RunAt(context.Background(), at(9, 40, 0))
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !res.DryRun || res.Sent != 1 || preview.count() != 1 {
		t.Fatalf("dry run result = %+v", res)
	}
	if rec.sending[key] || rec.sent[key] {
		t.Fatal("dry run wrote a record")
	}

	live := &fakeDispatcher{}
	res, _ = New(users, rec, nil, live, discard).RunAt(context.Background(), at(9, 41, 0))
	if res.Sent != 1 || live.count() != 1 {
		t.Fatalf("live tick after dry run = %+v", res)
	}
}
