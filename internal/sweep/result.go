package sweep

import (
	"fmt"
	"time"

	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

// Result tracks the outcome of a single sweep.
//
// Unresolved counts feed-resolved preferences whose contest was absent from
// the feed window [now, now+max lead]. That covers contests that already
// started, contests further ahead than their lead time and unknown ids; none
// of them is due, and all are looked up again next tick. NotDue counts
// preferences with a known start outside their firing window.
type Result struct {
	RunID       string        `json:"run_id"`
	At          time.Time     `json:"at"`
	Users       int           `json:"users"`
	Preferences int           `json:"preferences"`
	Invalid     int           `json:"invalid"`
	Unresolved  int           `json:"unresolved"`
	NotDue      int           `json:"not_due"`
	Due         int           `json:"due"`
	Sent        int           `json:"sent"`
	Duplicates  int           `json:"duplicates"`
	Failed      int           `json:"failed"`
	NoContact   int           `json:"no_contact"`
	FeedError   string        `json:"feed_error,omitempty"`
	DryRun      bool          `json:"dry_run,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	Errors      []string      `json:"errors,omitempty"`
}

// AddErrorf records a formatted error message.
func (r *Result) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) record(key reminder.Key, out outcome) {
	switch out.status {
	case statusSent:
		r.Sent++
	case statusDuplicate:
		r.Duplicates++
	case statusNoContact:
		r.NoContact++
	case statusFailed:
		r.Failed++
		r.AddErrorf("%s: %v", key, out.err)
	}
}

// Summary returns a human-readable summary.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"users=%d prefs=%d due=%d sent=%d dup=%d failed=%d no_contact=%d not_due=%d not_in_feed=%d invalid=%d dry_run=%t dur=%s",
		r.Users, r.Preferences, r.Due, r.Sent, r.Duplicates, r.Failed,
		r.NoContact, r.NotDue, r.Unresolved, r.Invalid, r.DryRun, r.Duration.Round(time.Millisecond))
}
