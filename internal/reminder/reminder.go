// Package reminder defines the contest reminder domain: users, their
// per-contest reminder preferences, and the firing-window arithmetic the
// sweep uses to decide when a reminder is due.
//
// All instants are absolute (time.Time compared in UTC). Display zones only
// matter when a message is rendered, see package notify.
package reminder

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultTimeBefore is applied when a preference omits its lead time.
	DefaultTimeBefore = 60
	// MaxTimeBefore caps the lead time at one week.
	MaxTimeBefore = 7 * 24 * 60
)

// --------------------------------------------------------------------------
// Platform
// --------------------------------------------------------------------------

// Platform is a contest platform supported by the tracker.
type Platform string

const (
	Codeforces Platform = "Codeforces"
	CodeChef   Platform = "CodeChef"
	Leetcode   Platform = "Leetcode"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{Codeforces, CodeChef, Leetcode}

var platformHosts = map[Platform]string{
	Codeforces: "codeforces.com",
	CodeChef:   "codechef.com",
	Leetcode:   "leetcode.com",
}

// Host returns the clist resource host for the platform.
func (p Platform) Host() string {
	return platformHosts[p]
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	_, ok := platformHosts[p]
	return ok
}

// ParsePlatform accepts a platform name in any case or its clist host.
func ParsePlatform(s string) (Platform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, host := range platformHosts {
		if s == strings.ToLower(string(p)) || s == host {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown platform %q", ErrInvalidPreference, s)
}

// Hosts returns the clist hosts of all supported platforms.
func Hosts() []string {
	hosts := make([]string, 0, len(Platforms))
	for _, p := range Platforms {
		hosts = append(hosts, p.Host())
	}
	return hosts
}

// --------------------------------------------------------------------------
// Method
// --------------------------------------------------------------------------

// Method is the delivery channel of a reminder.
type Method string

const (
	Email Method = "email"
	SMS   Method = "sms"
)

// Valid reports whether m is a supported delivery method.
func (m Method) Valid() bool {
	return m == Email || m == SMS
}

// ParseMethod parses "email" or "sms" (case-insensitive). Empty means email.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "email":
		return Email, nil
	case "sms":
		return SMS, nil
	}
	return "", fmt.Errorf("%w: unknown method %q", ErrInvalidPreference, s)
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Preference asks for a reminder about one contest. A nil ContestStart means
// the start time is resolved from the contest feed by ContestID.
type Preference struct {
	ContestID         int64      `json:"contest_id"`
	Platform          Platform   `json:"platform"`
	Method            Method     `json:"method"`
	TimeBeforeMinutes int        `json:"time_before_minutes"`
	ContestStart      *time.Time `json:"contest_start,omitempty"`
}

// Normalize fills defaults for an omitted method and lead time.
func (p Preference) Normalize() Preference {
	if p.Method == "" {
		p.Method = Email
	}
	if p.TimeBeforeMinutes == 0 {
		p.TimeBeforeMinutes = DefaultTimeBefore
	}
	if p.ContestStart != nil {
		t := p.ContestStart.UTC()
		p.ContestStart = &t
	}
	return p
}

// Validate reports malformed preferences. Errors wrap ErrInvalidPreference.
func (p Preference) Validate() error {
	switch {
	case p.ContestID <= 0:
		return fmt.Errorf("%w: contest id must be positive", ErrInvalidPreference)
	case !p.Platform.Valid():
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidPreference, p.Platform)
	case !p.Method.Valid():
		return fmt.Errorf("%w: unknown method %q", ErrInvalidPreference, p.Method)
	case p.TimeBeforeMinutes <= 0:
		return fmt.Errorf("%w: time before must be positive", ErrInvalidPreference)
	case p.TimeBeforeMinutes > MaxTimeBefore:
		return fmt.Errorf("%w: time before exceeds %d minutes", ErrInvalidPreference, MaxTimeBefore)
	case p.ContestStart != nil && p.ContestStart.IsZero():
		return fmt.Errorf("%w: zero contest start", ErrInvalidPreference)
	}
	return nil
}

// Lead returns the lead time as a duration.
func (p Preference) Lead() time.Duration {
	return time.Duration(p.TimeBeforeMinutes) * time.Minute
}

// User is a tracker account as seen by the reminder sweep.
type User struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone_number,omitempty"`
	Reminders []Preference `json:"reminders,omitempty"`
}

// Contact returns the address to use for the method.
func (u User) Contact(m Method) (string, error) {
	var addr string
	switch m {
	case Email:
		addr = u.Email
	case SMS:
		addr = u.Phone
	}
	if strings.TrimSpace(addr) == "" {
		return "", fmt.Errorf("%w: user %s has no %s address", ErrNoContact, u.ID, m)
	}
	return addr, nil
}

// Key identifies a NotificationRecord: one successful send per key.
type Key struct {
	UserID    string
	ContestID int64
	Method    Method
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%s", k.UserID, k.ContestID, k.Method)
}

// --------------------------------------------------------------------------
// Firing window
// --------------------------------------------------------------------------

// FireAt returns the instant a reminder becomes eligible.
func FireAt(start time.Time, minutes int) time.Time {
	return start.Add(-time.Duration(minutes) * time.Minute)
}

// InWindow reports whether now lies in the half-open window [fireAt, start).
func InWindow(now, start time.Time, minutes int) bool {
	return !now.Before(FireAt(start, minutes)) && now.Before(start)
}
