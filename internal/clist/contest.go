package clist

import (
	"fmt"
	"strings"
	"time"

	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

// clist serializes instants in UTC without a zone suffix.
const clistLayout = "2006-01-02T15:04:05"

// Contest is a single contest from the feed.
type Contest struct {
	ID              int64     `json:"id"`
	Event           string    `json:"event"`
	Host            string    `json:"host"`
	Href            string    `json:"href"`
	Start           Timestamp `json:"start"`
	End             Timestamp `json:"end"`
	DurationSeconds int64     `json:"duration"`
	ResourceID      int64     `json:"resource_id"`
}

// Platform maps the contest host onto a supported platform.
func (c Contest) Platform() (reminder.Platform, bool) {
	p, err := reminder.ParsePlatform(c.Host)
	if err != nil {
		return "", false
	}
	return p, true
}

// Index returns contests keyed by id.
func Index(contests []Contest) map[int64]Contest {
	idx := make(map[int64]Contest, len(contests))
	for _, c := range contests {
		idx[c.ID] = c
	}
	return idx
}

// Timestamp decodes clist instants (zone-less UTC or RFC 3339).
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if ts, err := time.ParseInLocation(clistLayout, s, time.UTC); err == nil {
		t.Time = ts
		return nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("parse clist time %q: %w", s, err)
	}
	t.Time = ts.UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}
