package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pacemakerx/contest-tracker/internal/api/respond"
	"github.com/pacemakerx/contest-tracker/internal/cache"
	"github.com/pacemakerx/contest-tracker/internal/clist"
	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

// Listing window around now.
const (
	contestsLookBack  = 7 * 24 * time.Hour
	contestsLookAhead = 30 * 24 * time.Hour
)

// contestView is a contest as listed by the API.
type contestView struct {
	ID       int64             `json:"id"`
	Event    string            `json:"event"`
	Platform reminder.Platform `json:"platform"`
	Href     string            `json:"href"`
	Start    clist.Timestamp   `json:"start"`
	End      clist.Timestamp   `json:"end"`
	Duration int64             `json:"duration"`
	Status   string            `json:"status"`
}

// GetContests lists supported-platform contests from a week ago to a month ahead.
// @Summary List contests
// @Description Returns Codeforces, CodeChef and Leetcode contests starting between now-7d and now+30d, ordered by start. Cached with ETag support.
// @Tags contests
// @Produce json
// @Param platform query string false "Filter by platform" Enums(Codeforces, CodeChef, Leetcode)
// @Success 200 {array} contestView
// @Success 304
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /contests [get]
func (h *Handler) GetContests(w http.ResponseWriter, r *http.Request) {
	var filter reminder.Platform
	if raw := r.URL.Query().Get("platform"); raw != "" {
		p, err := reminder.ParsePlatform(raw)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_PLATFORM", err.Error())
			return
		}
		filter = p
	}

	if h.feed == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "FEED_DISABLED", "Contest feed is not configured")
		return
	}

	cacheKey := fmt.Sprintf("contests:%s", filter)
	ttl := cache.TTLContests

	data, etag, hit, err := h.cache.Fetch(cacheKey, ttl, func() ([]byte, error) {
		now := h.now().UTC()
		// Shared by every waiter on this key; one client leaving must not cancel it.
		contests, err := h.feed.FetchContests(context.WithoutCancel(r.Context()), clist.Range{
			From: now.Add(-contestsLookBack),
			To:   now.Add(contestsLookAhead),
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(contestViews(contests, filter, now))
	})
	if err != nil {
		h.logger.Warn("Contest listing failed", "error", err)
		if errors.Is(err, reminder.ErrFeedUnavailable) {
			respond.WriteError(w, http.StatusServiceUnavailable, "FEED_UNAVAILABLE", "Contest feed is unavailable")
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
		return
	}

	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, ttl, hit)
}

func contestViews(contests []clist.Contest, filter reminder.Platform, now time.Time) []contestView {
	views := make([]contestView, 0, len(contests))
	for _, c := range contests {
		p, ok := c.Platform()
		if !ok || (filter != "" && p != filter) {
			continue
		}
		views = append(views, contestView{
			ID:       c.ID,
			Event:    c.Event,
			Platform: p,
			Href:     c.Href,
			Start:    c.Start,
			End:      c.End,
			Duration: c.DurationSeconds,
			Status:   contestStatus(c, now),
		})
	}
	return views
}

func contestStatus(c clist.Contest, now time.Time) string {
	switch {
	case now.Before(c.Start.Time):
		return "upcoming"
	case now.Before(c.End.Time):
		return "ongoing"
	default:
		return "past"
	}
}
