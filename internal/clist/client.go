// Package clist provides the contest feed client for the clist.by v4 API.
//
// clist uses offset pagination (meta.next) and "ApiKey user:key" header auth.
// Rate limiting is handled via a token bucket limiter.
package clist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

const (
	DefaultBaseURL = "https://clist.by/api/v4"
	pageSize       = 100
	maxPages       = 20
)

// Range filters contests by start time, inclusive on both ends.
type Range struct {
	From time.Time
	To   time.Time
}

// Client is the HTTP client for the clist contest endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a clist client with rate limiting.
func NewClient(baseURL, apiKey string, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// contestPage is the clist list response wrapper.
type contestPage struct {
	Meta struct {
		Limit      int     `json:"limit"`
		Offset     int     `json:"offset"`
		Next       *string `json:"next"`
		TotalCount *int    `json:"total_count"`
	} `json:"meta"`
	Objects []Contest `json:"objects"`
}

// FetchContests returns contests on the supported platforms whose start lies
// in r, ordered by start. Every failure wraps reminder.ErrFeedUnavailable.
func (c *Client) FetchContests(ctx context.Context, r Range) ([]Contest, error) {
	params := url.Values{}
	params.Set("start__gte", formatTime(r.From))
	params.Set("start__lte", formatTime(r.To))
	params.Set("resource__in", strings.Join(reminder.Hosts(), ","))
	params.Set("order_by", "start")
	params.Set("limit", strconv.Itoa(pageSize))

	var contests []Contest
	offset := 0
	for page := 0; page < maxPages; page++ {
		params.Set("offset", strconv.Itoa(offset))
		resp, err := c.get(ctx, "/contest/", params)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", reminder.ErrFeedUnavailable, err)
		}
		contests = append(contests, resp.Objects...)

		if resp.Meta.Next == nil || len(resp.Objects) == 0 {
			return contests, nil
		}
		offset += len(resp.Objects)
	}

	c.logger.Warn("clist page cap reached", "pages", maxPages, "contests", len(contests))
	return contests, nil
}

// get performs a rate-limited GET request to a clist endpoint.
func (c *Client) get(ctx context.Context, path string, params url.Values) (*contestPage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("clist %s returned %d: %s", path, resp.StatusCode, truncate(body, 200))
	}

	var result contestPage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(clistLayout)
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
