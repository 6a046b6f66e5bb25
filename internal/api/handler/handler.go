// Package handler provides HTTP handlers for all API endpoints.
// Handlers talk to the store, the contest feed and the sweep scheduler
// through small interfaces so they can be exercised without Postgres.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pacemakerx/contest-tracker/internal/api/respond"
	"github.com/pacemakerx/contest-tracker/internal/cache"
	"github.com/pacemakerx/contest-tracker/internal/clist"
	"github.com/pacemakerx/contest-tracker/internal/reminder"
	"github.com/pacemakerx/contest-tracker/internal/sweep"
)

// Store is the persistence surface the handlers need.
type Store interface {
	UpsertUser(ctx context.Context, u reminder.User) (reminder.User, error)
	GetUser(ctx context.Context, id string) (reminder.User, error)
	ListReminders(ctx context.Context, userID string) ([]reminder.Preference, error)
	UpsertReminder(ctx context.Context, userID string, p reminder.Preference) (reminder.Preference, error)
	DeleteReminder(ctx context.Context, userID string, contestID int64) error
	Ping(ctx context.Context) error
}

// ContestFeed fetches contests in a start-time range.
type ContestFeed interface {
	FetchContests(ctx context.Context, r clist.Range) ([]clist.Contest, error)
}

// SweepTrigger runs one reminder sweep on demand.
type SweepTrigger interface {
	Trigger(ctx context.Context) (sweep.Result, error)
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store   Store
	feed    ContestFeed
	sweeps  SweepTrigger
	cache   *cache.Cache
	backend string
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a Handler with shared dependencies. backend names the store
// implementation for health output ("postgres" or "memory").
func New(store Store, feed ContestFeed, sweeps SweepTrigger, c *cache.Cache, backend string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		feed:    feed,
		sweeps:  sweeps,
		cache:   c,
		backend: backend,
		now:     time.Now,
		logger:  logger,
	}
}

// healthStatus is the body of every /health endpoint.
type healthStatus struct {
	Status    string       `json:"status"`
	Database  string       `json:"database,omitempty"`
	Backend   string       `json:"backend,omitempty"`
	Error     string       `json:"error,omitempty"`
	Cache     *cache.Stats `json:"cache,omitempty"`
	Timestamp string       `json:"timestamp"`
}

func (h *Handler) health(status string) healthStatus {
	return healthStatus{Status: status, Timestamp: h.now().UTC().Format(time.RFC3339)}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, supported platforms and docs location.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":      "Contest Tracker API",
		"version":   "1.0.0",
		"docs":      "/docs",
		"platforms": reminder.Platforms,
		"methods":   []reminder.Method{reminder.Email, reminder.SMS},
		"feed":      h.feed != nil,
		"sweeps":    h.sweeps != nil,
	})
}

// HealthCheck reports liveness.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} handler.healthStatus
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.health("healthy"))
}

// HealthCheckDB pings the reminder store.
// @Summary Store health check
// @Description Verifies the reminder store (Postgres or in-memory) is reachable.
// @Tags health
// @Produce json
// @Success 200 {object} handler.healthStatus
// @Failure 503 {object} handler.healthStatus
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Store health check failed", "backend", h.backend, "error", err)
		st := h.health("unhealthy")
		st.Database, st.Backend, st.Error = "disconnected", h.backend, "Database connection check failed"
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, st)
		return
	}
	st := h.health("healthy")
	st.Database, st.Backend = "connected", h.backend
	respond.WriteJSONObject(w, http.StatusOK, st)
}

// HealthCheckCache returns response cache statistics.
// @Summary Cache health check
// @Tags health
// @Produce json
// @Success 200 {object} handler.healthStatus
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.Stats()
	st := h.health("healthy")
	st.Cache = &stats
	respond.WriteJSONObject(w, http.StatusOK, st)
}

// writeStoreError maps domain errors to HTTP statuses.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reminder.ErrNotFound):
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, reminder.ErrInvalidPreference), errors.Is(err, reminder.ErrInvalidUser):
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	default:
		h.logger.Error("Store operation failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
	}
}
