package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/pacemakerx/contest-tracker/internal/api/respond"
	"github.com/pacemakerx/contest-tracker/internal/sweep"
)

// TriggerSweep runs one reminder sweep immediately.
// The sweep is detached from the request context so a client disconnect
// does not abort sends in flight.
// @Summary Run a reminder sweep
// @Description Runs one sweep now and returns its counters. Returns 409 if a sweep is already running.
// @Tags reminders
// @Produce json
// @Success 200 {object} sweep.Result
// @Failure 409 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /reminders/sweep [post]
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeps == nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "SWEEP_DISABLED", "Sweep scheduler is not running")
		return
	}

	result, err := h.sweeps.Trigger(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, sweep.ErrSweepInProgress):
		respond.WriteError(w, http.StatusConflict, "SWEEP_IN_PROGRESS", "A sweep is already running")
	case err != nil:
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "SWEEP_FAILED", "Sweep failed", err.Error())
	default:
		respond.WriteJSONObject(w, http.StatusOK, result)
	}
}
