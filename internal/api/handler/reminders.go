package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pacemakerx/contest-tracker/internal/api/respond"
	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

// userRequest is the body of POST /users.
type userRequest struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone_number,omitempty"`
}

// reminderRequest is the body of PUT /users/{userID}/reminders. Platform and
// method are parsed leniently (any case, clist hosts accepted).
type reminderRequest struct {
	ContestID         int64      `json:"contest_id"`
	Platform          string     `json:"platform"`
	Method            string     `json:"method,omitempty"`
	TimeBeforeMinutes int        `json:"time_before_minutes,omitempty"`
	ContestStart      *time.Time `json:"contest_start,omitempty"`
}

func (req reminderRequest) preference() (reminder.Preference, error) {
	platform, err := reminder.ParsePlatform(req.Platform)
	if err != nil {
		return reminder.Preference{}, err
	}
	method, err := reminder.ParseMethod(req.Method)
	if err != nil {
		return reminder.Preference{}, err
	}
	return reminder.Preference{
		ContestID:         req.ContestID,
		Platform:          platform,
		Method:            method,
		TimeBeforeMinutes: req.TimeBeforeMinutes,
		ContestStart:      req.ContestStart,
	}, nil
}

// UpsertUser creates a user, or updates the one with the same id or username.
// @Summary Create or update a user
// @Tags users
// @Accept json
// @Produce json
// @Param user body userRequest true "User"
// @Success 200 {object} reminder.User
// @Failure 400 {object} respond.ErrorResponse
// @Router /users [post]
func (h *Handler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	u, err := h.store.UpsertUser(r.Context(), reminder.User{
		ID:       req.ID,
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, u)
}

// GetUser returns a user with their reminder preferences.
// @Summary Get a user
// @Tags users
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {object} reminder.User
// @Failure 404 {object} respond.ErrorResponse
// @Router /users/{userID} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, u)
}

// ListReminders returns a user's reminder preferences ordered by contest id.
// @Summary List reminder preferences
// @Tags reminders
// @Produce json
// @Param userID path string true "User ID"
// @Success 200 {array} reminder.Preference
// @Failure 404 {object} respond.ErrorResponse
// @Router /users/{userID}/reminders [get]
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.store.ListReminders(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, prefs)
}

// UpsertReminder sets the reminder for one contest, replacing any existing
// preference for the same contest id.
// @Summary Set a reminder preference
// @Description Upserts by contest id. Method defaults to email and lead time to 60 minutes.
// @Tags reminders
// @Accept json
// @Produce json
// @Param userID path string true "User ID"
// @Param reminder body reminderRequest true "Reminder preference"
// @Success 200 {object} reminder.Preference
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /users/{userID}/reminders [put]
func (h *Handler) UpsertReminder(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := respond.DecodeJSON(w, r, &req); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	p, err := req.preference()
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	saved, err := h.store.UpsertReminder(r.Context(), chi.URLParam(r, "userID"), p)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, saved)
}

// DeleteReminder removes the reminder for one contest.
// @Summary Delete a reminder preference
// @Tags reminders
// @Param userID path string true "User ID"
// @Param contestID path int true "Contest ID"
// @Success 204
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /users/{userID}/reminders/{contestID} [delete]
func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	contestID, err := strconv.ParseInt(chi.URLParam(r, "contestID"), 10, 64)
	if err != nil || contestID <= 0 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_CONTEST_ID", "contestID must be a positive integer")
		return
	}
	if err := h.store.DeleteReminder(r.Context(), chi.URLParam(r, "userID"), contestID); err != nil {
		h.writeStoreError(w, err)
		return
	}
	respond.WriteNoContent(w)
}
