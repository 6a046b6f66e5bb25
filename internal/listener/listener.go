// Package listener provides a Postgres LISTEN/NOTIFY consumer for reminder
// preference changes. It holds a dedicated pgx connection (not from the pool)
// listening on the `reminder_changed` channel.
//
// A trigger on reminder_preferences fires pg_notify on every insert, update
// or delete. Bursts of events are coalesced and answered with one early
// sweep, so a reminder created inside its firing window goes out without
// waiting for the next scheduled tick.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pacemakerx/contest-tracker/internal/sweep"
)

const (
	channel          = "reminder_changed"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
	coalesceWindow   = 2 * time.Second
)

// ReminderEvent is the JSON payload from pg_notify('reminder_changed', ...).
type ReminderEvent struct {
	Op        string `json:"op"`
	UserID    string `json:"user_id"`
	ContestID int64  `json:"contest_id"`
}

// Trigger runs one sweep on demand.
type Trigger interface {
	Trigger(ctx context.Context) (sweep.Result, error)
}

// Start opens a dedicated connection and listens on the reminder_changed
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, trigger Trigger, logger *slog.Logger) {
	events := make(chan ReminderEvent, 64)
	go coalesce(ctx, events, coalesceWindow, func() {
		trigger.Trigger(ctx)
	})

	backoff := reconnectBackoff
	for {
		err := listenLoop(ctx, dbURL, events, logger)
		if ctx.Err() != nil {
			logger.Info("Reminder listener stopped (context cancelled)")
			return
		}

		logger.Error("Reminder listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, events chan<- ReminderEvent, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Reminder listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		event, err := parseEvent(notification.Payload)
		if err != nil {
			logger.Warn("Failed to parse reminder event",
				"payload", notification.Payload, "error", err)
			continue
		}

		logger.Debug("Reminder event received",
			"op", event.Op, "user_id", event.UserID, "contest_id", event.ContestID)

		// Deletes cannot make anything due.
		if event.Op == "DELETE" {
			continue
		}

		select {
		case events <- event:
		default:
			// A sweep is already pending; dropping is safe.
		}
	}
}

func parseEvent(payload string) (ReminderEvent, error) {
	var event ReminderEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, err
	}
	if event.Op == "" {
		return event, fmt.Errorf("missing op")
	}
	return event, nil
}

// coalesce calls fire once per burst: the first event opens a window, later
// events inside it are absorbed, and fire runs when the window closes.
func coalesce(ctx context.Context, events <-chan ReminderEvent, window time.Duration, fire func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
		}

		timer := time.NewTimer(window)
	drain:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-events:
			case <-timer.C:
				break drain
			}
		}
		fire()
	}
}
