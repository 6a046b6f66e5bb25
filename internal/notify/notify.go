// Package notify renders contest reminders and delivers them over email or
// SMS.
//
// Dispatcher routes a Notice by its delivery method. Senders are optional:
// a nil channel yields ErrChannelDisabled so the sweep keeps the pair
// eligible rather than recording a send that never happened.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

// ErrChannelDisabled is returned when no sender is configured for a method.
var ErrChannelDisabled = fmt.Errorf("%w: channel not configured", reminder.ErrTransport)

// EmailSender delivers a plain-text email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Notice is one reminder ready for delivery.
type Notice struct {
	Key       reminder.Key
	Platform  reminder.Platform
	ContestID int64
	Event     string
	URL       string
	Start     time.Time
	Lead      time.Duration
}

// Dispatcher sends notices through the channel matching their method.
type Dispatcher struct {
	email  EmailSender
	sms    SMSSender
	loc    *time.Location
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. Either sender may be a nil interface.
// loc is the zone start times are rendered in.
func NewDispatcher(email EmailSender, sms SMSSender, loc *time.Location, logger *slog.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{email: email, sms: sms, loc: loc, logger: logger}
}

// Dispatch delivers n to u. Transport failures wrap reminder.ErrTransport;
// a missing address wraps reminder.ErrNoContact.
func (d *Dispatcher) Dispatch(ctx context.Context, u reminder.User, n Notice) error {
	to, err := u.Contact(n.Key.Method)
	if err != nil {
		return err
	}

	switch n.Key.Method {
	case reminder.Email:
		if d.email == nil {
			return ErrChannelDisabled
		}
		subject, body := RenderEmail(n, d.loc)
		if err := d.email.SendEmail(ctx, to, subject, body); err != nil {
			return wrapTransport("email", err)
		}
	case reminder.SMS:
		if d.sms == nil {
			return ErrChannelDisabled
		}
		if err := d.sms.SendSMS(ctx, to, RenderSMS(n, d.loc)); err != nil {
			return wrapTransport("sms", err)
		}
	default:
		return fmt.Errorf("%w: unknown method %q", reminder.ErrInvalidPreference, n.Key.Method)
	}

	d.logger.Info("Reminder delivered",
		"user_id", n.Key.UserID, "contest_id", n.ContestID,
		"platform", n.Platform, "method", n.Key.Method)
	return nil
}

func wrapTransport(channel string, err error) error {
	if errors.Is(err, reminder.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", reminder.ErrTransport, channel, err)
}
