package notify

import (
	"fmt"
	"strings"
	"time"
)

const displayLayout = "Mon, 02 Jan 2006 03:04 PM MST"

// RenderEmail builds the subject and body of a reminder email.
func RenderEmail(n Notice, loc *time.Location) (subject, body string) {
	subject = fmt.Sprintf("Reminder: Upcoming %s Contest (ID: %d) Starts Soon!", n.Platform, n.ContestID)

	var b strings.Builder
	b.WriteString("Hello Champion!\n\n")
	fmt.Fprintf(&b, "This is a reminder that your contest on %s (Contest ID: %d)", n.Platform, n.ContestID)
	if n.Event != "" {
		fmt.Fprintf(&b, ", %q,", n.Event)
	}
	b.WriteString(" is scheduled to begin at:\n\n")
	fmt.Fprintf(&b, "  Date & Time: %s\n", n.Start.In(loc).Format(displayLayout))
	if n.Lead > 0 {
		fmt.Fprintf(&b, "  Starts in:   %s\n", formatLead(n.Lead))
	}
	if n.URL != "" {
		fmt.Fprintf(&b, "  Link:        %s\n", n.URL)
	}
	b.WriteString("\nMake sure you're ready to give it your best shot!\n")
	b.WriteString("Pro tip: double-check your internet connection and login credentials before the contest starts.\n\n")
	b.WriteString("Best of luck!\nTeam PacemakerX\n")
	return subject, b.String()
}

// RenderSMS builds a single-line reminder text.
func RenderSMS(n Notice, loc *time.Location) string {
	name := n.Event
	if name == "" {
		name = fmt.Sprintf("%s contest %d", n.Platform, n.ContestID)
	}
	msg := fmt.Sprintf("Reminder: %s starts at %s.", name, n.Start.In(loc).Format(displayLayout))
	if n.URL != "" {
		msg += " Visit: " + n.URL
	}
	return msg
}

// formatLead renders a lead time like "1h30m" or "45m".
func formatLead(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
