package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pacemakerx/contest-tracker/internal/reminder"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSender struct {
	emails []string
	sms    []string
	err    error
}

func (r *recordingSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if r.err != nil {
		return r.err
	}
	r.emails = append(r.emails, to+"|"+subject+"|"+body)
	return nil
}

func (r *recordingSender) SendSMS(ctx context.Context, to, body string) error {
	if r.err != nil {
		return r.err
	}
	r.sms = append(r.sms, to+"|"+body)
	return nil
}

func notice(method reminder.Method) Notice {
	return Notice{
		Key:       reminder.Key{UserID: "u1", ContestID: 42, Method: method},
		Platform:  reminder.Codeforces,
		ContestID: 42,
		Event:     "Codeforces Round 42",
		URL:       "https://codeforces.com/contests/42",
		Start:     time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		Lead:      30 * time.Minute,
	}
}

func TestRenderEmail_UsesDisplayZone(t *testing.T) {
	ist := time.FixedZone("IST", 330*60)
	subject, body := RenderEmail(notice(reminder.Email), ist)

	if subject != "Reminder: Upcoming Codeforces Contest (ID: 42) Starts Soon!" {
		t.Fatalf("subject = %q", subject)
	}
	for _, want := range []string{"03:30 PM IST", "Codeforces Round 42", "https://codeforces.com/contests/42", "30m"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestRenderSMS_FallsBackToContestID(t *testing.T) {
	n := notice(reminder.SMS)
	n.Event, n.URL = "", ""
	got := RenderSMS(n, time.UTC)
	want := "Reminder: Codeforces contest 42 starts at Wed, 01 Jan 2025 10:00 AM UTC."
	if got != want {
		t.Fatalf("sms = %q, want %q", got, want)
	}
}

func TestFormatLead(t *testing.T) {
	cases := map[time.Duration]string{
		45 * time.Minute: "45m",
		time.Hour:        "1h",
		90 * time.Minute: "1h30m",
	}
	for d, want := range cases {
		if got := formatLead(d); got != want {
			t.Errorf("formatLead(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestDispatch_RoutesByMethod(t *testing.T) {
	rec := &recordingSender{}
	d := NewDispatcher(rec, rec, time.UTC, discard)
	u := reminder.User{ID: "u1", Email: "a@example.com", Phone: "+15550001"}

	if err := d.Dispatch(context.Background(), u, notice(reminder.Email)); err != nil {
		t.Fatalf("email dispatch: %v", err)
	}
	if err := d.Dispatch(context.Background(), u, notice(reminder.SMS)); err != nil {
		t.Fatalf("sms dispatch: %v", err)
	}
	if len(rec.emails) != 1 || !strings.HasPrefix(rec.emails[0], "a@example.com|") {
		t.Fatalf("emails = %v", rec.emails)
	}
	if len(rec.sms) != 1 || !strings.HasPrefix(rec.sms[0], "+15550001|") {
		t.Fatalf("sms = %v", rec.sms)
	}
}

func TestDispatch_Errors(t *testing.T) {
	u := reminder.User{ID: "u1", Email: "a@example.com"}

	d := NewDispatcher(nil, nil, time.UTC, discard)
	if err := d.Dispatch(context.Background(), u, notice(reminder.Email)); !errors.Is(err, ErrChannelDisabled) || !errors.Is(err, reminder.ErrTransport) {
		t.Fatalf("disabled channel err = %v", err)
	}
	if err := d.Dispatch(context.Background(), u, notice(reminder.SMS)); !errors.Is(err, reminder.ErrNoContact) {
		t.Fatalf("missing phone err = %v", err)
	}

	failing := NewDispatcher(&recordingSender{err: errors.New("smtp 421")}, nil, time.UTC, discard)
	if err := failing.Dispatch(context.Background(), u, notice(reminder.Email)); !errors.Is(err, reminder.ErrTransport) {
		t.Fatalf("transport err = %v", err)
	}
}

func TestTwilioSender_PostsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC123/Messages.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "tok" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		raw, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(raw))
		if form.Get("To") != "+15550001" || form.Get("From") != "+15559999" || form.Get("Body") != "hi" {
			t.Errorf("form = %v", form)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"sid":"SM1"}`)
	}))
	defer srv.Close()

	s := NewTwilioSender(TwilioConfig{AccountSID: "AC123", AuthToken: "tok", From: "+15559999", BaseURL: srv.URL}, discard)
	if err := s.SendSMS(context.Background(), "+15550001", "hi"); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}
}

func TestTwilioSender_ErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"code":21211,"message":"Invalid 'To' Phone Number"}`)
	}))
	defer srv.Close()

	s := NewTwilioSender(TwilioConfig{AccountSID: "AC1", AuthToken: "t", From: "+1", BaseURL: srv.URL}, discard)
	err := s.SendSMS(context.Background(), "bogus", "hi")
	if err == nil || !strings.Contains(err.Error(), "21211") {
		t.Fatalf("err = %v", err)
	}
}

func TestNewTwilioSender_DisabledWithoutCredentials(t *testing.T) {
	if s := NewTwilioSender(TwilioConfig{AccountSID: "AC1"}, discard); s != nil {
		t.Fatalf("expected nil sender")
	}
}

func TestNewSMTPSender_DisabledWithoutHost(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{}, discard)
	if err != nil || s != nil {
		t.Fatalf("NewSMTPSender = %v, %v", s, err)
	}
}
