package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioConfig holds Twilio Messages API credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string // empty = Twilio production
}

// TwilioSender sends SMS through the Twilio Messages REST API.
type TwilioSender struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	from       string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewTwilioSender creates a Twilio sender limited to one message per second.
// Returns nil when credentials are missing (SMS disabled).
func NewTwilioSender(cfg TwilioConfig, logger *slog.Logger) *TwilioSender {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioSender{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		logger:     logger,
	}
}

// twilioError is the error body returned on non-2xx responses.
type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendSMS delivers body to the phone number to.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	u := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var te twilioError
	if json.Unmarshal(raw, &te) == nil && te.Message != "" {
		return fmt.Errorf("twilio returned %d (code %d): %s", resp.StatusCode, te.Code, te.Message)
	}
	return fmt.Errorf("twilio returned %d", resp.StatusCode)
}
