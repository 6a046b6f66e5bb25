package notify

import (
	"context"
	"log/slog"
)

// LogSender only logs what would have been sent. Used for dry runs.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a dry-run sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(ctx context.Context, to, subject, body string) error {
	s.logger.Info("Email send (dry run)", "to", to, "subject", subject, "bytes", len(body))
	return nil
}

func (s *LogSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("SMS send (dry run)", "to", to, "body", body)
	return nil
}
