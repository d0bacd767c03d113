package notify

import (
	"context"
	"log/slog"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Sender delivers one email. SMTP, SendGrid and SES implementations are
// interchangeable.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender only logs. Used when no email provider is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not sent (no provider configured)", "to", msg.To, "subject", msg.Subject)
	return nil
}
