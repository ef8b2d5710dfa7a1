package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Sender delivers operator notifications about failed invocations.
type Sender interface {
	Send(ctx context.Context, subject, body string) error
}

// NoopSender discards notifications. It is the default: the alerting
// path ships disabled until an operator configures a recipient.
type NoopSender struct{}

func (NoopSender) Send(context.Context, string, string) error { return nil }

// LogSender logs notifications instead of sending them. Used in
// ENV=local with a recipient configured.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, subject, body string) error {
	s.logger.Info("notification (local dev)", "subject", subject, "body", body)
	return nil
}

// ResendSender sends via the Resend API in staging and production.
type ResendSender struct {
	client *resend.Client
	from   string
	to     string
}

func (s *ResendSender) Send(ctx context.Context, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{s.to},
		Subject: subject,
		Text:    body,
	}
	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// NewSender picks the implementation: Noop when no recipient is
// configured, LogSender for ENV=local, Resend otherwise.
func NewSender(env, apiKey, from, to string, logger *slog.Logger) Sender {
	if to == "" {
		return NoopSender{}
	}
	if env == "local" {
		return &LogSender{logger: logger}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
	}
}
