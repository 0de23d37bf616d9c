// Package mailer delivers customer notifications by email.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailgun/mailgun-go/v4"
)

// Message is a plain-text email to one recipient.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers a message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds mail delivery settings.
type Config struct {
	Enabled       bool
	MailgunDomain string
	MailgunAPIKey string
	FromEmail     string
	FromName      string
}

// IsConfigured reports whether Mailgun delivery can be attempted.
func (c Config) IsConfigured() bool {
	return c.Enabled && c.MailgunDomain != "" && c.MailgunAPIKey != "" && c.FromEmail != ""
}

// New returns a MailgunSender when cfg is usable and a LogSender otherwise.
func New(cfg Config, logger *slog.Logger) Sender {
	if cfg.IsConfigured() {
		return NewMailgunSender(cfg, logger)
	}
	logger.Info("mail delivery not configured, notifications will only be logged")
	return NewLogSender(logger)
}

// MailgunSender sends email via the Mailgun API.
type MailgunSender struct {
	cfg     Config
	logger  *slog.Logger
	client  *mailgun.MailgunImpl
	timeout time.Duration
}

// NewMailgunSender creates a Mailgun-backed sender.
func NewMailgunSender(cfg Config, logger *slog.Logger) *MailgunSender {
	return &MailgunSender{
		cfg:     cfg,
		logger:  logger.With("component", "mailgun_sender"),
		client:  mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey),
		timeout: 30 * time.Second,
	}
}

// Send implements Sender.
func (s *MailgunSender) Send(ctx context.Context, msg Message) error {
	from := s.cfg.FromEmail
	if s.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail)
	}

	message := s.client.NewMessage(from, msg.Subject, msg.Text, msg.To)

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, messageID, err := s.client.Send(sendCtx, message)
	if err != nil {
		s.logger.Error("failed to send email", "to", msg.To, "error", err)
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}

	s.logger.Info("email sent", "to", msg.To, "message_id", messageID)
	return nil
}

// LogSender records messages in the log instead of delivering them.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "log_sender")}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("email delivery simulated", "to", msg.To, "subject", msg.Subject)
	return nil
}
