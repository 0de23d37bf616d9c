package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/orderflow/orderflow/internal/domain"
	"github.com/orderflow/orderflow/internal/platform/logger"
	"github.com/orderflow/orderflow/internal/platform/mailer"
)

// NotificationArgs are the arguments of send_notification.
type NotificationArgs struct {
	Email   string `json:"email"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

const defaultSubject = "Order update"

// NotificationTask delivers a message to a customer.
type NotificationTask struct {
	sender mailer.Sender
	logger *slog.Logger
}

// NewNotificationTask creates the send_notification handler.
func NewNotificationTask(sender mailer.Sender, logger *slog.Logger) *NotificationTask {
	return &NotificationTask{
		sender: sender,
		logger: logger.With("component", "notification_task"),
	}
}

// Handle implements Handler.
func (t *NotificationTask) Handle(ctx context.Context, job *Job) (any, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	var args NotificationArgs
	if err := job.Decode(&args); err != nil {
		log.Error("invalid send_notification arguments", "error", err)
		return nil, err
	}
	if err := domain.ValidateEmail(args.Email); err != nil {
		log.Error("invalid email", "email", args.Email, "error", err)
		return nil, err
	}

	subject := args.Subject
	if subject == "" {
		subject = defaultSubject
	}
	msg := mailer.Message{To: args.Email, Subject: subject, Text: args.Message}
	if err := t.sender.Send(ctx, msg); err != nil {
		log.Error("failed to deliver notification", "email", args.Email, "error", err)
		return nil, fmt.Errorf("failed to notify %s: %w", args.Email, err)
	}

	log.Info("notification sent", "email", args.Email)
	return "ok", nil
}
