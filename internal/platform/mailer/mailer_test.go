package mailer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfig_IsConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"disabled", Config{MailgunDomain: "mg.example.com", MailgunAPIKey: "key", FromEmail: "a@b.c"}, false},
		{"missing key", Config{Enabled: true, MailgunDomain: "mg.example.com", FromEmail: "a@b.c"}, false},
		{"missing from", Config{Enabled: true, MailgunDomain: "mg.example.com", MailgunAPIKey: "key"}, false},
		{"complete", Config{Enabled: true, MailgunDomain: "mg.example.com", MailgunAPIKey: "key", FromEmail: "a@b.c"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.IsConfigured())
		})
	}
}

func TestNew_PicksSender(t *testing.T) {
	s := New(Config{}, discardLogger())
	assert.IsType(t, &LogSender{}, s)

	s = New(Config{
		Enabled:       true,
		MailgunDomain: "mg.example.com",
		MailgunAPIKey: "key",
		FromEmail:     "shop@example.com",
		FromName:      "Shop",
	}, discardLogger())
	assert.IsType(t, &MailgunSender{}, s)
}

func TestLogSender_Send(t *testing.T) {
	s := NewLogSender(discardLogger())
	assert.NoError(t, s.Send(context.Background(), Message{To: "a@b.c", Subject: "hi"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@b.c"}), context.Canceled)
}
