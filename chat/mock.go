package chat

import (
	"context"
	"log/slog"
)

// LogSender logs messages instead of sending them. Used for local development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message instead of sending it.
func (l *LogSender) Send(ctx context.Context, to string, msg Message) error {
	photoBytes := 0
	if msg.Photo != nil {
		photoBytes = len(msg.Photo.Data)
	}
	l.logger.Info("MOCK CHAT MESSAGE",
		"to", to,
		"text_length", len(msg.Text),
		"photo_bytes", photoBytes,
		"text", msg.Text)
	return nil
}
