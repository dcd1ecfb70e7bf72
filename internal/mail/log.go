package mail

import (
	"context"
	"log/slog"
	"sync"
)

// LogSender writes messages to the log instead of delivering them. It keeps
// the messages so tests and local setups can read the verification link.
type LogSender struct {
	mu     sync.Mutex
	sent   []Message
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, *msg)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "email not delivered, logged instead",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}

// Sent returns a copy of every message handed to Send.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
