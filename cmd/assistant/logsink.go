package main

import (
	"log/slog"

	"voice-assistant/internal/domain"
)

// logSink mirrors conversation events to the log so the assistant is
// usable from a terminal without a browser attached.
type logSink struct {
	logger *slog.Logger
}

func newLogSink(logger *slog.Logger) *logSink {
	return &logSink{logger: logger.With("component", "conversation")}
}

func (s *logSink) Message(msg domain.DisplayMessage) {
	speaker := "assistant"
	if msg.IsUser {
		speaker = "you"
	}
	s.logger.Info(speaker, "text", msg.Text)
}

func (s *logSink) Notify(n domain.Notification) {
	if n.IsError() {
		return
	}
	s.logger.Info(n.Title, "message", n.Message)
}

func (s *logSink) StateChanged(state domain.State) {
	s.logger.Debug("state", "state", state)
}
