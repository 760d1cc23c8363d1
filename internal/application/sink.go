package application

import "voice-assistant/internal/domain"

// EventSink receives everything the rendering layer shows.
type EventSink interface {
	Message(msg domain.DisplayMessage)
	Notify(n domain.Notification)
	StateChanged(state domain.State)
}

type NoopSink struct{}

func (n *NoopSink) Message(_ domain.DisplayMessage) {}
func (n *NoopSink) Notify(_ domain.Notification)    {}
func (n *NoopSink) StateChanged(_ domain.State)     {}

// FanoutSink forwards every event to each of its sinks in order.
type FanoutSink []EventSink

func (f FanoutSink) Message(msg domain.DisplayMessage) {
	for _, s := range f {
		s.Message(msg)
	}
}

func (f FanoutSink) Notify(n domain.Notification) {
	for _, s := range f {
		s.Notify(n)
	}
}

func (f FanoutSink) StateChanged(state domain.State) {
	for _, s := range f {
		s.StateChanged(state)
	}
}
