package application

import (
	"context"

	"voice-assistant/internal/domain"
)

// SpeechInput captures live dictation.
type SpeechInput interface {
	Supported() bool
	// Start begins capture. While capturing it returns the in-flight task.
	// The task resolves with exactly one finalized transcript once capture
	// ends, either on Stop or at a natural end of speech. An empty
	// transcript is valid.
	Start(ctx context.Context) (*Task[string], error)
	Stop()
}

// SpeechOutput plays utterances. Only one playback is active at a time.
type SpeechOutput interface {
	Supported() bool
	// Speak cancels any in-flight playback and starts a new one. The task
	// resolves when playback ends, fails, or is cancelled.
	Speak(ctx context.Context, text string) *Task[struct{}]
	Stop()
}

type CompletionRequest struct {
	SystemInstruction string
	History           []domain.Turn
	UserText          string
}

// CompletionClient returns the assistant reply for a prompt. Failures wrap
// domain.ErrRemoteRejected or domain.ErrRemoteUnavailable.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest, credential string) (string, error)
}

// CredentialStore holds the single conversation-service key. Load returns
// an empty string when nothing is stored.
type CredentialStore interface {
	Load() (string, error)
	Save(value string) error
	Clear() error
}
