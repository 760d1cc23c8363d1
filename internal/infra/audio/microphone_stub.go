//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"voice-assistant/internal/domain"
)

// Microphone stub when portaudio is not available
type Microphone struct {
	sampleRate int
	logger     *slog.Logger
}

func NewMicrophone(sampleRate int, _, _ time.Duration, logger *slog.Logger) *Microphone {
	return &Microphone{sampleRate: sampleRate, logger: logger}
}

func (m *Microphone) Supported() bool {
	return false
}

func (m *Microphone) SampleRate() int {
	return m.sampleRate
}

func (m *Microphone) Record(_ context.Context) ([]int16, error) {
	return nil, fmt.Errorf("microphone not available, rebuild with -tags portaudio: %w", domain.ErrNotSupported)
}
