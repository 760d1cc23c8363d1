package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"voice-assistant/internal/application"
	"voice-assistant/internal/domain"
)

// Synthesizer renders text as mono PCM at SampleRate.
type Synthesizer interface {
	SampleRate() int
	Synthesize(ctx context.Context, text string) ([]int16, error)
}

// Player plays mono PCM.
type Player interface {
	Supported() bool
	Play(ctx context.Context, samples []int16, sampleRate int) error
}

// Voice speaks replies. Starting a new utterance cancels the previous one.
type Voice struct {
	synthesizer Synthesizer
	player      Player
	logger      *slog.Logger

	mu      sync.Mutex
	current *application.Task[struct{}]
}

func NewVoice(synthesizer Synthesizer, player Player, logger *slog.Logger) *Voice {
	return &Voice{
		synthesizer: synthesizer,
		player:      player,
		logger:      logger,
	}
}

func (v *Voice) Supported() bool {
	return v.player.Supported()
}

func (v *Voice) Speak(ctx context.Context, text string) *application.Task[struct{}] {
	if !v.player.Supported() {
		return application.Completed(struct{}{}, fmt.Errorf("speaking: %w", domain.ErrNotSupported))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != nil {
		v.current.Cancel()
	}
	v.current = application.Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, v.say(ctx, text)
	})
	return v.current
}

func (v *Voice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != nil {
		v.current.Cancel()
		v.current = nil
	}
}

func (v *Voice) say(ctx context.Context, text string) error {
	samples, err := v.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesizing: %w", err)
	}
	v.logger.Debug("playing reply", "samples", len(samples))
	if err := v.player.Play(ctx, samples, v.synthesizer.SampleRate()); err != nil {
		return fmt.Errorf("playing: %w", err)
	}
	return nil
}
