//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// Speaker plays PCM on the default output device.
type Speaker struct {
	logger *slog.Logger
}

func NewSpeaker(logger *slog.Logger) *Speaker {
	return &Speaker{logger: logger}
}

func (s *Speaker) Supported() bool {
	return true
}

// Play blocks until every sample is written or ctx ends.
func (s *Speaker) Play(ctx context.Context, samples []int16, sampleRate int) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	buffer := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), framesPerBuffer, buffer)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Stop()

	for offset := 0; offset < len(samples); offset += framesPerBuffer {
		select {
		case <-ctx.Done():
			s.logger.Debug("playback cancelled", "played", offset, "total", len(samples))
			return ctx.Err()
		default:
		}

		n := copy(buffer, samples[offset:])
		clear(buffer[n:])
		if err := stream.Write(); err != nil {
			return fmt.Errorf("writing to stream: %w", err)
		}
	}
	return nil
}
