//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// Microphone records from the default input device.
type Microphone struct {
	sampleRate   int
	silence      time.Duration
	maxUtterance time.Duration
	logger       *slog.Logger
}

func NewMicrophone(sampleRate int, silence, maxUtterance time.Duration, logger *slog.Logger) *Microphone {
	return &Microphone{
		sampleRate:   sampleRate,
		silence:      silence,
		maxUtterance: maxUtterance,
		logger:       logger,
	}
}

func (m *Microphone) Supported() bool {
	return true
}

func (m *Microphone) SampleRate() int {
	return m.sampleRate
}

// Record captures until ctx ends or the speaker falls silent. Ending ctx
// is the normal way to stop and is not reported as an error.
func (m *Microphone) Record(ctx context.Context) ([]int16, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	buffer := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), framesPerBuffer, buffer)
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Stop()

	m.logger.Info("microphone started", "sampleRate", m.sampleRate)

	ep := newEndpointer(m.sampleRate, m.silence, m.maxUtterance)
	samples := make([]int16, 0, m.sampleRate*5)

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("capture stopped", "samples", len(samples))
			return samples, nil
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("reading from stream: %w", err)
		}

		samples = append(samples, buffer...)
		if ep.feed(buffer) {
			m.logger.Debug("end of speech detected", "samples", len(samples))
			return samples, nil
		}
	}
}
