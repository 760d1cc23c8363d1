package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"voice-assistant/internal/application"
	"voice-assistant/internal/domain"
)

// Capturer records one utterance of mono PCM.
type Capturer interface {
	Supported() bool
	SampleRate() int
	Record(ctx context.Context) ([]int16, error)
}

// Transcriber turns a WAV recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Dictation records from a Capturer and transcribes the result once
// capture ends.
type Dictation struct {
	capturer    Capturer
	transcriber Transcriber
	logger      *slog.Logger

	mu         sync.Mutex
	current    *application.Task[string]
	stopRecord context.CancelFunc
}

func NewDictation(capturer Capturer, transcriber Transcriber, logger *slog.Logger) *Dictation {
	return &Dictation{
		capturer:    capturer,
		transcriber: transcriber,
		logger:      logger,
	}
}

func (d *Dictation) Supported() bool {
	return d.capturer.Supported()
}

func (d *Dictation) Start(ctx context.Context) (*application.Task[string], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != nil && !d.current.Resolved() {
		return d.current, nil
	}
	if !d.capturer.Supported() {
		return nil, fmt.Errorf("starting dictation: %w", domain.ErrNotSupported)
	}

	taskCtx, cancelTask := context.WithCancel(ctx)
	recordCtx, stopRecord := context.WithCancel(taskCtx)
	task := application.NewTask[string](cancelTask)

	d.current = task
	d.stopRecord = stopRecord

	go func() {
		defer cancelTask()
		text, err := d.run(taskCtx, recordCtx)
		task.Resolve(text, err)
	}()

	return task, nil
}

// Stop ends recording. The running task still transcribes what was heard.
func (d *Dictation) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopRecord != nil {
		d.stopRecord()
		d.stopRecord = nil
	}
}

func (d *Dictation) run(taskCtx, recordCtx context.Context) (string, error) {
	samples, err := d.capturer.Record(recordCtx)
	if err != nil {
		return "", fmt.Errorf("recording: %w", err)
	}
	if len(samples) == 0 {
		return "", nil
	}

	d.logger.Debug("transcribing", "samples", len(samples))
	text, err := d.transcriber.Transcribe(taskCtx, EncodeWAV(samples, d.capturer.SampleRate()))
	if err != nil {
		return "", fmt.Errorf("transcribing: %w", err)
	}
	return text, nil
}
