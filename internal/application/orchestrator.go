package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"voice-assistant/internal/domain"
)

var ErrStopped = errors.New("orchestrator stopped")

// Orchestrator is the conversation state machine. Every transition runs on
// the goroutine executing Run; public methods hand work to that goroutine
// and capture, completion and playback report back to it as tasks resolve.
type Orchestrator struct {
	store       *ContextStore
	input       SpeechInput
	output      SpeechOutput
	completion  CompletionClient
	credentials CredentialStore
	sink        EventSink
	logger      *slog.Logger
	caps        domain.Capabilities

	now   func() time.Time
	newID func() string

	events  chan func()
	stopped chan struct{}

	// Owned by the loop goroutine.
	runCtx     context.Context
	state      domain.State
	generation uint64
	capture    *Task[string]
	pending    *Task[string]
	playback   *Task[struct{}]
}

func NewOrchestrator(
	store *ContextStore,
	input SpeechInput,
	output SpeechOutput,
	completion CompletionClient,
	credentials CredentialStore,
	sink EventSink,
	logger *slog.Logger,
) *Orchestrator {
	if sink == nil {
		sink = &NoopSink{}
	}
	return &Orchestrator{
		store:       store,
		input:       input,
		output:      output,
		completion:  completion,
		credentials: credentials,
		sink:        sink,
		logger:      logger,
		caps: domain.Capabilities{
			SpeechRecognition: input.Supported(),
			SpeechSynthesis:   output.Supported(),
		},
		now:     time.Now,
		newID:   uuid.NewString,
		events:  make(chan func(), 16),
		stopped: make(chan struct{}),
		runCtx:  context.Background(),
		state:   domain.StateIdle,
	}
}

// Run processes events until ctx is cancelled. In-flight capture,
// completion and playback are abandoned on return.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.runCtx = ctx
	defer close(o.stopped)
	defer o.abandon()

	o.logger.Info("conversation ready",
		"speech_recognition", o.caps.SpeechRecognition,
		"speech_synthesis", o.caps.SpeechSynthesis,
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-o.events:
			fn()
		}
	}
}

// Capabilities were read once at construction.
func (o *Orchestrator) Capabilities() domain.Capabilities {
	return o.caps
}

// Toggle is the single mic/speaker control.
func (o *Orchestrator) Toggle(ctx context.Context) error {
	return o.do(ctx, o.toggle)
}

// Submit processes a typed utterance as if it were a finalized transcript.
// It is only accepted while idle.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	var err error
	doErr := o.do(ctx, func() {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if o.state != domain.StateIdle {
			err = fmt.Errorf("submitting while %s: %w", o.state, domain.ErrBusy)
			return
		}
		if _, credErr := o.credential(); credErr != nil {
			o.notify(domain.NotificationFor(credErr))
			err = credErr
			return
		}
		o.handleUtterance(text)
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Clear empties the chat history and keeps the profile. A completion still
// in flight belongs to the previous generation and is discarded.
func (o *Orchestrator) Clear(ctx context.Context) error {
	return o.do(ctx, func() {
		o.store.Clear()
		o.generation++
		if o.pending != nil {
			o.pending.Cancel()
			o.pending = nil
		}
		if o.state == domain.StateThinking {
			o.setState(domain.StateIdle)
		}
		o.notify(domain.Notification{
			Kind:    domain.NotificationChatCleared,
			Title:   "Chat Cleared",
			Message: "Conversation history has been cleared.",
		})
	})
}

func (o *Orchestrator) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) error {
	return o.do(ctx, func() {
		o.store.UpdateProfile(update)
	})
}

func (o *Orchestrator) ShareCode(ctx context.Context) (string, error) {
	var (
		code string
		err  error
	)
	if doErr := o.do(ctx, func() {
		code, err = EncodeShareCode(o.store.Snapshot())
	}); doErr != nil {
		return "", doErr
	}
	return code, err
}

// Restore loads the profile from a share code. A malformed code is
// reported as false and otherwise ignored.
func (o *Orchestrator) Restore(ctx context.Context, code string) (bool, error) {
	var ok bool
	err := o.do(ctx, func() {
		ok = o.store.Restore(code)
		if !ok {
			o.logger.Debug("ignoring malformed share code")
			return
		}
		o.notify(domain.Notification{
			Kind:    domain.NotificationShareLoaded,
			Title:   "Conversation Loaded",
			Message: "Shared conversation context has been loaded.",
		})
	})
	return ok, err
}

func (o *Orchestrator) State(ctx context.Context) (domain.State, error) {
	var s domain.State
	err := o.do(ctx, func() { s = o.state })
	return s, err
}

func (o *Orchestrator) Turns(ctx context.Context) ([]domain.Turn, error) {
	var turns []domain.Turn
	err := o.do(ctx, func() { turns = o.store.Turns() })
	return turns, err
}

func (o *Orchestrator) Profile(ctx context.Context) (domain.UserProfile, error) {
	var p domain.UserProfile
	err := o.do(ctx, func() { p = o.store.Profile() })
	return p, err
}

func (o *Orchestrator) toggle() {
	switch o.state {
	case domain.StateIdle:
		o.startListening()
	case domain.StateListening:
		o.logger.Debug("stopping capture")
		o.input.Stop()
	case domain.StateThinking:
		o.logger.Debug("toggle ignored while waiting for completion")
	case domain.StateSpeaking:
		o.stopSpeaking()
	}
}

func (o *Orchestrator) startListening() {
	if !o.caps.SpeechRecognition {
		o.notify(domain.NotificationFor(domain.ErrNotSupported))
		return
	}
	if _, err := o.credential(); err != nil {
		o.notify(domain.NotificationFor(err))
		return
	}

	task, err := o.input.Start(o.runCtx)
	if err != nil {
		o.logger.Error("starting capture", "error", err)
		o.notify(domain.NotificationFor(err))
		return
	}

	o.capture = task
	o.setState(domain.StateListening)
	await(o, task, func(text string, err error) {
		o.onTranscript(task, text, err)
	})
}

func (o *Orchestrator) onTranscript(task *Task[string], text string, err error) {
	if task != o.capture || o.state != domain.StateListening {
		o.logger.Debug("ignoring stale transcript")
		return
	}
	o.capture = nil

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			o.logger.Error("capturing speech", "error", err)
			o.notify(domain.NotificationFor(err))
		}
		o.setState(domain.StateIdle)
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		o.logger.Debug("empty transcript, nothing to send")
		o.setState(domain.StateIdle)
		return
	}

	o.logger.Info("transcribed", "text", text)
	o.handleUtterance(text)
}

// handleUtterance appends the user turn and starts the completion. The
// prompt is derived first so its history ends before the new turn.
func (o *Orchestrator) handleUtterance(text string) {
	prompt := o.store.DerivePrompt()
	o.store.AppendTurn(domain.RoleUser, text)
	o.emitMessage(text, true)

	credential, err := o.credential()
	if err != nil {
		o.notify(domain.NotificationFor(err))
		o.setState(domain.StateIdle)
		return
	}

	req := CompletionRequest{
		SystemInstruction: prompt.SystemInstruction,
		History:           prompt.History,
		UserText:          text,
	}
	generation := o.generation
	task := Go(o.runCtx, func(ctx context.Context) (string, error) {
		return o.completion.Complete(ctx, req, credential)
	})

	o.pending = task
	o.setState(domain.StateThinking)
	await(o, task, func(reply string, err error) {
		o.onCompletion(generation, task, reply, err)
	})
}

func (o *Orchestrator) onCompletion(generation uint64, task *Task[string], reply string, err error) {
	if task == o.pending {
		o.pending = nil
	}
	if generation != o.generation {
		o.logger.Info("discarding completion from a cleared conversation")
		return
	}

	if err != nil {
		if !errors.Is(err, domain.ErrRemoteRejected) && !errors.Is(err, domain.ErrRemoteUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
		}
		o.logger.Error("completion failed", "error", err)
		o.notify(domain.NotificationFor(err))
		o.setState(domain.StateIdle)
		return
	}

	o.store.AppendTurn(domain.RoleAssistant, reply)
	o.emitMessage(reply, false)

	if !o.caps.SpeechSynthesis {
		o.setState(domain.StateIdle)
		return
	}
	o.speak(reply)
}

func (o *Orchestrator) speak(text string) {
	task := o.output.Speak(o.runCtx, text)
	o.playback = task
	o.setState(domain.StateSpeaking)
	await(o, task, func(_ struct{}, err error) {
		o.onPlaybackDone(task, err)
	})
}

func (o *Orchestrator) onPlaybackDone(task *Task[struct{}], err error) {
	if task != o.playback {
		return
	}
	o.playback = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn("playback failed", "error", err)
	}
	if o.state == domain.StateSpeaking {
		o.setState(domain.StateIdle)
	}
}

func (o *Orchestrator) stopSpeaking() {
	o.output.Stop()
	if o.playback != nil {
		o.playback.Cancel()
		o.playback = nil
	}
	o.setState(domain.StateIdle)
}

func (o *Orchestrator) credential() (string, error) {
	if o.credentials == nil {
		return "", domain.ErrMissingCredential
	}
	value, err := o.credentials.Load()
	if err != nil {
		o.logger.Error("loading credential", "error", err)
		return "", fmt.Errorf("loading credential: %w", domain.ErrMissingCredential)
	}
	if value == "" {
		return "", domain.ErrMissingCredential
	}
	return value, nil
}

func (o *Orchestrator) setState(s domain.State) {
	if s == o.state {
		return
	}
	o.logger.Debug("state transition", "from", o.state, "to", s)
	o.state = s
	o.sink.StateChanged(s)
}

func (o *Orchestrator) notify(n domain.Notification) {
	if n.IsError() {
		o.logger.Warn("notifying user", "kind", n.Kind, "message", n.Message)
	}
	o.sink.Notify(n)
}

func (o *Orchestrator) emitMessage(text string, isUser bool) {
	o.sink.Message(domain.DisplayMessage{
		ID:        o.newID(),
		Text:      text,
		IsUser:    isUser,
		Timestamp: o.now(),
	})
}

func (o *Orchestrator) abandon() {
	if o.capture != nil {
		o.input.Stop()
		o.capture.Cancel()
		o.capture = nil
	}
	if o.pending != nil {
		o.pending.Cancel()
		o.pending = nil
	}
	if o.playback != nil {
		o.output.Stop()
		o.playback.Cancel()
		o.playback = nil
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case o.events <- wrapped:
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-o.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) post(fn func()) {
	select {
	case o.events <- fn:
	case <-o.stopped:
	}
}

// await schedules then on the loop goroutine once t resolves.
func await[T any](o *Orchestrator, t *Task[T], then func(T, error)) {
	go func() {
		v, err := t.Result()
		o.post(func() { then(v, err) })
	}()
}
