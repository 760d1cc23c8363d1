package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"voice-assistant/config"
	"voice-assistant/internal/application"
	"voice-assistant/internal/infra/audio"
	"voice-assistant/internal/infra/credentials"
	"voice-assistant/internal/infra/openai"
	"voice-assistant/internal/infra/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file, empty to use the environment only")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	store, err := credentials.NewFileStore(cfg.Credentials.Path, cfg.Credentials.Key)
	if err != nil {
		logger.Error("opening credential store", "error", err)
		os.Exit(1)
	}
	if seeded, err := store.Seed(cfg.OpenAI.APIKey); err != nil {
		logger.Warn("seeding credential store", "error", err)
	} else if seeded {
		logger.Info("stored API key from configuration", "path", cfg.Credentials.Path)
	}

	completion := openai.NewCompletionClientWithURL(cfg.OpenAI.Model, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	whisper := openai.NewWhisperClientWithURL(store, cfg.OpenAI.Language, cfg.OpenAI.BaseURL)
	speech := openai.NewSpeechClientWithURL(store, cfg.OpenAI.SpeechModel, cfg.OpenAI.Voice, cfg.OpenAI.Speed, cfg.OpenAI.BaseURL)

	microphone := audio.NewMicrophone(cfg.Audio.SampleRate, cfg.Audio.Silence, cfg.Audio.MaxUtterance, logger)
	speaker := audio.NewSpeaker(logger)

	dictation := audio.NewDictation(microphone, whisper, logger)
	voice := audio.NewVoice(speech, speaker, logger)

	hub := web.NewHub(logger)
	sink := application.FanoutSink{newLogSink(logger), hub}

	orchestrator := application.NewOrchestrator(
		application.NewContextStore(),
		dictation,
		voice,
		completion,
		store,
		sink,
		logger,
	)

	server := web.NewServer(web.Options{
		Addr:         cfg.Server.Addr,
		AuthToken:    cfg.Server.AuthToken,
		ShareBaseURL: cfg.Server.ShareBaseURL,
		RateLimit:    cfg.Server.RateLimit,
	}, orchestrator, store, hub, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("starting control server", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := server.Stop(); err != nil {
			logger.Warn("stopping control server", "error", err)
		}
	}()

	logger.Info("starting voice assistant",
		"addr", cfg.Server.Addr,
		"model", cfg.OpenAI.Model,
	)

	if err := orchestrator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("assistant error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
