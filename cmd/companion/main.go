package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"voice-companion/config"
	"voice-companion/internal/api"
	"voice-companion/internal/application"
	"voice-companion/internal/infra/anthropic"
	"voice-companion/internal/infra/audio"
	"voice-companion/internal/infra/backend"
	"voice-companion/internal/infra/elevenlabs"
	"voice-companion/internal/infra/gemini"
	"voice-companion/internal/infra/openai"
	"voice-companion/internal/infra/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
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

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Error("opening local store", "error", err, "path", cfg.Store.Path)
		os.Exit(1)
	}
	defer db.Close()

	state := application.NewState(db, logger)
	if err := state.Restore(); err != nil {
		logger.Warn("restoring local state, starting empty", "error", err)
	}

	remote := backend.NewClient(cfg.Backend.BaseURL, config.Duration(cfg.Backend.Timeout))
	syncer := application.NewSyncer(state, remote, logger)

	turn := application.TurnConfig{
		SettleDelay:  config.Duration(cfg.Turn.SettleDelay),
		PollInterval: config.Duration(cfg.Turn.PollInterval),
		MaxAttempts:  cfg.Turn.MaxAttempts,
		ArmDelay:     config.Duration(cfg.Turn.ArmDelay),
	}
	orchestrator := application.NewOrchestrator(state, createSpeechOutput(cfg, logger), syncer, turn, logger)
	defer orchestrator.Close()

	suggester := application.NewSuggester(state, createSuggestionGenerator(cfg, logger), application.SuggesterConfig{
		Count:       cfg.Suggest.Count,
		MaxLength:   cfg.Suggest.MaxLength,
		Language:    cfg.Suggest.Language,
		TokenBudget: cfg.Suggest.TokenBudget,
		Timeout:     config.Duration(cfg.Suggest.Timeout),
	}, logger)

	deps := api.Deps{
		State:        state,
		Orchestrator: orchestrator,
		Syncer:       syncer,
		Suggester:    suggester,
	}

	source, partner := createAudioSource(cfg.Capture, logger)
	if source != nil {
		var stt application.SpeechToText = &application.NoopSTT{}
		if cfg.OpenAI.APIKey != "" {
			if cfg.OpenAI.BaseURL != "" {
				stt = openai.NewWhisperClientWithURL(cfg.OpenAI.APIKey, cfg.OpenAI.STTLanguage, cfg.OpenAI.BaseURL)
			} else {
				stt = openai.NewWhisperClient(cfg.OpenAI.APIKey, cfg.OpenAI.STTLanguage)
			}
		}

		listener := application.NewListener(state, source, stt, orchestrator.OnCaptureResult, logger)
		listener.SetRestartDelay(config.Duration(cfg.Capture.RestartDelay))
		listener.Attach()
		defer listener.Close()

		deps.Listener = listener
		deps.Partner = partner
	}

	if user := state.User(); user != nil {
		go func() {
			syncer.LoadConversations(ctx)
			syncer.LoadFavorites(ctx)
		}()
	}

	server := api.NewServer(api.Config{
		Addr:              cfg.Server.Addr,
		AuthToken:         cfg.Server.AuthToken,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
	}, deps, logger)

	logger.Info("starting voice companion",
		"speech_output", cfg.Speech.Output,
		"capture_source", cfg.Capture.Source,
		"suggest_provider", cfg.Suggest.Provider,
	)

	if err := server.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func createSpeechOutput(cfg *config.Config, logger *slog.Logger) application.SpeechOutput {
	if cfg.Speech.Output != "elevenlabs" {
		return &application.NoopSpeechOutput{}
	}

	synth := elevenlabs.NewClient(cfg.ElevenLabs.APIKey, cfg.ElevenLabs.VoiceID, cfg.ElevenLabs.Model)

	var player audio.Player
	switch cfg.Speech.Player {
	case "file":
		player = audio.NewFilePlayer(cfg.Speech.OutputDir)
	default:
		player = audio.NewSpeaker()
	}
	return audio.NewVoice(synth, player, logger)
}

func createSuggestionGenerator(cfg *config.Config, logger *slog.Logger) application.SuggestionGenerator {
	switch cfg.Suggest.Provider {
	case "openai":
		return openai.NewSuggestClientWithURL(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	case "anthropic":
		return anthropic.NewClaudeClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model)
	case "gemini":
		return gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model)
	default:
		logger.Info("suggestion provider disabled, using fallback phrases")
		return nil
	}
}

// createAudioSource returns the partner input and, for the http source, the
// handler the control API mounts under /partner.
func createAudioSource(cfg config.CaptureConfig, logger *slog.Logger) (application.AudioSource, http.Handler) {
	switch cfg.Source {
	case "http":
		source := audio.NewPartnerSource(logger)
		return source, source.Handler()
	case "file":
		return audio.NewFileSource(cfg.FileDir), nil
	case "microphone":
		return audio.NewMicrophoneSource(cfg.SampleRate, logger), nil
	default:
		logger.Info("partner capture disabled")
		return nil, nil
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
