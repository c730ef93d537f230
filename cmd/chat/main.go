package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/patientsim/patient-sim/internal/config"
	"github.com/patientsim/patient-sim/internal/handler"
	"github.com/patientsim/patient-sim/internal/logging"
	"github.com/patientsim/patient-sim/internal/metrics"
	"github.com/patientsim/patient-sim/internal/model/persona"
	"github.com/patientsim/patient-sim/internal/server"
	"github.com/patientsim/patient-sim/internal/service/ai"
	"github.com/patientsim/patient-sim/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envPath, envLoaded, envErr := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		logging.New(config.LogConfig{}).Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(cfg.Log)

	switch {
	case envErr != nil:
		logger.Warn().Err(envErr).Msg("continuing with system environment variables only")
	case envLoaded:
		logger.Debug().Str("path", envPath).Msg("loaded env file")
	}

	personaStore, err := persona.OpenStore(cfg.Chat.PersonaFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Chat.PersonaFile).Msg("failed to load personas")
	}

	if !cfg.AI.Enabled() {
		logger.Fatal().Str("provider", cfg.AI.Provider).Msg("completion provider is not configured")
	}
	aiService, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize completion client")
	}
	logger.Info().
		Str("provider", aiService.Provider()).
		Str("model", aiService.Model()).
		Msg("completion client ready")

	opts := chat.Options{
		PersonaFromRequest: cfg.Chat.PersonaFromQuery,
		ContextMode:        cfg.Chat.ContextMode,
		Logger:             logger,
	}
	if cfg.Metrics.Enabled {
		metrics.Register()
		if cfg.Metrics.TokenCounting {
			opts.Tokens = newTokenCounter(cfg.AI.Model, logger)
		}
	}

	chatService := chat.NewService(personaStore, aiService, opts)
	router := handler.NewChatRouter(personaStore, chatService, logger, handler.ChatRouterOptions{
		Metrics: cfg.Metrics.Enabled,
	})

	if err := server.Run(ctx, server.New(cfg.Chat.Server.Addr, router), logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func newTokenCounter(modelName string, logger *zerolog.Logger) chat.TokenCounter {
	counter, err := ai.NewTokenCounter(modelName)
	if err != nil {
		logger.Warn().Err(err).Msg("token counting disabled")
		return nil
	}
	return counter
}
