package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/patientsim/patient-sim/internal/config"
	"github.com/patientsim/patient-sim/internal/handler"
	"github.com/patientsim/patient-sim/internal/handler/landing"
	"github.com/patientsim/patient-sim/internal/logging"
	"github.com/patientsim/patient-sim/internal/model/persona"
	"github.com/patientsim/patient-sim/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _, envErr := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		logging.New(config.LogConfig{}).Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(cfg.Log)
	if envErr != nil {
		logger.Warn().Err(envErr).Msg("continuing with system environment variables only")
	}

	personaStore, err := persona.OpenStore(cfg.Chat.PersonaFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load personas")
	}

	landingHandler, err := landing.New(personaStore, cfg.Landing.ChatHost, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse landing template")
	}

	logger.Info().Str("chat_host", cfg.Landing.ChatHost).Msg("redirecting sessions to chat service")
	router := handler.NewLandingRouter(landingHandler, logger)
	if err := server.Run(ctx, server.New(cfg.Landing.Server.Addr, router), logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
