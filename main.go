package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"clipsight/analysis"
	"clipsight/config"
	"clipsight/genai"
	"clipsight/handlers/api"
	"clipsight/logger"
	"clipsight/validation"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Invalid configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.LogDir, cfg.Debug)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}

	client := genai.NewClient(genai.Config{
		BaseURL:          cfg.Analysis.BaseURL,
		Model:            cfg.Analysis.Model,
		PollInitialDelay: cfg.Analysis.PollInitialDelay,
		PollInterval:     cfg.Analysis.PollInterval,
		PollMaxAttempts:  cfg.Analysis.PollMaxAttempts,
		Logger:           appLogger,
	})

	validator := validation.NewValidator(cfg)
	service := analysis.NewService(client, validator, cfg.Analysis, appLogger)

	server := api.NewServer(cfg,
		api.WithLogger(appLogger),
		api.WithService(service),
	)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Could not start server")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop

	appLogger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Fatal("Server shutdown failed")
	}
}
