package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"condolex-backend/app"
	"condolex-backend/config"
)

// The worker consumes analysis jobs published by the server when Kafka
// brokers are configured.
func main() {
	cfg, err := config.Load()
	if err != nil {
		app.NewLogger("").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Server.GinMode)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	consumer, err := a.NewConsumer()
	if err != nil {
		logger.Error("failed to start consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	logger.Info("worker consuming analysis jobs", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)
	if err := consumer.Run(ctx); err != nil {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
