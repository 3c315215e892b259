package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hombenai/herd-bot/internal/bot"
	"github.com/hombenai/herd-bot/internal/broadcast"
	"github.com/hombenai/herd-bot/internal/registry"
	"github.com/hombenai/herd-bot/internal/session"
	"github.com/hombenai/herd-bot/internal/storage"
	"github.com/hombenai/herd-bot/internal/vision"
	"github.com/hombenai/herd-bot/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the document store
	var store storage.Store
	switch cfg.Storage.Backend {
	case "postgres":
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStore(storage.DatabaseConfig{
			Host:     cfg.Storage.Database.Host,
			Port:     cfg.Storage.Database.Port,
			User:     cfg.Storage.Database.User,
			Password: cfg.Storage.Database.Password,
			DBName:   cfg.Storage.Database.DBName,
			SSLMode:  cfg.Storage.Database.SSLMode,
		})
	case "file":
		logger.Info("Using file storage", zap.String("dir", cfg.Storage.Dir))
		store, err = storage.NewFileStore(cfg.Storage.Dir)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	// Initialize the registry from the last durable snapshot
	reg, err := registry.New(ctx, store, logger)
	if err != nil {
		logger.Fatal("Failed to initialize registry", zap.Error(err))
	}

	// Initialize the vision capabilities
	var classifier vision.Classifier
	switch cfg.Vision.Backend {
	case "openai":
		logger.Info("Using OpenAI species classifier", zap.String("model", cfg.Vision.OpenAI.Model))
		classifier = vision.NewOpenAIClassifier(
			cfg.Vision.OpenAI.APIKey,
			cfg.Vision.OpenAI.Model,
			cfg.Vision.TopK,
			logger,
		)
	case "http":
		logger.Info("Using HTTP species classifier", zap.String("endpoint", cfg.Vision.Endpoint))
		classifier = vision.NewHTTPClassifier(cfg.Vision.Endpoint, cfg.Vision.Timeout)
	default:
		logger.Fatal("Unknown vision backend", zap.String("backend", cfg.Vision.Backend))
	}
	gate := vision.NewGate(classifier, cfg.Vision.TargetLabels, cfg.Vision.TopK, logger)
	identifier := vision.NewHTTPIdentifier(cfg.Identify.Endpoint, cfg.Identify.Timeout)

	// Initialize the transport adapter and wire the dispatcher through it
	b, err := bot.New(cfg.Telegram.Token, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	broadcaster := broadcast.New(b, cfg.Broadcast.Workers, cfg.Broadcast.SendTimeout, logger)
	sessions := session.NewTable(cfg.Session.TTL)
	dispatcher := bot.NewDispatcher(
		b,
		reg,
		sessions,
		gate,
		identifier,
		broadcaster,
		cfg.Identify.MinConfidence,
		logger,
	)

	// Start the bot
	if err := b.Start(ctx, dispatcher); err != nil && ctx.Err() == nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Shutting down")
}
