package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do"
	"github.com/serroba/link-preview/internal/config"
	"github.com/serroba/link-preview/internal/container"
	"github.com/serroba/link-preview/internal/messaging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConsumer()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	opts := &container.Options{
		Store:         cfg.Store,
		RedisAddr:     cfg.RedisAddr,
		DatabaseURL:   cfg.DatabaseURL,
		CacheTTL:      cfg.CacheTTL,
		ConsumerGroup: cfg.ConsumerGroup,
		LogFormat:     cfg.LogFormat,
		LogLevel:      cfg.LogLevel,
	}

	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.RepositoryPackage(injector)
	container.ConsumerGroupPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)
	group := do.MustInvoke[*messaging.ConsumerGroup](injector)

	ctx, cancel := context.WithCancel(context.Background())

	if err := group.Start(ctx); err != nil {
		logger.Fatal("failed to start consumer group", zap.Error(err))
	}

	logger.Info("consumer started",
		zap.String("env", cfg.Env),
		zap.String("store", cfg.Store),
		zap.String("group", cfg.ConsumerGroup),
		zap.Bool("cache", opts.CacheEnabled()),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
