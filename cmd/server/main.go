package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sheriff-backend/internal/cache"
	"sheriff-backend/internal/config"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/invoices"
	"sheriff-backend/internal/logging"
	"sheriff-backend/internal/mailer"
	"sheriff-backend/internal/server"
	"sheriff-backend/internal/storage"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	for _, w := range cfg.Warnings() {
		logger.Warn("config", zap.String("warning", w))
	}

	if err := database.Init(cfg); err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store cache.Store = cache.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connect failed", zap.Error(err))
		}
		defer client.Close()
		store = cache.NewRedisStore(client, "sheriff:")
		logger.Info("using redis cache")
	}

	if err := os.MkdirAll(cfg.UploadPath, 0o755); err != nil {
		logger.Fatal("upload dir", zap.Error(err))
	}

	app := server.New(cfg, server.Deps{
		Cache:     store,
		Mailer:    mailer.New(cfg),
		Storage:   storage.NewLocal(cfg.UploadPath, cfg.UploadMaxBytes),
		AccessLog: true,
	})

	go overdueLoop(ctx, time.Hour)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("server listening", zap.String("port", cfg.HTTPPort))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		logger.Fatal("listen failed", zap.Error(err))
	}
}

// overdueLoop flags overdue invoices at start-up and then every interval.
func overdueLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := invoices.MarkOverdue(database.DB, time.Now()); err != nil {
			zap.L().Error("overdue sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
