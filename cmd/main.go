package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"todo-api/internal/cache"
	"todo-api/internal/config"
	"todo-api/internal/database"
	"todo-api/internal/queue"
	"todo-api/internal/routes"
	"todo-api/internal/worker"
	"todo-api/pkg/logger"
)

func main() {
	config.LoadEnvFile(".env")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	repo, err := database.Open(ctx, cfg)
	if err != nil {
		logger.Error(ctx, "Store not available; exiting", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	// Redis is optional; without it every list goes to the store.
	var listCache *cache.Cache
	if cfg.CacheEnabled() {
		listCache, err = cache.New(ctx, cfg)
		if err != nil {
			logger.Warn(ctx, "Redis unavailable; list cache disabled", "error", err)
		}
	}

	deps := routes.Deps{Repo: repo, Cache: listCache, CORSOrigins: cfg.CORSAllowOrigins}
	var producer *queue.Producer
	if cfg.KafkaEnabled() {
		queue.EnsureTopic(ctx, cfg)
		producer = queue.NewProducer(ctx, cfg)
		deps.Events = producer
		switch {
		case !cfg.WorkerEnabled:
		case listCache == nil:
			logger.Info(ctx, "Cache invalidation worker skipped; list cache disabled")
		default:
			go worker.Run(ctx, cfg, listCache)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      routes.Router(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info(ctx, "HTTP server listening", "port", cfg.HTTPPort, "backend", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Server shutdown error", "error", err)
	}
	if err := producer.Close(); err != nil {
		logger.Error(shutdownCtx, "Kafka producer close error", "error", err)
	}
	if err := listCache.Close(); err != nil {
		logger.Error(shutdownCtx, "Redis close error", "error", err)
	}
	if err := repo.Close(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Store close error", "error", err)
	}
	logger.Info(shutdownCtx, "Server stopped")
}
