package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rhyolite-backend/interfaces/http/rest"
	"rhyolite-backend/internal/blob"
	"rhyolite-backend/internal/repository/sqlite"
	"rhyolite-backend/internal/service/graph"
	"rhyolite-backend/internal/service/registry"
	"rhyolite-backend/pkg/config"
	"rhyolite-backend/pkg/observability"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Open storage. The schema itself is created by the seed tool; /health
	// reports unavailable until that has happened.
	repo, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer repo.Close()

	blobs, err := blob.NewFilesystemStore(cfg.AttachmentsDir)
	if err != nil {
		logger.Fatal("Failed to initialize attachment storage", zap.Error(err))
	}

	var metrics *observability.Collector
	if cfg.EnableMetrics {
		metrics = observability.NewCollector("rhyolite")
	}

	// Wire services and router
	registrySvc := registry.NewService(repo, blobs, logger)
	graphSvc := graph.NewService(repo, blobs, logger, cfg.SearchDefaultLimit)

	router := rest.NewRouter(registrySvc, graphSvc, repo, logger, metrics, cfg.CORSAllowOrigins)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("database", cfg.DatabasePath),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	log.Println("Server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsDevelopment() {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}
