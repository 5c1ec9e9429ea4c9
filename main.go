package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"cardvault/pkg/api"
	"cardvault/pkg/config"
	"cardvault/pkg/database"
	"cardvault/pkg/database/memory"
	"cardvault/pkg/logger"
	"cardvault/pkg/models"
	"cardvault/pkg/repository"
	"cardvault/pkg/services/cropper"
	"cardvault/pkg/services/detection"
	"cardvault/pkg/services/inventory"
	"cardvault/pkg/services/marketplace"
	"cardvault/pkg/services/notification"
	"cardvault/pkg/services/ocr"
	"cardvault/pkg/services/scan"
	"cardvault/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Format = cfg.LogFormat
	logCfg.Environment = cfg.Environment
	appLog := logger.New(logCfg)

	if cfg.Environment != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, appLog); err != nil {
		appLog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	uploads, err := storage.New(cfg.UploadDir)
	if err != nil {
		return err
	}

	var detector ocr.Detector
	switch cfg.Detector {
	case config.DetectorAzure:
		detector = ocr.NewAzureDetector(cfg.AzureEndpoint, cfg.AzureKey, cfg.DetectionTimeout)
	default:
		detector = ocr.NewMLClient(cfg.MLServiceURL, cfg.DetectionTimeout)
	}

	tiers := models.DefaultTiers()
	crops := cropper.New(uploads, cfg.CropCacheSize, log)
	inv := inventory.NewService(store, tiers, crops, log)
	scans := scan.NewService(store, uploads, detector, detection.NewNormalizer(log), crops, inv, log)
	notifications := notification.NewGenerator(
		notification.NewDeduper(store, log),
		marketplace.NewMatcher(store, log),
		store, tiers, log,
	)

	deps := api.Deps{
		Store:         store,
		Scans:         scans,
		Notifications: notifications,
		URLs:          uploads,
		Tiers:         tiers,
		UploadDir:     uploads.Root(),
		Logger:        log,
	}
	if hc, ok := detector.(api.HealthChecker); ok {
		deps.Detector = hc
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.NewServer(deps).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port, "detector", cfg.Detector, "database", cfg.UsesDatabase())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

// openStore picks postgres when DATABASE_URL is set, otherwise an in-memory store
func openStore(cfg *config.Config, log *slog.Logger) (repository.Store, error) {
	if !cfg.UsesDatabase() {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return memory.New(), nil
	}
	db, err := database.Open(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	return database.NewStore(db), nil
}
