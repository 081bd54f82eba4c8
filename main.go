package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrops-br/storefront-api/internal/app/event"
	"github.com/mrops-br/storefront-api/internal/app/service"
	"github.com/mrops-br/storefront-api/internal/infrastructure/catalog/fakestore"
	"github.com/mrops-br/storefront-api/internal/infrastructure/config"
	"github.com/mrops-br/storefront-api/internal/infrastructure/http"
	"github.com/mrops-br/storefront-api/internal/infrastructure/http/handler"
	"github.com/mrops-br/storefront-api/internal/infrastructure/repository"
	"github.com/mrops-br/storefront-api/internal/infrastructure/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize OpenTelemetry
	telem, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Ensure telemetry is shutdown on exit
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := telem.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()

	tracer := telem.TracerProvider.Tracer("storefront-api")
	meter := telem.MeterProvider.Meter("storefront-api")
	logger := telem.Logger

	logger.Info("Starting Storefront API",
		slog.String("catalog", cfg.Catalog.BaseURL),
		slog.String("storage", cfg.Storage.Driver),
	)

	kv, err := repository.Open(ctx, &cfg.Storage, tracer, logger)
	if err != nil {
		logger.Error("Failed to open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Error("Failed to close storage", slog.String("error", err.Error()))
		}
	}()

	catalog := fakestore.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, tracer, logger)
	favoritesStore := service.NewFavoritesStore(kv, cfg.Storage.FavoritesKey, tracer, logger)
	broker := event.NewBroker()

	catalogService := service.NewCatalogService(catalog, favoritesStore, tracer, meter, logger)
	favoritesService := service.NewFavoritesService(favoritesStore, catalog, broker, tracer, meter, logger)

	server := http.NewServer(
		&cfg.Server,
		handler.NewProductHandler(catalogService, logger),
		handler.NewFavoritesHandler(favoritesService, logger),
		telem.TracerProvider,
		telem.MeterProvider,
		logger,
	)

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := favoritesService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Favorites watcher stopped", slog.String("error", err.Error()))
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server error", slog.String("error", err.Error()))
		}
		cancel()
	}

	// Close event streams first so Shutdown is not held open by them
	broker.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", slog.String("error", err.Error()))
	}

	// The watcher must be gone before the deferred storage Close runs
	cancel()
	<-watchDone

	logger.Info("Server stopped")
}
