package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pricelens/catalog/config"
	"github.com/pricelens/catalog/internal/app"
	httpDelivery "github.com/pricelens/catalog/internal/delivery/http"
	"github.com/pricelens/catalog/internal/logging"
	"github.com/pricelens/catalog/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := config.LoadEnvFile(); err != nil {
		log.Printf("ignoring .env: %v", err)
	}

	// Load configuration
	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, cfg.Server.Environment)
	logger.Info("pricelens catalog server starting",
		"version", httpDelivery.Version,
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"catalog", cfg.Catalog.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize infrastructure dependencies
	catalog, err := app.OpenCatalog(ctx, cfg.Catalog, logger)
	if err != nil {
		logger.Error("failed to open catalog", "error", err)
		os.Exit(1)
	}
	defer catalog.Close()

	upstream := app.NewUpstream(cfg.Upstream, logger)

	// Initialize usecase layer
	importService := usecase.NewImportService(catalog, upstream, logger, app.ImportServiceConfig(cfg))

	handler := httpDelivery.NewHandler(importService, catalog, logger)
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return
	}
	logger.Info("server shutdown complete")
}
