package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pricelens/catalog/config"
	"github.com/pricelens/catalog/internal/app"
	"github.com/pricelens/catalog/internal/domain"
	"github.com/pricelens/catalog/internal/logging"
)

// rootOptions are the persistent flags shared by every command
type rootOptions struct {
	configPath  string
	envFile     string
	logLevel    string
	catalogType string
	dsn         string
}

// loadConfig reads .env and configuration, then applies flag overrides
func (o *rootOptions) loadConfig() (*config.Config, *slog.Logger, error) {
	envErr := config.LoadEnvFile(o.envFile)

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, withCode(exitUsage, err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.catalogType != "" {
		cfg.Catalog.Type = strings.ToLower(o.catalogType)
	}
	if o.dsn != "" {
		cfg.Catalog.DSN = o.dsn
	}

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, cfg.Server.Environment)
	if envErr != nil {
		logger.Warn("ignoring .env file", "path", o.envFile, "error", envErr)
	}
	return cfg, logger, nil
}

// runtime is the configured environment of one command invocation
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	catalog domain.Catalog
}

// setup loads configuration and opens the catalog
func (o *rootOptions) setup(ctx context.Context) (*runtime, error) {
	cfg, logger, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	catalog, err := app.OpenCatalog(ctx, cfg.Catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return &runtime{cfg: cfg, logger: logger, catalog: catalog}, nil
}

func (r *runtime) Close() {
	if err := r.catalog.Close(); err != nil {
		r.logger.Error("failed to close catalog", "error", err)
	}
}
