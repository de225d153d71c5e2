// Package app wires configuration into catalog, upstream and service instances
// shared by the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pricelens/catalog/config"
	"github.com/pricelens/catalog/internal/domain"
	"github.com/pricelens/catalog/internal/infrastructure/cache"
	"github.com/pricelens/catalog/internal/infrastructure/memory"
	"github.com/pricelens/catalog/internal/infrastructure/openfacts"
	"github.com/pricelens/catalog/internal/infrastructure/sqlstore"
	"github.com/pricelens/catalog/internal/usecase"
)

// OpenCatalog opens the configured catalog backend, applying migrations first
// when auto_migrate is set
func OpenCatalog(ctx context.Context, cfg config.CatalogConfig, logger *slog.Logger) (domain.Catalog, error) {
	if cfg.Type == "memory" {
		logger.Warn("using in-memory catalog; data is lost on exit")
		return memory.NewCatalog(), nil
	}

	dialect, err := sqlstore.ParseDialect(cfg.Type)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := sqlstore.MigrateUp(dialect, cfg.DSN); err != nil {
			return nil, fmt.Errorf("migrate catalog: %w", err)
		}
	}

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Dialect:      dialect,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
		ConnTimeout:  cfg.ConnTimeout,
		ConnRetries:  cfg.ConnRetries,
	}, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewUpstream builds the Open*Facts client, behind a not-found cache when
// not_found_ttl is positive
func NewUpstream(cfg config.UpstreamConfig, logger *slog.Logger) domain.UpstreamClient {
	client := openfacts.NewClient(openfacts.Config{
		Domains:           cfg.Domains,
		Timeout:           cfg.Timeout,
		ListingTimeout:    cfg.ListingTimeout,
		PageSize:          cfg.PageSize,
		UserAgent:         cfg.UserAgent,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Burst:             cfg.Burst,
	}, logger)
	if cfg.NotFoundTTL <= 0 {
		return client
	}
	return cache.NewNotFoundCache(client, cfg.NotFoundTTL, logger)
}

// ImportServiceConfig maps configuration onto the import orchestrator
func ImportServiceConfig(cfg *config.Config) usecase.ImportServiceConfig {
	return usecase.ImportServiceConfig{
		MaxAttempts:     cfg.Import.MaxAttempts,
		RetryDelay:      cfg.Import.RetryDelay,
		Workers:         cfg.Import.Workers,
		FinalSweep:      cfg.Import.FinalSweep,
		MergePolicy:     domain.MergePolicy(cfg.Import.MergePolicy),
		BrandSimilarity: cfg.Import.BrandSimilarity,
		Languages:       cfg.Import.Languages,
		PrimaryLanguage: cfg.Import.PrimaryLanguage,
	}
}

// DumpServiceConfig maps configuration onto the bulk dump importer
func DumpServiceConfig(cfg *config.Config) usecase.DumpServiceConfig {
	return usecase.DumpServiceConfig{
		MergePolicy:     domain.MergePolicy(cfg.Import.MergePolicy),
		BrandSimilarity: cfg.Import.BrandSimilarity,
		Languages:       cfg.Import.Languages,
		PrimaryLanguage: cfg.Import.PrimaryLanguage,
		ProgressEvery:   cfg.Import.ProgressEvery,
	}
}
