package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/catalog/config"
	"github.com/pricelens/catalog/internal/domain"
	"github.com/pricelens/catalog/internal/infrastructure/cache"
	"github.com/pricelens/catalog/internal/infrastructure/memory"
	"github.com/pricelens/catalog/internal/infrastructure/openfacts"
	"github.com/pricelens/catalog/internal/infrastructure/sqlstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		catalog, err := OpenCatalog(ctx, config.CatalogConfig{Type: "memory"}, discardLogger())
		require.NoError(t, err)
		defer catalog.Close()

		assert.IsType(t, &memory.Catalog{}, catalog)
	})

	t.Run("sqlite with migrations", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "catalog.db")
		catalog, err := OpenCatalog(ctx, config.CatalogConfig{
			Type:        "sqlite",
			DSN:         dsn,
			ConnTimeout: time.Second,
			AutoMigrate: true,
		}, discardLogger())
		require.NoError(t, err)
		defer catalog.Close()

		assert.IsType(t, &sqlstore.Store{}, catalog)
		require.NoError(t, catalog.Ping(ctx))

		brands, err := catalog.ListBrands(ctx)
		require.NoError(t, err)
		assert.Empty(t, brands)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := OpenCatalog(ctx, config.CatalogConfig{Type: "mongo"}, discardLogger())
		assert.Error(t, err)
	})
}

func TestServiceConfigs(t *testing.T) {
	cfg := &config.Config{
		Import: config.ImportConfig{
			MaxAttempts:     4,
			RetryDelay:      time.Second,
			Workers:         2,
			FinalSweep:      true,
			MergePolicy:     "fill_null",
			Languages:       []string{"it"},
			PrimaryLanguage: "it",
			BrandSimilarity: 0.9,
			ProgressEvery:   10,
		},
	}

	ic := ImportServiceConfig(cfg)
	assert.Equal(t, 4, ic.MaxAttempts)
	assert.Equal(t, 2, ic.Workers)
	assert.Equal(t, domain.MergeFillNull, ic.MergePolicy)
	assert.Equal(t, 0.9, ic.BrandSimilarity)

	dc := DumpServiceConfig(cfg)
	assert.Equal(t, domain.MergeFillNull, dc.MergePolicy)
	assert.Equal(t, 10, dc.ProgressEvery)
}

func TestNewUpstream(t *testing.T) {
	cfg := config.UpstreamConfig{Domains: []string{"world.openfoodfacts.org"}, Timeout: time.Second}

	_, plain := NewUpstream(cfg, discardLogger()).(*openfacts.Client)
	assert.True(t, plain)

	cfg.NotFoundTTL = time.Minute
	_, cached := NewUpstream(cfg, discardLogger()).(*cache.NotFoundCache)
	assert.True(t, cached)
}
