package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pricelens/catalog/internal/domain"
)

// NotFoundCache wraps an upstream client and remembers identifiers that every
// domain reported as unknown, so repeated imports of the same code skip the
// fan-out until the entry expires. Hits and transient failures are never cached.
type NotFoundCache struct {
	next   domain.UpstreamClient
	misses *MemoryCache[struct{}]
	ttl    time.Duration
	logger *slog.Logger
}

// NewNotFoundCache creates a caching decorator around next
func NewNotFoundCache(next domain.UpstreamClient, ttl time.Duration, logger *slog.Logger) *NotFoundCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotFoundCache{
		next:   next,
		misses: NewMemoryCache[struct{}](),
		ttl:    ttl,
		logger: logger.With("component", "upstream-cache"),
	}
}

// FetchProduct answers from the not-found cache or delegates to the wrapped client
func (c *NotFoundCache) FetchProduct(ctx context.Context, ean string) (*domain.UpstreamProduct, error) {
	if _, err := c.misses.Get(ctx, ean); err == nil {
		c.logger.Debug("not-found cache hit", "ean", ean)
		return nil, domain.ErrProductNotFound
	}

	product, err := c.next.FetchProduct(ctx, ean)
	if errors.Is(err, domain.ErrProductNotFound) {
		if setErr := c.misses.Set(ctx, ean, struct{}{}, c.ttl); setErr != nil {
			c.logger.Warn("failed to cache not-found result", "ean", ean, "error", setErr)
		}
		return nil, err
	}
	if err == nil {
		_ = c.misses.Delete(ctx, ean)
	}
	return product, err
}

// ListPage delegates to the wrapped client
func (c *NotFoundCache) ListPage(ctx context.Context, dataset string, page int) ([]domain.RawDocument, error) {
	return c.next.ListPage(ctx, dataset, page)
}
