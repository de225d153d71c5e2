package openfacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pricelens/catalog/internal/domain"
)

// maxBodySize bounds how much of an upstream response is read
const maxBodySize = 64 << 20

// DefaultDomains are the Open*Facts product APIs in priority order
var DefaultDomains = []string{
	"world.openfoodfacts.org",
	"world.openbeautyfacts.org",
	"world.openpetfoodfacts.org",
	"world.openproductfacts.org",
}

// Config holds configuration for the upstream client
type Config struct {
	// Domains are tried in order; bare host names are queried over https
	Domains []string
	// Timeout bounds each single-product request to one domain
	Timeout time.Duration
	// ListingTimeout bounds each listing page request
	ListingTimeout    time.Duration
	PageSize          int
	UserAgent         string
	RequestsPerMinute int
	Burst             int
}

// Client queries the Open*Facts product and search endpoints
type Client struct {
	httpClient  *http.Client
	domains     []string
	config      Config
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// productResponse is the /api/v0/product/{ean}.json envelope
type productResponse struct {
	Status  int             `json:"status"`
	Code    string          `json:"code"`
	Product json.RawMessage `json:"product"`
}

// searchResponse is the /cgi/search.pl envelope
type searchResponse struct {
	Products []json.RawMessage `json:"products"`
}

// NewClient creates a new upstream client
func NewClient(config Config, logger *slog.Logger) *Client {
	if len(config.Domains) == 0 {
		config.Domains = DefaultDomains
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.ListingTimeout <= 0 {
		config.ListingTimeout = 60 * time.Second
	}
	if config.PageSize <= 0 {
		config.PageSize = 1000
	}
	if config.UserAgent == "" {
		config.UserAgent = "PriceLens-Catalog/1.0"
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), config.Burst)

	return &Client{
		// Per-request deadlines come from the context
		httpClient:  &http.Client{},
		domains:     config.Domains,
		config:      config,
		rateLimiter: limiter,
		logger:      logger.With("component", "openfacts"),
	}
}

// BaseURL returns the scheme-qualified base URL of a domain
func BaseURL(domainOrURL string) string {
	base := strings.TrimRight(strings.TrimSpace(domainOrURL), "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return base
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (int, []byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// FetchProduct tries every domain in order and returns the first one reporting the product found
func (c *Client) FetchProduct(ctx context.Context, ean string) (*domain.UpstreamProduct, error) {
	var lastErr error
	for _, d := range c.domains {
		found, err := c.fetchFrom(ctx, d, ean)
		if err == nil {
			c.logger.Debug("product found", "ean", ean, "domain", d)
			return found, nil
		}
		if errors.Is(err, domain.ErrProductNotFound) {
			continue
		}

		c.logger.Warn("upstream domain failed", "ean", ean, "domain", d, "error", err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, ean)
}

func (c *Client) fetchFrom(ctx context.Context, d, ean string) (*domain.UpstreamProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/api/v0/product/%s.json", BaseURL(d), url.PathEscape(ean))
	status, body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, d, err)
	}
	if status == http.StatusNotFound {
		return nil, domain.ErrProductNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", domain.ErrUpstreamUnavailable, d, status)
	}

	var envelope productResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %v", domain.ErrUpstreamUnavailable, d, err)
	}
	if envelope.Status != 1 || len(envelope.Product) == 0 || string(envelope.Product) == "null" {
		return nil, domain.ErrProductNotFound
	}

	doc, err := domain.ParseRawDocument(envelope.Product)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, d, err)
	}
	if doc.String("code") == "" {
		doc.Fields["code"] = ean
	}

	return &domain.UpstreamProduct{Document: doc, Source: d}, nil
}

// ListPage returns one page of the dataset's product listing. Malformed entries are dropped.
func (c *Client) ListPage(ctx context.Context, dataset string, page int) ([]domain.RawDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ListingTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("search_simple", "1")
	params.Set("action", "process")
	params.Set("json", "1")
	params.Set("page_size", strconv.Itoa(c.config.PageSize))
	params.Set("page", strconv.Itoa(page))
	reqURL := fmt.Sprintf("%s/cgi/search.pl?%s", BaseURL(dataset), params.Encode())

	status, body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, status)
	}

	var envelope searchResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode listing: %v", domain.ErrUpstreamUnavailable, err)
	}

	docs := make([]domain.RawDocument, 0, len(envelope.Products))
	for _, raw := range envelope.Products {
		doc, err := domain.ParseRawDocument(raw)
		if err != nil {
			c.logger.Debug("dropping malformed listing entry", "dataset", dataset, "page", page, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
