package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/catalog/config"
	"github.com/pricelens/catalog/internal/domain"
	"github.com/pricelens/catalog/internal/infrastructure/memory"
	"github.com/pricelens/catalog/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeUpstream serves canned documents; unknown identifiers are not found
type fakeUpstream struct {
	mu       sync.Mutex
	docs     map[string]string
	failures map[string]error
	calls    map[string]int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		docs:     make(map[string]string),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeUpstream) FetchProduct(ctx context.Context, ean string) (*domain.UpstreamProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[ean]++
	if err, ok := f.failures[ean]; ok {
		return nil, err
	}
	body, ok := f.docs[ean]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	doc, err := domain.ParseRawDocument([]byte(body))
	if err != nil {
		return nil, err
	}
	return &domain.UpstreamProduct{Document: doc, Source: "world.openfoodfacts.org"}, nil
}

func (f *fakeUpstream) ListPage(ctx context.Context, dataset string, page int) ([]domain.RawDocument, error) {
	return nil, nil
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

const pastaEAN = "8001234567890"

// setupTestRouter creates a test router backed by an in-memory catalog
func setupTestRouter(t *testing.T) (*gin.Engine, *fakeUpstream, *memory.Catalog) {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
	}

	upstream := newFakeUpstream()
	upstream.docs[pastaEAN] = `{"code":"8001234567890","product_name_it":"Pasta","brands":"Barilla","quantity":"500 g","categories_hierarchy":["en:plant-based-foods","en:pastas"]}`

	catalog := memory.NewCatalog()
	service := usecase.NewImportService(catalog, upstream, nil, usecase.ImportServiceConfig{
		MaxAttempts:     2,
		Workers:         2,
		FinalSweep:      true,
		MergePolicy:     domain.MergeOverwrite,
		BrandSimilarity: 0.8,
	})

	router := SetupRouter(cfg, NewHandler(service, catalog, nil), nil)
	require.NotNil(t, router)
	return router, upstream, catalog
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router, _, _ := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, ServiceName, body["service"])
		assert.Equal(t, "ok", body["catalog"])
		assert.NotEmpty(t, body["version"])
	})

	t.Run("reports unreachable catalog", func(t *testing.T) {
		router := SetupRouter(&config.Config{}, NewHandler(nil, failingPinger{}, nil), nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", decodeBody(t, w)["status"])
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router, _, _ := setupTestRouter(t)

		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(method, "/health", nil))
			assert.Equal(t, http.StatusNotFound, w.Code, "method %s", method)
		}
	})
}

func TestImportProductEndpoint(t *testing.T) {
	t.Run("creates then updates", func(t *testing.T) {
		router, _, catalog := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/imports/"+pastaEAN, nil))
		require.Equal(t, http.StatusCreated, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, pastaEAN, body["ean"])
		assert.Equal(t, "OK", body["status"])
		assert.Equal(t, true, body["created"])
		assert.Equal(t, "world.openfoodfacts.org", body["source"])

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/imports/"+pastaEAN, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decodeBody(t, w)["created"])

		product, err := catalog.FindProduct(context.Background(), pastaEAN)
		require.NoError(t, err)
		assert.Equal(t, "Pasta Barilla 500G", product.Name)
		assert.Equal(t, 1, catalog.Size())
	})

	t.Run("unknown product is skipped", func(t *testing.T) {
		router, upstream, _ := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/imports/4006381333931", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "SKIPPED", decodeBody(t, w)["status"])
		assert.Equal(t, 1, upstream.calls["4006381333931"])
	})

	t.Run("invalid identifier is rejected without fetching", func(t *testing.T) {
		router, upstream, _ := setupTestRouter(t)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/imports/abc123", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, upstream.calls["abc123"])
	})

	t.Run("upstream outage is retried then reported", func(t *testing.T) {
		router, upstream, _ := setupTestRouter(t)
		upstream.failures[pastaEAN] = domain.ErrUpstreamUnavailable

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/imports/"+pastaEAN, nil))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "ERROR", body["status"])
		assert.EqualValues(t, 2, body["attempts"])
		assert.Equal(t, 2, upstream.calls[pastaEAN])
	})
}

func TestImportBatchEndpoint(t *testing.T) {
	t.Run("imports every identifier", func(t *testing.T) {
		router, _, catalog := setupTestRouter(t)

		payload := `{"eans":["8001234567890","4006381333931","abc"]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Report struct {
				Primary struct {
					Attempted int `json:"attempted"`
					Created   int `json:"created"`
					Skipped   int `json:"skipped"`
					Failed    int `json:"failed"`
				} `json:"primary"`
			} `json:"report"`
			PermanentlyFailed int `json:"permanently_failed"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Report.Primary.Attempted)
		assert.Equal(t, 1, resp.Report.Primary.Created)
		assert.Equal(t, 2, resp.Report.Primary.Skipped)
		assert.Zero(t, resp.PermanentlyFailed)
		assert.Equal(t, 1, catalog.Size())
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		router, _, _ := setupTestRouter(t)

		for _, payload := range []string{`{`, `{}`, `{"eans":[]}`} {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", strings.NewReader(payload))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code, "payload %s", payload)
			assert.Contains(t, decodeBody(t, w), "error")
		}
	})

	t.Run("without service returns not implemented", func(t *testing.T) {
		router := SetupRouter(&config.Config{}, NewHandler(nil, nil, nil), nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", strings.NewReader(`{"eans":["8001234567890"]}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotImplemented, w.Code)
	})
}

func TestCORSIntegration(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusForResult(t *testing.T) {
	tests := []struct {
		name string
		res  domain.ImportResult
		want int
	}{
		{"created", domain.ImportResult{Kind: domain.ResultSuccess, Created: true}, http.StatusCreated},
		{"updated", domain.ImportResult{Kind: domain.ResultSuccess}, http.StatusOK},
		{"invalid ean", domain.ImportResult{Kind: domain.ResultRejected, Err: domain.ErrInvalidEAN}, http.StatusBadRequest},
		{"not found", domain.ImportResult{Kind: domain.ResultRejected, Err: domain.ErrProductNotFound}, http.StatusNotFound},
		{"missing name", domain.ImportResult{Kind: domain.ResultRejected, Err: domain.ErrMissingName}, http.StatusUnprocessableEntity},
		{"transient", domain.ImportResult{Kind: domain.ResultTransient, Err: domain.ErrUpstreamUnavailable}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForResult(tt.res))
		})
	}
}
