package openfacts

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricelens/catalog/internal/domain"
)

func testClient(domains ...string) *Client {
	return NewClient(Config{
		Domains:           domains,
		Timeout:           2 * time.Second,
		ListingTimeout:    2 * time.Second,
		PageSize:          2,
		RequestsPerMinute: 60000,
		Burst:             100,
	}, nil)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{}, nil)

	assert.Equal(t, DefaultDomains, client.domains)
	assert.Equal(t, 5*time.Second, client.config.Timeout)
	assert.Equal(t, 60*time.Second, client.config.ListingTimeout)
	assert.Equal(t, 1000, client.config.PageSize)
	assert.Equal(t, "PriceLens-Catalog/1.0", client.config.UserAgent)
	assert.NotNil(t, client.rateLimiter)
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"world.openfoodfacts.org", "https://world.openfoodfacts.org"},
		{"https://world.openbeautyfacts.org/", "https://world.openbeautyfacts.org"},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, BaseURL(tt.input))
		})
	}
}

func TestFetchProduct_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/product/8001234567890.json", r.URL.Path)
		assert.Equal(t, "PriceLens-Catalog/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":1,"code":"8001234567890","product":{"code":"8001234567890","product_name":"Pasta","nova_group":1}}`)
	}))
	defer server.Close()

	client := testClient(server.URL)
	found, err := client.FetchProduct(context.Background(), "8001234567890")

	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, server.URL, found.Source)
	assert.Equal(t, "Pasta", found.Document.String("product_name"))
	assert.Equal(t, "8001234567890", found.Document.String("code"))
	assert.NotEmpty(t, found.Document.Body)
}

func TestFetchProduct_FallsBackToNextDomain(t *testing.T) {
	var firstCalls atomic.Int32
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		firstCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0,"status_verbose":"product not found"}`)
	}))
	defer missing.Close()

	found := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":1,"product":{"product_name":"Shampoo"}}`)
	}))
	defer found.Close()

	client := testClient(failing.URL, missing.URL, found.URL)
	result, err := client.FetchProduct(context.Background(), "12345678")

	require.NoError(t, err)
	assert.Equal(t, found.URL, result.Source)
	assert.Equal(t, int32(1), firstCalls.Load())
	// code is filled from the requested identifier when the payload lacks it
	assert.Equal(t, "12345678", result.Document.String("code"))
}

func TestFetchProduct_NotFoundEverywhere(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0}`)
	}))
	defer server.Close()

	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()

	client := testClient(server.URL, notFound.URL)
	result, err := client.FetchProduct(context.Background(), "12345678")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestFetchProduct_UnavailableWhenAnyDomainFails(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{not json`)
	}))
	defer broken.Close()

	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":0}`)
	}))
	defer missing.Close()

	client := testClient(broken.URL, missing.URL)
	_, err := client.FetchProduct(context.Background(), "12345678")

	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, domain.ErrProductNotFound)
}

func TestFetchProduct_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	client := NewClient(Config{
		Domains:           []string{slow.URL},
		Timeout:           50 * time.Millisecond,
		RequestsPerMinute: 60000,
	}, nil)

	start := time.Now()
	_, err := client.FetchProduct(context.Background(), "12345678")

	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestListPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cgi/search.pl", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("search_simple"))
		assert.Equal(t, "process", q.Get("action"))
		assert.Equal(t, "1", q.Get("json"))
		assert.Equal(t, "2", q.Get("page_size"))

		switch q.Get("page") {
		case "1":
			fmt.Fprint(w, `{"products":[{"code":"12345678"},"not an object",{"code":"87654321"}]}`)
		default:
			fmt.Fprint(w, `{"products":[]}`)
		}
	}))
	defer server.Close()

	client := testClient()

	docs, err := client.ListPage(context.Background(), server.URL, 1)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "12345678", docs[0].String("code"))
	assert.Equal(t, "87654321", docs[1].String("code"))

	docs, err = client.ListPage(context.Background(), server.URL, 2)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestListPage_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := testClient()
	docs, err := client.ListPage(context.Background(), server.URL, 1)

	assert.Nil(t, docs)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
