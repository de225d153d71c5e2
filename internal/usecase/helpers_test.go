package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pricelens/catalog/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustDocument(t *testing.T, body string) domain.RawDocument {
	t.Helper()
	doc, err := domain.ParseRawDocument([]byte(body))
	if err != nil {
		t.Fatalf("ParseRawDocument(%s) error = %v", body, err)
	}
	return doc
}

// staticBrands is a BrandSource with a fixed list
type staticBrands struct {
	brands []string
	err    error
	calls  int
}

func (s *staticBrands) ListBrands(ctx context.Context) ([]string, error) {
	s.calls++
	return s.brands, s.err
}

// mockUpstream is a scripted UpstreamClient. Each identifier may fail a number
// of times with a given error before its document is served.
type mockUpstream struct {
	mu       sync.Mutex
	docs     map[string]string
	failures map[string][]error
	pages    map[string][][]string
	pageErr  map[string]error
	calls    map[string]int
}

func newMockUpstream() *mockUpstream {
	return &mockUpstream{
		docs:     make(map[string]string),
		failures: make(map[string][]error),
		pages:    make(map[string][][]string),
		pageErr:  make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (m *mockUpstream) FetchProduct(ctx context.Context, ean string) (*domain.UpstreamProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[ean]++
	if queue := m.failures[ean]; len(queue) > 0 {
		m.failures[ean] = queue[1:]
		return nil, queue[0]
	}
	body, ok := m.docs[ean]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	doc, err := domain.ParseRawDocument([]byte(body))
	if err != nil {
		return nil, err
	}
	return &domain.UpstreamProduct{Document: doc, Source: "world.openfoodfacts.org"}, nil
}

func (m *mockUpstream) ListPage(ctx context.Context, dataset string, page int) ([]domain.RawDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.pageErr[dataset]; ok && page == len(m.pages[dataset])+1 {
		return nil, err
	}
	pages := m.pages[dataset]
	if page < 1 || page > len(pages) {
		return nil, nil
	}
	docs := make([]domain.RawDocument, 0, len(pages[page-1]))
	for _, body := range pages[page-1] {
		doc, err := domain.ParseRawDocument([]byte(body))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *mockUpstream) callCount(ean string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ean]
}

// recordingSink collects outcomes in order
type recordingSink struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
}

func (s *recordingSink) Write(o domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return nil
}

func (s *recordingSink) statuses() map[string]domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.Status, len(s.outcomes))
	for _, o := range s.outcomes {
		out[o.EAN] = o.Status
	}
	return out
}

var errFlaky = errors.Join(domain.ErrUpstreamUnavailable, errors.New("connection reset"))

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

const pastaDoc = `{
	"code": "8001234567890",
	"product_name_it": "Pasta",
	"brands": "Barilla S.p.A.",
	"quantity": "500 g",
	"image_front_url": "//images.openfoodfacts.org/8001234567890/front.jpg",
	"nutrition_grades": "A",
	"nova_group": 1,
	"labels_tags": ["en:vegetarian", "en:vegan", "en:vegetarian"],
	"ingredients_text_it": "semola di grano duro",
	"ingredients_text_en": "durum wheat semolina",
	"categories_hierarchy": ["en:plant-based-foods", "en:cereals-and-potatoes", "en:pastas"],
	"countries_tags": ["en:italy"]
}`
