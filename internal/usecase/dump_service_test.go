package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/pricelens/catalog/internal/domain"
	"github.com/pricelens/catalog/internal/infrastructure/memory"
)

func dumpLines(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n"))
}

func TestCountryFilter(t *testing.T) {
	filter := CountryFilter([]string{"en:italy", "it:italia"}, []string{"italia", "italy"})

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"tag match", `{"countries_tags": ["en:france", "en:italy"]}`, true},
		{"tag match case-insensitive", `{"countries_tags": ["EN:Italy"]}`, true},
		{"text match", `{"countries": "France, Italia"}`, true},
		{"no match", `{"countries_tags": ["en:france"], "countries": "France"}`, false},
		{"no country fields", `{"code": "12345678"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter(mustDocument(t, tt.body)); got != tt.want {
				t.Errorf("filter(%s) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}

	all := CountryFilter(nil, []string{"  "})
	if !all(mustDocument(t, `{}`)) {
		t.Error("empty filter should accept every document")
	}
}

func TestDumpService_Import(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewCatalog()
	s := NewDumpService(catalog, discardLogger(), DumpServiceConfig{ProgressEvery: 2})

	input := dumpLines(
		`{"code": "8001234567890", "product_name": "Pasta", "brands": "Barilla", "countries_tags": ["en:italy"]}`,
		`not json at all`,
		`{"code": "4006381333931", "product_name": "Penne", "countries_tags": ["en:germany"]}`,
		``,
		`{"code": "123", "product_name": "Broken", "countries_tags": ["en:italy"]}`,
		`{"code": "5000112637922", "countries": "Italia"}`,
		`{"code": "8001234567890", "product_name": "Pasta", "brands": "Barilla", "countries_tags": ["en:italy"]}`,
	)

	report, err := s.Import(ctx, input, DumpOptions{Filter: CountryFilter([]string{"en:italy"}, []string{"italia"})})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if report.Read != 6 {
		t.Errorf("Read = %d, want 6", report.Read)
	}
	if report.Considered != 4 {
		t.Errorf("Considered = %d, want 4", report.Considered)
	}
	if report.Created != 1 || report.Updated != 1 {
		t.Errorf("Created/Updated = %d/%d, want 1/1", report.Created, report.Updated)
	}
	if report.Discarded != 3 {
		t.Errorf("Discarded = %d, want 3", report.Discarded)
	}
	if report.Failed != 0 || report.Truncated {
		t.Errorf("Failed = %d Truncated = %v, want 0/false", report.Failed, report.Truncated)
	}
	if catalog.Size() != 1 {
		t.Errorf("catalog size = %d, want 1", catalog.Size())
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
}

func TestDumpService_Limit(t *testing.T) {
	catalog := memory.NewCatalog()
	s := NewDumpService(catalog, discardLogger(), DumpServiceConfig{})

	input := dumpLines(
		`{"code": "80000000", "product_name": "Uno"}`,
		`{"code": "80000001", "product_name": "Due"}`,
		`{"code": "80000002", "product_name": "Tre"}`,
	)

	report, err := s.Import(context.Background(), input, DumpOptions{Limit: 2})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !report.Truncated || report.Processed() != 2 || report.Read != 2 {
		t.Errorf("report = %+v, want truncated after 2", report)
	}
	if catalog.Size() != 2 {
		t.Errorf("catalog size = %d, want 2", catalog.Size())
	}
}

func TestDumpService_StorageFailureDoesNotStop(t *testing.T) {
	catalog := &flakyCatalog{Catalog: memory.NewCatalog(), failures: 1}
	s := NewDumpService(catalog, discardLogger(), DumpServiceConfig{})

	input := dumpLines(
		`{"code": "80000000", "product_name": "Uno"}`,
		`{"code": "80000001", "product_name": "Due"}`,
	)

	report, err := s.Import(context.Background(), input, DumpOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if report.Failed != 1 || report.Created != 1 {
		t.Errorf("Failed/Created = %d/%d, want 1/1", report.Failed, report.Created)
	}
	if len(report.Failures) != 1 || report.Failures[0].EAN != "80000000" || report.Failures[0].Status != domain.StatusError {
		t.Errorf("Failures = %+v", report.Failures)
	}
}

func TestDumpService_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewDumpService(memory.NewCatalog(), discardLogger(), DumpServiceConfig{})
	report, err := s.Import(ctx, dumpLines(`{"code": "80000000", "product_name": "Uno"}`), DumpOptions{})
	if err == nil {
		t.Fatal("Import() expected error for cancelled context")
	}
	if report.Read != 0 {
		t.Errorf("Read = %d, want 0", report.Read)
	}
}
