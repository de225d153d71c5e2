package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/pricelens/catalog/internal/domain"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Acqua  naturale", "Acqua naturale"},
		{"Acqua naturale bottiglia", "Acqua naturale"},
		{"Confezione pezzi biscotti", "biscotti"},
		{"Birra cassa", "Birra"},
		{"Bottigliette", "Bottigliette"},
		{"  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := CleanName(tt.raw); got != tt.want {
				t.Errorf("CleanName(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBuildName(t *testing.T) {
	str := func(s string) *string { return &s }
	qty := func(s string) *decimal.Decimal { d := decimal.RequireFromString(s); return &d }
	unit := func(u domain.Unit) *domain.Unit { return &u }

	tests := []struct {
		name     string
		raw      string
		brand    *string
		quantity *decimal.Decimal
		unit     *domain.Unit
		want     string
	}{
		{"full", "Pasta", str("Barilla"), qty("500"), unit(domain.UnitGram), "Pasta Barilla 500G"},
		{"brand removed from description", "Barilla Spaghetti n.5", str("Barilla"), qty("1"), unit(domain.UnitKilogram), "Spaghetti n.5 Barilla 1KG"},
		{"quantity already present", "Acqua 1.5L", str("Levissima"), qty("1.5"), unit(domain.UnitLitre), "Acqua 1.5L Levissima"},
		{"no brand", "Latte intero", nil, qty("1"), unit(domain.UnitLitre), "Latte intero 1L"},
		{"no quantity", "Latte intero", str("Granarolo"), nil, nil, "Latte intero Granarolo"},
		{"description equals brand", "Nutella", str("Nutella"), qty("750"), unit(domain.UnitGram), "Nutella 750G"},
		{"nothing left", "bottiglia", nil, nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildName(tt.raw, tt.brand, tt.quantity, tt.unit)
			if got != tt.want {
				t.Errorf("BuildName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildName_Truncates(t *testing.T) {
	raw := strings.Repeat("biscotto ", 60)
	got := BuildName(raw, nil, nil, nil)
	if n := utf8.RuneCountInString(got); n > MaxNameLength {
		t.Errorf("len(BuildName()) = %d runes, want <= %d", n, MaxNameLength)
	}
}
