package usecase

import (
	"testing"

	"github.com/pricelens/catalog/internal/domain"
)

func TestLookupUnit(t *testing.T) {
	tests := []struct {
		raw    string
		want   domain.Unit
		wantOk bool
	}{
		{"g", domain.UnitGram, true},
		{" GR ", domain.UnitGram, true},
		{"grammi", domain.UnitGram, true},
		{"Kg", domain.UnitKilogram, true},
		{"chilo", domain.UnitKilogram, true},
		{"mg", domain.UnitMilligram, true},
		{"litri", domain.UnitLitre, true},
		{"mililitres", domain.UnitMillilitre, true},
		{"cl", domain.UnitCentilitre, true},
		{"pezzi", domain.UnitPiece, true},
		{"pcs", domain.UnitPiece, true},
		{"oz", domain.UnitUnknown, true},
		{"sachets", domain.UnitUnknown, true},
		{"furlongs", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := LookupUnit(tt.raw)
			if ok != tt.wantOk {
				t.Fatalf("LookupUnit(%q) ok = %v, want %v", tt.raw, ok, tt.wantOk)
			}
			if got != tt.want {
				t.Errorf("LookupUnit(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseUnit_RejectsUnknown(t *testing.T) {
	for _, raw := range []string{"oz", "unknown", "pack", "furlongs"} {
		if unit, ok := parseUnit(raw); ok {
			t.Errorf("parseUnit(%q) = %q, want rejection", raw, unit)
		}
	}
	if unit, ok := parseUnit("ML"); !ok || unit != domain.UnitMillilitre {
		t.Errorf("parseUnit(ML) = %q, %v, want ml, true", unit, ok)
	}
}

func TestBackfillUnit(t *testing.T) {
	tests := []struct {
		raw            string
		want           domain.Unit
		wantRecognized bool
	}{
		{"grammi", domain.UnitGram, true},
		{"oz", domain.UnitUnknown, true},
		{"furlongs", domain.UnitUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, recognized := BackfillUnit(tt.raw)
			if got != tt.want || recognized != tt.wantRecognized {
				t.Errorf("BackfillUnit(%q) = %q, %v, want %q, %v", tt.raw, got, recognized, tt.want, tt.wantRecognized)
			}
		})
	}
}

func TestUnitTable_ValuesAreCanonical(t *testing.T) {
	canonical := map[domain.Unit]bool{
		domain.UnitGram: true, domain.UnitKilogram: true, domain.UnitMilligram: true,
		domain.UnitMillilitre: true, domain.UnitCentilitre: true, domain.UnitLitre: true,
		domain.UnitPiece: true, domain.UnitUnknown: true,
	}
	for token, unit := range unitTable {
		if !canonical[unit] {
			t.Errorf("unitTable[%q] = %q is not a canonical unit", token, unit)
		}
	}
}
