package usecase

import (
	"strings"

	"github.com/pricelens/catalog/internal/domain"
)

// unitTable maps lower-cased raw unit tokens (multilingual, abbreviated,
// misspelled) to canonical units. Tokens known to be useless map to unknown.
var unitTable = map[string]domain.Unit{
	// weight
	"g":           domain.UnitGram,
	"gr":          domain.UnitGram,
	"grs":         domain.UnitGram,
	"gm":          domain.UnitGram,
	"gram":        domain.UnitGram,
	"grams":       domain.UnitGram,
	"gramm":       domain.UnitGram,
	"gramme":      domain.UnitGram,
	"grammes":     domain.UnitGram,
	"grammi":      domain.UnitGram,
	"grammo":      domain.UnitGram,
	"gramos":      domain.UnitGram,
	"kg":          domain.UnitKilogram,
	"kgs":         domain.UnitKilogram,
	"klg":         domain.UnitKilogram,
	"kilo":        domain.UnitKilogram,
	"kilos":       domain.UnitKilogram,
	"kilogram":    domain.UnitKilogram,
	"kilograms":   domain.UnitKilogram,
	"kilogramme":  domain.UnitKilogram,
	"kilogrammes": domain.UnitKilogram,
	"chilo":       domain.UnitKilogram,
	"mg":          domain.UnitMilligram,
	"milligram":   domain.UnitMilligram,
	"milligrams":  domain.UnitMilligram,
	"milligramme": domain.UnitMilligram,

	// volume
	"l":           domain.UnitLitre,
	"lt":          domain.UnitLitre,
	"ltr":         domain.UnitLitre,
	"liter":       domain.UnitLitre,
	"liters":      domain.UnitLitre,
	"litre":       domain.UnitLitre,
	"litres":      domain.UnitLitre,
	"litro":       domain.UnitLitre,
	"litri":       domain.UnitLitre,
	"ml":          domain.UnitMillilitre,
	"mls":         domain.UnitMillilitre,
	"milliliter":  domain.UnitMillilitre,
	"milliliters": domain.UnitMillilitre,
	"millilitre":  domain.UnitMillilitre,
	"millilitres": domain.UnitMillilitre,
	"mililitres":  domain.UnitMillilitre,
	"millilitri":  domain.UnitMillilitre,
	"cl":          domain.UnitCentilitre,
	"centiliter":  domain.UnitCentilitre,
	"centiliters": domain.UnitCentilitre,
	"centilitre":  domain.UnitCentilitre,
	"centilitres": domain.UnitCentilitre,
	"centilitri":  domain.UnitCentilitre,

	// pieces
	"pz":     domain.UnitPiece,
	"pzs":    domain.UnitPiece,
	"pezzi":  domain.UnitPiece,
	"pezzo":  domain.UnitPiece,
	"p":      domain.UnitPiece,
	"pi":     domain.UnitPiece,
	"pc":     domain.UnitPiece,
	"pcs":    domain.UnitPiece,
	"piece":  domain.UnitPiece,
	"pieces": domain.UnitPiece,
	"unit":   domain.UnitPiece,
	"units":  domain.UnitPiece,

	// recognized but not convertible
	"unknown":  domain.UnitUnknown,
	"oz":       domain.UnitUnknown,
	"pints":    domain.UnitUnknown,
	"x":        domain.UnitUnknown,
	"pack":     domain.UnitUnknown,
	"portion":  domain.UnitUnknown,
	"pouches":  domain.UnitUnknown,
	"sachets":  domain.UnitUnknown,
	"slices":   domain.UnitUnknown,
	"sausages": domain.UnitUnknown,
	"lonchas":  domain.UnitUnknown,
	"latas":    domain.UnitUnknown,
	"rice":     domain.UnitUnknown,
	"crackers": domain.UnitUnknown,
}

// LookupUnit maps a raw unit token to its canonical unit.
// ok is false when the token is not in the table.
func LookupUnit(raw string) (domain.Unit, bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "" {
		return "", false
	}
	unit, ok := unitTable[token]
	return unit, ok
}

// parseUnit is the strict mapping used at ingestion time: unknown and
// unrecognized tokens both fail.
func parseUnit(raw string) (domain.Unit, bool) {
	unit, ok := LookupUnit(raw)
	if !ok || unit == domain.UnitUnknown {
		return "", false
	}
	return unit, true
}

// BackfillUnit is the lenient mapping used when re-normalizing stored records:
// unrecognized tokens become unknown so the caller can flag them for review.
// recognized is false for those tokens.
func BackfillUnit(raw string) (unit domain.Unit, recognized bool) {
	unit, ok := LookupUnit(raw)
	if !ok {
		return domain.UnitUnknown, false
	}
	return unit, true
}
