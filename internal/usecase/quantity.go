package usecase

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pricelens/catalog/internal/domain"
)

var (
	// "6 x 33 cl", "2x125g"
	multipackRegex = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*x\s*(\d+(?:\.\d+)?)\s*([a-z]+)`)
	// "375 g", "1.5 l"
	singleQuantityRegex = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]+)`)
	milligramTokenRegex = regexp.MustCompile(`\bmg\b`)
)

var thousand = decimal.NewFromInt(1000)

// ParseQuantityUnit extracts a decimal quantity and canonical unit from a freeform
// string such as "375 g", "1,5 L" or "6 x 33 cl". Milligrams are folded into grams.
// Any unmapped unit or malformed number yields (nil, nil).
func ParseQuantityUnit(raw string) (*decimal.Decimal, *domain.Unit) {
	text := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), ",", ".")
	if text == "" {
		return nil, nil
	}

	if m := multipackRegex.FindStringSubmatch(text); m != nil {
		unit, ok := parseUnit(m[3])
		if !ok {
			return nil, nil
		}
		count, err := decimal.NewFromString(m[1])
		if err != nil {
			return nil, nil
		}
		single, err := decimal.NewFromString(m[2])
		if err != nil {
			return nil, nil
		}
		quantity := count.Mul(single)
		if unit == domain.UnitMilligram || (unit == domain.UnitGram && milligramTokenRegex.MatchString(text)) {
			quantity, unit = quantity.Div(thousand), domain.UnitGram
		}
		return &quantity, &unit
	}

	if m := singleQuantityRegex.FindStringSubmatch(text); m != nil {
		unit, ok := parseUnit(m[2])
		if !ok {
			return nil, nil
		}
		quantity, err := decimal.NewFromString(m[1])
		if err != nil {
			return nil, nil
		}
		if unit == domain.UnitMilligram {
			quantity, unit = quantity.Div(thousand), domain.UnitGram
		}
		return &quantity, &unit
	}

	return nil, nil
}

// FormatQuantity renders a quantity without trailing zeros ("500", "1.5")
func FormatQuantity(q decimal.Decimal) string {
	return q.String()
}

// FormatQuantityUnit renders the canonical "<quantity> <unit>" form that
// ParseQuantityUnit reads back to the same pair
func FormatQuantityUnit(q decimal.Decimal, unit domain.Unit) string {
	return FormatQuantity(q) + " " + string(unit)
}
