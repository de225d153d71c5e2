package usecase

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pricelens/catalog/internal/domain"
)

// MaxNameLength is the stored name length cap (runes)
const MaxNameLength = 255

// packagingNoiseRegex matches generic packaging words that carry no product identity
var packagingNoiseRegex = regexp.MustCompile(
	`(?i)(^|\s)(cassa|confezione|confezioni|bottiglia|bottiglie|bott\.?|pezzi|vaschetta|busta|flacone)(\s|$)`,
)

// CleanName removes packaging noise words and collapses whitespace
func CleanName(raw string) string {
	name := multipleSpacesRegex.ReplaceAllString(raw, " ")
	// Adjacent noise words share a separator, so repeat until stable
	for {
		next := packagingNoiseRegex.ReplaceAllString(name, " ")
		if next == name {
			break
		}
		name = next
	}
	return strings.TrimSpace(multipleSpacesRegex.ReplaceAllString(name, " "))
}

// BuildName composes "<description> <brand> <quantity><UNIT>" from a raw name.
// The brand is removed from the description so it appears once, and the quantity
// suffix is added only when the composed name does not already contain it.
// Returns "" when nothing usable remains.
func BuildName(rawName string, brand *string, quantity *decimal.Decimal, unit *domain.Unit) string {
	base := CleanName(rawName)

	brandPart := ""
	if brand != nil {
		brandPart = strings.TrimSpace(*brand)
	}
	if brandPart != "" {
		brandRegex := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(brandPart))
		base = brandRegex.ReplaceAllString(base, "")
	}
	base = strings.TrimSpace(multipleSpacesRegex.ReplaceAllString(base, " "))

	parts := make([]string, 0, 3)
	if base != "" {
		parts = append(parts, base)
	}
	if brandPart != "" {
		parts = append(parts, brandPart)
	}
	name := strings.Join(parts, " ")

	if quantity != nil && unit != nil && *unit != "" {
		suffix := FormatQuantity(*quantity) + strings.ToUpper(string(*unit))
		if !strings.Contains(strings.ToLower(name), strings.ToLower(suffix)) {
			name = strings.TrimSpace(name + " " + suffix)
		}
	}

	return strings.TrimSpace(truncateRunes(name, MaxNameLength))
}
