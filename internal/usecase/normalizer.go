package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pricelens/catalog/internal/domain"
)

var eanRegex = regexp.MustCompile(`^(\d{8}|\d{12,13})$`)

// Field caps matching the catalog schema
const (
	maxGradeLength = 10
	minNovaGroup   = 1
	maxNovaGroup   = 4
)

// DefaultLanguages are the languages translations are collected for
var DefaultLanguages = []string{"it", "en", "fr"}

// translatableFields are the per-language upstream fields copied into translations
var translatableFields = []string{
	"product_name",
	"generic_name",
	"ingredients_text",
	"ingredients_text_with_allergens",
	"packaging_text",
	"conservation_conditions",
}

// ValidateEAN reports whether ean is an 8, 12 or 13 digit numeric string
func ValidateEAN(ean string) bool {
	return eanRegex.MatchString(strings.TrimSpace(ean))
}

// NormalizerConfig holds configuration for the record normalizer
type NormalizerConfig struct {
	// Languages translations are built for
	Languages []string
	// PrimaryLanguage is preferred when picking the product name
	PrimaryLanguage string
}

// NormalizeResult is either a normalized product or the reason the document was rejected
type NormalizeResult struct {
	Product  *domain.NormalizedProduct
	Rejected error
}

// Normalizer turns raw upstream documents into catalog field-sets
type Normalizer struct {
	brands     *BrandCanonicalizer
	languages  []string
	nameFields []string
}

// NewNormalizer creates a normalizer deduplicating brands against brands
func NewNormalizer(brands *BrandCanonicalizer, config NormalizerConfig) *Normalizer {
	languages := config.Languages
	if len(languages) == 0 {
		languages = DefaultLanguages
	}

	primary := strings.TrimSpace(config.PrimaryLanguage)
	if primary == "" {
		primary = languages[0]
	}

	return &Normalizer{
		brands:    brands,
		languages: languages,
		nameFields: []string{
			"product_name_" + primary,
			"product_name",
			"generic_name_" + primary,
			"generic_name",
		},
	}
}

// Normalize validates and normalizes doc. Rejections (invalid EAN, no usable name)
// are reported in the result; the error is reserved for failures of the
// normalizer's own collaborators (brand cache loading).
func (n *Normalizer) Normalize(ctx context.Context, doc domain.RawDocument) (NormalizeResult, error) {
	ean := documentEAN(doc)
	if !ValidateEAN(ean) {
		return NormalizeResult{Rejected: fmt.Errorf("%w: %q", domain.ErrInvalidEAN, ean)}, nil
	}

	rawName := firstNonEmpty(doc, n.nameFields...)
	if rawName == "" {
		return NormalizeResult{Rejected: fmt.Errorf("%w: %s", domain.ErrMissingName, ean)}, nil
	}

	brand, err := n.brands.Canonicalize(ctx, doc.String("brands"))
	if err != nil {
		return NormalizeResult{}, err
	}

	quantity, unit := ParseQuantityUnit(doc.String("quantity"))

	name := BuildName(rawName, brand, quantity, unit)
	if name == "" {
		return NormalizeResult{Rejected: fmt.Errorf("%w: %s (empty after cleaning)", domain.ErrMissingName, ean)}, nil
	}

	product := &domain.NormalizedProduct{
		EAN:             ean,
		Name:            name,
		Brand:           brand,
		Quantity:        quantity,
		Unit:            unit,
		ImageURL:        normalizeImageURL(firstNonEmpty(doc, "image_front_url", "image_url")),
		EcoscoreGrade:   grade(doc.String("ecoscore_grade")),
		NovaGroup:       novaGroup(doc.Get("nova_group")),
		NutritionGrade:  grade(firstNonEmpty(doc, "nutrition_grade", "nutrition_grades", "nutrition_grade_fr")),
		PackagingTags:   stringSet(doc.Get("packaging_tags")),
		LabelsTags:      stringSet(doc.Get("labels_tags")),
		AllergensTags:   stringSet(doc.Get("allergens_tags")),
		AdditivesTags:   stringSet(doc.Get("additives_tags")),
		OriginsTags:     stringSet(doc.Get("origins_tags")),
		IngredientsText: optional(doc.String("ingredients_text")),
		Ingredients:     ingredients(doc.Get("ingredients")),
		Nutrients:       mapping(doc.Get("nutriments")),
		Translations:    BuildTranslations(doc, n.languages),
		Raw:             doc.Body,
		CategoryTags:    categoryPath(doc),
	}

	return NormalizeResult{Product: product}, nil
}

// BuildTranslations collects "<field>_<lang>" values per language. Languages with no
// value are left out; nil is returned when no language has any.
func BuildTranslations(doc domain.RawDocument, languages []string) domain.Translations {
	translations := make(domain.Translations)
	for _, lang := range languages {
		fields := make(map[string]string)
		for _, field := range translatableFields {
			if v := doc.String(field + "_" + lang); v != "" {
				fields[field] = v
			}
		}
		if len(fields) > 0 {
			translations[lang] = fields
		}
	}
	if len(translations) == 0 {
		return nil
	}
	return translations
}

// FillTranslations adds values from doc that are missing in existing; it never
// overwrites. Returns the merged translations and whether anything was added.
func FillTranslations(existing domain.Translations, doc domain.RawDocument, languages []string) (domain.Translations, bool) {
	merged := make(domain.Translations, len(existing))
	for lang, fields := range existing {
		copied := make(map[string]string, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		merged[lang] = copied
	}

	changed := false
	for lang, fields := range BuildTranslations(doc, languages) {
		target, ok := merged[lang]
		if !ok {
			target = make(map[string]string)
			merged[lang] = target
		}
		for field, value := range fields {
			if target[field] == "" {
				target[field] = value
				changed = true
			}
		}
	}
	return merged, changed
}

func documentEAN(doc domain.RawDocument) string {
	switch v := doc.Get("code").(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func firstNonEmpty(doc domain.RawDocument, keys ...string) string {
	for _, key := range keys {
		if v := doc.String(key); v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func normalizeImageURL(url string) *string {
	if url == "" {
		return nil
	}
	if strings.HasPrefix(url, "//") {
		url = "https:" + url
	}
	return &url
}

func grade(s string) *string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	s = truncateRunes(s, maxGradeLength)
	return &s
}

// novaGroup coerces the NOVA class; anything outside 1-4 is dropped
func novaGroup(v any) *int {
	n, ok := toInt(v)
	if !ok || n < minNovaGroup || n > maxNovaGroup {
		return nil
	}
	return &n
}

func toInt(v any) (int, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = t
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// stringSet returns the distinct non-empty strings of a list value, sorted
func stringSet(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// categoryPath returns the ordered taxonomy path, preferring the hierarchical list
func categoryPath(doc domain.RawDocument) []string {
	for _, key := range []string{"categories_hierarchy", "categories_tags"} {
		items, ok := doc.Get(key).([]any)
		if !ok || len(items) == 0 {
			continue
		}
		seen := make(map[string]struct{}, len(items))
		path := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			path = append(path, s)
		}
		if len(path) > 0 {
			return path
		}
	}
	return nil
}

func mapping(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	return m
}

func ingredients(v any) []domain.Ingredient {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]domain.Ingredient, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ing, ok := domain.IngredientFromMap(m)
		if !ok {
			continue
		}
		out = append(out, ing)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
