package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Unit is a canonical measurement unit used catalog-wide
type Unit string

const (
	UnitGram       Unit = "g"
	UnitKilogram   Unit = "kg"
	UnitMilligram  Unit = "mg"
	UnitMillilitre Unit = "ml"
	UnitCentilitre Unit = "cl"
	UnitLitre      Unit = "l"
	UnitPiece      Unit = "pz"
	UnitUnknown    Unit = "unknown"
)

// RawDocument is an untrusted product document as returned by an upstream source.
// Body keeps the original bytes for audit; Fields is the decoded view.
type RawDocument struct {
	Fields map[string]any
	Body   json.RawMessage
}

// ParseRawDocument decodes a JSON object, keeping numbers as json.Number
func ParseRawDocument(body []byte) (RawDocument, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return RawDocument{}, fmt.Errorf("decode document: %w", err)
	}
	if fields == nil {
		return RawDocument{}, fmt.Errorf("decode document: not a JSON object")
	}

	raw := make(json.RawMessage, len(body))
	copy(raw, body)
	return RawDocument{Fields: fields, Body: raw}, nil
}

// Get returns the raw value stored under key
func (d RawDocument) Get(key string) any {
	if d.Fields == nil {
		return nil
	}
	return d.Fields[key]
}

// String returns the trimmed string value under key, or "" when absent or not a string
func (d RawDocument) String(key string) string {
	s, _ := d.Get(key).(string)
	return strings.TrimSpace(s)
}

// Translations maps a language code to translatable field → text
type Translations map[string]map[string]string

// NormalizedProduct is the canonical field-set derived from a RawDocument
type NormalizedProduct struct {
	EAN             string           `json:"ean"`
	Name            string           `json:"name"`
	Brand           *string          `json:"brand,omitempty"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	Unit            *Unit            `json:"unit,omitempty"`
	ImageURL        *string          `json:"image_url,omitempty"`
	EcoscoreGrade   *string          `json:"ecoscore_grade,omitempty"`
	NovaGroup       *int             `json:"nova_group,omitempty"`
	NutritionGrade  *string          `json:"nutrition_grade,omitempty"`
	PackagingTags   []string         `json:"packaging_tags"`
	LabelsTags      []string         `json:"labels_tags"`
	AllergensTags   []string         `json:"allergens_tags"`
	AdditivesTags   []string         `json:"additives_tags"`
	OriginsTags     []string         `json:"origins_tags"`
	IngredientsText *string          `json:"ingredients_text,omitempty"`
	Ingredients     []Ingredient     `json:"ingredients,omitempty"`
	Nutrients       map[string]any   `json:"nutrients,omitempty"`
	Translations    Translations     `json:"translations,omitempty"`
	Raw             json.RawMessage  `json:"raw_data,omitempty"`

	// CategoryTags is the upstream taxonomy path, root first
	CategoryTags []string `json:"-"`
}

// Product is a catalog record keyed by EAN
type Product struct {
	ID int64 `json:"id"`
	NormalizedProduct
	IsApproved   bool      `json:"is_approved"`
	CreatedAt    time.Time `json:"created_at"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// MergePolicy decides how a re-import treats values already stored
type MergePolicy string

const (
	// MergeOverwrite replaces stored values with every non-null incoming value
	MergeOverwrite MergePolicy = "overwrite"
	// MergeFillNull only fills stored values that are null
	MergeFillNull MergePolicy = "fill_null"
)

// Valid reports whether p is a known policy
func (p MergePolicy) Valid() bool {
	return p == MergeOverwrite || p == MergeFillNull
}

// Apply merges in into p according to policy. Raw data is always replaced.
// Empty tag sets, lists and maps count as null.
func (p *Product) Apply(in *NormalizedProduct, policy MergePolicy, now time.Time) {
	fill := policy == MergeFillNull

	if in.Name != "" && (!fill || p.Name == "") {
		p.Name = in.Name
	}
	p.Brand = mergePtr(p.Brand, in.Brand, fill)
	p.Quantity = mergePtr(p.Quantity, in.Quantity, fill)
	p.Unit = mergePtr(p.Unit, in.Unit, fill)
	p.ImageURL = mergePtr(p.ImageURL, in.ImageURL, fill)
	p.EcoscoreGrade = mergePtr(p.EcoscoreGrade, in.EcoscoreGrade, fill)
	p.NovaGroup = mergePtr(p.NovaGroup, in.NovaGroup, fill)
	p.NutritionGrade = mergePtr(p.NutritionGrade, in.NutritionGrade, fill)
	p.IngredientsText = mergePtr(p.IngredientsText, in.IngredientsText, fill)

	p.PackagingTags = mergeSlice(p.PackagingTags, in.PackagingTags, fill)
	p.LabelsTags = mergeSlice(p.LabelsTags, in.LabelsTags, fill)
	p.AllergensTags = mergeSlice(p.AllergensTags, in.AllergensTags, fill)
	p.AdditivesTags = mergeSlice(p.AdditivesTags, in.AdditivesTags, fill)
	p.OriginsTags = mergeSlice(p.OriginsTags, in.OriginsTags, fill)
	p.Ingredients = mergeSlice(p.Ingredients, in.Ingredients, fill)

	if len(in.Nutrients) > 0 && (!fill || len(p.Nutrients) == 0) {
		p.Nutrients = in.Nutrients
	}
	if len(in.Translations) > 0 && (!fill || len(p.Translations) == 0) {
		p.Translations = in.Translations
	}

	p.Raw = in.Raw
	p.LastSyncedAt = now
}

// NewProduct builds the record stored on first import
func NewProduct(in *NormalizedProduct, now time.Time) *Product {
	p := &Product{NormalizedProduct: NormalizedProduct{EAN: in.EAN}, CreatedAt: now}
	p.Apply(in, MergeOverwrite, now)
	return p
}

func mergePtr[T any](stored, incoming *T, fill bool) *T {
	if incoming == nil {
		return stored
	}
	if fill && stored != nil {
		return stored
	}
	return incoming
}

func mergeSlice[T any](stored, incoming []T, fill bool) []T {
	if len(incoming) == 0 {
		return stored
	}
	if fill && len(stored) > 0 {
		return stored
	}
	return incoming
}
