package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/pricelens/catalog/internal/domain"
)

const (
	// MaxBrandLength is the stored brand length cap (runes)
	MaxBrandLength = 20
	// DefaultBrandSimilarity is the ratio above which two brand spellings are merged
	DefaultBrandSimilarity = 0.8
)

var (
	// Legal-entity suffixes, whole word, case-insensitive
	legalSuffixRegex = regexp.MustCompile(
		`(?i)\b(s\.?p\.?a|s\.?r\.?l|s\.?a\.?s|s\.?n\.?c|gmbh|ltd|llc|inc|corp)\b\.?`,
	)
	// Punctuation and symbols except the ones that belong to brand names (M&M's)
	brandPunctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}\s&']+`)
	multipleSpacesRegex   = regexp.MustCompile(`\s+`)
)

// CanonicalizeBrand cleans a raw brand string: first entry of a comma list,
// legal suffixes stripped, punctuation to spaces, whitespace collapsed,
// title-cased, capped at MaxBrandLength runes. Returns "" when nothing is left.
func CanonicalizeBrand(raw string) string {
	brand := norm.NFKC.String(raw)
	if idx := strings.Index(brand, ","); idx >= 0 {
		brand = brand[:idx]
	}

	brand = legalSuffixRegex.ReplaceAllString(brand, " ")
	brand = brandPunctuationRegex.ReplaceAllString(brand, " ")
	brand = strings.TrimSpace(multipleSpacesRegex.ReplaceAllString(brand, " "))
	if brand == "" {
		return ""
	}

	// A Caser keeps state between calls, so each call gets its own
	brand = cases.Title(language.Und).String(brand)
	return strings.TrimSpace(truncateRunes(brand, MaxBrandLength))
}

// BrandCache is the set of canonical brand spellings seen so far. It is
// populated lazily from the catalog on first use and grows as new brands are
// accepted. One cache is owned by one import run. Safe for concurrent use.
type BrandCache struct {
	source    domain.BrandSource
	threshold float64

	mu     sync.Mutex
	loaded bool
	brands []string
	exact  map[string]string
}

// NewBrandCache creates a cache backed by source; a nil source starts empty
func NewBrandCache(source domain.BrandSource, threshold float64) *BrandCache {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultBrandSimilarity
	}
	return &BrandCache{
		source:    source,
		threshold: threshold,
		exact:     make(map[string]string),
	}
}

// Resolve returns the cached spelling most similar to brand when its similarity
// ratio exceeds the threshold; otherwise brand is added to the cache and returned.
func (c *BrandCache) Resolve(ctx context.Context, brand string) (string, error) {
	if brand == "" {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return "", err
	}

	key := strings.ToLower(brand)
	if existing, ok := c.exact[key]; ok {
		return existing, nil
	}

	best, bestScore := brand, 0.0
	for _, existing := range c.brands {
		score := SimilarityRatio(brand, existing)
		if score > c.threshold && score > bestScore {
			best, bestScore = existing, score
		}
	}

	if bestScore == 0 {
		c.addLocked(brand)
	}
	return best, nil
}

// Len returns the number of cached spellings
func (c *BrandCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.brands)
}

func (c *BrandCache) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	if c.source != nil {
		brands, err := c.source.ListBrands(ctx)
		if err != nil {
			return fmt.Errorf("load brand cache: %w", err)
		}
		for _, b := range brands {
			if b = strings.TrimSpace(b); b != "" {
				c.addLocked(b)
			}
		}
	}
	c.loaded = true
	return nil
}

func (c *BrandCache) addLocked(brand string) {
	key := strings.ToLower(brand)
	if _, ok := c.exact[key]; ok {
		return
	}
	c.exact[key] = brand
	c.brands = append(c.brands, brand)
}

// BrandCanonicalizer combines cleaning with fuzzy dedup against a run's cache
type BrandCanonicalizer struct {
	cache *BrandCache
}

// NewBrandCanonicalizer creates a canonicalizer deduplicating against cache
func NewBrandCanonicalizer(cache *BrandCache) *BrandCanonicalizer {
	return &BrandCanonicalizer{cache: cache}
}

// Canonicalize returns the stored spelling for raw, or nil when raw has no usable brand
func (b *BrandCanonicalizer) Canonicalize(ctx context.Context, raw string) (*string, error) {
	brand := CanonicalizeBrand(raw)
	if brand == "" {
		return nil, nil
	}

	if b.cache != nil {
		resolved, err := b.cache.Resolve(ctx, brand)
		if err != nil {
			return nil, err
		}
		brand = truncateRunes(resolved, MaxBrandLength)
	}
	return &brand, nil
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
