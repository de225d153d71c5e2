package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestCanonicalizeBrand(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Barilla S.p.A.", "Barilla"},
		{"barilla spa", "Barilla"},
		{"Ferrero, Kinder", "Ferrero"},
		{"MULINO BIANCO srl", "Mulino Bianco"},
		{"Granarolo S.r.l.", "Granarolo"},
		{"Dr. Oetker GmbH", "Dr Oetker"},
		{"Società Agricola Cooperativa Produttori", "Società Agricola Coo"},
		{"  ", ""},
		{"S.p.A.", ""},
		{"ＡＢＣ", "Abc"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := CanonicalizeBrand(tt.raw); got != tt.want {
				t.Errorf("CanonicalizeBrand(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBrandCache_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("merges near-identical spellings", func(t *testing.T) {
		source := &staticBrands{brands: []string{"Mulino Bianco"}}
		cache := NewBrandCache(source, 0.8)

		got, err := cache.Resolve(ctx, "Mulino Biancho")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got != "Mulino Bianco" {
			t.Errorf("Resolve(Mulino Biancho) = %q, want Mulino Bianco", got)
		}
		if cache.Len() != 1 {
			t.Errorf("Len() = %d, want 1", cache.Len())
		}
	})

	t.Run("adds distinct brands", func(t *testing.T) {
		cache := NewBrandCache(&staticBrands{brands: []string{"Barilla"}}, 0.8)

		got, err := cache.Resolve(ctx, "Lavazza")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got != "Lavazza" {
			t.Errorf("Resolve(Lavazza) = %q, want Lavazza", got)
		}
		if cache.Len() != 2 {
			t.Errorf("Len() = %d, want 2", cache.Len())
		}
	})

	t.Run("exact match is case-insensitive", func(t *testing.T) {
		cache := NewBrandCache(&staticBrands{brands: []string{"De Cecco"}}, 0.8)

		got, _ := cache.Resolve(ctx, "DE CECCO")
		if got != "De Cecco" {
			t.Errorf("Resolve(DE CECCO) = %q, want De Cecco", got)
		}
	})

	t.Run("loads source once", func(t *testing.T) {
		source := &staticBrands{brands: []string{"Barilla"}}
		cache := NewBrandCache(source, 0.8)

		for _, b := range []string{"Barilla", "Lavazza", "Coop"} {
			if _, err := cache.Resolve(ctx, b); err != nil {
				t.Fatalf("Resolve(%s) error = %v", b, err)
			}
		}
		if source.calls != 1 {
			t.Errorf("ListBrands calls = %d, want 1", source.calls)
		}
	})

	t.Run("propagates load error", func(t *testing.T) {
		cache := NewBrandCache(&staticBrands{err: errors.New("db down")}, 0.8)

		if _, err := cache.Resolve(ctx, "Barilla"); err == nil {
			t.Error("Resolve() expected error when the source fails")
		}
	})

	t.Run("nil source starts empty", func(t *testing.T) {
		cache := NewBrandCache(nil, 0)
		got, err := cache.Resolve(ctx, "Barilla")
		if err != nil || got != "Barilla" {
			t.Errorf("Resolve() = %q, %v, want Barilla, nil", got, err)
		}
	})
}

func TestBrandCanonicalizer_SameStoredBrand(t *testing.T) {
	ctx := context.Background()
	canonicalizer := NewBrandCanonicalizer(NewBrandCache(nil, DefaultBrandSimilarity))

	first, err := canonicalizer.Canonicalize(ctx, "Barilla S.p.A.")
	if err != nil || first == nil {
		t.Fatalf("Canonicalize() = %v, %v", first, err)
	}
	second, err := canonicalizer.Canonicalize(ctx, "barilla spa")
	if err != nil || second == nil {
		t.Fatalf("Canonicalize() = %v, %v", second, err)
	}
	if *first != *second {
		t.Errorf("brands differ: %q vs %q", *first, *second)
	}

	none, err := canonicalizer.Canonicalize(ctx, " , ")
	if err != nil || none != nil {
		t.Errorf("Canonicalize(blank) = %v, %v, want nil, nil", none, err)
	}
}

func TestCanonicalizeBrand_Concurrent(t *testing.T) {
	inputs := map[string]string{
		"barilla spa":       "Barilla",
		"DE CECCO":          "De Cecco",
		"mulino bianco srl": "Mulino Bianco",
		"lavazza":           "Lavazza",
	}

	var wg sync.WaitGroup
	errs := make(chan string, 16*len(inputs))
	for i := 0; i < 16; i++ {
		for raw, want := range inputs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if got := CanonicalizeBrand(raw); got != want {
					errs <- raw + " -> " + got
				}
			}()
		}
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Errorf("CanonicalizeBrand() = %s", e)
	}
}
