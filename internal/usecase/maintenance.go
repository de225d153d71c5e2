package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pricelens/catalog/internal/domain"
)

// MaintenanceService re-normalizes and enriches records already in the catalog
type MaintenanceService struct {
	catalog   domain.Catalog
	logger    *slog.Logger
	languages []string
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(catalog domain.Catalog, logger *slog.Logger, languages []string) *MaintenanceService {
	if logger == nil {
		logger = slog.Default()
	}
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &MaintenanceService{
		catalog:   catalog,
		logger:    logger.With("component", "maintenance"),
		languages: languages,
	}
}

// BackfillUnits maps every stored unit through the unit table. Unrecognized units
// are replaced with unknown and collected for manual review.
func (s *MaintenanceService) BackfillUnits(ctx context.Context) (*domain.UnitBackfillReport, error) {
	report := &domain.UnitBackfillReport{}
	unknown := make(map[string]struct{})

	err := s.catalog.EachProduct(ctx, func(p *domain.Product) error {
		if p.Unit == nil {
			return nil
		}
		original := strings.ToLower(strings.TrimSpace(string(*p.Unit)))
		if original == "" {
			return nil
		}

		unit, recognized := BackfillUnit(original)
		if !recognized {
			report.Unrecognized++
			unknown[original] = struct{}{}
			s.logger.Warn("unrecognized unit", "unit", original, "ean", p.EAN)
		}

		if string(unit) == string(*p.Unit) {
			report.Unchanged++
			return nil
		}
		if err := s.catalog.UpdateProductUnit(ctx, p.EAN, unit); err != nil {
			return fmt.Errorf("update unit of %s: %w", p.EAN, err)
		}
		if recognized {
			report.Updated++
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	report.UnknownUnits = make([]string, 0, len(unknown))
	for u := range unknown {
		report.UnknownUnits = append(report.UnknownUnits, u)
	}
	sort.Strings(report.UnknownUnits)
	return report, nil
}

// BackfillTranslations fills missing per-language fields from each product's raw
// data. Existing values are never overwritten.
func (s *MaintenanceService) BackfillTranslations(ctx context.Context) (*domain.TranslationBackfillReport, error) {
	report := &domain.TranslationBackfillReport{}

	err := s.catalog.EachProduct(ctx, func(p *domain.Product) error {
		if len(p.Raw) == 0 {
			return nil
		}
		doc, err := domain.ParseRawDocument(p.Raw)
		if err != nil {
			s.logger.Warn("skipping product with unreadable raw data", "ean", p.EAN, "error", err)
			return nil
		}

		merged, changed := FillTranslations(p.Translations, doc, s.languages)
		if !changed {
			report.Complete++
			return nil
		}
		if err := s.catalog.UpdateProductTranslations(ctx, p.EAN, merged); err != nil {
			return fmt.Errorf("update translations of %s: %w", p.EAN, err)
		}
		report.Updated++
		return nil
	})
	return report, err
}

// ImportCuratedCategories creates or updates curated categories in one transaction.
// Entries are processed in order; a parent_tag resolves to an earlier entry or an
// existing category. Curated categories are approved.
func (s *MaintenanceService) ImportCuratedCategories(ctx context.Context, entries []domain.CuratedCategory) (*domain.CategoryImportReport, error) {
	for i, entry := range entries {
		if strings.TrimSpace(entry.Tag) == "" || strings.TrimSpace(entry.Name) == "" {
			return nil, fmt.Errorf("%w: entry %d needs a tag and a name", domain.ErrInvalidRequest, i)
		}
	}

	var report *domain.CategoryImportReport
	err := s.catalog.Transact(ctx, func(tx domain.CatalogTx) error {
		report = &domain.CategoryImportReport{}
		resolved := make(map[string]*domain.Category, len(entries))

		for _, entry := range entries {
			category, err := s.upsertCurated(ctx, tx, entry, report)
			if err != nil {
				return err
			}
			resolved[category.TagValue()] = category

			parentTag := strings.TrimSpace(entry.ParentTag)
			if parentTag == "" {
				continue
			}
			parent, ok := resolved[parentTag]
			if !ok {
				parent, err = tx.CategoryByTag(ctx, parentTag)
				if errors.Is(err, domain.ErrCategoryNotFound) {
					s.logger.Warn("parent category not found", "tag", category.TagValue(), "parent_tag", parentTag)
					continue
				}
				if err != nil {
					return fmt.Errorf("lookup parent %q: %w", parentTag, err)
				}
			}
			if category.ParentID != nil && *category.ParentID == parent.ID {
				continue
			}

			cycle, err := isAncestor(ctx, tx, category.ID, parent)
			if err != nil {
				return err
			}
			if cycle {
				s.logger.Warn("skipping parent link",
					"tag", category.TagValue(),
					"parent_tag", parentTag,
					"error", domain.ErrCategoryCycle,
				)
				continue
			}
			if err := tx.SetCategoryParent(ctx, category.ID, parent.ID); err != nil {
				return fmt.Errorf("link category %q: %w", category.TagValue(), err)
			}
			parentID := parent.ID
			category.ParentID = &parentID
			report.Linked++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *MaintenanceService) upsertCurated(ctx context.Context, tx domain.CatalogTx, entry domain.CuratedCategory, report *domain.CategoryImportReport) (*domain.Category, error) {
	tag := strings.TrimSpace(entry.Tag)
	name := strings.TrimSpace(entry.Name)

	existing, err := tx.CategoryByTag(ctx, tag)
	switch {
	case errors.Is(err, domain.ErrCategoryNotFound):
		category := &domain.Category{
			Tag:          &tag,
			Name:         name,
			Translations: entry.Translations,
			IsApproved:   true,
		}
		if err := tx.CreateCategory(ctx, category); err != nil {
			return nil, fmt.Errorf("create category %q: %w", tag, err)
		}
		report.Created++
		return category, nil
	case err != nil:
		return nil, fmt.Errorf("lookup category %q: %w", tag, err)
	}

	existing.Name = name
	if len(entry.Translations) > 0 {
		existing.Translations = entry.Translations
	}
	existing.IsApproved = true
	if err := tx.UpdateCategory(ctx, existing); err != nil {
		return nil, fmt.Errorf("update category %q: %w", tag, err)
	}
	report.Updated++
	return existing, nil
}
