package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pricelens/catalog/internal/domain"
)

// maxCategoryDepth bounds ancestor walks on a corrupted forest
const maxCategoryDepth = 64

// HierarchyResolver turns a root-to-leaf list of taxonomy tags into a linked
// chain of categories, reusing nodes that already exist
type HierarchyResolver struct {
	logger *slog.Logger
}

// NewHierarchyResolver creates a new hierarchy resolver
func NewHierarchyResolver(logger *slog.Logger) *HierarchyResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &HierarchyResolver{logger: logger.With("component", "hierarchy")}
}

// Resolve walks tags in order, getting or creating one node per tag. A node found
// without a parent gets the previous node of the walk as parent. Returns the leaf,
// or nil for an empty list.
func (r *HierarchyResolver) Resolve(ctx context.Context, store domain.CategoryStore, tags []string) (*domain.Category, error) {
	var parent *domain.Category
	seen := make(map[string]struct{}, len(tags))

	for _, raw := range tags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		category, err := store.CategoryByTag(ctx, tag)
		switch {
		case errors.Is(err, domain.ErrCategoryNotFound):
			category = &domain.Category{
				Tag:  &tag,
				Name: FallbackCategoryName(tag),
			}
			if parent != nil {
				parentID := parent.ID
				category.ParentID = &parentID
			}
			if err := store.CreateCategory(ctx, category); err != nil {
				return nil, fmt.Errorf("create category %q: %w", tag, err)
			}
		case err != nil:
			return nil, fmt.Errorf("lookup category %q: %w", tag, err)
		case category.ParentID == nil && parent != nil:
			if err := r.linkParent(ctx, store, category, parent); err != nil {
				if !errors.Is(err, domain.ErrCategoryCycle) {
					return nil, err
				}
				r.logger.Warn("skipping parent link",
					"tag", tag,
					"parent_tag", parent.TagValue(),
					"error", err,
				)
			}
		}

		parent = category
	}

	return parent, nil
}

// linkParent sets child's parent unless parent is child itself or descends from it
func (r *HierarchyResolver) linkParent(ctx context.Context, store domain.CategoryStore, child, parent *domain.Category) error {
	descends, err := isAncestor(ctx, store, child.ID, parent)
	if err != nil {
		return err
	}
	if descends {
		return fmt.Errorf("%w: %q under %q", domain.ErrCategoryCycle, child.TagValue(), parent.TagValue())
	}

	if err := store.SetCategoryParent(ctx, child.ID, parent.ID); err != nil {
		return fmt.Errorf("link category %q: %w", child.TagValue(), err)
	}
	parentID := parent.ID
	child.ParentID = &parentID
	return nil
}

// isAncestor reports whether id is node itself or one of its ancestors
func isAncestor(ctx context.Context, store domain.CategoryStore, id int64, node *domain.Category) (bool, error) {
	current := node
	for depth := 0; current != nil && depth < maxCategoryDepth; depth++ {
		if current.ID == id {
			return true, nil
		}
		if current.ParentID == nil {
			return false, nil
		}
		next, err := store.CategoryByID(ctx, *current.ParentID)
		if errors.Is(err, domain.ErrCategoryNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("walk category ancestors: %w", err)
		}
		current = next
	}
	if current != nil {
		// Chain longer than any sane taxonomy; treat as a loop
		return true, nil
	}
	return false, nil
}

// FallbackCategoryName derives a display name from a tag: "en:soft-drinks" → "Soft drinks"
func FallbackCategoryName(tag string) string {
	name := tag
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	name = strings.TrimSpace(multipleSpacesRegex.ReplaceAllString(name, " "))
	if name == "" {
		return tag
	}

	runes := []rune(strings.ToLower(name))
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}
