package domain

import (
	"context"
)

// UpstreamProduct is a product payload found on one of the upstream domains
type UpstreamProduct struct {
	Document RawDocument
	Source   string
}

// UpstreamClient defines the interface for the external product sources
type UpstreamClient interface {
	// FetchProduct tries every configured domain in priority order and returns the first hit.
	// Returns ErrProductNotFound when every domain answered "not found" and
	// ErrUpstreamUnavailable when at least one domain could not be queried.
	FetchProduct(ctx context.Context, ean string) (*UpstreamProduct, error)
	// ListPage returns one page of a dataset's product listing; an empty page ends the listing.
	ListPage(ctx context.Context, dataset string, page int) ([]RawDocument, error)
}

// BrandSource provides the brand values already present in the catalog
type BrandSource interface {
	ListBrands(ctx context.Context) ([]string, error)
}

// CategoryStore is the category forest as seen by the hierarchy resolver
type CategoryStore interface {
	CategoryByTag(ctx context.Context, tag string) (*Category, error)
	CategoryByID(ctx context.Context, id int64) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	UpdateCategory(ctx context.Context, c *Category) error
	SetCategoryParent(ctx context.Context, id, parentID int64) error
}

// CatalogTx is the set of writes performed atomically for one record
type CatalogTx interface {
	CategoryStore

	// UpsertProduct inserts the product or merges it into the stored one.
	// created is true only when a new record was inserted.
	UpsertProduct(ctx context.Context, in *NormalizedProduct, policy MergePolicy) (product *Product, created bool, err error)
	// AttachImportedCategory links a category to a product's imported categories; linking twice is a no-op.
	AttachImportedCategory(ctx context.Context, productID, categoryID int64) error
}

// Catalog defines the persistent product catalog
type Catalog interface {
	BrandSource

	// Transact runs fn in a single all-or-nothing transaction
	Transact(ctx context.Context, fn func(tx CatalogTx) error) error

	FindProduct(ctx context.Context, ean string) (*Product, error)
	ImportedCategories(ctx context.Context, productID int64) ([]Category, error)
	// EachProduct calls fn for every stored product in ID order
	EachProduct(ctx context.Context, fn func(p *Product) error) error
	UpdateProductUnit(ctx context.Context, ean string, unit Unit) error
	UpdateProductTranslations(ctx context.Context, ean string, translations Translations) error

	Ping(ctx context.Context) error
	Close() error
}
