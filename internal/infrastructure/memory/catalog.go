package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pricelens/catalog/internal/domain"
)

// Catalog is a thread-safe in-process catalog. Transactions are serialized and
// buffer their writes in an overlay that is applied only on commit.
type Catalog struct {
	mutex sync.RWMutex

	products      map[string]*domain.Product
	nextProductID int64
	categories    []domain.Category // arena, ID is index+1
	byTag         map[string]int64
	imported      map[int64]map[int64]struct{}

	now func() time.Time
}

// NewCatalog creates an empty in-memory catalog
func NewCatalog() *Catalog {
	return &Catalog{
		products: make(map[string]*domain.Product),
		byTag:    make(map[string]int64),
		imported: make(map[int64]map[int64]struct{}),
		now:      time.Now,
	}
}

// Transact runs fn against an overlay and commits it only when fn returns nil
func (c *Catalog) Transact(ctx context.Context, fn func(tx domain.CatalogTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx := &catalogTx{
		c:              c,
		products:       make(map[string]*domain.Product),
		categories:     make(map[int64]*domain.Category),
		byTag:          make(map[string]int64),
		links:          make(map[int64]map[int64]struct{}),
		nextProductID:  c.nextProductID,
		nextCategoryID: int64(len(c.categories)),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ListBrands returns the distinct stored brands
func (c *Catalog) ListBrands(ctx context.Context) ([]string, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	seen := make(map[string]struct{})
	brands := make([]string, 0)
	for _, p := range c.products {
		if p.Brand == nil || *p.Brand == "" {
			continue
		}
		if _, ok := seen[*p.Brand]; ok {
			continue
		}
		seen[*p.Brand] = struct{}{}
		brands = append(brands, *p.Brand)
	}
	sort.Strings(brands)
	return brands, nil
}

// FindProduct returns the product stored under ean
func (c *Catalog) FindProduct(ctx context.Context, ean string) (*domain.Product, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	p, ok := c.products[ean]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, ean)
	}
	copied := *p
	return &copied, nil
}

// ImportedCategories returns the imported categories linked to a product, by ID
func (c *Catalog) ImportedCategories(ctx context.Context, productID int64) ([]domain.Category, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make([]domain.Category, 0, len(c.imported[productID]))
	for id := range c.imported[productID] {
		out = append(out, c.categories[id-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EachProduct calls fn on a snapshot of every product in ID order. fn may write to the catalog.
func (c *Catalog) EachProduct(ctx context.Context, fn func(p *domain.Product) error) error {
	c.mutex.RLock()
	snapshot := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		snapshot = append(snapshot, *p)
	}
	c.mutex.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	for i := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&snapshot[i]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateProductUnit replaces a product's unit
func (c *Catalog) UpdateProductUnit(ctx context.Context, ean string, unit domain.Unit) error {
	return c.updateProduct(ean, func(p *domain.Product) { p.Unit = &unit })
}

// UpdateProductTranslations replaces a product's translations
func (c *Catalog) UpdateProductTranslations(ctx context.Context, ean string, translations domain.Translations) error {
	return c.updateProduct(ean, func(p *domain.Product) { p.Translations = translations })
}

func (c *Catalog) updateProduct(ean string, change func(p *domain.Product)) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	p, ok := c.products[ean]
	if !ok {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, ean)
	}
	copied := *p
	change(&copied)
	c.products[ean] = &copied
	return nil
}

// Categories returns every category in ID order
func (c *Catalog) Categories() []domain.Category {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	out := make([]domain.Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Size returns the number of stored products
func (c *Catalog) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.products)
}

// Ping always succeeds
func (c *Catalog) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (c *Catalog) Close() error {
	return nil
}

// catalogTx buffers the writes of one transaction
type catalogTx struct {
	c *Catalog

	products       map[string]*domain.Product
	categories     map[int64]*domain.Category
	byTag          map[string]int64
	links          map[int64]map[int64]struct{}
	nextProductID  int64
	nextCategoryID int64
}

func (tx *catalogTx) commit() {
	c := tx.c
	for ean, p := range tx.products {
		c.products[ean] = p
	}
	c.nextProductID = tx.nextProductID

	for id := int64(len(c.categories)) + 1; id <= tx.nextCategoryID; id++ {
		c.categories = append(c.categories, *tx.categories[id])
	}
	for id, cat := range tx.categories {
		c.categories[id-1] = *cat
	}
	for tag, id := range tx.byTag {
		c.byTag[tag] = id
	}

	for productID, ids := range tx.links {
		set, ok := c.imported[productID]
		if !ok {
			set = make(map[int64]struct{})
			c.imported[productID] = set
		}
		for id := range ids {
			set[id] = struct{}{}
		}
	}
}

func (tx *catalogTx) product(ean string) *domain.Product {
	if p, ok := tx.products[ean]; ok {
		return p
	}
	return tx.c.products[ean]
}

func (tx *catalogTx) UpsertProduct(ctx context.Context, in *domain.NormalizedProduct, policy domain.MergePolicy) (*domain.Product, bool, error) {
	now := tx.c.now()

	existing := tx.product(in.EAN)
	if existing == nil {
		tx.nextProductID++
		p := domain.NewProduct(in, now)
		p.ID = tx.nextProductID
		tx.products[in.EAN] = p
		copied := *p
		return &copied, true, nil
	}

	merged := *existing
	merged.Apply(in, policy, now)
	tx.products[in.EAN] = &merged
	copied := merged
	return &copied, false, nil
}

func (tx *catalogTx) AttachImportedCategory(ctx context.Context, productID, categoryID int64) error {
	if _, err := tx.CategoryByID(ctx, categoryID); err != nil {
		return err
	}
	if _, linked := tx.c.imported[productID][categoryID]; linked {
		return nil
	}
	set, ok := tx.links[productID]
	if !ok {
		set = make(map[int64]struct{})
		tx.links[productID] = set
	}
	set[categoryID] = struct{}{}
	return nil
}

func (tx *catalogTx) CategoryByTag(ctx context.Context, tag string) (*domain.Category, error) {
	id, ok := tx.byTag[tag]
	if !ok {
		id, ok = tx.c.byTag[tag]
	}
	if !ok {
		return nil, fmt.Errorf("%w: tag %q", domain.ErrCategoryNotFound, tag)
	}
	return tx.CategoryByID(ctx, id)
}

func (tx *catalogTx) CategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	if cat, ok := tx.categories[id]; ok {
		copied := *cat
		return &copied, nil
	}
	if id < 1 || id > int64(len(tx.c.categories)) {
		return nil, fmt.Errorf("%w: id %d", domain.ErrCategoryNotFound, id)
	}
	copied := tx.c.categories[id-1]
	return &copied, nil
}

func (tx *catalogTx) CreateCategory(ctx context.Context, cat *domain.Category) error {
	if tag := cat.TagValue(); tag != "" {
		if _, err := tx.CategoryByTag(ctx, tag); err == nil {
			return fmt.Errorf("%w: category tag %q", domain.ErrDuplicate, tag)
		}
	}

	tx.nextCategoryID++
	cat.ID = tx.nextCategoryID
	stored := *cat
	tx.categories[cat.ID] = &stored
	if tag := cat.TagValue(); tag != "" {
		tx.byTag[tag] = cat.ID
	}
	return nil
}

func (tx *catalogTx) UpdateCategory(ctx context.Context, cat *domain.Category) error {
	current, err := tx.CategoryByID(ctx, cat.ID)
	if err != nil {
		return err
	}
	updated := *cat
	// Tags are immutable once assigned
	updated.Tag = current.Tag
	tx.categories[cat.ID] = &updated
	return nil
}

func (tx *catalogTx) SetCategoryParent(ctx context.Context, id, parentID int64) error {
	current, err := tx.CategoryByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := tx.CategoryByID(ctx, parentID); err != nil {
		return err
	}
	current.ParentID = &parentID
	tx.categories[id] = current
	return nil
}
