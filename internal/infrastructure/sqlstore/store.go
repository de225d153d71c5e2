// Package sqlstore is the SQL implementation of the product catalog, backed by
// PostgreSQL (pgx) or SQLite (modernc).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/pricelens/catalog/internal/domain"
)

// eachProductBatch is the page size used when walking every product
const eachProductBatch = 500

const productColumns = `id, ean, name, brand, quantity, unit, image_url, ecoscore_grade, nova_group,
	nutrition_grade, packaging_tags, labels_tags, allergens_tags, additives_tags, origins_tags,
	ingredients_text, ingredients, nutrients, translations, raw_data, is_approved,
	created_at, last_synced_at`

const categoryColumns = `id, tag, name, translations, parent_id, is_approved`

// Config holds configuration for opening a store
type Config struct {
	Dialect      Dialect
	DSN          string
	MaxOpenConns int
	ConnTimeout  time.Duration
	// ConnRetries is the number of extra pings attempted while the server comes up
	ConnRetries int
}

// Store is a SQL-backed catalog
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

// Open connects to the database and verifies the connection with a ping
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnTimeout <= 0 {
		cfg.ConnTimeout = 10 * time.Second
	}

	dsn := cfg.DSN
	if cfg.Dialect == SQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(cfg.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	switch {
	case cfg.Dialect == SQLite:
		// One writer at a time; avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	store := &Store{
		db:      db,
		dialect: cfg.Dialect,
		logger:  logger.With("component", "catalog", "dialect", string(cfg.Dialect)),
		now:     func() time.Time { return time.Now().UTC() },
	}

	if err := store.connect(ctx, cfg.ConnTimeout, cfg.ConnRetries); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// connect pings with exponential backoff until the database answers
func (s *Store) connect(ctx context.Context, timeout time.Duration, retries int) error {
	delay := time.Second
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = s.db.PingContext(pingCtx)
		cancel()
		if err == nil {
			s.logger.Info("database connection established")
			return nil
		}
		if attempt == retries {
			break
		}

		s.logger.Warn("database ping failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("ping database: %w", err)
}

// DB exposes the underlying pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Transact runs fn in one database transaction
func (s *Store) Transact(ctx context.Context, fn func(tx domain.CatalogTx) error) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&storeTx{q: tx, store: s})
	})
}

// ListBrands returns the distinct stored brands
func (s *Store) ListBrands(ctx context.Context) ([]string, error) {
	q := `SELECT DISTINCT brand FROM products WHERE brand IS NOT NULL AND brand <> '' ORDER BY brand`
	brands, err := queryMany(ctx, s.db, q, nil, func(sc scanner) (string, error) {
		var b string
		err := sc.Scan(&b)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	return brands, nil
}

// FindProduct returns the product stored under ean
func (s *Store) FindProduct(ctx context.Context, ean string) (*domain.Product, error) {
	q := s.dialect.rebind(`SELECT ` + productColumns + ` FROM products WHERE ean = ?`)
	p, err := queryOne(ctx, s.db, q, []any{ean}, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", ean, MapError(err, domain.ErrNotFound, domain.ErrDuplicate))
	}
	return p, nil
}

// ImportedCategories returns the imported categories linked to a product, by ID
func (s *Store) ImportedCategories(ctx context.Context, productID int64) ([]domain.Category, error) {
	q := s.dialect.rebind(`SELECT c.id, c.tag, c.name, c.translations, c.parent_id, c.is_approved
		FROM categories c
		JOIN product_imported_categories pic ON pic.category_id = c.id
		WHERE pic.product_id = ?
		ORDER BY c.id`)
	cats, err := queryMany(ctx, s.db, q, []any{productID}, scanCategoryValue)
	if err != nil {
		return nil, fmt.Errorf("list imported categories: %w", err)
	}
	return cats, nil
}

// EachProduct walks every product in ID order. Each batch is fully read before fn
// runs, so fn may write to the catalog.
func (s *Store) EachProduct(ctx context.Context, fn func(p *domain.Product) error) error {
	q := s.dialect.rebind(`SELECT ` + productColumns + ` FROM products WHERE id > ? ORDER BY id LIMIT ?`)

	var lastID int64
	for {
		batch, err := queryMany(ctx, s.db, q, []any{lastID, eachProductBatch}, scanProduct)
		if err != nil {
			return fmt.Errorf("walk products: %w", err)
		}
		for _, p := range batch {
			if err := fn(p); err != nil {
				return err
			}
			lastID = p.ID
		}
		if len(batch) < eachProductBatch {
			return nil
		}
	}
}

// UpdateProductUnit replaces a product's unit
func (s *Store) UpdateProductUnit(ctx context.Context, ean string, unit domain.Unit) error {
	q := s.dialect.rebind(`UPDATE products SET unit = ? WHERE ean = ?`)
	if err := execExpectOne(ctx, s.db, q, string(unit), ean); err != nil {
		return fmt.Errorf("update unit of %s: %w", ean, MapError(err, domain.ErrNotFound, domain.ErrDuplicate))
	}
	return nil
}

// UpdateProductTranslations replaces a product's translations
func (s *Store) UpdateProductTranslations(ctx context.Context, ean string, translations domain.Translations) error {
	encoded, err := encodeJSON(translations, len(translations) == 0)
	if err != nil {
		return err
	}
	q := s.dialect.rebind(`UPDATE products SET translations = ? WHERE ean = ?`)
	if err := execExpectOne(ctx, s.db, q, encoded, ean); err != nil {
		return fmt.Errorf("update translations of %s: %w", ean, MapError(err, domain.ErrNotFound, domain.ErrDuplicate))
	}
	return nil
}

// storeTx is the transactional view of the store
type storeTx struct {
	q     querier
	store *Store
}

func (tx *storeTx) rebind(query string) string {
	return tx.store.dialect.rebind(query)
}

func (tx *storeTx) UpsertProduct(ctx context.Context, in *domain.NormalizedProduct, policy domain.MergePolicy) (*domain.Product, bool, error) {
	now := tx.store.now()

	q := tx.rebind(`SELECT ` + productColumns + ` FROM products WHERE ean = ?` + tx.store.dialect.lockClause())
	existing, err := queryOne(ctx, tx.q, q, []any{in.EAN}, scanProduct)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("load product %s: %w", in.EAN, err)
	}

	if existing == nil {
		p := domain.NewProduct(in, now)
		if err := tx.insertProduct(ctx, p); err != nil {
			return nil, false, err
		}
		return p, true, nil
	}

	existing.Apply(in, policy, now)
	if err := tx.updateProduct(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (tx *storeTx) insertProduct(ctx context.Context, p *domain.Product) error {
	args, err := productArgs(p)
	if err != nil {
		return err
	}
	args = append(args, p.IsApproved, p.CreatedAt, p.LastSyncedAt)

	q := tx.rebind(`INSERT INTO products (ean, name, brand, quantity, unit, image_url, ecoscore_grade,
		nova_group, nutrition_grade, packaging_tags, labels_tags, allergens_tags, additives_tags,
		origins_tags, ingredients_text, ingredients, nutrients, translations, raw_data,
		is_approved, created_at, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := tx.q.QueryRowContext(ctx, q, args...).Scan(&p.ID); err != nil {
		return fmt.Errorf("insert product %s: %w", p.EAN, MapError(err, domain.ErrNotFound, domain.ErrDuplicate))
	}
	return nil
}

func (tx *storeTx) updateProduct(ctx context.Context, p *domain.Product) error {
	args, err := productArgs(p)
	if err != nil {
		return err
	}
	args = append(args[1:], p.LastSyncedAt, p.ID)

	q := tx.rebind(`UPDATE products SET name = ?, brand = ?, quantity = ?, unit = ?, image_url = ?,
		ecoscore_grade = ?, nova_group = ?, nutrition_grade = ?, packaging_tags = ?, labels_tags = ?,
		allergens_tags = ?, additives_tags = ?, origins_tags = ?, ingredients_text = ?,
		ingredients = ?, nutrients = ?, translations = ?, raw_data = ?, last_synced_at = ?
		WHERE id = ?`)
	if err := execExpectOne(ctx, tx.q, q, args...); err != nil {
		return fmt.Errorf("update product %s: %w", p.EAN, MapError(err, domain.ErrNotFound, domain.ErrDuplicate))
	}
	return nil
}

func (tx *storeTx) AttachImportedCategory(ctx context.Context, productID, categoryID int64) error {
	q := tx.rebind(`INSERT INTO product_imported_categories (product_id, category_id) VALUES (?, ?)
		ON CONFLICT (product_id, category_id) DO NOTHING`)
	if _, err := tx.q.ExecContext(ctx, q, productID, categoryID); err != nil {
		return fmt.Errorf("attach category %d: %w", categoryID, err)
	}
	return nil
}

func (tx *storeTx) CategoryByTag(ctx context.Context, tag string) (*domain.Category, error) {
	q := tx.rebind(`SELECT ` + categoryColumns + ` FROM categories WHERE tag = ?`)
	c, err := queryOne(ctx, tx.q, q, []any{tag}, scanCategory)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", tag, MapError(err, domain.ErrCategoryNotFound, domain.ErrDuplicate))
	}
	return c, nil
}

func (tx *storeTx) CategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	q := tx.rebind(`SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`)
	c, err := queryOne(ctx, tx.q, q, []any{id}, scanCategory)
	if err != nil {
		return nil, fmt.Errorf("category %d: %w", id, MapError(err, domain.ErrCategoryNotFound, domain.ErrDuplicate))
	}
	return c, nil
}

func (tx *storeTx) CreateCategory(ctx context.Context, c *domain.Category) error {
	translations, err := encodeJSON(c.Translations, len(c.Translations) == 0)
	if err != nil {
		return err
	}

	q := tx.rebind(`INSERT INTO categories (tag, name, translations, parent_id, is_approved)
		VALUES (?, ?, ?, ?, ?) RETURNING id`)
	err = tx.q.QueryRowContext(ctx, q, nullString(c.Tag), c.Name, translations, nullInt64(c.ParentID), c.IsApproved).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create category %q: %w", c.TagValue(), MapError(err, domain.ErrCategoryNotFound, domain.ErrDuplicate))
	}
	return nil
}

func (tx *storeTx) UpdateCategory(ctx context.Context, c *domain.Category) error {
	translations, err := encodeJSON(c.Translations, len(c.Translations) == 0)
	if err != nil {
		return err
	}

	q := tx.rebind(`UPDATE categories SET name = ?, translations = ?, parent_id = ?, is_approved = ? WHERE id = ?`)
	if err := execExpectOne(ctx, tx.q, q, c.Name, translations, nullInt64(c.ParentID), c.IsApproved, c.ID); err != nil {
		return fmt.Errorf("update category %d: %w", c.ID, MapError(err, domain.ErrCategoryNotFound, domain.ErrDuplicate))
	}
	return nil
}

func (tx *storeTx) SetCategoryParent(ctx context.Context, id, parentID int64) error {
	q := tx.rebind(`UPDATE categories SET parent_id = ? WHERE id = ?`)
	if err := execExpectOne(ctx, tx.q, q, parentID, id); err != nil {
		return fmt.Errorf("set parent of category %d: %w", id, MapError(err, domain.ErrCategoryNotFound, domain.ErrDuplicate))
	}
	return nil
}

// productArgs returns the values of every mutable column, ean first
func productArgs(p *domain.Product) ([]any, error) {
	var quantity decimal.NullDecimal
	if p.Quantity != nil {
		quantity = decimal.NullDecimal{Decimal: *p.Quantity, Valid: true}
	}

	var unit any
	if p.Unit != nil {
		unit = string(*p.Unit)
	}

	var nova any
	if p.NovaGroup != nil {
		nova = int64(*p.NovaGroup)
	}

	jsonValues := []struct {
		v     any
		empty bool
	}{
		{p.PackagingTags, len(p.PackagingTags) == 0},
		{p.LabelsTags, len(p.LabelsTags) == 0},
		{p.AllergensTags, len(p.AllergensTags) == 0},
		{p.AdditivesTags, len(p.AdditivesTags) == 0},
		{p.OriginsTags, len(p.OriginsTags) == 0},
	}
	encodedTags := make([]any, 0, len(jsonValues))
	for _, jv := range jsonValues {
		encoded, err := encodeJSON(jv.v, jv.empty)
		if err != nil {
			return nil, err
		}
		encodedTags = append(encodedTags, encoded)
	}

	ingredients, err := encodeJSON(p.Ingredients, len(p.Ingredients) == 0)
	if err != nil {
		return nil, err
	}
	nutrients, err := encodeJSON(p.Nutrients, len(p.Nutrients) == 0)
	if err != nil {
		return nil, err
	}
	translations, err := encodeJSON(p.Translations, len(p.Translations) == 0)
	if err != nil {
		return nil, err
	}
	var raw any
	if len(p.Raw) > 0 {
		raw = string(p.Raw)
	}

	args := []any{
		p.EAN, p.Name, nullString(p.Brand), quantity, unit, nullString(p.ImageURL),
		nullString(p.EcoscoreGrade), nova, nullString(p.NutritionGrade),
	}
	args = append(args, encodedTags...)
	args = append(args, nullString(p.IngredientsText), ingredients, nutrients, translations, raw)
	return args, nil
}

func scanProduct(sc scanner) (*domain.Product, error) {
	var (
		p                                                         domain.Product
		brand, unit, imageURL, ecoscore, nutrition, ingredientsTx sql.NullString
		quantity                                                  decimal.NullDecimal
		nova                                                      sql.NullInt64
		packaging, labels, allergens, additives, origins          []byte
		ingredients, nutrients, translations, raw                 []byte
		lastSynced                                                sql.NullTime
	)

	err := sc.Scan(
		&p.ID, &p.EAN, &p.Name, &brand, &quantity, &unit, &imageURL, &ecoscore, &nova,
		&nutrition, &packaging, &labels, &allergens, &additives, &origins,
		&ingredientsTx, &ingredients, &nutrients, &translations, &raw, &p.IsApproved,
		&p.CreatedAt, &lastSynced,
	)
	if err != nil {
		return nil, err
	}

	p.Brand = stringPtr(brand)
	p.ImageURL = stringPtr(imageURL)
	p.EcoscoreGrade = stringPtr(ecoscore)
	p.NutritionGrade = stringPtr(nutrition)
	p.IngredientsText = stringPtr(ingredientsTx)
	if quantity.Valid {
		q := quantity.Decimal
		p.Quantity = &q
	}
	if unit.Valid {
		u := domain.Unit(unit.String)
		p.Unit = &u
	}
	if nova.Valid {
		n := int(nova.Int64)
		p.NovaGroup = &n
	}
	if lastSynced.Valid {
		p.LastSyncedAt = lastSynced.Time
	}

	tagColumns := []struct {
		data []byte
		dest *[]string
	}{
		{packaging, &p.PackagingTags},
		{labels, &p.LabelsTags},
		{allergens, &p.AllergensTags},
		{additives, &p.AdditivesTags},
		{origins, &p.OriginsTags},
	}
	for _, col := range tagColumns {
		*col.dest = []string{}
		if err := decodeJSON(col.data, col.dest); err != nil {
			return nil, err
		}
	}
	if err := decodeJSON(ingredients, &p.Ingredients); err != nil {
		return nil, err
	}
	if err := decodeJSON(nutrients, &p.Nutrients); err != nil {
		return nil, err
	}
	if err := decodeJSON(translations, &p.Translations); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		p.Raw = json.RawMessage(append([]byte(nil), raw...))
	}
	return &p, nil
}

func scanCategory(sc scanner) (*domain.Category, error) {
	c, err := scanCategoryValue(sc)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCategoryValue(sc scanner) (domain.Category, error) {
	var (
		c            domain.Category
		tag          sql.NullString
		translations []byte
		parentID     sql.NullInt64
	)
	if err := sc.Scan(&c.ID, &tag, &c.Name, &translations, &parentID, &c.IsApproved); err != nil {
		return domain.Category{}, err
	}
	c.Tag = stringPtr(tag)
	if parentID.Valid {
		id := parentID.Int64
		c.ParentID = &id
	}
	if err := decodeJSON(translations, &c.Translations); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

// encodeJSON renders v as a JSON string, or SQL NULL when empty
func encodeJSON(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func decodeJSON(data []byte, dest any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
