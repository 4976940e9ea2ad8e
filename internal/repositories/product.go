package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"activity-storefront/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ProductRepository handles catalog product data operations
type ProductRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ProductFilter narrows a product listing
type ProductFilter struct {
	Type       models.ProductType
	ActiveOnly bool
}

const productColumns = `
	id, name, type, subtype, description, base_price, early_bird_discount, early_bird_deadline,
	sibling_discount, duration_minutes, capacity, min_age, max_age, features, active, image_url,
	created_at, updated_at`

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	var (
		earlyBird decimal.NullDecimal
		deadline  sql.NullTime
		sibling   decimal.NullDecimal
	)

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Type,
		&p.Subtype,
		&p.Description,
		&p.Pricing.BasePrice,
		&earlyBird,
		&deadline,
		&sibling,
		&p.Duration,
		&p.Capacity,
		&p.AgeRange.Min,
		&p.AgeRange.Max,
		pq.Array(&p.Features),
		&p.Active,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if earlyBird.Valid {
		p.Pricing.EarlyBirdDiscount = &earlyBird.Decimal
	}
	if deadline.Valid {
		p.Pricing.EarlyBirdDeadline = &deadline.Time
	}
	if sibling.Valid {
		p.Pricing.SiblingDiscount = &sibling.Decimal
	}
	return p, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// List returns products ordered by type then name, with their add-ons
func (r *ProductRepository) List(ctx context.Context, filter ProductFilter) ([]*models.Product, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "active = TRUE")
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY type, name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	byID := make(map[string]*models.Product)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	if len(products) == 0 {
		return products, nil
	}
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	addOns, err := r.listAddOns(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, a := range addOns {
		if p, ok := byID[a.ProductID]; ok {
			p.AddOns = append(p.AddOns, a)
		}
	}

	return products, nil
}

// GetByID retrieves a product and its add-ons
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, models.ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	addOns, err := r.listAddOns(ctx, r.db, []string{id})
	if err != nil {
		return nil, err
	}
	p.AddOns = addOns
	return p, nil
}

func (r *ProductRepository) listAddOns(ctx context.Context, q querier, productIDs []string) ([]models.AddOn, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, name, description, price, active
		FROM add_ons
		WHERE product_id = ANY($1)
		ORDER BY name`, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list add-ons: %w", err)
	}
	defer rows.Close()

	var addOns []models.AddOn
	for rows.Next() {
		var a models.AddOn
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Name, &a.Description, &a.Price, &a.Active); err != nil {
			return nil, fmt.Errorf("failed to scan add-on: %w", err)
		}
		addOns = append(addOns, a)
	}
	return addOns, rows.Err()
}

// Create inserts a product and its add-ons in one transaction
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (name, type, subtype, description, base_price, early_bird_discount,
			early_bird_deadline, sibling_discount, duration_minutes, capacity, min_age, max_age,
			features, active, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + productColumns

	created, err := scanProduct(tx.QueryRowContext(ctx, query,
		p.Name,
		p.Type,
		p.Subtype,
		p.Description,
		p.Pricing.BasePrice,
		nullDecimal(p.Pricing.EarlyBirdDiscount),
		nullTime(p.Pricing.EarlyBirdDeadline),
		nullDecimal(p.Pricing.SiblingDiscount),
		p.Duration,
		p.Capacity,
		p.AgeRange.Min,
		p.AgeRange.Max,
		pq.Array(p.Features),
		p.Active,
		p.ImageURL,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	if created.AddOns, err = r.insertAddOns(ctx, tx, created.ID, p.AddOns); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}
	return created, nil
}

// Update replaces a product's fields and add-on list
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) (*models.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE products
		SET name = $2, type = $3, subtype = $4, description = $5, base_price = $6,
			early_bird_discount = $7, early_bird_deadline = $8, sibling_discount = $9,
			duration_minutes = $10, capacity = $11, min_age = $12, max_age = $13,
			features = $14, active = $15, image_url = $16, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	updated, err := scanProduct(tx.QueryRowContext(ctx, query,
		p.ID,
		p.Name,
		p.Type,
		p.Subtype,
		p.Description,
		p.Pricing.BasePrice,
		nullDecimal(p.Pricing.EarlyBirdDiscount),
		nullTime(p.Pricing.EarlyBirdDeadline),
		nullDecimal(p.Pricing.SiblingDiscount),
		p.Duration,
		p.Capacity,
		p.AgeRange.Min,
		p.AgeRange.Max,
		pq.Array(p.Features),
		p.Active,
		p.ImageURL,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", p.ID, models.ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM add_ons WHERE product_id = $1", p.ID); err != nil {
		return nil, fmt.Errorf("failed to clear add-ons: %w", err)
	}
	if updated.AddOns, err = r.insertAddOns(ctx, tx, updated.ID, p.AddOns); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product update: %w", err)
	}
	return updated, nil
}

func (r *ProductRepository) insertAddOns(ctx context.Context, q querier, productID string, addOns []models.AddOn) ([]models.AddOn, error) {
	out := make([]models.AddOn, 0, len(addOns))
	for _, a := range addOns {
		a.ProductID = productID
		var id interface{}
		if a.ID != "" {
			id = a.ID
		}
		err := q.QueryRowContext(ctx, `
			INSERT INTO add_ons (id, product_id, name, description, price, active)
			VALUES (COALESCE($1::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
			RETURNING id`,
			id, productID, a.Name, a.Description, a.Price, a.Active,
		).Scan(&a.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create add-on %q: %w", a.Name, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// SetImageURL points a product at its uploaded image
func (r *ProductRepository) SetImageURL(ctx context.Context, id, imageURL string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE products SET image_url = $2, updated_at = NOW() WHERE id = $1", id, imageURL)
	if err != nil {
		return fmt.Errorf("failed to set product image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("product %s: %w", id, models.ErrProductNotFound)
	}
	return nil
}
