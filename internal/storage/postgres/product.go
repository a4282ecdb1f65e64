package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Innie4/LaceandLegacy/internal/catalog"
	"github.com/Innie4/LaceandLegacy/pkg/database"
	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
)

const productColumns = `id, name, slug, description, price, currency, decade, style, condition, color, sizes, rating, review_count, in_stock, image_url, created_at, updated_at`

// ProductRepository implements catalog.Repository using PostgreSQL.
type ProductRepository struct {
	db DB
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) (err error) {
	sizesJSON, err := json.Marshal(p.Sizes)
	if err != nil {
		return fmt.Errorf("marshal sizes: %w", err)
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	ctx, end := database.TraceQuery(ctx, "product.Create", "INSERT INTO products")
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Slug,
		p.Description,
		p.Price,
		p.Currency,
		p.Decade,
		p.Style,
		p.Condition,
		p.Color,
		sizesJSON,
		p.Rating,
		p.ReviewCount,
		p.InStock,
		p.ImageURL,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "product.GetByID", "SELECT FROM products WHERE id")
	p, err := r.scanProduct(ctx, query, id)
	end(err)
	return p, err
}

// GetBySlug retrieves a product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE slug = $1`

	ctx, end := database.TraceQuery(ctx, "product.GetBySlug", "SELECT FROM products WHERE slug")
	p, err := r.scanProduct(ctx, query, slug)
	end(err)
	return p, err
}

// List returns a page of products ordered by creation time with the total
// count.
func (r *ProductRepository) List(ctx context.Context, offset, limit int) (_ []catalog.Product, _ int, err error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	// Use count(*) OVER() for the total count in a single query.
	query := `
		SELECT ` + productColumns + `,
			   count(*) OVER() AS total_count
		FROM products
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	ctx, end := database.TraceQuery(ctx, "product.List", "SELECT FROM products")
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products   []catalog.Product
		totalCount int
	)

	for rows.Next() {
		p, err := scanProductRow(rows, &totalCount)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	if products == nil {
		products = []catalog.Product{}
	}

	return products, totalCount, nil
}

// ListAll returns every product in the catalog, used to rebuild the search
// index.
func (r *ProductRepository) ListAll(ctx context.Context) (_ []catalog.Product, err error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at`

	ctx, end := database.TraceQuery(ctx, "product.ListAll", "SELECT FROM products")
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product

	for rows.Next() {
		p, err := scanProductRow(rows, nil)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	if products == nil {
		products = []catalog.Product{}
	}

	return products, nil
}

// Update modifies an existing product in the database.
func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) (err error) {
	sizesJSON, err := json.Marshal(p.Sizes)
	if err != nil {
		return fmt.Errorf("marshal sizes: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "product.Update", "UPDATE products")
	defer func() { end(err) }()

	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, price = $4, currency = $5,
		    decade = $6, style = $7, condition = $8, color = $9, sizes = $10,
		    rating = $11, review_count = $12, in_stock = $13, image_url = $14, updated_at = $15
		WHERE id = $16`

	ct, err := r.db.Exec(ctx, query,
		p.Name,
		p.Slug,
		p.Description,
		p.Price,
		p.Currency,
		p.Decade,
		p.Style,
		p.Condition,
		p.Color,
		sizesJSON,
		p.Rating,
		p.ReviewCount,
		p.InStock,
		p.ImageURL,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return fmt.Errorf("update product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}

	return nil
}

// Delete removes a product from the database by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "product.Delete", "DELETE FROM products")
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// scanProduct is a helper that executes a query expected to return a single product row.
func (r *ProductRepository) scanProduct(ctx context.Context, query string, args ...any) (*catalog.Product, error) {
	var (
		p         catalog.Product
		sizesJSON []byte
	)

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Price,
		&p.Currency,
		&p.Decade,
		&p.Style,
		&p.Condition,
		&p.Color,
		&sizesJSON,
		&p.Rating,
		&p.ReviewCount,
		&p.InStock,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	if sizesJSON != nil {
		if err := json.Unmarshal(sizesJSON, &p.Sizes); err != nil {
			return nil, fmt.Errorf("unmarshal sizes: %w", err)
		}
	}

	return &p, nil
}

// scanProductRow scans a product from a multi-row result set. totalCount may
// be nil when the query does not select count(*) OVER().
func scanProductRow(rows pgx.Rows, totalCount *int) (*catalog.Product, error) {
	var (
		p         catalog.Product
		sizesJSON []byte
	)

	dest := []any{
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Price,
		&p.Currency,
		&p.Decade,
		&p.Style,
		&p.Condition,
		&p.Color,
		&sizesJSON,
		&p.Rating,
		&p.ReviewCount,
		&p.InStock,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if totalCount != nil {
		dest = append(dest, totalCount)
	}

	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan product row: %w", err)
	}

	if sizesJSON != nil {
		if err := json.Unmarshal(sizesJSON, &p.Sizes); err != nil {
			return nil, fmt.Errorf("unmarshal sizes: %w", err)
		}
	}

	return &p, nil
}
