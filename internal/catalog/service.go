package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
	"github.com/Innie4/LaceandLegacy/pkg/slug"
)

// Repository persists the canonical product records.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, offset, limit int) ([]Product, int, error)
	ListAll(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}

// Indexer is the subset of the search engine the catalog service drives.
// The full engine interface lives in the search package; this narrow view
// keeps the catalog free of a dependency on it.
type Indexer interface {
	Index(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filter *Filter) (*FilterResult, error)
	Facets(ctx context.Context) (*Facets, error)
	BulkIndex(ctx context.Context, products []Product) error
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Price       int64    `json:"price" validate:"required,gt=0"`
	Currency    string   `json:"currency" validate:"omitempty,len=3"`
	Decade      string   `json:"decade" validate:"required"`
	Style       string   `json:"style" validate:"required"`
	Condition   string   `json:"condition" validate:"required"`
	Color       string   `json:"color" validate:"required"`
	Sizes       []string `json:"sizes" validate:"required,min=1"`
	Rating      float64  `json:"rating" validate:"gte=0,lte=5"`
	ReviewCount int      `json:"review_count" validate:"gte=0"`
	InStock     bool     `json:"in_stock"`
	ImageURL    string   `json:"image_url" validate:"omitempty,url"`
}

// Service implements the catalog business logic. Reads of single products
// hit Postgres; listing queries go through the search index.
type Service struct {
	repo   Repository
	index  Indexer
	logger *slog.Logger
}

// NewService creates a catalog service.
func NewService(repo Repository, index Indexer, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		index:  index,
		logger: logger,
	}
}

// ListProducts evaluates the filter pipeline and returns a page of products.
func (s *Service) ListProducts(ctx context.Context, filter *Filter) (*FilterResult, error) {
	result, err := s.index.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return result, nil
}

// GetProduct returns a single product by ID.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetProductBySlug returns a single product by its URL slug.
func (s *Service) GetProductBySlug(ctx context.Context, productSlug string) (*Product, error) {
	if productSlug == "" {
		return nil, apperrors.InvalidInput("product slug is required")
	}

	p, err := s.repo.GetBySlug(ctx, productSlug)
	if err != nil {
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	return p, nil
}

// GetFacets returns the attribute values available for filtering.
func (s *Service) GetFacets(ctx context.Context) (*Facets, error) {
	facets, err := s.index.Facets(ctx)
	if err != nil {
		return nil, fmt.Errorf("get facets: %w", err)
	}
	return facets, nil
}

// CreateProduct stores a new product and adds it to the search index.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (*Product, error) {
	now := time.Now().UTC()

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	p := &Product{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Slug:        slug.Generate(input.Name),
		Description: input.Description,
		Price:       input.Price,
		Currency:    currency,
		Decade:      input.Decade,
		Style:       input.Style,
		Condition:   input.Condition,
		Color:       input.Color,
		Sizes:       input.Sizes,
		Rating:      input.Rating,
		ReviewCount: input.ReviewCount,
		InStock:     input.InStock,
		ImageURL:    input.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	if err := s.index.Index(ctx, p); err != nil {
		s.logger.ErrorContext(ctx, "failed to index product",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", p.ID),
		slog.String("slug", p.Slug),
	)

	return p, nil
}

// SetStock updates a product's stock flag and refreshes the index entry.
func (s *Service) SetStock(ctx context.Context, id string, inStock bool) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product for stock update: %w", err)
	}

	p.InStock = inStock
	p.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update product stock: %w", err)
	}

	if err := s.index.Index(ctx, p); err != nil {
		s.logger.ErrorContext(ctx, "failed to reindex product after stock change",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}

	return p, nil
}

// ReindexAll loads every product from Postgres and bulk-indexes it into
// the search engine. Called at startup and by the seed command.
func (s *Service) ReindexAll(ctx context.Context) (int, error) {
	products, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list products for reindex: %w", err)
	}

	if err := s.index.BulkIndex(ctx, products); err != nil {
		return 0, fmt.Errorf("bulk index products: %w", err)
	}

	s.logger.InfoContext(ctx, "catalog reindexed", slog.Int("count", len(products)))
	return len(products), nil
}
