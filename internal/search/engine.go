// Package search provides the product filter and sort pipeline behind the
// catalog listing endpoints. Implementations index products and answer
// filter queries; the canonical product record stays in Postgres.
package search

import (
	"context"

	"github.com/Innie4/LaceandLegacy/internal/catalog"
)

// Engine indexes products and evaluates filter queries against them.
type Engine interface {
	// Index adds or updates a single product in the index.
	Index(ctx context.Context, product *catalog.Product) error

	// Delete removes a product from the index by its ID.
	Delete(ctx context.Context, id string) error

	// Search evaluates the filter pipeline and returns a page of products.
	Search(ctx context.Context, filter *catalog.Filter) (*catalog.FilterResult, error)

	// Facets returns the distinct attribute values across the indexed
	// catalog with match counts.
	Facets(ctx context.Context) (*catalog.Facets, error)

	// BulkIndex adds or updates multiple products in the index.
	BulkIndex(ctx context.Context, products []catalog.Product) error
}
