package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Innie4/LaceandLegacy/internal/catalog"
)

// Engine is an in-memory implementation of the search.Engine interface.
// It evaluates the full filter pipeline with simple substring matching.
// Thread-safe via sync.RWMutex.
type Engine struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
}

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{
		products: make(map[string]catalog.Product),
	}
}

// Index adds or updates a single product in the in-memory index.
func (e *Engine) Index(_ context.Context, product *catalog.Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.products[product.ID] = *product
	return nil
}

// Delete removes a product from the in-memory index by its ID.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.products, id)
	return nil
}

// BulkIndex adds or updates multiple products in the in-memory index.
func (e *Engine) BulkIndex(_ context.Context, products []catalog.Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range products {
		e.products[products[i].ID] = products[i]
	}
	return nil
}

// Search evaluates the filter pipeline against the in-memory index.
// Stages run in order: text search, attribute filters, price range, minimum
// rating, stock, then sort and paginate.
func (e *Engine) Search(_ context.Context, filter *catalog.Filter) (*catalog.FilterResult, error) {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	matched := make([]catalog.Product, 0)

	queryLower := strings.ToLower(strings.TrimSpace(filter.Query))

	for _, p := range e.products {
		if !matches(p, filter, queryLower) {
			continue
		}
		matched = append(matched, p)
	}

	sortProducts(matched, filter.SortBy)

	total := len(matched)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	offset := (page - 1) * perPage
	if offset > total {
		offset = total
	}
	end := offset + perPage
	if end > total {
		end = total
	}

	return &catalog.FilterResult{
		Products: matched[offset:end],
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		TookMs:   time.Since(start).Milliseconds(),
	}, nil
}

// Facets counts the distinct attribute values across all indexed products.
func (e *Engine) Facets(_ context.Context) (*catalog.Facets, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	decades := make(map[string]int)
	styles := make(map[string]int)
	conditions := make(map[string]int)
	colors := make(map[string]int)
	sizes := make(map[string]int)

	for _, p := range e.products {
		if p.Decade != "" {
			decades[p.Decade]++
		}
		if p.Style != "" {
			styles[p.Style]++
		}
		if p.Condition != "" {
			conditions[p.Condition]++
		}
		if p.Color != "" {
			colors[p.Color]++
		}
		for _, s := range p.Sizes {
			sizes[s]++
		}
	}

	return &catalog.Facets{
		Decades:    toFacetCounts(decades),
		Styles:     toFacetCounts(styles),
		Conditions: toFacetCounts(conditions),
		Colors:     toFacetCounts(colors),
		Sizes:      toFacetCounts(sizes),
	}, nil
}

func toFacetCounts(counts map[string]int) []catalog.FacetCount {
	out := make([]catalog.FacetCount, 0, len(counts))
	for value, count := range counts {
		out = append(out, catalog.FacetCount{Value: value, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value < out[j].Value
	})
	return out
}

// matches checks whether a product passes every filter stage. Values within
// one attribute slice are OR-ed; separate stages are AND-ed.
func matches(p catalog.Product, filter *catalog.Filter, queryLower string) bool {
	if queryLower != "" {
		nameLower := strings.ToLower(p.Name)
		descLower := strings.ToLower(p.Description)
		if !strings.Contains(nameLower, queryLower) && !strings.Contains(descLower, queryLower) {
			return false
		}
	}

	if len(filter.Decades) > 0 && !containsString(filter.Decades, p.Decade) {
		return false
	}
	if len(filter.Styles) > 0 && !containsString(filter.Styles, p.Style) {
		return false
	}
	if len(filter.Conditions) > 0 && !containsString(filter.Conditions, p.Condition) {
		return false
	}
	if len(filter.Colors) > 0 && !containsString(filter.Colors, p.Color) {
		return false
	}
	if len(filter.Sizes) > 0 {
		found := false
		for _, s := range filter.Sizes {
			if p.HasSize(s) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.MinPrice != nil && p.Price < *filter.MinPrice {
		return false
	}
	if filter.MaxPrice != nil && p.Price > *filter.MaxPrice {
		return false
	}

	if filter.MinRating != nil && p.Rating < *filter.MinRating {
		return false
	}

	if filter.InStockOnly && !p.InStock {
		return false
	}

	return true
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// sortProducts orders the matched products. Unknown or empty sort options
// fall back to name ascending.
func sortProducts(products []catalog.Product, sortBy string) {
	switch sortBy {
	case catalog.SortPriceLow:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case catalog.SortPriceHigh:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	case catalog.SortRating:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Rating > products[j].Rating
		})
	case catalog.SortNewest:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		})
	default:
		sort.SliceStable(products, func(i, j int) bool {
			return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name)
		})
	}
}
