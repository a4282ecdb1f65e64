package catalog

import "time"

// Sort options for product listings.
const (
	SortNameAsc   = "name"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"
	SortNewest    = "newest"
)

// Product is a vintage t-shirt in the catalog. Price is in cents.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Currency    string    `json:"currency"`
	Decade      string    `json:"decade"`
	Style       string    `json:"style"`
	Condition   string    `json:"condition"`
	Color       string    `json:"color"`
	Sizes       []string  `json:"sizes"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	InStock     bool      `json:"in_stock"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filter describes a product listing query. Attribute slices are OR-ed
// within a field and AND-ed across fields. Nil price and rating bounds mean
// no constraint.
type Filter struct {
	Query       string
	Decades     []string
	Styles      []string
	Conditions  []string
	Colors      []string
	Sizes       []string
	MinPrice    *int64
	MaxPrice    *int64
	MinRating   *float64
	InStockOnly bool
	SortBy      string
	Page        int
	PerPage     int
}

// FilterResult is a page of filtered products.
type FilterResult struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	TookMs   int64     `json:"took_ms"`
}

// FacetCount is a single facet value with the number of matching products.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facets summarizes the distinct attribute values across the catalog, used
// to render filter controls.
type Facets struct {
	Decades    []FacetCount `json:"decades"`
	Styles     []FacetCount `json:"styles"`
	Conditions []FacetCount `json:"conditions"`
	Colors     []FacetCount `json:"colors"`
	Sizes      []FacetCount `json:"sizes"`
}

// HasSize reports whether the product is offered in the given size.
func (p *Product) HasSize(size string) bool {
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}
