package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Innie4/LaceandLegacy/internal/catalog"
	"github.com/Innie4/LaceandLegacy/pkg/httputil"
	"github.com/Innie4/LaceandLegacy/pkg/validator"
)

// CatalogHandler handles product browsing and administration endpoints.
type CatalogHandler struct {
	service *catalog.Service
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc *catalog.Service, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  logger,
	}
}

// SetStockRequest is the JSON request body for stock flag updates.
type SetStockRequest struct {
	InStock bool `json:"in_stock"`
}

// ListProducts handles GET /api/v1/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)

	result, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// GetProduct handles GET /api/v1/products/{idOrSlug}
//
// IDs are UUIDs and slugs contain hyphenated words, so a single path segment
// can serve both. ID lookup is attempted first.
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	idOrSlug := chi.URLParam(r, "idOrSlug")

	p, err := h.service.GetProduct(r.Context(), idOrSlug)
	if err != nil {
		p, err = h.service.GetProductBySlug(r.Context(), idOrSlug)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: p})
}

// GetFacets handles GET /api/v1/products/facets
func (h *CatalogHandler) GetFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := h.service.GetFacets(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: facets})
}

// CreateProduct handles POST /api/v1/admin/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input catalog.CreateProductInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := validator.Validate(input); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: p})
}

// SetStock handles PATCH /api/v1/admin/products/{id}/stock
func (h *CatalogHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	p, err := h.service.SetStock(r.Context(), id, req.InStock)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: p})
}

// Reindex handles POST /api/v1/admin/reindex
func (h *CatalogHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.ReindexAll(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]int{"indexed": count}})
}

// filterFromQuery builds a product filter from the listing query string.
// Multi-value attributes accept both repeated parameters and comma-separated
// lists.
func filterFromQuery(r *http.Request) *catalog.Filter {
	q := r.URL.Query()

	filter := &catalog.Filter{
		Query:       strings.TrimSpace(q.Get("q")),
		Decades:     multiValue(q["decade"]),
		Styles:      multiValue(q["style"]),
		Conditions:  multiValue(q["condition"]),
		Colors:      multiValue(q["color"]),
		Sizes:       multiValue(q["size"]),
		InStockOnly: q.Get("in_stock") == "true",
		SortBy:      q.Get("sort"),
	}

	if v := q.Get("min_price"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			filter.MinPrice = &n
		}
	}
	if v := q.Get("max_price"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			filter.MaxPrice = &n
		}
	}
	if v := q.Get("min_rating"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			filter.MinRating = &f
		}
	}

	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(q.Get("per_page")); err == nil && perPage > 0 {
		filter.PerPage = perPage
	}

	return filter
}

func multiValue(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
