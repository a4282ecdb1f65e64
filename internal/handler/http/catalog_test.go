package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Innie4/LaceandLegacy/internal/catalog"
	"github.com/Innie4/LaceandLegacy/internal/search/memory"
	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
	"github.com/Innie4/LaceandLegacy/pkg/middleware"
)

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *mockProductRepository) GetBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, offset, limit int) ([]catalog.Product, int, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]catalog.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) ListAll(ctx context.Context) ([]catalog.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *mockProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func catalogTestProduct(id, name, slug, decade string, price int64) catalog.Product {
	now := time.Now().UTC()
	return catalog.Product{
		ID:        id,
		Name:      name,
		Slug:      slug,
		Price:     price,
		Currency:  "USD",
		Decade:    decade,
		Style:     "Band",
		Condition: "Good",
		Color:     "Black",
		Sizes:     []string{"M", "L"},
		Rating:    4.5,
		InStock:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// setupCatalogRouter wires the catalog handler against an in-memory search
// engine preloaded with the given products.
func setupCatalogRouter(t *testing.T, repo *mockProductRepository, products ...catalog.Product) *chi.Mux {
	t.Helper()

	engine := memory.New()
	for i := range products {
		require.NoError(t, engine.Index(context.Background(), &products[i]))
	}

	svc := catalog.NewService(repo, engine, testLogger())
	handler := NewCatalogHandler(svc, testLogger())

	r := chi.NewRouter()
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(middleware.CacheControl(60))

		r.Get("/", handler.ListProducts)
		r.Get("/facets", handler.GetFacets)
		r.Get("/{idOrSlug}", handler.GetProduct)
	})
	return r
}

func TestCatalogHandler_ListProducts(t *testing.T) {
	repo := new(mockProductRepository)
	router := setupCatalogRouter(t, repo,
		catalogTestProduct("p1", "1970s Band Tee", "1970s-band-tee", "70s", 4599),
		catalogTestProduct("p2", "1980s Arcade Tee", "1980s-arcade-tee", "80s", 3899),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Data)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result catalog.FilterResult
	require.NoError(t, json.Unmarshal(raw, &result))

	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Products, 2)
}

func TestCatalogHandler_ListProducts_DecadeFilter(t *testing.T) {
	repo := new(mockProductRepository)
	router := setupCatalogRouter(t, repo,
		catalogTestProduct("p1", "1970s Band Tee", "1970s-band-tee", "70s", 4599),
		catalogTestProduct("p2", "1980s Arcade Tee", "1980s-arcade-tee", "80s", 3899),
		catalogTestProduct("p3", "1990s Sports Tee", "1990s-sports-tee", "90s", 5299),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/?decade=70s,90s", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result catalog.FilterResult
	require.NoError(t, json.Unmarshal(raw, &result))

	assert.Equal(t, 2, result.Total)
	for _, p := range result.Products {
		assert.Contains(t, []string{"70s", "90s"}, p.Decade)
	}
}

func TestCatalogHandler_ListProducts_PriceRangeAndSort(t *testing.T) {
	repo := new(mockProductRepository)
	router := setupCatalogRouter(t, repo,
		catalogTestProduct("p1", "1970s Band Tee", "1970s-band-tee", "70s", 4599),
		catalogTestProduct("p2", "1980s Arcade Tee", "1980s-arcade-tee", "80s", 3899),
		catalogTestProduct("p3", "1990s Sports Tee", "1990s-sports-tee", "90s", 5299),
	)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/products/?min_price=4000&sort=price-low", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	resp := decodeResponse(t, rec)
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result catalog.FilterResult
	require.NoError(t, json.Unmarshal(raw, &result))

	require.Len(t, result.Products, 2)
	assert.Equal(t, "p1", result.Products[0].ID)
	assert.Equal(t, "p3", result.Products[1].ID)
}

func TestCatalogHandler_GetProduct_ByID(t *testing.T) {
	p := catalogTestProduct("p1", "1970s Band Tee", "1970s-band-tee", "70s", 4599)
	repo := new(mockProductRepository)
	repo.On("GetByID", mock.Anything, "p1").Return(&p, nil)

	router := setupCatalogRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/p1", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestCatalogHandler_GetProduct_SlugFallback(t *testing.T) {
	p := catalogTestProduct("p1", "1970s Band Tee", "1970s-band-tee", "70s", 4599)
	repo := new(mockProductRepository)
	repo.On("GetByID", mock.Anything, "1970s-band-tee").Return(nil, apperrors.ErrNotFound)
	repo.On("GetBySlug", mock.Anything, "1970s-band-tee").Return(&p, nil)

	router := setupCatalogRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/1970s-band-tee", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestCatalogHandler_GetProduct_NotFound(t *testing.T) {
	repo := new(mockProductRepository)
	repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.ErrNotFound)
	repo.On("GetBySlug", mock.Anything, "missing").Return(nil, apperrors.ErrNotFound)

	router := setupCatalogRouter(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/missing", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestCatalogHandler_GetFacets(t *testing.T) {
	repo := new(mockProductRepository)
	router := setupCatalogRouter(t, repo,
		catalogTestProduct("p1", "1970s Band Tee", "1970s-band-tee", "70s", 4599),
		catalogTestProduct("p2", "1980s Arcade Tee", "1980s-arcade-tee", "80s", 3899),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/facets", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var facets catalog.Facets
	require.NoError(t, json.Unmarshal(raw, &facets))

	require.Len(t, facets.Decades, 2)
	assert.Equal(t, "70s", facets.Decades[0].Value)
	assert.Equal(t, 1, facets.Decades[0].Count)
}
