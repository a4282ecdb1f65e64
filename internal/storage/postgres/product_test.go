package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Innie4/LaceandLegacy/internal/catalog"
	"github.com/Innie4/LaceandLegacy/pkg/database"
	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
)

func newProductTestRepo(t *testing.T) (*ProductRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewProductRepository(mock)
	return repo, mock
}

func sampleProduct() *catalog.Product {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &catalog.Product{
		ID:          "prod-001",
		Name:        "1970s Rolling Stones Tour Tee",
		Slug:        "1970s-rolling-stones-tour-tee",
		Description: "Original print from the 1975 Americas tour.",
		Price:       4599,
		Currency:    "USD",
		Decade:      "70s",
		Style:       "Band",
		Condition:   "Good",
		Color:       "Black",
		Sizes:       []string{"S", "M", "L"},
		Rating:      4.8,
		ReviewCount: 32,
		InStock:     true,
		ImageURL:    "https://img.example.com/prod-001.jpg",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func productTestColumns() []string {
	return []string{
		"id", "name", "slug", "description", "price", "currency",
		"decade", "style", "condition", "color", "sizes",
		"rating", "review_count", "in_stock", "image_url",
		"created_at", "updated_at",
	}
}

func productRow(t *testing.T, p *catalog.Product) []any {
	t.Helper()

	sizesJSON, err := json.Marshal(p.Sizes)
	require.NoError(t, err)

	return []any{
		p.ID, p.Name, p.Slug, p.Description, p.Price, p.Currency,
		p.Decade, p.Style, p.Condition, p.Color, sizesJSON,
		p.Rating, p.ReviewCount, p.InStock, p.ImageURL,
		p.CreatedAt, p.UpdatedAt,
	}
}

func TestProductRepository_Create_Success(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	p := sampleProduct()

	sizesJSON, err := json.Marshal(p.Sizes)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO products").
		WithArgs(
			p.ID, p.Name, p.Slug, p.Description, p.Price, p.Currency,
			p.Decade, p.Style, p.Condition, p.Color, sizesJSON,
			p.Rating, p.ReviewCount, p.InStock, p.ImageURL,
			p.CreatedAt, p.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), p)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Create_DuplicateSlug(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	p := sampleProduct()

	mock.ExpectExec("INSERT INTO products").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "products_slug_key" (SQLSTATE 23505)`))

	err := repo.Create(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_Success(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	p := sampleProduct()
	rows := pgxmock.NewRows(productTestColumns()).AddRow(productRow(t, p)...)

	mock.ExpectQuery("SELECT .+ FROM products WHERE id").
		WithArgs(p.ID).
		WillReturnRows(rows)

	result, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, p.ID, result.ID)
	assert.Equal(t, p.Name, result.Name)
	assert.Equal(t, p.Slug, result.Slug)
	assert.Equal(t, p.Price, result.Price)
	assert.Equal(t, p.Decade, result.Decade)
	assert.Equal(t, []string{"S", "M", "L"}, result.Sizes)
	assert.Equal(t, p.Rating, result.Rating)
	assert.True(t, result.InStock)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM products WHERE id").
		WithArgs("nonexistent-id").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByID(context.Background(), "nonexistent-id")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetBySlug_Success(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	p := sampleProduct()
	rows := pgxmock.NewRows(productTestColumns()).AddRow(productRow(t, p)...)

	mock.ExpectQuery("SELECT .+ FROM products WHERE slug").
		WithArgs(p.Slug).
		WillReturnRows(rows)

	result, err := repo.GetBySlug(context.Background(), p.Slug)
	require.NoError(t, err)
	assert.Equal(t, p.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_Success(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	p1 := sampleProduct()
	p2 := sampleProduct()
	p2.ID = "prod-002"
	p2.Name = "1980s Retro Arcade Tee"
	p2.Slug = "1980s-retro-arcade-tee"

	cols := append(productTestColumns(), "total_count")
	rows := pgxmock.NewRows(cols).
		AddRow(append(productRow(t, p1), 5)...).
		AddRow(append(productRow(t, p2), 5)...)

	mock.ExpectQuery("SELECT .+ FROM products ORDER BY created_at DESC").
		WithArgs(20, 0).
		WillReturnRows(rows)

	products, total, err := repo.List(context.Background(), 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, products, 2)
	assert.Equal(t, "prod-001", products[0].ID)
	assert.Equal(t, "prod-002", products[1].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_Empty(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	cols := append(productTestColumns(), "total_count")
	rows := pgxmock.NewRows(cols)

	mock.ExpectQuery("SELECT .+ FROM products ORDER BY created_at DESC").
		WithArgs(20, 0).
		WillReturnRows(rows)

	products, total, err := repo.List(context.Background(), 0, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, products)
	assert.Empty(t, products)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_ListAll_Success(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	p := sampleProduct()
	rows := pgxmock.NewRows(productTestColumns()).AddRow(productRow(t, p)...)

	mock.ExpectQuery("SELECT .+ FROM products ORDER BY created_at").
		WillReturnRows(rows)

	products, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, p.ID, products[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Update_NotFound(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	p := sampleProduct()
	p.ID = "nonexistent-id"

	mock.ExpectExec("UPDATE products").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Delete_Success(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM products").
		WithArgs("prod-001").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := repo.Delete(context.Background(), "prod-001")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Delete_NotFound(t *testing.T) {
	repo, mock := newProductTestRepo(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM products").
		WithArgs("nonexistent-id").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "nonexistent-id")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
