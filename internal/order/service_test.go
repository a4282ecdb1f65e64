package order

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
	"github.com/Innie4/LaceandLegacy/pkg/pagination"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *mockRepository) ListByUserID(ctx context.Context, userID string, offset, limit int) ([]Order, int, error) {
	args := m.Called(ctx, userID, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]Order), args.Int(1), args.Error(2)
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id, status, reason string) error {
	args := m.Called(ctx, id, status, reason)
	return args.Error(0)
}

func newTestService(repo *mockRepository) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(repo, logger)
}

func confirmedOrder(userID string) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:          "order-1",
		OrderNumber: "LL-20260901-0001",
		UserID:      userID,
		Status:      StatusConfirmed,
		Items: []Item{
			{ProductID: "p1", Name: "1970s Rolling Stones Tour Tee", Size: "M", Color: "Black", Price: 4599, Quantity: 2},
		},
		SubtotalAmount: 9198,
		ShippingAmount: 599,
		TotalAmount:    9797,
		Currency:       "USD",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestGetOrder(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	o := confirmedOrder("user-1")
	repo.On("GetByID", ctx, "order-1").Return(o, nil)

	got, err := svc.GetOrder(ctx, "user-1", "order-1")

	require.NoError(t, err)
	assert.Equal(t, o, got)
}

func TestGetOrder_OtherUsersOrderIsNotFound(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	o := confirmedOrder("user-1")
	repo.On("GetByID", ctx, "order-1").Return(o, nil)

	_, err := svc.GetOrder(ctx, "user-2", "order-1")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListOrders(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	orders := []Order{*confirmedOrder("user-1")}
	repo.On("ListByUserID", ctx, "user-1", 0, 20).Return(orders, 1, nil)

	result, err := svc.ListOrders(ctx, "user-1", pagination.Params{Page: 1, PerPage: 20})

	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalCount)
	assert.Len(t, result.Data, 1)
}

func TestUpdateStatus_AllowedTransition(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	o := confirmedOrder("user-1")
	repo.On("GetByID", ctx, "order-1").Return(o, nil)
	repo.On("UpdateStatus", ctx, "order-1", StatusProcessing, "").Return(nil)

	got, err := svc.UpdateStatus(ctx, "order-1", StatusProcessing, "")

	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
}

func TestUpdateStatus_DisallowedTransition(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestService(repo)
	ctx := context.Background()

	o := confirmedOrder("user-1")
	repo.On("GetByID", ctx, "order-1").Return(o, nil)

	_, err := svc.UpdateStatus(ctx, "order-1", StatusDelivered, "")

	assert.ErrorIs(t, err, apperrors.ErrConflict)
	repo.AssertNotCalled(t, "UpdateStatus")
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	repo := new(mockRepository)
	svc := newTestService(repo)

	_, err := svc.UpdateStatus(context.Background(), "order-1", "teleported", "")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCanTransitionTo(t *testing.T) {
	o := &Order{Status: StatusShipped}

	assert.True(t, o.CanTransitionTo(StatusDelivered))
	assert.False(t, o.CanTransitionTo(StatusCanceled))
	assert.False(t, o.CanTransitionTo(StatusConfirmed))

	terminal := &Order{Status: StatusRefunded}
	for _, s := range ValidStatuses() {
		assert.False(t, terminal.CanTransitionTo(s))
	}
}
