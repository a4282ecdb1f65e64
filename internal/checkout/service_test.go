package checkout

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Innie4/LaceandLegacy/internal/cart"
	"github.com/Innie4/LaceandLegacy/internal/event"
	"github.com/Innie4/LaceandLegacy/internal/order"
	"github.com/Innie4/LaceandLegacy/internal/payment"
	paymentmock "github.com/Innie4/LaceandLegacy/internal/payment/mock"
	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
	pkgkafka "github.com/Innie4/LaceandLegacy/pkg/kafka"
)

// --- Mocks ---

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Create(ctx context.Context, s *Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockSessionRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *mockSessionRepository) Update(ctx context.Context, s *Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByUserID(ctx context.Context, userID string, offset, limit int) ([]order.Order, int, error) {
	args := m.Called(ctx, userID, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]order.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id, status, reason string) error {
	args := m.Called(ctx, id, status, reason)
	return args.Error(0)
}

type mockCartService struct {
	mock.Mock
}

func (m *mockCartService) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *mockCartService) ClearCart(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Helpers ---

type testDeps struct {
	sessions *mockSessionRepository
	orders   *mockOrderRepository
	carts    *mockCartService
}

func newTestService(provider payment.Provider) (*Service, *testDeps) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	producer := event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)

	deps := &testDeps{
		sessions: new(mockSessionRepository),
		orders:   new(mockOrderRepository),
		carts:    new(mockCartService),
	}
	svc := NewService(deps.sessions, deps.orders, deps.carts, provider, producer, logger)
	return svc, deps
}

func cartWithItems(userID string) *cart.Cart {
	now := time.Now().UTC()
	return &cart.Cart{
		ID:     "cart-1",
		UserID: userID,
		Items: []cart.Item{
			{ProductID: "p1", Size: "M", Color: "Black", Name: "1970s Rolling Stones Tour Tee", Price: 4599, Quantity: 2},
			{ProductID: "p2", Size: "S", Color: "Yellow", Name: "1980s Nirvana Smiley Tee", Price: 3899, Quantity: 1},
		},
		Currency:  "USD",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func validSubmitInput() SubmitInput {
	return SubmitInput{
		ShippingAddress: order.Address{
			FullName:    "Jamie Doe",
			AddressLine: "12 Thrift Lane",
			City:        "Portland",
			State:       "OR",
			PostalCode:  "97201",
			Country:     "US",
		},
		Card: validCard(),
	}
}

// --- Tests ---

func TestSubmit_Success(t *testing.T) {
	svc, deps := newTestService(paymentmock.NewProvider(0))
	ctx := context.Background()

	c := cartWithItems("user-1")
	deps.carts.On("GetCart", ctx, "user-1").Return(c, nil)
	deps.carts.On("ClearCart", ctx, "user-1").Return(nil)
	deps.sessions.On("Create", ctx, mock.AnythingOfType("*checkout.Session")).Return(nil)
	deps.sessions.On("Update", ctx, mock.AnythingOfType("*checkout.Session")).Return(nil)
	deps.orders.On("Create", ctx, mock.AnythingOfType("*order.Order")).Return(nil)

	session, err := svc.Submit(ctx, "user-1", validSubmitInput())

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, session.Status)
	assert.NotEmpty(t, session.OrderID)
	assert.NotEmpty(t, session.PaymentID)
	// Subtotal 2*4599 + 3899 = 13097, over the free shipping threshold.
	assert.Equal(t, int64(13097), session.SubtotalAmount)
	assert.Equal(t, int64(0), session.ShippingAmount)
	assert.Equal(t, int64(13097), session.TotalAmount)

	deps.carts.AssertCalled(t, "ClearCart", ctx, "user-1")
	deps.orders.AssertExpectations(t)
}

func TestSubmit_ShippingChargedUnderThreshold(t *testing.T) {
	svc, deps := newTestService(paymentmock.NewProvider(0))
	ctx := context.Background()

	c := cartWithItems("user-1")
	c.Items = c.Items[1:] // subtotal 3899, under the threshold
	deps.carts.On("GetCart", ctx, "user-1").Return(c, nil)
	deps.carts.On("ClearCart", ctx, "user-1").Return(nil)
	deps.sessions.On("Create", ctx, mock.AnythingOfType("*checkout.Session")).Return(nil)
	deps.sessions.On("Update", ctx, mock.AnythingOfType("*checkout.Session")).Return(nil)
	deps.orders.On("Create", ctx, mock.AnythingOfType("*order.Order")).Return(nil)

	session, err := svc.Submit(ctx, "user-1", validSubmitInput())

	require.NoError(t, err)
	assert.Equal(t, int64(3899), session.SubtotalAmount)
	assert.Equal(t, int64(599), session.ShippingAmount)
	assert.Equal(t, int64(4498), session.TotalAmount)
}

func TestSubmit_EmptyCart(t *testing.T) {
	svc, deps := newTestService(paymentmock.NewProvider(0))
	ctx := context.Background()

	empty := &cart.Cart{ID: "cart-1", UserID: "user-1", Items: []cart.Item{}, Currency: "USD"}
	deps.carts.On("GetCart", ctx, "user-1").Return(empty, nil)

	_, err := svc.Submit(ctx, "user-1", validSubmitInput())

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	deps.sessions.AssertNotCalled(t, "Create")
}

func TestSubmit_InvalidCard_NoSessionCreated(t *testing.T) {
	svc, deps := newTestService(paymentmock.NewProvider(0))
	ctx := context.Background()

	input := validSubmitInput()
	input.Card.Number = "1234"

	_, err := svc.Submit(ctx, "user-1", input)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	deps.carts.AssertNotCalled(t, "GetCart")
}

func TestSubmit_PaymentDeclined_PreservesCart(t *testing.T) {
	svc, deps := newTestService(paymentmock.NewProvider(0))
	ctx := context.Background()

	c := cartWithItems("user-1")
	deps.carts.On("GetCart", ctx, "user-1").Return(c, nil)
	deps.sessions.On("Create", ctx, mock.AnythingOfType("*checkout.Session")).Return(nil)
	deps.sessions.On("Update", ctx, mock.AnythingOfType("*checkout.Session")).Return(nil)

	input := validSubmitInput()
	// The mock provider declines card numbers ending in 0002.
	input.Card.Number = "4242 4242 4242 0002"

	session, err := svc.Submit(ctx, "user-1", input)

	assert.ErrorIs(t, err, apperrors.ErrPaymentDeclined)
	require.NotNil(t, session)
	assert.Equal(t, StatusFailed, session.Status)
	assert.Equal(t, "card declined", session.FailureReason)
	assert.Empty(t, session.OrderID)

	deps.carts.AssertNotCalled(t, "ClearCart")
	deps.orders.AssertNotCalled(t, "Create")
}

func TestSubmit_OrderCreationFailure_RefundsCharge(t *testing.T) {
	svc, deps := newTestService(paymentmock.NewProvider(0))
	ctx := context.Background()

	c := cartWithItems("user-1")
	deps.carts.On("GetCart", ctx, "user-1").Return(c, nil)
	deps.sessions.On("Create", ctx, mock.AnythingOfType("*checkout.Session")).Return(nil)
	deps.sessions.On("Update", ctx, mock.AnythingOfType("*checkout.Session")).Return(nil)
	deps.orders.On("Create", ctx, mock.AnythingOfType("*order.Order")).Return(assert.AnError)

	_, err := svc.Submit(ctx, "user-1", validSubmitInput())

	require.Error(t, err)
	deps.carts.AssertNotCalled(t, "ClearCart")
}

func TestGetSession_MarksExpired(t *testing.T) {
	svc, deps := newTestService(paymentmock.NewProvider(0))
	ctx := context.Background()

	session := &Session{
		ID:        "sess-1",
		UserID:    "user-1",
		Status:    StatusPaymentPending,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	deps.sessions.On("GetByID", ctx, "sess-1").Return(session, nil)
	deps.sessions.On("Update", ctx, mock.AnythingOfType("*checkout.Session")).Return(nil)

	got, err := svc.GetSession(ctx, "user-1", "sess-1")

	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestGetSession_OtherUsersSessionIsNotFound(t *testing.T) {
	svc, deps := newTestService(paymentmock.NewProvider(0))
	ctx := context.Background()

	session := &Session{ID: "sess-1", UserID: "user-1", Status: StatusCompleted}
	deps.sessions.On("GetByID", ctx, "sess-1").Return(session, nil)

	_, err := svc.GetSession(ctx, "user-2", "sess-1")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
