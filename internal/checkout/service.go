package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Innie4/LaceandLegacy/internal/cart"
	"github.com/Innie4/LaceandLegacy/internal/event"
	"github.com/Innie4/LaceandLegacy/internal/order"
	"github.com/Innie4/LaceandLegacy/internal/payment"
	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
)

const (
	// sessionTTL bounds how long a checkout session may stay open.
	sessionTTL = 30 * time.Minute

	// shippingFee is the flat shipping charge in cents.
	shippingFee = 599

	// freeShippingThreshold is the subtotal above which shipping is free.
	freeShippingThreshold = 7500
)

// CartService is the slice of the cart the checkout flow needs.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// SubmitInput holds the parameters for submitting an order.
type SubmitInput struct {
	ShippingAddress order.Address
	Card            Card
}

// Service runs the checkout flow: validate, charge, create the order,
// clear the cart. A failed payment leaves the cart untouched so the user
// can retry.
type Service struct {
	repo      Repository
	orderRepo order.Repository
	carts     CartService
	provider  payment.Provider
	producer  *event.Producer
	logger    *slog.Logger
}

// NewService creates a checkout service.
func NewService(
	repo Repository,
	orderRepo order.Repository,
	carts CartService,
	provider payment.Provider,
	producer *event.Producer,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		orderRepo: orderRepo,
		carts:     carts,
		provider:  provider,
		producer:  producer,
		logger:    logger,
	}
}

// Submit runs a full checkout for the user's current cart.
func (s *Service) Submit(ctx context.Context, userID string, input SubmitInput) (*Session, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	if err := ValidateAddress(input.ShippingAddress); err != nil {
		return nil, err
	}
	if err := ValidateCard(input.Card, time.Now().UTC()); err != nil {
		return nil, err
	}

	c, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart for checkout: %w", err)
	}
	if len(c.Items) == 0 {
		return nil, apperrors.InvalidInput("cart is empty")
	}

	session, err := s.createSession(ctx, userID, c, input.ShippingAddress)
	if err != nil {
		return nil, err
	}

	if err := s.transition(ctx, session, StatusPaymentPending); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, session, StatusPaymentProcessing); err != nil {
		return nil, err
	}

	result, err := s.provider.Charge(ctx, &payment.ChargeInput{
		Amount:      session.TotalAmount,
		Currency:    session.Currency,
		CardNumber:  input.Card.Number,
		CardHolder:  input.Card.Holder,
		Description: fmt.Sprintf("Lace and Legacy order for %d items", itemCount(session.Items)),
		Metadata: map[string]any{
			"user_id":    userID,
			"session_id": session.ID,
			"card":       MaskCardNumber(input.Card.Number),
		},
	})
	if err != nil {
		s.fail(ctx, session, "payment processor error")
		return nil, fmt.Errorf("charge payment: %w", err)
	}

	if result.Status != payment.StatusSucceeded {
		s.fail(ctx, session, result.FailureReason)
		return session, apperrors.PaymentDeclined(result.FailureReason)
	}

	session.PaymentID = result.ProviderPaymentID

	o, err := s.createOrder(ctx, session)
	if err != nil {
		// The charge went through but the order could not be stored.
		// Refund and fail the session rather than leave money captured
		// against nothing.
		s.refund(ctx, session, result.ProviderPaymentID)
		s.fail(ctx, session, "order creation failed")
		return nil, fmt.Errorf("create order: %w", err)
	}

	session.OrderID = o.ID
	if err := s.transition(ctx, session, StatusCompleted); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark session completed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.carts.ClearCart(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishOrderCreated(ctx, event.OrderCreatedData{
		OrderID:     o.ID,
		UserID:      userID,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		ItemCount:   o.ItemCount(),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "checkout completed",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID),
		slog.String("order_id", o.ID),
		slog.Int64("total_amount", o.TotalAmount),
	)

	return session, nil
}

// GetSession returns a user's checkout session, marking it expired on read
// if its deadline has passed.
func (s *Service) GetSession(ctx context.Context, userID, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	if session.UserID != userID {
		return nil, apperrors.NotFound("checkout session", sessionID)
	}

	if !session.IsTerminal() && session.IsExpired() {
		session.Status = StatusExpired
		session.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, session); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark session expired",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return session, nil
}

func (s *Service) createSession(ctx context.Context, userID string, c *cart.Cart, addr order.Address) (*Session, error) {
	now := time.Now().UTC()

	items := make([]order.Item, len(c.Items))
	for i, ci := range c.Items {
		items[i] = order.Item{
			ProductID: ci.ProductID,
			Name:      ci.Name,
			Size:      ci.Size,
			Color:     ci.Color,
			Price:     ci.Price,
			Quantity:  ci.Quantity,
			ImageURL:  ci.ImageURL,
		}
	}

	subtotal := c.TotalAmount()
	shipping := int64(shippingFee)
	if subtotal >= freeShippingThreshold {
		shipping = 0
	}

	session := &Session{
		ID:              uuid.New().String(),
		UserID:          userID,
		Status:          StatusInitiated,
		Items:           items,
		SubtotalAmount:  subtotal,
		ShippingAmount:  shipping,
		TotalAmount:     subtotal + shipping,
		Currency:        c.Currency,
		ShippingAddress: addr,
		ExpiresAt:       now.Add(sessionTTL),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return session, nil
}

func (s *Service) createOrder(ctx context.Context, session *Session) (*order.Order, error) {
	now := time.Now().UTC()
	o := &order.Order{
		ID:              uuid.New().String(),
		OrderNumber:     generateOrderNumber(now),
		UserID:          session.UserID,
		Status:          order.StatusConfirmed,
		Items:           session.Items,
		SubtotalAmount:  session.SubtotalAmount,
		ShippingAmount:  session.ShippingAmount,
		TotalAmount:     session.TotalAmount,
		Currency:        session.Currency,
		PaymentID:       session.PaymentID,
		ShippingAddress: session.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orderRepo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// transition advances the session status and persists it.
func (s *Service) transition(ctx context.Context, session *Session, status string) error {
	session.Status = status
	session.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, session); err != nil {
		return fmt.Errorf("update session to %s: %w", status, err)
	}
	return nil
}

// fail marks the session failed with a reason. The cart is deliberately
// left intact so the user can retry.
func (s *Service) fail(ctx context.Context, session *Session, reason string) {
	session.Status = StatusFailed
	session.FailureReason = reason
	session.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark session failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.WarnContext(ctx, "checkout failed",
		slog.String("user_id", session.UserID),
		slog.String("session_id", session.ID),
		slog.String("reason", reason),
	)
}

func (s *Service) refund(ctx context.Context, session *Session, providerPaymentID string) {
	_, err := s.provider.Refund(ctx, &payment.RefundInput{
		ProviderPaymentID: providerPaymentID,
		Amount:            session.TotalAmount,
		Currency:          session.Currency,
		Reason:            "order creation failed",
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to refund charge after order failure",
			slog.String("session_id", session.ID),
			slog.String("payment_id", providerPaymentID),
			slog.String("error", err.Error()),
		)
	}
}

func itemCount(items []order.Item) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// generateOrderNumber builds a human-readable order number like
// LL-20260901-5F3A2B.
func generateOrderNumber(now time.Time) string {
	id := uuid.New().String()
	return fmt.Sprintf("LL-%s-%s", now.Format("20060102"), id[:6])
}
