package order

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
	"github.com/Innie4/LaceandLegacy/pkg/pagination"
)

// Service implements order reads and status management. Order creation
// happens inside checkout, which owns the payment flow.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates an order service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// GetOrder returns a user's order by ID. Another user's order reads as
// not found rather than forbidden.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	if o.UserID != userID {
		return nil, apperrors.NotFound("order", orderID)
	}

	return o, nil
}

// ListOrders returns a page of the user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string, params pagination.Params) (*pagination.Result[Order], error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	orders, total, err := s.repo.ListByUserID(ctx, userID, params.Offset, params.PerPage)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	result := pagination.NewResult(orders, total, params)
	return &result, nil
}

// UpdateStatus transitions an order to a new status, enforcing the allowed
// transition graph.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status, reason string) (*Order, error) {
	if !IsValidStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid order status %q", status))
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order for status update: %w", err)
	}

	if !o.CanTransitionTo(status) {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot transition order from %s to %s", o.Status, status))
	}

	if err := s.repo.UpdateStatus(ctx, orderID, status, reason); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	o.Status = status
	o.CanceledReason = reason

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", orderID),
		slog.String("status", status),
	)

	return o, nil
}
