package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Innie4/LaceandLegacy/internal/checkout"
	"github.com/Innie4/LaceandLegacy/pkg/database"
	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
)

const sessionColumns = `id, user_id, status, items, subtotal_amount, shipping_amount, total_amount, currency, shipping_address, payment_id, order_id, failure_reason, expires_at, created_at, updated_at`

// CheckoutRepository implements checkout.Repository using PostgreSQL.
type CheckoutRepository struct {
	db DB
}

// NewCheckoutRepository creates a new PostgreSQL-backed checkout session repository.
func NewCheckoutRepository(db DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

// Create inserts a new checkout session into the database.
func (r *CheckoutRepository) Create(ctx context.Context, s *checkout.Session) (err error) {
	itemsJSON, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	addressJSON, err := json.Marshal(s.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	query := `
		INSERT INTO checkout_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	ctx, end := database.TraceQuery(ctx, "checkout.Create", "INSERT INTO checkout_sessions")
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.Status,
		itemsJSON,
		s.SubtotalAmount,
		s.ShippingAmount,
		s.TotalAmount,
		s.Currency,
		addressJSON,
		nullableString(s.PaymentID),
		nullableString(s.OrderID),
		nullableString(s.FailureReason),
		s.ExpiresAt,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}

	return nil
}

// GetByID retrieves a checkout session by its ID.
func (r *CheckoutRepository) GetByID(ctx context.Context, id string) (_ *checkout.Session, err error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM checkout_sessions
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "checkout.GetByID", "SELECT FROM checkout_sessions WHERE id")
	defer func() { end(err) }()

	var (
		s           checkout.Session
		itemsJSON   []byte
		addressJSON []byte
		paymentID   *string
		orderID     *string
		reason      *string
	)

	err = r.db.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.UserID,
		&s.Status,
		&itemsJSON,
		&s.SubtotalAmount,
		&s.ShippingAmount,
		&s.TotalAmount,
		&s.Currency,
		&addressJSON,
		&paymentID,
		&orderID,
		&reason,
		&s.ExpiresAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}

	if err := unmarshalSessionFields(&s, itemsJSON, addressJSON, paymentID, orderID, reason); err != nil {
		return nil, err
	}

	return &s, nil
}

// Update persists the session's mutable fields.
func (r *CheckoutRepository) Update(ctx context.Context, s *checkout.Session) (err error) {
	s.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE checkout_sessions
		SET status = $1, payment_id = $2, order_id = $3, failure_reason = $4, updated_at = $5
		WHERE id = $6`

	ctx, end := database.TraceQuery(ctx, "checkout.Update", "UPDATE checkout_sessions")
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		s.Status,
		nullableString(s.PaymentID),
		nullableString(s.OrderID),
		nullableString(s.FailureReason),
		s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("update checkout session: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("checkout session", s.ID)
	}

	return nil
}

// unmarshalSessionFields decodes the JSONB columns and nullable strings into
// the session.
func unmarshalSessionFields(s *checkout.Session, itemsJSON, addressJSON []byte, paymentID, orderID, reason *string) error {
	if itemsJSON != nil {
		if err := json.Unmarshal(itemsJSON, &s.Items); err != nil {
			return fmt.Errorf("unmarshal items: %w", err)
		}
	}
	if addressJSON != nil {
		if err := json.Unmarshal(addressJSON, &s.ShippingAddress); err != nil {
			return fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}
	if paymentID != nil {
		s.PaymentID = *paymentID
	}
	if orderID != nil {
		s.OrderID = *orderID
	}
	if reason != nil {
		s.FailureReason = *reason
	}
	return nil
}
