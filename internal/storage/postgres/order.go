package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Innie4/LaceandLegacy/internal/order"
	"github.com/Innie4/LaceandLegacy/pkg/database"
	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
)

const orderColumns = `id, order_number, user_id, status, items, subtotal_amount, shipping_amount, total_amount, currency, payment_id, shipping_address, canceled_reason, created_at, updated_at`

// OrderRepository implements order.Repository using PostgreSQL. Items and
// the shipping address are stored as JSONB since they are frozen at checkout
// and never queried relationally.
type OrderRepository struct {
	db DB
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order into the database.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (err error) {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	ctx, end := database.TraceQuery(ctx, "order.Create", "INSERT INTO orders")
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		o.ID,
		o.OrderNumber,
		o.UserID,
		o.Status,
		itemsJSON,
		o.SubtotalAmount,
		o.ShippingAmount,
		o.TotalAmount,
		o.Currency,
		nullableString(o.PaymentID),
		addressJSON,
		nullableString(o.CanceledReason),
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("order", "order_number", o.OrderNumber)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (_ *order.Order, err error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "order.GetByID", "SELECT FROM orders WHERE id")
	defer func() { end(err) }()

	var (
		o           order.Order
		itemsJSON   []byte
		addressJSON []byte
		paymentID   *string
		reason      *string
	)

	err = r.db.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&itemsJSON,
		&o.SubtotalAmount,
		&o.ShippingAmount,
		&o.TotalAmount,
		&o.Currency,
		&paymentID,
		&addressJSON,
		&reason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := unmarshalOrderFields(&o, itemsJSON, addressJSON, paymentID, reason); err != nil {
		return nil, err
	}

	return &o, nil
}

// ListByUserID returns a page of the user's orders, newest first, with the
// total count.
func (r *OrderRepository) ListByUserID(ctx context.Context, userID string, offset, limit int) (_ []order.Order, _ int, err error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + orderColumns + `,
			   count(*) OVER() AS total_count
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "order.ListByUserID", "SELECT FROM orders WHERE user_id")
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		orders     []order.Order
		totalCount int
	)

	for rows.Next() {
		var (
			o           order.Order
			itemsJSON   []byte
			addressJSON []byte
			paymentID   *string
			reason      *string
		)

		if err := rows.Scan(
			&o.ID,
			&o.OrderNumber,
			&o.UserID,
			&o.Status,
			&itemsJSON,
			&o.SubtotalAmount,
			&o.ShippingAmount,
			&o.TotalAmount,
			&o.Currency,
			&paymentID,
			&addressJSON,
			&reason,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}

		if err := unmarshalOrderFields(&o, itemsJSON, addressJSON, paymentID, reason); err != nil {
			return nil, 0, err
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if orders == nil {
		orders = []order.Order{}
	}

	return orders, totalCount, nil
}

// UpdateStatus transitions an order to the given status. reason is stored
// only when non-empty.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status, reason string) (err error) {
	query := `
		UPDATE orders
		SET status = $1, canceled_reason = COALESCE($2, canceled_reason), updated_at = $3
		WHERE id = $4`

	ctx, end := database.TraceQuery(ctx, "order.UpdateStatus", "UPDATE orders")
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, status, nullableString(reason), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	return nil
}

// unmarshalOrderFields decodes the JSONB columns and nullable strings into
// the order.
func unmarshalOrderFields(o *order.Order, itemsJSON, addressJSON []byte, paymentID, reason *string) error {
	if itemsJSON != nil {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return fmt.Errorf("unmarshal items: %w", err)
		}
	}
	if addressJSON != nil {
		if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
			return fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}
	if paymentID != nil {
		o.PaymentID = *paymentID
	}
	if reason != nil {
		o.CanceledReason = *reason
	}
	return nil
}
