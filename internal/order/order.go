package order

import (
	"context"
	"time"
)

// Order status constants.
const (
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCanceled   = "canceled"
	StatusRefunded   = "refunded"
)

// Order represents a completed checkout. Orders are created confirmed
// because payment has already succeeded by the time one exists.
type Order struct {
	ID              string    `json:"id"`
	OrderNumber     string    `json:"order_number"`
	UserID          string    `json:"user_id"`
	Status          string    `json:"status"`
	Items           []Item    `json:"items"`
	SubtotalAmount  int64     `json:"subtotal_amount"`
	ShippingAmount  int64     `json:"shipping_amount"`
	TotalAmount     int64     `json:"total_amount"`
	Currency        string    `json:"currency"`
	PaymentID       string    `json:"payment_id,omitempty"`
	ShippingAddress Address   `json:"shipping_address"`
	CanceledReason  string    `json:"canceled_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Item is a purchased product line frozen at checkout time.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Address is the shipping destination captured at checkout.
type Address struct {
	FullName    string `json:"full_name"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
	Phone       string `json:"phone,omitempty"`
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		StatusConfirmed,
		StatusProcessing,
		StatusShipped,
		StatusDelivered,
		StatusCanceled,
		StatusRefunded,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// AllowedTransitions defines which status transitions are valid.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		StatusConfirmed:  {StatusProcessing, StatusCanceled},
		StatusProcessing: {StatusShipped, StatusCanceled},
		StatusShipped:    {StatusDelivered},
		StatusDelivered:  {StatusRefunded},
		StatusCanceled:   {},
		StatusRefunded:   {},
	}
}

// CanTransitionTo checks if the order can transition to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	allowed, ok := AllowedTransitions()[o.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// ItemCount returns the total quantity across all lines.
func (o *Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUserID(ctx context.Context, userID string, offset, limit int) ([]Order, int, error)
	UpdateStatus(ctx context.Context, id, status, reason string) error
}
