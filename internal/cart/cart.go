package cart

import (
	"context"
	"time"
)

// Cart is a user's shopping cart. Totals are never stored: they are always
// derived from Items so the displayed total cannot drift from the line items.
type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	Currency  string    `json:"currency"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Item is a single cart line. A line is identified by product, size, and
// color: the same shirt in two sizes is two lines.
type Item struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image_url,omitempty"`
}

// TotalAmount returns the cart total in cents as a pure fold over the items.
func (c *Cart) TotalAmount() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// ItemCount returns the total quantity across all lines.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// FindItemIndex returns the index of the line matching product, size, and
// color, or -1 if no such line exists.
func (c *Cart) FindItemIndex(productID, size, color string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].Size == size && c.Items[i].Color == color {
			return i
		}
	}
	return -1
}

// Repository defines cart persistence. Carts are stored whole, one per user.
type Repository interface {
	// Get retrieves a cart by user ID.
	Get(ctx context.Context, userID string) (*Cart, error)

	// Save persists a cart unconditionally, overwriting any existing cart.
	Save(ctx context.Context, cart *Cart) error

	// SaveIfVersion persists a cart only when the stored version matches
	// expectedVersion, incrementing the version on success. Returns false
	// when the cart was modified concurrently.
	SaveIfVersion(ctx context.Context, cart *Cart, expectedVersion int) (bool, error)

	// Delete removes a user's cart.
	Delete(ctx context.Context, userID string) error
}
