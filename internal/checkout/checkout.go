package checkout

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/Innie4/LaceandLegacy/internal/order"
	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
)

// Checkout session status constants.
const (
	StatusInitiated         = "initiated"
	StatusPaymentPending    = "payment_pending"
	StatusPaymentProcessing = "payment_processing"
	StatusCompleted         = "completed"
	StatusFailed            = "failed"
	StatusExpired           = "expired"
)

// Session represents an ongoing checkout.
type Session struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id"`
	Status          string        `json:"status"`
	Items           []order.Item  `json:"items"`
	SubtotalAmount  int64         `json:"subtotal_amount"`
	ShippingAmount  int64         `json:"shipping_amount"`
	TotalAmount     int64         `json:"total_amount"`
	Currency        string        `json:"currency"`
	ShippingAddress order.Address `json:"shipping_address"`
	PaymentID       string        `json:"payment_id,omitempty"`
	OrderID         string        `json:"order_id,omitempty"`
	FailureReason   string        `json:"failure_reason,omitempty"`
	ExpiresAt       time.Time     `json:"expires_at"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// IsExpired checks whether the session has passed its expiry time.
func (s *Session) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// IsTerminal returns true if the session is in a final state.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed || s.Status == StatusExpired
}

// ValidStatuses returns the set of valid checkout session statuses.
func ValidStatuses() []string {
	return []string{
		StatusInitiated,
		StatusPaymentPending,
		StatusPaymentProcessing,
		StatusCompleted,
		StatusFailed,
		StatusExpired,
	}
}

// Repository persists checkout sessions.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
}

// Card holds the payment card fields submitted at checkout. The card number
// and CVV are validated and forwarded to the provider; they are never
// persisted.
type Card struct {
	Number string `json:"number"`
	Holder string `json:"holder"`
	Expiry string `json:"expiry"` // MM/YY
	CVV    string `json:"cvv"`
}

// ValidateCard checks the card fields. Spaces in the number are ignored; the
// expiry must be MM/YY and not in the past; the CVV is 3 or 4 digits.
func ValidateCard(card Card, now time.Time) error {
	number := strings.ReplaceAll(card.Number, " ", "")
	if len(number) != 16 || !allDigits(number) {
		return apperrors.InvalidInput("card number must be 16 digits")
	}

	if strings.TrimSpace(card.Holder) == "" {
		return apperrors.InvalidInput("cardholder name is required")
	}

	// time.Parse accepts unpadded months like "1/6", so the MM/YY shape is
	// checked first.
	if len(card.Expiry) != 5 || card.Expiry[2] != '/' ||
		!allDigits(card.Expiry[:2]) || !allDigits(card.Expiry[3:]) {
		return apperrors.InvalidInput("card expiry must be in MM/YY format")
	}
	expiry, err := time.Parse("01/06", card.Expiry)
	if err != nil {
		return apperrors.InvalidInput("card expiry must be in MM/YY format")
	}
	// A card is valid through the end of its expiry month.
	endOfMonth := expiry.AddDate(0, 1, 0)
	if !now.Before(endOfMonth) {
		return apperrors.InvalidInput("card has expired")
	}

	if len(card.CVV) < 3 || len(card.CVV) > 4 || !allDigits(card.CVV) {
		return apperrors.InvalidInput("cvv must be 3 or 4 digits")
	}

	return nil
}

// ValidateAddress checks that the required shipping address fields are set.
func ValidateAddress(addr order.Address) error {
	if strings.TrimSpace(addr.FullName) == "" {
		return apperrors.InvalidInput("full name is required")
	}
	if strings.TrimSpace(addr.AddressLine) == "" {
		return apperrors.InvalidInput("address line is required")
	}
	if strings.TrimSpace(addr.City) == "" {
		return apperrors.InvalidInput("city is required")
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		return apperrors.InvalidInput("postal code is required")
	}
	if strings.TrimSpace(addr.Country) == "" {
		return apperrors.InvalidInput("country is required")
	}
	return nil
}

func allDigits(s string) bool {
	for _, ch := range s {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return len(s) > 0
}

// MaskCardNumber keeps the last four digits for receipts and logs.
func MaskCardNumber(number string) string {
	digits := strings.ReplaceAll(number, " ", "")
	if len(digits) < 4 {
		return "****"
	}
	return "**** **** **** " + digits[len(digits)-4:]
}
