package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Innie4/LaceandLegacy/internal/event"
	apperrors "github.com/Innie4/LaceandLegacy/pkg/errors"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed for a single line.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct lines in a cart.
	MaxItemsPerCart = 50
	// MaxPriceCents is the maximum price in cents (100,000.00) per item.
	MaxPriceCents = 100_000_00
)

// AddItemInput holds the parameters for adding an item to the cart.
type AddItemInput struct {
	ProductID string
	Size      string
	Color     string
	Name      string
	Price     int64
	Quantity  int
	ImageURL  string
}

// Service implements the business logic for cart operations.
type Service struct {
	repo     Repository
	producer *event.Producer
	logger   *slog.Logger
	cartTTL  time.Duration
}

// NewService creates a cart service.
func NewService(repo Repository, producer *event.Producer, logger *slog.Logger, cartTTL time.Duration) *Service {
	return &Service{
		repo:     repo,
		producer: producer,
		logger:   logger,
		cartTTL:  cartTTL,
	}
}

// GetCart retrieves the cart for a user. A user with no stored cart gets an
// empty one rather than an error.
func (s *Service) GetCart(ctx context.Context, userID string) (*Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}

	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return c, nil
}

// AddItem adds an item to the user's cart. An existing line with the same
// product, size, and color is merged by increasing its quantity, so adding
// the same shirt twice yields one line with quantity 2, never two lines.
// Optimistic locking guards against concurrent cart modifications.
func (s *Service) AddItem(ctx context.Context, userID string, input AddItemInput) (*Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}
	if input.Quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}
	if input.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}
	if input.Price > MaxPriceCents {
		return nil, apperrors.InvalidInput(fmt.Sprintf("price must not exceed %d cents", MaxPriceCents))
	}

	c, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	expectedVersion := c.Version

	if i := c.FindItemIndex(input.ProductID, input.Size, input.Color); i >= 0 {
		newQty := c.Items[i].Quantity + input.Quantity
		if newQty > MaxQuantityPerItem {
			return nil, apperrors.InvalidInput(fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
		}
		c.Items[i].Quantity = newQty
		// Refresh display fields in case the catalog changed since the
		// line was first added.
		c.Items[i].Price = input.Price
		c.Items[i].Name = input.Name
		c.Items[i].ImageURL = input.ImageURL
	} else {
		if len(c.Items) >= MaxItemsPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}
		c.Items = append(c.Items, Item{
			ProductID: input.ProductID,
			Size:      input.Size,
			Color:     input.Color,
			Name:      input.Name,
			Price:     input.Price,
			Quantity:  input.Quantity,
			ImageURL:  input.ImageURL,
		})
	}

	if err := s.saveCart(ctx, c, expectedVersion); err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, c)

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.String("product_id", input.ProductID),
		slog.String("size", input.Size),
		slog.String("color", input.Color),
		slog.Int("quantity", input.Quantity),
	)

	return c, nil
}

// UpdateItemQuantity sets the quantity of a cart line. Quantity 0 removes
// the line, making it equivalent to RemoveItem.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, productID, size, color string, quantity int) (*Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if quantity < 0 {
		return nil, apperrors.InvalidInput("quantity must not be negative")
	}
	if quantity > MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart for update: %w", err)
	}

	expectedVersion := c.Version

	i := c.FindItemIndex(productID, size, color)
	if i < 0 {
		return nil, apperrors.NotFound("cart item", lineKey(productID, size, color))
	}

	if quantity == 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		c.Items[i].Quantity = quantity
	}

	if err := s.saveCart(ctx, c, expectedVersion); err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, c)

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)

	return c, nil
}

// RemoveItem removes a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID, size, color string) (*Cart, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user id is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart for remove: %w", err)
	}

	expectedVersion := c.Version

	i := c.FindItemIndex(productID, size, color)
	if i < 0 {
		return nil, apperrors.NotFound("cart item", lineKey(productID, size, color))
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)

	if err := s.saveCart(ctx, c, expectedVersion); err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, c)

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
	)

	return c, nil
}

// ClearCart removes all items from the user's cart.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.InvalidInput("user id is required")
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	if err := s.producer.PublishCartCleared(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("user_id", userID),
	)

	return nil
}

// saveCart persists the cart with a version check and refreshed timestamps.
func (s *Service) saveCart(ctx context.Context, c *Cart, expectedVersion int) error {
	now := time.Now().UTC()
	c.UpdatedAt = now
	c.ExpiresAt = now.Add(s.cartTTL)

	ok, err := s.repo.SaveIfVersion(ctx, c, expectedVersion)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		return apperrors.Conflict("cart was modified concurrently, please retry")
	}
	return nil
}

func (s *Service) publishUpdated(ctx context.Context, c *Cart) {
	items := make([]event.CartItemData, len(c.Items))
	for i, item := range c.Items {
		items[i] = event.CartItemData{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		}
	}

	data := event.CartUpdatedData{
		UserID:      c.UserID,
		Items:       items,
		ItemCount:   c.ItemCount(),
		TotalAmount: c.TotalAmount(),
		Currency:    c.Currency,
	}

	if err := s.producer.PublishCartUpdated(ctx, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", c.UserID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) getOrCreateCart(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return s.newEmptyCart(userID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return c, nil
}

func (s *Service) newEmptyCart(userID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:        uuid.New().String(),
		UserID:    userID,
		Items:     []Item{},
		Currency:  "USD",
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.cartTTL),
	}
}

func lineKey(productID, size, color string) string {
	return productID + "/" + size + "/" + color
}
