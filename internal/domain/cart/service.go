// internal/domain/cart/service.go
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/keymutex"
	"gorm.io/gorm"
)

const guestCartTTL = 24 * time.Hour

// Service handles cart business logic. Signed-in carts live in the database,
// guest carts live in Redis keyed by session. Writes to a user's cart are
// serialized per user so concurrent adds merge instead of duplicating lines.
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
	locks       *keymutex.KeyMutex
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
		locks:       keymutex.New(64),
	}
}

// CartItemResponse represents a cart line in API responses
type CartItemResponse struct {
	ID        uint      `json:"id,omitempty"`
	ProductID uint      `json:"product_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Image     string    `json:"image,omitempty"`
	Quantity  int       `json:"quantity"`
	LineTotal int64     `json:"line_total"`
	AddedAt   time.Time `json:"added_at"`
}

// CartResponse represents a shopping cart with items and derived totals
type CartResponse struct {
	SessionID string             `json:"session_id,omitempty"`
	UserID    *uint              `json:"user_id,omitempty"`
	Items     []CartItemResponse `json:"items"`
	Totals    CartTotals         `json:"totals"`
}

// AddToCartRequest represents add to cart request. Name, price and image are
// the caller's display snapshot of the product.
type AddToCartRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Price     int64  `json:"price" binding:"required"`
	Image     string `json:"image"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest represents a quantity change request
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// GetCart retrieves the cart for a user or guest session. A missing cart is
// not an error; callers get an empty cart.
func (s *Service) GetCart(userID *uint, sessionID string) (*CartResponse, error) {
	var items []CartItemResponse

	if userID != nil {
		var dbItems []CartItem
		err := s.db.Where("user_id = ?", *userID).Order("created_at ASC").Find(&dbItems).Error
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve user cart: %w", err)
		}
		items = make([]CartItemResponse, len(dbItems))
		for i, item := range dbItems {
			items[i] = CartItemResponse{
				ID:        item.ID,
				ProductID: item.ProductID,
				Name:      item.Name,
				Price:     item.Price,
				Image:     item.Image,
				Quantity:  item.Quantity,
				LineTotal: item.Price * int64(item.Quantity),
				AddedAt:   item.CreatedAt,
			}
		}
	} else {
		sessionCart, err := s.getGuestCart(sessionID)
		if err != nil {
			return nil, err
		}
		items = make([]CartItemResponse, len(sessionCart.Items))
		for i, item := range sessionCart.Items {
			items[i] = CartItemResponse{
				ProductID: item.ProductID,
				Name:      item.Name,
				Price:     item.Price,
				Image:     item.Image,
				Quantity:  item.Quantity,
				LineTotal: item.Price * int64(item.Quantity),
				AddedAt:   item.AddedAt,
			}
		}
	}

	return &CartResponse{
		SessionID: sessionID,
		UserID:    userID,
		Items:     items,
		Totals:    s.calculateTotals(items),
	}, nil
}

// AddToCart adds an item to the cart. Adding a product already in the cart
// merges quantities onto the existing line and refreshes the snapshot.
func (s *Service) AddToCart(userID *uint, sessionID string, req *AddToCartRequest) (*CartResponse, error) {
	if req.Quantity < 1 {
		return nil, apperror.Validation("quantity must be at least 1")
	}
	if req.Price < 0 {
		return nil, apperror.Validation("price cannot be negative")
	}

	var prod product.Product
	result := s.db.Where("id = ? AND is_active = ?", req.ProductID, true).First(&prod)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("product %d not found", req.ProductID)
		}
		return nil, fmt.Errorf("failed to validate product: %w", result.Error)
	}

	if userID != nil {
		s.locks.Lock(*userID)
		defer s.locks.Unlock(*userID)
		if err := s.addToUserCart(*userID, req); err != nil {
			return nil, err
		}
	} else {
		if err := s.addToGuestCart(sessionID, req); err != nil {
			return nil, err
		}
	}

	return s.GetCart(userID, sessionID)
}

// UpdateCartItem sets the quantity of a cart line. The item may be addressed
// by its line ID or by the product ID it holds. Quantity below 1 is rejected;
// removal is an explicit operation.
func (s *Service) UpdateCartItem(userID *uint, sessionID string, itemRef uint, req *UpdateCartItemRequest) (*CartResponse, error) {
	if req.Quantity < 1 {
		return nil, apperror.Validation("quantity must be at least 1")
	}

	if userID != nil {
		s.locks.Lock(*userID)
		defer s.locks.Unlock(*userID)

		item, err := s.resolveUserItem(*userID, itemRef)
		if err != nil {
			return nil, err
		}
		if err := s.db.Model(item).Update("quantity", req.Quantity).Error; err != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", err)
		}
	} else {
		if err := s.updateGuestCartItem(sessionID, itemRef, req.Quantity); err != nil {
			return nil, err
		}
	}

	return s.GetCart(userID, sessionID)
}

// RemoveFromCart removes a cart line, addressed by line ID or product ID
func (s *Service) RemoveFromCart(userID *uint, sessionID string, itemRef uint) (*CartResponse, error) {
	if userID != nil {
		s.locks.Lock(*userID)
		defer s.locks.Unlock(*userID)

		item, err := s.resolveUserItem(*userID, itemRef)
		if err != nil {
			return nil, err
		}
		if err := s.db.Delete(item).Error; err != nil {
			return nil, fmt.Errorf("failed to remove cart item: %w", err)
		}
	} else {
		if err := s.removeGuestCartItem(sessionID, itemRef); err != nil {
			return nil, err
		}
	}

	return s.GetCart(userID, sessionID)
}

// ClearCart removes every line from the cart
func (s *Service) ClearCart(userID *uint, sessionID string) error {
	if userID != nil {
		s.locks.Lock(*userID)
		defer s.locks.Unlock(*userID)
		return s.db.Where("user_id = ?", *userID).Delete(&CartItem{}).Error
	}

	ctx := context.Background()
	return s.redisClient.Del(ctx, guestCartKey(sessionID)).Err()
}

// GetCartItemCount returns the total quantity across cart lines
func (s *Service) GetCartItemCount(userID *uint, sessionID string) (int, error) {
	resp, err := s.GetCart(userID, sessionID)
	if err != nil {
		return 0, err
	}
	return resp.Totals.TotalQuantity, nil
}

// MergeGuestCartToUser folds a guest session cart into the user's cart after
// sign-in, merging quantities on shared products, then drops the session cart.
func (s *Service) MergeGuestCartToUser(userID uint, sessionID string) error {
	if sessionID == "" || s.redisClient == nil {
		return nil
	}

	guestCart, err := s.getGuestCart(sessionID)
	if err != nil || len(guestCart.Items) == 0 {
		return nil
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	for _, guestItem := range guestCart.Items {
		var existing CartItem
		result := s.db.Where("user_id = ? AND product_id = ?", userID, guestItem.ProductID).First(&existing)

		if result.Error == gorm.ErrRecordNotFound {
			newItem := CartItem{
				UserID:    userID,
				ProductID: guestItem.ProductID,
				Name:      guestItem.Name,
				Price:     guestItem.Price,
				Image:     guestItem.Image,
				Quantity:  guestItem.Quantity,
			}
			if err := s.db.Create(&newItem).Error; err != nil {
				return fmt.Errorf("failed to merge cart item: %w", err)
			}
		} else if result.Error == nil {
			existing.Quantity += guestItem.Quantity
			if err := s.db.Save(&existing).Error; err != nil {
				return fmt.Errorf("failed to merge cart item: %w", err)
			}
		} else {
			return fmt.Errorf("failed to merge cart: %w", result.Error)
		}
	}

	ctx := context.Background()
	return s.redisClient.Del(ctx, guestCartKey(sessionID)).Err()
}

// resolveUserItem finds a cart line by line ID first, then by product ID.
func (s *Service) resolveUserItem(userID, itemRef uint) (*CartItem, error) {
	var item CartItem
	err := s.db.Where("user_id = ? AND id = ?", userID, itemRef).First(&item).Error
	if err == nil {
		return &item, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to resolve cart item: %w", err)
	}

	err = s.db.Where("user_id = ? AND product_id = ?", userID, itemRef).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperror.NotFound("item %d not found in cart", itemRef)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cart item: %w", err)
	}
	return &item, nil
}

func (s *Service) addToUserCart(userID uint, req *AddToCartRequest) error {
	var existing CartItem
	result := s.db.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&existing)

	if result.Error == gorm.ErrRecordNotFound {
		newItem := CartItem{
			UserID:    userID,
			ProductID: req.ProductID,
			Name:      req.Name,
			Price:     req.Price,
			Image:     req.Image,
			Quantity:  req.Quantity,
		}
		if err := s.db.Create(&newItem).Error; err != nil {
			return fmt.Errorf("failed to add cart item: %w", err)
		}
		return nil
	}
	if result.Error != nil {
		return fmt.Errorf("failed to check cart item: %w", result.Error)
	}

	existing.Quantity += req.Quantity
	existing.Name = req.Name
	existing.Price = req.Price
	existing.Image = req.Image
	if err := s.db.Save(&existing).Error; err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return nil
}

func (s *Service) addToGuestCart(sessionID string, req *AddToCartRequest) error {
	sessionCart, err := s.getGuestCart(sessionID)
	if err != nil {
		return err
	}

	merged := false
	for i := range sessionCart.Items {
		if sessionCart.Items[i].ProductID == req.ProductID {
			sessionCart.Items[i].Quantity += req.Quantity
			sessionCart.Items[i].Name = req.Name
			sessionCart.Items[i].Price = req.Price
			sessionCart.Items[i].Image = req.Image
			merged = true
			break
		}
	}

	if !merged {
		sessionCart.Items = append(sessionCart.Items, SessionCartItem{
			ProductID: req.ProductID,
			Name:      req.Name,
			Price:     req.Price,
			Image:     req.Image,
			Quantity:  req.Quantity,
			AddedAt:   time.Now().UTC(),
		})
	}

	sessionCart.UpdatedAt = time.Now().UTC()
	return s.saveGuestCart(sessionID, sessionCart)
}

func (s *Service) updateGuestCartItem(sessionID string, productID uint, quantity int) error {
	sessionCart, err := s.getGuestCart(sessionID)
	if err != nil {
		return err
	}

	for i := range sessionCart.Items {
		if sessionCart.Items[i].ProductID == productID {
			sessionCart.Items[i].Quantity = quantity
			sessionCart.UpdatedAt = time.Now().UTC()
			return s.saveGuestCart(sessionID, sessionCart)
		}
	}
	return apperror.NotFound("item %d not found in cart", productID)
}

func (s *Service) removeGuestCartItem(sessionID string, productID uint) error {
	sessionCart, err := s.getGuestCart(sessionID)
	if err != nil {
		return err
	}

	for i := range sessionCart.Items {
		if sessionCart.Items[i].ProductID == productID {
			sessionCart.Items = append(sessionCart.Items[:i], sessionCart.Items[i+1:]...)
			sessionCart.UpdatedAt = time.Now().UTC()
			return s.saveGuestCart(sessionID, sessionCart)
		}
	}
	return apperror.NotFound("item %d not found in cart", productID)
}

func (s *Service) getGuestCart(sessionID string) (*SessionCart, error) {
	if sessionID == "" {
		return nil, apperror.Validation("session ID required for guest cart")
	}

	ctx := context.Background()
	cartData, err := s.redisClient.Get(ctx, guestCartKey(sessionID)).Result()
	if err == redis.Nil {
		now := time.Now().UTC()
		return &SessionCart{
			SessionID: sessionID,
			Items:     []SessionCartItem{},
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read guest cart: %w", err)
	}

	var sessionCart SessionCart
	if err := json.Unmarshal([]byte(cartData), &sessionCart); err != nil {
		return nil, fmt.Errorf("failed to decode guest cart: %w", err)
	}
	return &sessionCart, nil
}

func (s *Service) saveGuestCart(sessionID string, cart *SessionCart) error {
	ctx := context.Background()
	cartData, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode guest cart: %w", err)
	}
	return s.redisClient.Set(ctx, guestCartKey(sessionID), cartData, guestCartTTL).Err()
}

func guestCartKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}

func (s *Service) calculateTotals(items []CartItemResponse) CartTotals {
	var totals CartTotals
	totals.ItemCount = len(items)
	for _, item := range items {
		totals.TotalQuantity += item.Quantity
		totals.Subtotal += item.Price * int64(item.Quantity)
	}
	return totals
}
