// internal/domain/cart/entity.go
package cart

import (
	"time"
)

// CartItem represents a line in a signed-in user's cart. Name, Price and
// Image are display snapshots taken when the item was added; the order
// engine re-reads the live catalog at checkout.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_cart_user_product,unique" json:"user_id"`
	ProductID uint      `gorm:"not null;index:idx_cart_user_product,unique" json:"product_id"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Price     int64     `gorm:"not null" json:"price"`
	Image     string    `gorm:"size:500" json:"image"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for CartItem
func (CartItem) TableName() string {
	return "cart_items"
}

// SessionCartItem represents a line in a guest cart held in Redis
type SessionCartItem struct {
	ProductID uint      `json:"product_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Image     string    `json:"image"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// SessionCart represents a guest cart stored in Redis
type SessionCart struct {
	SessionID string            `json:"session_id"`
	Items     []SessionCartItem `json:"items"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// CartTotals represents the derived cart summary. It is never stored; every
// read recomputes it from the lines.
type CartTotals struct {
	ItemCount     int   `json:"item_count"`
	TotalQuantity int   `json:"total_quantity"`
	Subtotal      int64 `json:"subtotal"`
}
