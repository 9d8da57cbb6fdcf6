// internal/domain/inventory/entity.go
package inventory

import (
	"time"
)

// MovementType represents the type of stock movement
type MovementType string

const (
	MovementTypeAdd      MovementType = "add"
	MovementTypeSubtract MovementType = "subtract"
	MovementTypeSet      MovementType = "set"
	MovementTypeReserve  MovementType = "reserve"
	MovementTypeRelease  MovementType = "release"
)

// StockMovement is an append-only ledger entry recording a stock change on a
// product. The live quantity is the Stock column on the product row; the
// ledger explains how it got there.
type StockMovement struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ProductID     uint         `gorm:"not null;index" json:"product_id"`
	MovementType  MovementType `gorm:"not null;size:20" json:"movement_type"`
	Quantity      int          `gorm:"not null" json:"quantity"`
	PreviousStock int          `gorm:"not null" json:"previous_stock"`
	NewStock      int          `gorm:"not null" json:"new_stock"`
	ReferenceType string       `gorm:"size:50" json:"reference_type,omitempty"`
	ReferenceID   uint         `json:"reference_id,omitempty"`
	CreatedBy     uint         `gorm:"index" json:"created_by"`
	CreatedAt     time.Time    `json:"created_at"`
}

// TableName returns the table name for StockMovement
func (StockMovement) TableName() string {
	return "stock_movements"
}

// StockAlert represents a restock notification subscription. Notified flips
// once when the product comes back in stock; re-subscribing resets it.
type StockAlert struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"not null;index:idx_alert_product_user,unique" json:"product_id"`
	UserID    uint      `gorm:"not null;index:idx_alert_product_user,unique" json:"user_id"`
	Email     string    `gorm:"not null;size:255" json:"email"`
	Notified  bool      `gorm:"default:false" json:"notified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for StockAlert
func (StockAlert) TableName() string {
	return "stock_alerts"
}
