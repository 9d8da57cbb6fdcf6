// internal/domain/voucher/entity.go
package voucher

import (
	"time"

	"gorm.io/gorm"
)

// VoucherType represents how a voucher's discount is applied
type VoucherType string

const (
	TypePercentage VoucherType = "percentage"
	TypeFixed      VoucherType = "fixed"
	TypeShipping   VoucherType = "shipping"
)

// Voucher represents a discount code. Discount is a percentage for the
// percentage type and an amount in paise for the fixed type; shipping
// vouchers ignore it.
type Voucher struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Code      string         `gorm:"uniqueIndex;not null;size:50" json:"code"`
	Type      VoucherType    `gorm:"not null;size:20" json:"type"`
	Discount  int64          `gorm:"not null" json:"discount"`
	MinOrder  int64          `gorm:"not null;default:0" json:"min_order"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName returns the table name for Voucher
func (Voucher) TableName() string {
	return "vouchers"
}

// Result represents the outcome of applying a voucher to a cart total
type Result struct {
	Valid        bool   `json:"valid"`
	Code         string `json:"code,omitempty"`
	Discount     int64  `json:"discount"`
	FreeShipping bool   `json:"free_shipping"`
	Message      string `json:"message,omitempty"`
}
