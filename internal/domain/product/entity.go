// internal/domain/product/entity.go
package product

import (
	"time"

	"gorm.io/gorm"
)

// Category represents the product category
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryFashion     Category = "fashion"
	CategoryHome        Category = "home"
	CategoryBeauty      Category = "beauty"
	CategoryGrocery     Category = "grocery"
	CategorySports      Category = "sports"
)

// IsValid reports whether the category is one of the known values
func (c Category) IsValid() bool {
	switch c {
	case CategoryElectronics, CategoryFashion, CategoryHome, CategoryBeauty, CategoryGrocery, CategorySports:
		return true
	}
	return false
}

// Product represents the product entity. Stock is written only by the
// inventory ledger; Rating and ReviewCount are derived from the review set
// and written only by the review service.
type Product struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null;size:255" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Category    Category       `gorm:"not null;size:50;index" json:"category"`
	Price       int64          `gorm:"not null" json:"price"` // Price in paise
	Stock       int            `gorm:"not null;default:0" json:"stock"`
	Rating      float64        `gorm:"not null;default:0" json:"rating"` // Mean of reviews, one decimal
	ReviewCount int            `gorm:"not null;default:0" json:"review_count"`
	Image       string         `gorm:"size:500" json:"image"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Reviews []Review `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"reviews,omitempty"`
}

// Review represents a customer review. One review per (product, user) pair,
// enforced at write time by the review service.
type Review struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ProductID uint           `gorm:"not null;index" json:"product_id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Rating    int            `gorm:"not null" json:"rating"` // 1-5
	Comment   string         `gorm:"type:text" json:"comment"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides
func (Product) TableName() string { return "products" }
func (Review) TableName() string  { return "reviews" }

// IsInStock reports whether any stock remains
func (p *Product) IsInStock() bool {
	return p.Stock > 0
}

// GetFormattedPrice returns price as rupees
func (p *Product) GetFormattedPrice() float64 {
	return float64(p.Price) / 100
}
