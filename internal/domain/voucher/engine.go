// internal/domain/voucher/engine.go
package voucher

import (
	"fmt"
	"strings"

	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
)

// Engine evaluates voucher codes against cart totals
type Engine struct {
	db     *gorm.DB
	config *config.Config
}

// NewEngine creates a new voucher engine
func NewEngine(db *gorm.DB, cfg *config.Config) *Engine {
	return &Engine{
		db:     db,
		config: cfg,
	}
}

// Apply evaluates a voucher code against a cart subtotal. Rejections are
// reported through Result, not through the error return; errors are reserved
// for storage failures.
func (e *Engine) Apply(code string, cartTotal int64) (*Result, error) {
	normalized := strings.TrimSpace(strings.ToLower(code))
	if normalized == "" {
		return &Result{Valid: false, Message: "invalid voucher code"}, nil
	}

	var v Voucher
	err := e.db.Where("LOWER(code) = ? AND is_active = ?", normalized, true).First(&v).Error
	if err == gorm.ErrRecordNotFound {
		return &Result{Valid: false, Message: "invalid voucher code"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up voucher: %w", err)
	}

	if cartTotal < v.MinOrder {
		return &Result{
			Valid:   false,
			Message: fmt.Sprintf("minimum order of %d required for %s", v.MinOrder, v.Code),
		}, nil
	}

	result := &Result{Valid: true, Code: v.Code}
	switch v.Type {
	case TypePercentage:
		result.Discount = int64(float64(cartTotal) * float64(v.Discount) / 100)
	case TypeFixed:
		result.Discount = v.Discount
		if result.Discount > cartTotal {
			result.Discount = cartTotal
		}
	case TypeShipping:
		result.FreeShipping = true
	default:
		return &Result{Valid: false, Message: "invalid voucher code"}, nil
	}

	return result, nil
}

// CreateVoucher creates a voucher (admin action)
func (e *Engine) CreateVoucher(v *Voucher) error {
	v.Code = strings.ToUpper(strings.TrimSpace(v.Code))
	if err := e.db.Create(v).Error; err != nil {
		return fmt.Errorf("failed to create voucher: %w", err)
	}
	return nil
}

// ListVouchers returns all active vouchers (admin action)
func (e *Engine) ListVouchers() ([]Voucher, error) {
	var vouchers []Voucher
	if err := e.db.Where("is_active = ?", true).Order("code ASC").Find(&vouchers).Error; err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	return vouchers, nil
}
