// internal/domain/inventory/service.go
package inventory

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/keymutex"
	"gorm.io/gorm"
)

// Notifier sends restock notifications. Satisfied by the email service;
// failures are logged and never surfaced to the stock path.
type Notifier interface {
	SendRestockAlert(to, productName string) error
}

// Service owns all stock writes. Product.Stock is only ever changed through
// this ledger or through the order engine's reserve/release helpers, both of
// which record a movement row.
type Service struct {
	db       *gorm.DB
	config   *config.Config
	logger   *logrus.Logger
	notifier Notifier
	locks    *keymutex.KeyMutex
}

// NewService creates a new inventory service. notifier may be nil.
func NewService(db *gorm.DB, cfg *config.Config, log *logrus.Logger, notifier Notifier) *Service {
	return &Service{
		db:       db,
		config:   cfg,
		logger:   log,
		notifier: notifier,
		locks:    keymutex.New(64),
	}
}

// AdjustRequest represents a manual stock adjustment (admin action)
type AdjustRequest struct {
	Quantity int    `json:"quantity" binding:"required"`
	Mode     string `json:"mode" binding:"required,oneof=add subtract set"`
}

// LowStockItem represents a product at or below the low stock threshold
type LowStockItem struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
}

// Adjust applies a manual stock change. Subtract clamps at zero rather than
// failing; set and add reject negative inputs.
func (s *Service) Adjust(productID uint, adjustedBy uint, req *AdjustRequest) (*product.Product, error) {
	mode := MovementType(strings.ToLower(req.Mode))
	switch mode {
	case MovementTypeAdd, MovementTypeSet:
		if req.Quantity < 0 {
			return nil, apperror.Validation("quantity cannot be negative for %s", mode)
		}
	case MovementTypeSubtract:
		if req.Quantity < 0 {
			return nil, apperror.Validation("quantity cannot be negative for subtract")
		}
	default:
		return nil, apperror.Validation("mode must be add, subtract or set")
	}

	s.locks.Lock(productID)
	defer s.locks.Unlock(productID)

	var prod product.Product
	if err := s.db.Where("id = ?", productID).First(&prod).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}

	previous := prod.Stock
	newStock := previous
	switch mode {
	case MovementTypeAdd:
		newStock = previous + req.Quantity
	case MovementTypeSubtract:
		newStock = previous - req.Quantity
		if newStock < 0 {
			newStock = 0
		}
	case MovementTypeSet:
		newStock = req.Quantity
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Model(&product.Product{}).Where("id = ?", productID).
		Update("stock", newStock).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	movement := StockMovement{
		ProductID:     productID,
		MovementType:  mode,
		Quantity:      req.Quantity,
		PreviousStock: previous,
		NewStock:      newStock,
		ReferenceType: "adjustment",
		CreatedBy:     adjustedBy,
	}
	if err := tx.Create(&movement).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to record stock movement: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}

	if previous == 0 && newStock > 0 {
		s.notifyRestock(productID, prod.Name)
	}

	prod.Stock = newStock
	return &prod, nil
}

// LowStock lists active products whose stock is above zero but at or below
// the threshold, lowest stock first. Out-of-stock products are a different
// problem and are excluded.
func (s *Service) LowStock(threshold int) ([]LowStockItem, error) {
	if threshold <= 0 {
		return nil, apperror.Validation("threshold must be positive")
	}

	var items []LowStockItem
	err := s.db.Model(&product.Product{}).
		Select("id as product_id, name, stock").
		Where("is_active = ? AND stock > 0 AND stock <= ?", true, threshold).
		Order("stock ASC").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	return items, nil
}

// Reserve decrements stock for an order line inside the caller's transaction.
// The conditional update only succeeds when enough stock remains, so two
// concurrent orders can never both claim the last unit.
func (s *Service) Reserve(tx *gorm.DB, productID uint, quantity int, orderRef uint) error {
	if quantity <= 0 {
		return apperror.Validation("reserve quantity must be positive")
	}

	var prod product.Product
	if err := tx.Where("id = ?", productID).First(&prod).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperror.NotFound("product %d not found", productID)
		}
		return fmt.Errorf("failed to retrieve product: %w", err)
	}

	result := tx.Model(&product.Product{}).
		Where("id = ? AND stock >= ?", productID, quantity).
		Update("stock", gorm.Expr("stock - ?", quantity))
	if result.Error != nil {
		return fmt.Errorf("failed to reserve stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.InsufficientStock("insufficient stock for %s: have %d, want %d",
			prod.Name, prod.Stock, quantity)
	}

	movement := StockMovement{
		ProductID:     productID,
		MovementType:  MovementTypeReserve,
		Quantity:      quantity,
		PreviousStock: prod.Stock,
		NewStock:      prod.Stock - quantity,
		ReferenceType: "order",
		ReferenceID:   orderRef,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return fmt.Errorf("failed to record reservation: %w", err)
	}
	return nil
}

// Release returns reserved stock to a product inside the caller's
// transaction, mirroring an earlier Reserve.
func (s *Service) Release(tx *gorm.DB, productID uint, quantity int, orderRef uint) error {
	if quantity <= 0 {
		return apperror.Validation("release quantity must be positive")
	}

	var prod product.Product
	if err := tx.Where("id = ?", productID).First(&prod).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperror.NotFound("product %d not found", productID)
		}
		return fmt.Errorf("failed to retrieve product: %w", err)
	}

	result := tx.Model(&product.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", quantity))
	if result.Error != nil {
		return fmt.Errorf("failed to release stock: %w", result.Error)
	}

	movement := StockMovement{
		ProductID:     productID,
		MovementType:  MovementTypeRelease,
		Quantity:      quantity,
		PreviousStock: prod.Stock,
		NewStock:      prod.Stock + quantity,
		ReferenceType: "order",
		ReferenceID:   orderRef,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return fmt.Errorf("failed to record release: %w", err)
	}
	return nil
}

// Subscribe registers a restock alert for an out-of-stock product. Subscribing
// again after being notified re-arms the alert.
func (s *Service) Subscribe(userID, productID uint, email string) (*StockAlert, error) {
	if email == "" {
		return nil, apperror.Validation("email is required")
	}

	var prod product.Product
	if err := s.db.Where("id = ?", productID).First(&prod).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to retrieve product: %w", err)
	}
	if prod.Stock > 0 {
		return nil, apperror.Conflict("product %s is in stock", prod.Name)
	}

	var alert StockAlert
	err := s.db.Where("product_id = ? AND user_id = ?", productID, userID).First(&alert).Error
	if err == gorm.ErrRecordNotFound {
		alert = StockAlert{ProductID: productID, UserID: userID, Email: email}
		if err := s.db.Create(&alert).Error; err != nil {
			return nil, fmt.Errorf("failed to create stock alert: %w", err)
		}
		return &alert, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check stock alert: %w", err)
	}

	alert.Email = email
	alert.Notified = false
	if err := s.db.Save(&alert).Error; err != nil {
		return nil, fmt.Errorf("failed to update stock alert: %w", err)
	}
	return &alert, nil
}

// GetMovements returns the stock ledger for a product, newest first
func (s *Service) GetMovements(productID uint, limit int) ([]StockMovement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var movements []StockMovement
	err := s.db.Where("product_id = ?", productID).
		Order("created_at DESC").Limit(limit).Find(&movements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve stock movements: %w", err)
	}
	return movements, nil
}

// notifyRestock flips pending alerts and emails subscribers. Notification is
// fire-and-forget; the stock change has already committed.
func (s *Service) notifyRestock(productID uint, productName string) {
	var alerts []StockAlert
	err := s.db.Where("product_id = ? AND notified = ?", productID, false).Find(&alerts).Error
	if err != nil {
		s.logger.WithError(err).WithField("product_id", productID).
			Warn("failed to load restock alerts")
		return
	}
	if len(alerts) == 0 {
		return
	}

	if err := s.db.Model(&StockAlert{}).
		Where("product_id = ? AND notified = ?", productID, false).
		Update("notified", true).Error; err != nil {
		s.logger.WithError(err).WithField("product_id", productID).
			Warn("failed to mark restock alerts notified")
		return
	}

	if s.notifier == nil {
		return
	}
	for _, alert := range alerts {
		go func(to string) {
			if err := s.notifier.SendRestockAlert(to, productName); err != nil {
				s.logger.WithError(err).WithField("product_id", productID).
					Warn("failed to send restock alert")
			}
		}(alert.Email)
	}
}
