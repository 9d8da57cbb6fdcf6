// internal/domain/order/service.go
package order

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/voucher"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"github.com/your-org/storefront-backend/internal/pkg/keymutex"
	"gorm.io/gorm"
)

// Notifier sends order lifecycle emails. Invoked fire-and-forget after the
// order transaction commits; failures are logged only.
type Notifier interface {
	SendOrderConfirmation(to, orderNumber string, total int64) error
}

// Service converts carts into immutable order snapshots and owns the order
// status machine. Stock reservation and order persistence happen in one
// transaction; neither can commit without the other.
type Service struct {
	db        *gorm.DB
	config    *config.Config
	logger    *logrus.Logger
	inventory *inventory.Service
	vouchers  *voucher.Engine
	sequence  *Sequence
	notifier  Notifier
	locks     *keymutex.KeyMutex
}

// NewService creates a new order service. notifier may be nil.
func NewService(db *gorm.DB, cfg *config.Config, log *logrus.Logger, inv *inventory.Service, vouchers *voucher.Engine, seq *Sequence, notifier Notifier) *Service {
	return &Service{
		db:        db,
		config:    cfg,
		logger:    log,
		inventory: inv,
		vouchers:  vouchers,
		sequence:  seq,
		notifier:  notifier,
		locks:     keymutex.New(64),
	}
}

// validTransitions is the order status graph. Cancellation past processing is
// out of band; delivered is terminal.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

func isValidTransition(from, to OrderStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderItemRequest represents one line of a checkout
type OrderItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest represents a checkout request
type CreateOrderRequest struct {
	Items         []OrderItemRequest `json:"items" binding:"required"`
	Shipping      Address            `json:"shipping" binding:"required"`
	PaymentMethod PaymentMethod      `json:"payment_method" binding:"required"`
	VoucherCode   string             `json:"voucher_code"`
	NotifyEmail   string             `json:"-"`
}

// OrderListResponse represents orders with pagination
type OrderListResponse struct {
	Orders     []Order `json:"orders"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	Total      int64   `json:"total"`
	TotalPages int     `json:"total_pages"`
}

func validateShipping(addr *Address) error {
	fields := map[string]string{
		"name":    addr.Name,
		"address": addr.Address,
		"city":    addr.City,
		"state":   addr.State,
		"pincode": addr.Pincode,
		"phone":   addr.Phone,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return apperror.Validation("shipping %s is required", name)
		}
	}
	return nil
}

// CreateOrder places an order. Item prices are snapshotted from the live
// catalog inside the transaction, not taken from the client; stock for every
// line is reserved in the same transaction that persists the order, so an
// insufficient-stock failure on any line aborts the whole checkout.
func (s *Service) CreateOrder(userID uint, req *CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, apperror.Validation("order must contain at least one item")
	}
	seen := make(map[uint]bool, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, apperror.Validation("quantity must be at least 1 for product %d", item.ProductID)
		}
		if seen[item.ProductID] {
			return nil, apperror.Validation("duplicate line for product %d", item.ProductID)
		}
		seen[item.ProductID] = true
	}
	if err := validateShipping(&req.Shipping); err != nil {
		return nil, err
	}
	if !req.PaymentMethod.IsValid() {
		return nil, apperror.Validation("unknown payment method %q", req.PaymentMethod)
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Snapshot prices from the live catalog and compute the subtotal before
	// touching stock, so every validation failure leaves nothing to undo.
	orderItems := make([]OrderItem, 0, len(req.Items))
	var subtotal int64
	for _, item := range req.Items {
		var prod product.Product
		err := tx.Where("id = ? AND is_active = ?", item.ProductID, true).First(&prod).Error
		if err != nil {
			tx.Rollback()
			if err == gorm.ErrRecordNotFound {
				return nil, apperror.NotFound("product %d not found", item.ProductID)
			}
			return nil, fmt.Errorf("failed to load product: %w", err)
		}

		orderItems = append(orderItems, OrderItem{
			ProductID: prod.ID,
			Name:      prod.Name,
			Price:     prod.Price,
			Image:     prod.Image,
			Quantity:  item.Quantity,
		})
		subtotal += prod.Price * int64(item.Quantity)
	}

	shipping := s.config.Shipping.FlatRate
	if subtotal >= s.config.Shipping.FreeAboveAmnt {
		shipping = 0
	}

	var discount int64
	voucherCode := ""
	if req.VoucherCode != "" {
		result, err := s.vouchers.Apply(req.VoucherCode, subtotal)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if !result.Valid {
			tx.Rollback()
			return nil, apperror.Validation("%s", result.Message)
		}
		discount = result.Discount
		if result.FreeShipping {
			shipping = 0
		}
		voucherCode = result.Code
	}

	total := subtotal + shipping - discount
	if total < 0 {
		tx.Rollback()
		return nil, apperror.Validation("discount exceeds order total")
	}

	newOrder := &Order{
		OrderNumber:     s.sequence.Next(),
		UserID:          userID,
		Status:          OrderStatusPending,
		Subtotal:        subtotal,
		Shipping:        shipping,
		Discount:        discount,
		Total:           total,
		ShippingAddress: req.Shipping,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   PaymentStatusPending,
		VoucherCode:     voucherCode,
		Items:           orderItems,
	}

	if err := tx.Create(newOrder).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// Reserve stock for every line in the same transaction. A failed line
	// rolls back the order row that was just written.
	for _, item := range newOrder.Items {
		if err := s.inventory.Reserve(tx, item.ProductID, item.Quantity, newOrder.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	entry := TimelineEntry{OrderID: newOrder.ID, Status: OrderStatusPending}
	if err := tx.Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create order timeline: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}
	newOrder.Timeline = []TimelineEntry{entry}

	if s.notifier != nil && req.NotifyEmail != "" {
		go func(to, number string, amount int64) {
			if err := s.notifier.SendOrderConfirmation(to, number, amount); err != nil {
				s.logger.WithError(err).WithField("order_number", number).
					Warn("failed to send order confirmation")
			}
		}(req.NotifyEmail, newOrder.OrderNumber, newOrder.Total)
	}

	return newOrder, nil
}

// GetOrder retrieves an order with items and timeline. Non-admin callers only
// see their own orders.
func (s *Service) GetOrder(orderID uint, userID uint, isAdmin bool) (*Order, error) {
	var ord Order
	query := s.db.Preload("Items").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("id = ?", orderID)
	if !isAdmin {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.First(&ord).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &ord, nil
}

// GetOrderByNumber retrieves an order by its public order number
func (s *Service) GetOrderByNumber(orderNumber string, userID uint, isAdmin bool) (*Order, error) {
	var ord Order
	query := s.db.Preload("Items").
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("order_number = ?", orderNumber)
	if !isAdmin {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.First(&ord).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("order %s not found", orderNumber)
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &ord, nil
}

// GetUserOrders retrieves the caller's orders, newest first
func (s *Service) GetUserOrders(userID uint, page, limit int) (*OrderListResponse, error) {
	return s.listOrders(s.db.Where("user_id = ?", userID), page, limit)
}

// GetAllOrders retrieves all orders (admin action)
func (s *Service) GetAllOrders(status OrderStatus, page, limit int) (*OrderListResponse, error) {
	query := s.db
	if status != "" {
		query = query.Where("status = ?", status)
	}
	return s.listOrders(query, page, limit)
}

func (s *Service) listOrders(query *gorm.DB, page, limit int) (*OrderListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := query.Model(&Order{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []Order
	offset := (page - 1) * limit
	err := query.Preload("Items").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	return &OrderListResponse{
		Orders:     orders,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

// Transition moves an order to a new status (admin action). Cancellations go
// through the cancel path so reserved stock is released.
func (s *Service) Transition(orderID uint, newStatus OrderStatus) (*Order, error) {
	if newStatus == OrderStatusCancelled {
		return s.cancel(orderID, nil)
	}

	s.locks.Lock(orderID)
	defer s.locks.Unlock(orderID)

	var ord Order
	if err := s.db.Where("id = ?", orderID).First(&ord).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}

	if !isValidTransition(ord.Status, newStatus) {
		return nil, apperror.Conflict("cannot transition order from %s to %s", ord.Status, newStatus)
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Model(&Order{}).Where("id = ?", orderID).
		Update("status", newStatus).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	entry := TimelineEntry{OrderID: orderID, Status: newStatus}
	if err := tx.Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to append order timeline: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}

	return s.GetOrder(orderID, 0, true)
}

// CancelOrder cancels the caller's own order. Customers may cancel while the
// order is still pending; later stages need an admin.
func (s *Service) CancelOrder(orderID, userID uint) (*Order, error) {
	return s.cancel(orderID, &userID)
}

// cancel moves an order to cancelled and releases exactly the quantities the
// order reserved at creation, taken from the order's own item snapshot.
func (s *Service) cancel(orderID uint, userID *uint) (*Order, error) {
	s.locks.Lock(orderID)
	defer s.locks.Unlock(orderID)

	var ord Order
	query := s.db.Preload("Items").Where("id = ?", orderID)
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}
	if err := query.First(&ord).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperror.NotFound("order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}

	if userID != nil && ord.Status != OrderStatusPending {
		return nil, apperror.Conflict("cannot cancel order in %s status", ord.Status)
	}
	if !ord.CanBeCancelled() {
		return nil, apperror.Conflict("cannot cancel order in %s status", ord.Status)
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, item := range ord.Items {
		if err := s.inventory.Release(tx, item.ProductID, item.Quantity, ord.ID); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Model(&Order{}).Where("id = ?", orderID).
		Update("status", OrderStatusCancelled).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}

	entry := TimelineEntry{OrderID: orderID, Status: OrderStatusCancelled}
	if err := tx.Create(&entry).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to append order timeline: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	return s.GetOrder(orderID, 0, true)
}
