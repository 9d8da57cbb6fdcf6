// internal/domain/order/entity.go
package order

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus represents the order status
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentMethod represents the accepted payment methods
type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodUPI  PaymentMethod = "upi"
)

// IsValid reports whether the payment method is recognized
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodUPI:
		return true
	}
	return false
}

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Address represents the shipping address block. All fields are required at
// order creation.
type Address struct {
	Name    string `gorm:"size:100" json:"name"`
	Address string `gorm:"size:255" json:"address"`
	City    string `gorm:"size:50" json:"city"`
	State   string `gorm:"size:50" json:"state"`
	Pincode string `gorm:"size:10" json:"pincode"`
	Phone   string `gorm:"size:20" json:"phone"`
}

// Order is the immutable financial snapshot of a checkout. Only Status and
// the timeline change after creation; item prices, the summary and the
// address never do.
type Order struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	OrderNumber string      `gorm:"uniqueIndex;not null;size:20" json:"order_number"`
	UserID      uint        `gorm:"not null;index" json:"user_id"`
	Status      OrderStatus `gorm:"not null;default:'pending'" json:"status"`

	Subtotal int64 `gorm:"not null" json:"subtotal"`
	Shipping int64 `gorm:"not null;default:0" json:"shipping"`
	Discount int64 `gorm:"not null;default:0" json:"discount"`
	Total    int64 `gorm:"not null" json:"total"`

	ShippingAddress Address `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`

	PaymentMethod        PaymentMethod `gorm:"not null;size:20" json:"payment_method"`
	PaymentStatus        PaymentStatus `gorm:"not null;default:'pending'" json:"payment_status"`
	PaymentTransactionID string        `gorm:"size:100" json:"payment_transaction_id,omitempty"`

	VoucherCode string `gorm:"size:50" json:"voucher_code,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Items    []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	Timeline []TimelineEntry `gorm:"foreignKey:OrderID" json:"timeline"`
}

// TableName returns the table name for Order
func (Order) TableName() string {
	return "orders"
}

// OrderItem is a priced line copied from the catalog at checkout time. It is
// a snapshot, not a live reference; later product changes never alter it.
type OrderItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	Name      string    `gorm:"not null;size:255" json:"name"`
	Price     int64     `gorm:"not null" json:"price"`
	Image     string    `gorm:"size:500" json:"image,omitempty"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for OrderItem
func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal returns price times quantity for the line
func (oi OrderItem) LineTotal() int64 {
	return oi.Price * int64(oi.Quantity)
}

// TimelineEntry records a status change. The timeline is append-only and its
// last entry always matches the order's current status.
type TimelineEntry struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uint        `gorm:"not null;index" json:"order_id"`
	Status    OrderStatus `gorm:"not null;size:20" json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// TableName returns the table name for TimelineEntry
func (TimelineEntry) TableName() string {
	return "order_timeline"
}

// CanBeCancelled reports whether the order is still cancellable. Once
// shipped, cancellation is out of band.
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusProcessing
}
