package order

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/voucher"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&product.Product{},
		&inventory.StockMovement{},
		&inventory.StockAlert{},
		&voucher.Voucher{},
		&Order{},
		&OrderItem{},
		&TimelineEntry{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Shipping.FlatRate = 4900
	cfg.Shipping.FreeAboveAmnt = 299900

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	inv := inventory.NewService(db, cfg, log, nil)
	vouchers := voucher.NewEngine(db, cfg)

	seq, err := NewSequence(db)
	require.NoError(t, err)

	return NewService(db, cfg, log, inv, vouchers, seq, nil)
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price int64, stock int) *product.Product {
	t.Helper()
	prod := &product.Product{
		Name:     name,
		Category: product.CategoryElectronics,
		Price:    price,
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, db.Create(prod).Error)
	return prod
}

func seedVoucher(t *testing.T, db *gorm.DB, v voucher.Voucher) {
	t.Helper()
	require.NoError(t, db.Create(&v).Error)
}

func testShipping() Address {
	return Address{
		Name:    "Asha Rao",
		Address: "12 MG Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		Pincode: "560001",
		Phone:   "9876543210",
	}
}

func TestCreateOrderSummaryMath(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Soundbar", 100000, 10)
	seedVoucher(t, db, voucher.Voucher{Code: "SAVE10", Type: voucher.TypePercentage, Discount: 10, IsActive: true})

	ord, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 2}},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCard,
		VoucherCode:   "SAVE10",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(200000), ord.Subtotal)
	assert.Equal(t, int64(4900), ord.Shipping)
	assert.Equal(t, int64(20000), ord.Discount)
	assert.Equal(t, ord.Subtotal+ord.Shipping-ord.Discount, ord.Total)
	assert.Equal(t, OrderStatusPending, ord.Status)
	assert.Equal(t, "ORD-000001", ord.OrderNumber)
	require.Len(t, ord.Timeline, 1)
	assert.Equal(t, OrderStatusPending, ord.Timeline[0].Status)

	var got product.Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 8, got.Stock)
}

func TestCreateOrderSnapshotsLivePrice(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Headphones", 150000, 5)

	ord, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCOD,
	})
	require.NoError(t, err)
	require.Len(t, ord.Items, 1)
	assert.Equal(t, int64(150000), ord.Items[0].Price)

	// later price change never alters the placed order
	require.NoError(t, db.Model(&product.Product{}).Where("id = ?", prod.ID).
		Update("price", 999999).Error)

	reloaded, err := svc.GetOrder(ord.ID, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), reloaded.Items[0].Price)
}

func TestCreateOrderFreeShippingAboveThreshold(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Laptop", 300000, 3)

	ord, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodUPI,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), ord.Shipping)
}

func TestCreateOrderShippingVoucher(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Mouse Pad", 50000, 5)
	seedVoucher(t, db, voucher.Voucher{Code: "FREESHIP", Type: voucher.TypeShipping, IsActive: true})

	ord, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCard,
		VoucherCode:   "FREESHIP",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), ord.Shipping)
	assert.Equal(t, int64(0), ord.Discount)
}

func TestCreateOrderValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Cable", 19900, 5)

	_, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCard,
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	shipping := testShipping()
	shipping.Pincode = ""
	_, err = svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
		Shipping:      shipping,
		PaymentMethod: PaymentMethodCard,
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
		Shipping:      testShipping(),
		PaymentMethod: "crypto",
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCard,
		VoucherCode:   "BOGUS",
	})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestCreateOrderInsufficientStockAbortsAtomically(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	inStock := seedProduct(t, db, "Plenty", 10000, 10)
	scarce := seedProduct(t, db, "Scarce", 10000, 1)

	_, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items: []OrderItemRequest{
			{ProductID: inStock.ID, Quantity: 2},
			{ProductID: scarce.ID, Quantity: 5},
		},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCard,
	})
	require.Error(t, err)
	assert.Equal(t, apperror.KindInsufficientStock, apperror.KindOf(err))

	// nothing committed: no order row, no stock change on either product
	var orderCount int64
	require.NoError(t, db.Model(&Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(0), orderCount)

	var got product.Product
	require.NoError(t, db.First(&got, inStock.ID).Error)
	assert.Equal(t, 10, got.Stock)
	require.NoError(t, db.First(&got, scarce.ID).Error)
	assert.Equal(t, 1, got.Stock)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Tablet", 250000, 5)

	ord, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 3}},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCard,
	})
	require.NoError(t, err)

	cancelled, err := svc.CancelOrder(ord.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCancelled, cancelled.Status)

	var got product.Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 5, got.Stock)

	// re-cancelling is a conflict, not a silent no-op
	_, err = svc.CancelOrder(ord.ID, 1)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	// stock was not restored twice
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 5, got.Stock)
}

func TestCustomerCannotCancelProcessingOrder(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Printer", 120000, 5)

	ord, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCard,
	})
	require.NoError(t, err)

	_, err = svc.Transition(ord.ID, OrderStatusProcessing)
	require.NoError(t, err)

	_, err = svc.CancelOrder(ord.ID, 1)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	// an admin cancel from processing still works and restores stock
	_, err = svc.Transition(ord.ID, OrderStatusCancelled)
	require.NoError(t, err)

	var got product.Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 5, got.Stock)
}

func TestTransitionGraph(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, isValidTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestTransitionAppendsTimeline(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Router", 80000, 5)

	ord, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCard,
	})
	require.NoError(t, err)

	for _, status := range []OrderStatus{OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered} {
		ord, err = svc.Transition(ord.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, ord.Status)
	}

	require.Len(t, ord.Timeline, 4)
	statuses := make([]OrderStatus, len(ord.Timeline))
	for i, entry := range ord.Timeline {
		statuses[i] = entry.Status
	}
	assert.Equal(t, []OrderStatus{
		OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
	}, statuses)
	assert.Equal(t, ord.Status, ord.Timeline[len(ord.Timeline)-1].Status)

	_, err = svc.Transition(ord.ID, OrderStatusCancelled)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
}

func TestOrderOwnershipHidden(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Speaker", 90000, 5)

	ord, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCard,
	})
	require.NoError(t, err)

	_, err = svc.GetOrder(ord.ID, 2, false)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	got, err := svc.GetOrder(ord.ID, 2, true)
	require.NoError(t, err)
	assert.Equal(t, ord.OrderNumber, got.OrderNumber)
}

func TestConcurrentOrdersLastUnit(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Limited Edition", 500000, 1)

	var successes, stockFailures int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := svc.CreateOrder(userID, &CreateOrderRequest{
				Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
				Shipping:      testShipping(),
				PaymentMethod: PaymentMethodCard,
			})
			if err == nil {
				atomic.AddInt32(&successes, 1)
			} else if apperror.KindOf(err) == apperror.KindInsufficientStock {
				atomic.AddInt32(&stockFailures, 1)
			}
		}(uint(i + 1))
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(3), stockFailures)

	var got product.Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 0, got.Stock)
}

func TestOrderNumbersDistinctUnderConcurrency(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Bulk Item", 10000, 100)

	const n = 8
	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			ord, err := svc.CreateOrder(userID, &CreateOrderRequest{
				Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
				Shipping:      testShipping(),
				PaymentMethod: PaymentMethodCOD,
			})
			if err == nil {
				numbers <- ord.OrderNumber
			}
		}(uint(i + 1))
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for num := range numbers {
		assert.False(t, seen[num], "duplicate order number %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
}

func TestSequenceResumesFromPersistedOrders(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	prod := seedProduct(t, db, "Notebook", 30000, 10)

	ord, err := svc.CreateOrder(1, &CreateOrderRequest{
		Items:         []OrderItemRequest{{ProductID: prod.ID, Quantity: 1}},
		Shipping:      testShipping(),
		PaymentMethod: PaymentMethodCard,
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-000001", ord.OrderNumber)

	// a fresh sequence over the same store continues the series
	seq, err := NewSequence(db)
	require.NoError(t, err)
	assert.Equal(t, "ORD-000002", seq.Next())
}
