package inventory

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeNotifier struct {
	sent int32
}

func (f *fakeNotifier) SendRestockAlert(to, productName string) error {
	atomic.AddInt32(&f.sent, 1)
	return nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&product.Product{}, &StockMovement{}, &StockAlert{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, notifier Notifier) *Service {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewService(db, &config.Config{}, log, notifier)
}

func seedProduct(t *testing.T, db *gorm.DB, name string, stock int) *product.Product {
	t.Helper()
	prod := &product.Product{
		Name:     name,
		Category: product.CategoryGrocery,
		Price:    19900,
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, db.Create(prod).Error)
	return prod
}

func TestAdjustModes(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, nil)
	prod := seedProduct(t, db, "Olive Oil", 10)

	got, err := svc.Adjust(prod.ID, 1, &AdjustRequest{Quantity: 5, Mode: "add"})
	require.NoError(t, err)
	assert.Equal(t, 15, got.Stock)

	got, err = svc.Adjust(prod.ID, 1, &AdjustRequest{Quantity: 3, Mode: "subtract"})
	require.NoError(t, err)
	assert.Equal(t, 12, got.Stock)

	got, err = svc.Adjust(prod.ID, 1, &AdjustRequest{Quantity: 7, Mode: "set"})
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)
}

func TestAdjustSubtractClampsAtZero(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, nil)
	prod := seedProduct(t, db, "Pasta", 4)

	got, err := svc.Adjust(prod.ID, 1, &AdjustRequest{Quantity: 10, Mode: "subtract"})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestAdjustValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, nil)
	prod := seedProduct(t, db, "Rice", 4)

	_, err := svc.Adjust(prod.ID, 1, &AdjustRequest{Quantity: 5, Mode: "multiply"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.Adjust(prod.ID, 1, &AdjustRequest{Quantity: -5, Mode: "add"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.Adjust(999, 1, &AdjustRequest{Quantity: 5, Mode: "add"})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestAdjustRecordsMovements(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, nil)
	prod := seedProduct(t, db, "Coffee", 10)

	_, err := svc.Adjust(prod.ID, 1, &AdjustRequest{Quantity: 5, Mode: "add"})
	require.NoError(t, err)

	movements, err := svc.GetMovements(prod.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, MovementTypeAdd, movements[0].MovementType)
	assert.Equal(t, 10, movements[0].PreviousStock)
	assert.Equal(t, 15, movements[0].NewStock)
}

func TestLowStockBoundaries(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, nil)

	seedProduct(t, db, "Out Of Stock", 0)
	atThreshold := seedProduct(t, db, "At Threshold", 10)
	low := seedProduct(t, db, "Very Low", 3)
	seedProduct(t, db, "Above Threshold", 11)

	items, err := svc.LowStock(10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, low.ID, items[0].ProductID)
	assert.Equal(t, atThreshold.ID, items[1].ProductID)
}

func TestLowStockRejectsBadThreshold(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, nil)

	_, err := svc.LowStock(0)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestReserveInsufficientStock(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, nil)
	prod := seedProduct(t, db, "Honey", 2)

	tx := db.Begin()
	err := svc.Reserve(tx, prod.ID, 3, 1)
	tx.Rollback()

	assert.Equal(t, apperror.KindInsufficientStock, apperror.KindOf(err))

	var got product.Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 2, got.Stock)
}

func TestReserveAndReleaseRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, nil)
	prod := seedProduct(t, db, "Tea", 5)

	tx := db.Begin()
	require.NoError(t, svc.Reserve(tx, prod.ID, 3, 1))
	require.NoError(t, tx.Commit().Error)

	var got product.Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 2, got.Stock)

	tx = db.Begin()
	require.NoError(t, svc.Release(tx, prod.ID, 3, 1))
	require.NoError(t, tx.Commit().Error)

	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 5, got.Stock)
}

func TestConcurrentReserveLastUnit(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, nil)
	prod := seedProduct(t, db, "Limited Drop", 1)

	var successes, failures int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := db.Begin()
			if err := svc.Reserve(tx, prod.ID, 1, 1); err != nil {
				tx.Rollback()
				atomic.AddInt32(&failures, 1)
				return
			}
			tx.Commit()
			atomic.AddInt32(&successes, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(4), failures)

	var got product.Product
	require.NoError(t, db.First(&got, prod.ID).Error)
	assert.Equal(t, 0, got.Stock)
}

func TestSubscribeRequiresOutOfStock(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, nil)
	inStock := seedProduct(t, db, "Available", 5)
	outOfStock := seedProduct(t, db, "Sold Out", 0)

	_, err := svc.Subscribe(1, inStock.ID, "user@example.com")
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	alert, err := svc.Subscribe(1, outOfStock.ID, "user@example.com")
	require.NoError(t, err)
	assert.False(t, alert.Notified)
}

func TestRestockFlipsAlertsOnce(t *testing.T) {
	db := setupTestDB(t)
	notifier := &fakeNotifier{}
	svc := newTestService(t, db, notifier)
	prod := seedProduct(t, db, "Back Soon", 0)

	_, err := svc.Subscribe(1, prod.ID, "a@example.com")
	require.NoError(t, err)
	_, err = svc.Subscribe(2, prod.ID, "b@example.com")
	require.NoError(t, err)

	_, err = svc.Adjust(prod.ID, 1, &AdjustRequest{Quantity: 10, Mode: "add"})
	require.NoError(t, err)

	var alerts []StockAlert
	require.NoError(t, db.Where("product_id = ?", prod.ID).Find(&alerts).Error)
	for _, a := range alerts {
		assert.True(t, a.Notified)
	}

	// a second restock does not notify again
	_, err = svc.Adjust(prod.ID, 1, &AdjustRequest{Quantity: 0, Mode: "set"})
	require.NoError(t, err)
	_, err = svc.Adjust(prod.ID, 1, &AdjustRequest{Quantity: 5, Mode: "add"})
	require.NoError(t, err)

	var pending int64
	require.NoError(t, db.Model(&StockAlert{}).
		Where("product_id = ? AND notified = ?", prod.ID, false).Count(&pending).Error)
	assert.Equal(t, int64(0), pending)
}
