// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/inventory"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/user"
	"github.com/your-org/storefront-backend/internal/domain/voucher"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migration handles database migrations and seed data
type Migration struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, log *logrus.Logger) *Migration {
	return &Migration{
		db:     db,
		logger: log,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.logger.Info("running database auto-migrations")

	models := []interface{}{
		&user.User{},
		&product.Product{},
		&product.Review{},
		&voucher.Voucher{},
		&cart.CartItem{},
		&inventory.StockMovement{},
		&inventory.StockAlert{},
		&order.Order{},
		&order.OrderItem{},
		&order.TimelineEntry{},
	}

	for _, model := range models {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.logger.Info("database auto-migrations completed")
	return nil
}

// CreateIndexes creates additional indexes beyond what the model tags declare
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_products_category_active ON products(category, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_products_stock ON products(stock)",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_order_timeline_order ON order_timeline(order_id, id)",
		"CREATE INDEX IF NOT EXISTS idx_stock_movements_product_created ON stock_movements(product_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_reviews_product_created ON reviews(product_id, created_at DESC)",
	}

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.logger.WithError(err).Warn("failed to create index")
		}
	}
	return nil
}

// SeedInitialData inserts reference data and a dev admin account
func (m *Migration) SeedInitialData() error {
	if err := m.seedVouchers(); err != nil {
		return fmt.Errorf("failed to seed vouchers: %w", err)
	}
	if err := m.seedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	return nil
}

// seedVouchers creates the standing voucher codes
func (m *Migration) seedVouchers() error {
	vouchers := []voucher.Voucher{
		{Code: "SAVE10", Type: voucher.TypePercentage, Discount: 10, MinOrder: 0, IsActive: true},
		{Code: "FLAT500", Type: voucher.TypeFixed, Discount: 500, MinOrder: 5000, IsActive: true},
		{Code: "FREESHIP", Type: voucher.TypeShipping, Discount: 0, MinOrder: 0, IsActive: true},
	}

	for _, v := range vouchers {
		var existing voucher.Voucher
		result := m.db.Where("code = ?", v.Code).First(&existing)
		if result.Error == gorm.ErrRecordNotFound {
			if err := m.db.Create(&v).Error; err != nil {
				return err
			}
			m.logger.WithField("code", v.Code).Info("seeded voucher")
		}
	}
	return nil
}

// seedAdminUser creates the default admin account if absent
func (m *Migration) seedAdminUser() error {
	var existing user.User
	result := m.db.Where("email = ?", "admin@example.com").First(&existing)
	if result.Error == nil {
		return nil
	}
	if result.Error != gorm.ErrRecordNotFound {
		return result.Error
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("Admin123!"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := user.User{
		Email:     "admin@example.com",
		Password:  string(hashedPassword),
		FirstName: "Admin",
		LastName:  "User",
		IsActive:  true,
		IsAdmin:   true,
	}
	if err := m.db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	m.logger.Info("seeded admin user admin@example.com")
	return nil
}
