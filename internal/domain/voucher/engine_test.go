package voucher

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront-backend/internal/config"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&Voucher{}))

	seed := []Voucher{
		{Code: "SAVE10", Type: TypePercentage, Discount: 10, MinOrder: 0, IsActive: true},
		{Code: "FLAT500", Type: TypeFixed, Discount: 500, MinOrder: 5000, IsActive: true},
		{Code: "FREESHIP", Type: TypeShipping, Discount: 0, MinOrder: 0, IsActive: true},
		{Code: "EXPIRED", Type: TypeFixed, Discount: 1000, MinOrder: 0, IsActive: false},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	return NewEngine(db, &config.Config{})
}

func TestApplyUnknownCode(t *testing.T) {
	engine := setupTestEngine(t)

	res, err := engine.Apply("NOPE", 10000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "invalid voucher code", res.Message)
	assert.Equal(t, int64(0), res.Discount)
}

func TestApplyPercentage(t *testing.T) {
	engine := setupTestEngine(t)

	res, err := engine.Apply("SAVE10", 25000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, int64(2500), res.Discount)
	assert.False(t, res.FreeShipping)
}

func TestApplyFixedBelowMinimum(t *testing.T) {
	engine := setupTestEngine(t)

	res, err := engine.Apply("FLAT500", 4000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Message, "minimum order")
	assert.Equal(t, int64(0), res.Discount)
}

func TestApplyFixedAboveMinimum(t *testing.T) {
	engine := setupTestEngine(t)

	res, err := engine.Apply("FLAT500", 6000)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, int64(500), res.Discount)
}

func TestApplyShipping(t *testing.T) {
	engine := setupTestEngine(t)

	res, err := engine.Apply("FREESHIP", 100)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.True(t, res.FreeShipping)
	assert.Equal(t, int64(0), res.Discount)
}

func TestApplyCaseInsensitive(t *testing.T) {
	engine := setupTestEngine(t)

	for _, code := range []string{"save10", "Save10", "  SAVE10  "} {
		res, err := engine.Apply(code, 10000)
		require.NoError(t, err)
		assert.True(t, res.Valid, "code %q should be accepted", code)
	}
}

func TestApplyInactiveVoucher(t *testing.T) {
	engine := setupTestEngine(t)

	res, err := engine.Apply("EXPIRED", 10000)
	require.NoError(t, err)
	assert.False(t, res.Valid)
}
