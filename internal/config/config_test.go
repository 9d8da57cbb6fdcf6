package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, int64(4900), cfg.Shipping.FlatRate)
	assert.Contains(t, cfg.GetRedisAddr(), ":6379")
	assert.Contains(t, cfg.GetDatabaseDSN(), "dbname=storefront_db")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SHIPPING_FLAT_RATE", "9900")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(9900), cfg.Shipping.FlatRate)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejectsShortSecret(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.JWT.Secret = "short"
	assert.Error(t, cfg.Validate())
}
