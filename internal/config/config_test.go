package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("PRICE_CACHE_TTL", "")
	t.Setenv("DATABASE_URL_DEV", "sqlite://dev.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite://dev.db", cfg.DatabaseURL)
	assert.Equal(t, time.Minute, cfg.PriceCacheTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_ProductionValues(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL_PROD", "postgres://prod")
	t.Setenv("PORT", "9000")
	t.Setenv("PRICE_CACHE_TTL", "5m")
	t.Setenv("RECONCILE_SCHEDULE", " 0 */15 * * * * ")
	t.Setenv("ALLOW_CROSS_SITE_DEV", "TRUE")
	t.Setenv("ADMIN_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres://prod", cfg.DatabaseURL)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.PriceCacheTTL)
	assert.Equal(t, "0 */15 * * * *", cfg.ReconcileSchedule)
	assert.True(t, cfg.AllowCrossSiteDev)
	assert.Equal(t, "secret", cfg.AdminKey)
}
