package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-vat/internal/tax"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/vat_test",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)

	require.True(t, cfg.TaxEnabled)
	require.Equal(t, []string{"DE"}, cfg.TaxEnabledCountries)
	require.Equal(t, tax.DisplayDetailed, cfg.BundleDisplay)
	require.Equal(t, time.Hour, cfg.RateCacheTTL)
	require.Equal(t, "DE", cfg.BaseCountry)
	require.Equal(t, 720*time.Hour, cfg.RenewalPeriod)
	require.Equal(t, int64(30), cfg.ProductMutationRateLimit)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["TAX_OVERRIDES_ENABLED"] = "false"
	env["TAX_ENABLED_COUNTRIES"] = "DE, AT ,CH"
	env["TAX_BUNDLE_DISPLAY"] = "simple"
	env["TAX_RATE_CACHE_TTL"] = "5m"
	env["PORT"] = "9090"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)

	require.False(t, cfg.TaxEnabled)
	require.Equal(t, []string{"DE", "AT", "CH"}, cfg.TaxEnabledCountries)
	require.Equal(t, tax.DisplaySimple, cfg.BundleDisplay)
	require.Equal(t, 5*time.Minute, cfg.RateCacheTTL)
	require.Equal(t, ":9090", cfg.HTTPAddr())

	taxCfg := cfg.TaxConfig()
	require.False(t, taxCfg.Enabled)
	require.True(t, taxCfg.CountryEnabled("at"))
	require.False(t, taxCfg.CountryEnabled("FR"))
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := LoadForTests(env)
	require.Error(t, err)
}
