package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{"JWT_SECRET": "secret", "STORE_DRIVER": "", "APP_ENV": "", "STORE_SEED": "", "TAX_RATE_BPS": ""})
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.True(t, cfg.StoreSeed)
	require.Equal(t, 1000, cfg.TaxRateBps)
	require.Equal(t, "IDR", cfg.CurrencyCode)
	require.Equal(t, 2*time.Second, cfg.PaymentDelay)
	require.Equal(t, 12*time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.False(t, cfg.SMTPEnabled())
}

func TestLoadValidation(t *testing.T) {
	_, err := LoadForTests(map[string]string{"JWT_SECRET": ""})
	require.ErrorContains(t, err, "JWT_SECRET")

	_, err = LoadForTests(map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "postgres", "DATABASE_URL": ""})
	require.ErrorContains(t, err, "DATABASE_URL")

	_, err = LoadForTests(map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "mongo", "MONGO_URL": ""})
	require.ErrorContains(t, err, "MONGO_URL")

	_, err = LoadForTests(map[string]string{"JWT_SECRET": "s", "STORE_DRIVER": "", "TAX_RATE_BPS": "12000"})
	require.ErrorContains(t, err, "TAX_RATE_BPS")
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"JWT_SECRET":       "s",
		"STORE_DRIVER":     "file",
		"STORE_SEED":       "false",
		"TAX_RATE_BPS":     "1100",
		"SMTP_HOST":        "smtp.example.com",
		"SMTP_FROM":        "kasir@example.com",
		"LOGIN_RATE_LIMIT": "3",
		"PORT":             ":9090",
	})
	require.NoError(t, err)
	require.Equal(t, "file", cfg.StoreDriver)
	require.False(t, cfg.StoreSeed)
	require.Equal(t, 1100, cfg.TaxRateBps)
	require.Equal(t, 3, cfg.LoginRateLimit)
	require.True(t, cfg.SMTPEnabled())
	require.Equal(t, ":9090", cfg.HTTPAddr())
}
