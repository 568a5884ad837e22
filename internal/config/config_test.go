package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_NAME", "instapay.db")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 3, cfg.PinMaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.PinLockout())
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, 60*time.Second, cfg.CacheTTL())

	tx, daily, monthly := cfg.Limits()
	assert.Equal(t, "5000", tx.String())
	assert.Equal(t, "10000", daily.String())
	assert.Equal(t, "50000", monthly.String())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "instapay")
	t.Setenv("DB_USER", "app")
	t.Setenv("JWKS_URL", "https://idp.example/.well-known/jwks.json")
	t.Setenv("PIN_MAX_ATTEMPTS", "5")
	t.Setenv("IS_PROD", "true")
	t.Setenv("DEFAULT_CURRENCY", "eur")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.PinMaxAttempts)
	assert.True(t, cfg.IsProd)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			AppPort:                 "8080",
			DBDriver:                "sqlite",
			DBName:                  "x.db",
			JWTSecret:               "s",
			PinMaxAttempts:          3,
			PinLockoutMinutes:       30,
			DefaultTransactionLimit: "10",
			DefaultDailyLimit:       "100",
			DefaultMonthlyLimit:     "1000",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "oracle" }, wantErr: true},
		{name: "mysql without host", mutate: func(c *Config) { c.DBDriver = "mysql" }, wantErr: true},
		{name: "no token verification", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.PinMaxAttempts = 0 }, wantErr: true},
		{name: "bad limit", mutate: func(c *Config) { c.DefaultDailyLimit = "-1" }, wantErr: true},
		{name: "garbage limit", mutate: func(c *Config) { c.DefaultMonthlyLimit = "lots" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	c := Config{DBPassword: "pw", StripeSecretKey: "sk_test", JWTSecret: ""}
	r := c.Redact()
	assert.Equal(t, "****", r.DBPassword)
	assert.Equal(t, "****", r.StripeSecretKey)
	assert.Equal(t, "", r.JWTSecret)
	assert.Equal(t, "pw", c.DBPassword)
}
