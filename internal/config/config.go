package config

import (
	"errors"  // For validation errors
	"strings" // For string manipulation
	"time"    // For durations

	"github.com/joho/godotenv"      // For loading .env files
	"github.com/shopspring/decimal" // Money amounts
	"github.com/spf13/viper"        // Environment binding with defaults
)

// Config holds the application configuration
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`  // Application port
	IsProd   bool   `mapstructure:"IS_PROD"`   // Is production environment
	LogLevel string `mapstructure:"LOG_LEVEL"` // Logrus level name

	DBDriver   string `mapstructure:"DB_DRIVER"`   // mysql, postgres or sqlite
	DBUser     string `mapstructure:"DB_USER"`     // Database user
	DBPassword string `mapstructure:"DB_PASSWORD"` // Database password
	DBHost     string `mapstructure:"DB_HOST"`     // Database host
	DBPort     string `mapstructure:"DB_PORT"`     // Database port
	DBName     string `mapstructure:"DB_NAME"`     // Database name (file path for sqlite)
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`  // Postgres sslmode

	JWTSecret   string `mapstructure:"JWT_SECRET"`   // HS256 secret, used when no JWKS URL is set
	JWKSURL     string `mapstructure:"JWKS_URL"`     // Identity provider JWKS endpoint
	JWTIssuer   string `mapstructure:"JWT_ISSUER"`   // Expected iss claim, optional
	JWTAudience string `mapstructure:"JWT_AUDIENCE"` // Expected aud claim, optional

	RedisAddr       string `mapstructure:"REDIS_ADDR"`        // Redis server address
	RedisPass       string `mapstructure:"REDIS_PASS"`        // Redis password
	RedisDB         int    `mapstructure:"REDIS_DB"`          // Redis database number
	CacheTTLSeconds int    `mapstructure:"CACHE_TTL_SECONDS"` // Read cache TTL

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`     // Stripe API key
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"` // Stripe webhook signing secret
	CheckoutSuccessURL  string `mapstructure:"CHECKOUT_SUCCESS_URL"`  // Redirect after payment
	CheckoutCancelURL   string `mapstructure:"CHECKOUT_CANCEL_URL"`   // Redirect on cancel

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`    // Broker URL, events disabled when empty
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"` // Topic exchange for wallet events

	SendGridAPIKey string `mapstructure:"SENDGRID_API_KEY"` // Email disabled when empty
	EmailSender    string `mapstructure:"EMAIL_SENDER"`     // From address

	PinMaxAttempts    int    `mapstructure:"PIN_MAX_ATTEMPTS"`    // Failures before lockout
	PinLockoutMinutes int    `mapstructure:"PIN_LOCKOUT_MINUTES"` // Lockout window
	DefaultCurrency   string `mapstructure:"DEFAULT_CURRENCY"`    // Currency for new wallets

	DefaultTransactionLimit string `mapstructure:"DEFAULT_TRANSACTION_LIMIT"` // Per-operation cap
	DefaultDailyLimit       string `mapstructure:"DEFAULT_DAILY_LIMIT"`       // Daily debit cap
	DefaultMonthlyLimit     string `mapstructure:"DEFAULT_MONTHLY_LIMIT"`     // Monthly debit cap

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`   // Requests per second per client, 0 disables
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"` // Burst size

	NotificationRetentionDays int    `mapstructure:"NOTIFICATION_RETENTION_DAYS"` // Read notifications older than this are purged
	SchedulerUnlockSpec       string `mapstructure:"SCHEDULER_UNLOCK_SPEC"`       // Cron spec for the unlock job
	SchedulerPurgeSpec        string `mapstructure:"SCHEDULER_PURGE_SPEC"`        // Cron spec for the purge job
}

var keys = []string{
	"APP_PORT", "IS_PROD", "LOG_LEVEL",
	"DB_DRIVER", "DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME", "DB_SSLMODE",
	"JWT_SECRET", "JWKS_URL", "JWT_ISSUER", "JWT_AUDIENCE",
	"REDIS_ADDR", "REDIS_PASS", "REDIS_DB", "CACHE_TTL_SECONDS",
	"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "CHECKOUT_SUCCESS_URL", "CHECKOUT_CANCEL_URL",
	"RABBITMQ_URL", "EVENTS_EXCHANGE", "SENDGRID_API_KEY", "EMAIL_SENDER",
	"PIN_MAX_ATTEMPTS", "PIN_LOCKOUT_MINUTES", "DEFAULT_CURRENCY",
	"DEFAULT_TRANSACTION_LIMIT", "DEFAULT_DAILY_LIMIT", "DEFAULT_MONTHLY_LIMIT",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"NOTIFICATION_RETENTION_DAYS", "SCHEDULER_UNLOCK_SPEC", "SCHEDULER_PURGE_SPEC",
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present

	v := viper.New() // Own instance, no global state
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CACHE_TTL_SECONDS", 60)
	v.SetDefault("EVENTS_EXCHANGE", "wallet_events")
	v.SetDefault("EMAIL_SENDER", "no-reply@instapay.app")
	v.SetDefault("CHECKOUT_SUCCESS_URL", "http://localhost:3000/dashboard/wallet?checkout=success")
	v.SetDefault("CHECKOUT_CANCEL_URL", "http://localhost:3000/dashboard/wallet?checkout=cancelled")
	v.SetDefault("PIN_MAX_ATTEMPTS", 3)
	v.SetDefault("PIN_LOCKOUT_MINUTES", 30)
	v.SetDefault("DEFAULT_CURRENCY", "USD")
	v.SetDefault("DEFAULT_TRANSACTION_LIMIT", "5000")
	v.SetDefault("DEFAULT_DAILY_LIMIT", "10000")
	v.SetDefault("DEFAULT_MONTHLY_LIMIT", "50000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("NOTIFICATION_RETENTION_DAYS", 90)
	v.SetDefault("SCHEDULER_UNLOCK_SPEC", "@every 1m")
	v.SetDefault("SCHEDULER_PURGE_SPEC", "@daily")

	// Unmarshal only sees keys viper knows about, so bind every one explicitly
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.DefaultCurrency = strings.ToUpper(cfg.DefaultCurrency)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("APP_PORT must be set")
	}
	switch c.DBDriver {
	case "mysql", "postgres":
		if c.DBHost == "" || c.DBName == "" || c.DBUser == "" {
			return errors.New("database host, name and user must be set")
		}
	case "sqlite":
		if c.DBName == "" {
			return errors.New("DB_NAME must point at the sqlite file")
		}
	default:
		return errors.New("DB_DRIVER must be one of mysql, postgres, sqlite")
	}
	if c.JWTSecret == "" && c.JWKSURL == "" {
		return errors.New("one of JWT_SECRET or JWKS_URL must be set")
	}
	if c.PinMaxAttempts <= 0 || c.PinLockoutMinutes <= 0 {
		return errors.New("PIN_MAX_ATTEMPTS and PIN_LOCKOUT_MINUTES must be positive")
	}
	for name, raw := range map[string]string{
		"DEFAULT_TRANSACTION_LIMIT": c.DefaultTransactionLimit,
		"DEFAULT_DAILY_LIMIT":       c.DefaultDailyLimit,
		"DEFAULT_MONTHLY_LIMIT":     c.DefaultMonthlyLimit,
	} {
		d, err := decimal.NewFromString(raw)
		if err != nil || !d.IsPositive() {
			return errors.New(name + " must be a positive amount")
		}
	}
	return nil
}

// Limits returns the default wallet limits as decimals. Validate has already checked them.
func (c *Config) Limits() (tx, daily, monthly decimal.Decimal) {
	tx, _ = decimal.NewFromString(c.DefaultTransactionLimit)
	daily, _ = decimal.NewFromString(c.DefaultDailyLimit)
	monthly, _ = decimal.NewFromString(c.DefaultMonthlyLimit)
	return tx, daily, monthly
}

// PinLockout is the lockout window applied after too many PIN failures
func (c *Config) PinLockout() time.Duration {
	return time.Duration(c.PinLockoutMinutes) * time.Minute
}

// CacheTTL is the lifetime of cached wallet and history reads
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Redact returns a copy safe for logging
func (c *Config) Redact() Config {
	redacted := *c
	for _, s := range []*string{&redacted.DBPassword, &redacted.JWTSecret, &redacted.RedisPass,
		&redacted.StripeSecretKey, &redacted.StripeWebhookSecret, &redacted.SendGridAPIKey} {
		if *s != "" {
			*s = "****"
		}
	}
	return redacted
}
