// Package api holds the HTTP handlers. Every handler is a closure over Env.
package api

import (
	"time" // Time and durations

	"instapay/internal/config"   // Configuration
	"instapay/internal/ledger"   // Balance mutations
	"instapay/internal/notify"   // Notifications and email
	"instapay/internal/payments" // Payment processor

	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Env bundles what the handlers depend on
type Env struct {
	DB       *gorm.DB
	Redis    redis.UniversalClient // nil disables caching and webhook dedupe
	Ledger   *ledger.Service
	Notifier *notify.Notifier
	Payments payments.Gateway
	Config   *config.Config
	Now      func() time.Time // UTC clock, time.Now when nil
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Env) cacheTTL() time.Duration {
	if ttl := e.Config.CacheTTL(); ttl > 0 {
		return ttl
	}
	return 60 * time.Second
}
