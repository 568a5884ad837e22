// Package jobs holds the periodic maintenance tasks and the cron scheduler that runs them.
package jobs

import (
	"context" // Context propagation
	"time"    // Time and durations

	"instapay/internal/domain"  // Importing domain models
	"instapay/internal/metrics" // Prometheus collectors
	"instapay/internal/utils"   // Utility functions

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// Jobs are the maintenance tasks
type Jobs struct {
	db        *gorm.DB
	redis     redis.UniversalClient // Cached reads to drop, nil when caching is off
	retention time.Duration
	now       func() time.Time
}

// New builds the jobs. Read notifications older than retention are purged.
func New(db *gorm.DB, rdb redis.UniversalClient, retention time.Duration) *Jobs {
	return &Jobs{
		db:        db,
		redis:     rdb,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// UnlockExpiredWallets clears lockouts whose window has passed, resets the PIN counter and
// drops the owners' cached wallet reads
func (j *Jobs) UnlockExpiredWallets(ctx context.Context) (n int64, err error) {
	defer func() {
		metrics.JobRuns.WithLabelValues("unlock_wallets", metrics.Result(err)).Inc()
	}()

	var owners []uint
	err = j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := j.now()
		expired := func() *gorm.DB {
			return tx.Model(&domain.Wallet{}).Where("locked_until IS NOT NULL AND locked_until <= ?", now)
		}
		if err := expired().Distinct("user_id").Pluck("user_id", &owners).Error; err != nil {
			return err
		}
		if len(owners) == 0 {
			return nil
		}
		res := expired().Updates(map[string]any{"locked_until": nil, "pin_attempts": 0})
		n = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		utils.InvalidateUsers(ctx, j.redis, owners...)
		logrus.WithFields(logrus.Fields{"wallets": n, "users": len(owners)}).Info("Unlocked wallets")
	}
	return n, nil
}

// PurgeNotifications deletes read notifications older than the retention window.
// Unread ones are kept whatever their age.
func (j *Jobs) PurgeNotifications(ctx context.Context) (int64, error) {
	if j.retention <= 0 {
		return 0, nil
	}
	cutoff := j.now().Add(-j.retention)
	res := j.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&domain.Notification{})
	metrics.JobRuns.WithLabelValues("purge_notifications", metrics.Result(res.Error)).Inc()
	if res.Error != nil {
		return 0, res.Error
	}
	logrus.WithFields(logrus.Fields{"deleted": res.RowsAffected, "cutoff": cutoff}).Info("Purged notifications")
	return res.RowsAffected, nil
}
