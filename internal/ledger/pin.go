package ledger

import (
	"context" // Context propagation

	"instapay/internal/domain"  // Importing domain models
	"instapay/internal/metrics" // Prometheus collectors
	"instapay/internal/utils"   // Utility functions

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// VerifyPin checks pin against the wallet. Failures are persisted whatever the caller does
// next; reaching the attempt limit opens the lockout window and resets the counter.
func (s *Service) VerifyPin(ctx context.Context, w *domain.Wallet, pin string) error {
	now := s.now()
	if w.IsLocked(now) {
		return &LockedError{Until: *w.LockedUntil}
	}
	if !w.HasPin() {
		return ErrPinNotSet
	}

	db := s.db.WithContext(ctx)
	if utils.CheckPin(w.PinHash, pin) {
		if w.PinAttempts == 0 && w.LockedUntil == nil {
			return nil
		}
		// Clear the counter and any expired lock
		if err := db.Model(&domain.Wallet{}).Where("id = ?", w.ID).Updates(map[string]any{
			"pin_attempts": 0,
			"locked_until": nil,
		}).Error; err != nil {
			return err
		}
		w.PinAttempts, w.LockedUntil = 0, nil
		return nil
	}

	metrics.PinFailures.Inc()
	// Increment in SQL so concurrent failures are all counted
	if err := db.Model(&domain.Wallet{}).Where("id = ?", w.ID).
		Update("pin_attempts", gorm.Expr("pin_attempts + 1")).Error; err != nil {
		return err
	}
	var attempts int
	if err := db.Model(&domain.Wallet{}).Where("id = ?", w.ID).Pluck("pin_attempts", &attempts).Error; err != nil {
		return err
	}
	w.PinAttempts = attempts

	if attempts < s.opts.MaxPinAttempts {
		return &PinError{Remaining: s.opts.MaxPinAttempts - attempts}
	}

	until := now.Add(s.opts.LockoutWindow)
	if err := db.Model(&domain.Wallet{}).Where("id = ?", w.ID).Updates(map[string]any{
		"pin_attempts": 0,
		"locked_until": until,
	}).Error; err != nil {
		return err
	}
	w.PinAttempts, w.LockedUntil = 0, &until
	metrics.WalletLockouts.Inc()
	logrus.WithFields(logrus.Fields{
		"wallet_id":    w.ID,
		"user_id":      w.UserID,
		"locked_until": until,
	}).Warn("Wallet locked after repeated PIN failures")
	return &PinError{Remaining: 0, LockedUntil: &until}
}

// ChangePin replaces the PIN after verifying the current one
func (s *Service) ChangePin(ctx context.Context, userID, walletID uint, current, next string) error {
	if !utils.IsValidPin(next) {
		return ErrPinFormat
	}
	w, err := s.GetOwnedWallet(ctx, userID, walletID)
	if err != nil {
		return err
	}
	if err := s.VerifyPin(ctx, w, current); err != nil {
		return err
	}
	hash, err := utils.HashPin(next)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&domain.Wallet{}).Where("id = ?", w.ID).Update("pin_hash", hash).Error
}
