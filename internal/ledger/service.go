// Package ledger owns every change to a wallet balance. Each mutation runs in a single
// database transaction that rewrites the wallet row and appends ledger rows.
package ledger

import (
	"context" // Context propagation
	"errors"  // Error matching
	"time"    // Time and durations

	"instapay/internal/domain" // Importing domain models

	"github.com/google/uuid" // Reference generation
	"gorm.io/gorm"           // GORM ORM library
	"gorm.io/gorm/clause"    // Row locking clauses
)

// Options tune PIN handling
type Options struct {
	MaxPinAttempts int              // Failures before lockout, 3 when zero
	LockoutWindow  time.Duration    // Lockout length, 30 minutes when zero
	Now            func() time.Time // Clock, UTC wall clock when nil
}

// Service applies balance mutations
type Service struct {
	db   *gorm.DB
	opts Options
}

// NewService builds a ledger service over db
func NewService(db *gorm.DB, opts Options) *Service {
	if opts.MaxPinAttempts <= 0 {
		opts.MaxPinAttempts = 3
	}
	if opts.LockoutWindow <= 0 {
		opts.LockoutWindow = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{db: db, opts: opts}
}

func (s *Service) now() time.Time {
	return s.opts.Now()
}

// GetOwnedWallet loads a wallet that belongs to userID. Foreign wallets are reported as missing.
func (s *Service) GetOwnedWallet(ctx context.Context, userID, walletID uint) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", walletID, userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// lockWallet re-reads a wallet inside tx with a row lock
func lockWallet(tx *gorm.DB, walletID uint) (*domain.Wallet, error) {
	var w domain.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, walletID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// saveBalances writes balance and available balance of w
func saveBalances(tx *gorm.DB, w *domain.Wallet, now time.Time) error {
	w.UpdatedAt = now
	return tx.Model(&domain.Wallet{}).Where("id = ?", w.ID).Updates(map[string]any{
		"balance":           w.Balance,
		"available_balance": w.AvailableBalance,
		"updated_at":        now,
	}).Error
}

func newReference() string {
	return uuid.NewString()
}
