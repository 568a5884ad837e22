package domain

import (
	"time" // Time and durations

	"github.com/shopspring/decimal" // Money amounts
)

// Wallet statuses
const (
	WalletActive = "ACTIVE"
	WalletFrozen = "FROZEN"
	WalletClosed = "CLOSED"
)

// Wallet Model
type Wallet struct {
	ID               uint            `gorm:"primaryKey" json:"id"`                                 // Primary key
	UserID           uint            `gorm:"index;not null" json:"user_id"`                        // Foreign key to User
	Name             string          `gorm:"size:100" json:"name"`                                 // Display name
	Currency         string          `gorm:"size:3;not null;default:USD" json:"currency"`          // ISO 4217 code
	Balance          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"` // Ledger balance
	AvailableBalance decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"available_balance"`
	PinHash          string          `gorm:"size:100" json:"-"`                                    // bcrypt hash of the PIN
	PinAttempts      int             `gorm:"not null;default:0" json:"-"`                          // Consecutive failures
	LockedUntil      *time.Time      `json:"locked_until,omitempty"`                               // Lockout expiry
	TransactionLimit decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"transaction_limit"` // Cap per operation
	DailyLimit       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"daily_limit"`       // Cap on debits per day
	MonthlyLimit     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"monthly_limit"`     // Cap on debits per month
	IsDefault        bool            `gorm:"default:false" json:"is_default"`                      // Default wallet of the user
	Status           string          `gorm:"size:16;not null;default:ACTIVE" json:"status"`        // ACTIVE, FROZEN, CLOSED
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsLocked reports whether the PIN lockout window is still open at now
func (w *Wallet) IsLocked(now time.Time) bool {
	return w.LockedUntil != nil && w.LockedUntil.After(now)
}

// HasPin reports whether a PIN has been set
func (w *Wallet) HasPin() bool {
	return w.PinHash != ""
}
