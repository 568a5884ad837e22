package ledger

import (
	"errors" // Error matching
	"fmt"    // Error and message formatting
	"time"   // Time and durations

	"github.com/shopspring/decimal" // Money amounts
)

var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletInactive    = errors.New("wallet is not active")
	ErrWalletLocked      = errors.New("wallet is locked")
	ErrInvalidPin        = errors.New("invalid PIN")
	ErrPinNotSet         = errors.New("wallet PIN has not been set")
	ErrPinFormat         = errors.New("PIN must be 4 to 6 digits")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLimitExceeded     = errors.New("limit exceeded")
	ErrCurrencyMismatch  = errors.New("currency mismatch")
	ErrSameWallet        = errors.New("cannot transfer to the same wallet")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrRecipientInactive = errors.New("recipient wallet is not active")
	ErrAlreadyProcessed  = errors.New("payment already processed")
)

// PinError is returned on a PIN mismatch
type PinError struct {
	Remaining   int        // Attempts left before lockout
	LockedUntil *time.Time // Set when this failure triggered the lockout
}

func (e *PinError) Error() string {
	if e.LockedUntil != nil {
		return fmt.Sprintf("invalid PIN, wallet locked until %s", e.LockedUntil.Format(time.RFC3339))
	}
	return fmt.Sprintf("invalid PIN, %d attempts remaining", e.Remaining)
}

func (e *PinError) Unwrap() error { return ErrInvalidPin }

// LockedError is returned while the lockout window is open
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("wallet is locked until %s", e.Until.Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrWalletLocked }

// LimitError names the limit that an operation would exceed
type LimitError struct {
	Limit     string          // transaction, daily or monthly
	Max       decimal.Decimal // Configured cap
	Remaining decimal.Decimal // Headroom left in the window
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit of %s exceeded, %s remaining", e.Limit, e.Max.StringFixed(2), e.Remaining.StringFixed(2))
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }
