package domain

import (
	"time" // Time and durations

	"github.com/shopspring/decimal" // Money amounts
)

// Transaction types
const (
	TxDeposit    = "DEPOSIT"
	TxWithdrawal = "WITHDRAWAL"
	TxTransfer   = "TRANSFER"
	TxPayment    = "PAYMENT"
	TxRefund     = "REFUND"
)

// Transaction statuses
const (
	TxPending   = "PENDING"
	TxCompleted = "COMPLETED"
	TxFailed    = "FAILED"
	TxCancelled = "CANCELLED"
)

// Default categories
const (
	CategoryTopUp    = "TOP_UP"
	CategoryTransfer = "TRANSFER"
	CategoryCashOut  = "CASH_OUT"
	CategoryOther    = "OTHER"
)

// Transaction Model. Rows are written once and never updated.
type Transaction struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`                                     // Primary key
	Reference            string          `gorm:"size:64;uniqueIndex;not null" json:"reference"`            // Public reference
	WalletID             uint            `gorm:"index;not null" json:"wallet_id"`                          // Wallet whose balance moved
	UserID               uint            `gorm:"index;not null" json:"user_id"`                            // Owner of the wallet
	Type                 string          `gorm:"size:16;index;not null" json:"type"`                       // DEPOSIT, WITHDRAWAL, TRANSFER, ...
	Category             string          `gorm:"size:32;index" json:"category"`                            // Free-form category
	Amount               decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`                // Signed: credit > 0, debit < 0
	Currency             string          `gorm:"size:3;not null" json:"currency"`                          // Wallet currency
	BalanceBefore        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_before"`        // Balance before the move
	BalanceAfter         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance_after"`         // Balance after the move
	Status               string          `gorm:"size:16;index;not null" json:"status"`                     // PENDING, COMPLETED, ...
	Description          string          `gorm:"size:255" json:"description"`                              // Free text
	SenderID             *uint           `gorm:"index" json:"sender_id,omitempty"`                         // Sending user for transfers
	RecipientID          *uint           `gorm:"index" json:"recipient_id,omitempty"`                      // Receiving user for transfers
	CounterpartyWalletID *uint           `json:"counterparty_wallet_id,omitempty"`                         // Other leg's wallet
	GroupReference       string          `gorm:"size:64;index" json:"group_reference,omitempty"`           // Shared by both transfer legs
	ExternalReference    *string         `gorm:"size:191;uniqueIndex" json:"external_reference,omitempty"` // Payment processor id
	Metadata             JSONMap         `gorm:"type:text" json:"metadata,omitempty"`                      // Extra attributes
	CreatedAt            time.Time       `gorm:"index" json:"created_at"`                                  // Creation time
}

// IsCredit reports whether the row increased the balance
func (t *Transaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// Balanced checks the ledger invariant balance_after = balance_before + amount
func (t *Transaction) Balanced() bool {
	return t.BalanceBefore.Add(t.Amount).Equal(t.BalanceAfter)
}
