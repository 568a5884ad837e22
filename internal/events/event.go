package events

import (
	"time" // Time and durations

	"github.com/shopspring/decimal" // Money amounts
)

// Event is the JSON body of every published message
type Event struct {
	Type       string          `json:"type"`
	UserID     uint            `json:"user_id"`
	WalletID   uint            `json:"wallet_id,omitempty"`
	Reference  string          `json:"reference,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	Data       map[string]any  `json:"data,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
