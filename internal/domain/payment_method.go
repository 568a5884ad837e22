package domain

import "time" // Timestamps

// Payment method types
const (
	PaymentCard        = "CARD"
	PaymentBankAccount = "BANK_ACCOUNT"
)

// PaymentMethod Model, a reference to an instrument held by the payment processor
type PaymentMethod struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Type        string    `gorm:"size:16;not null" json:"type"`           // CARD or BANK_ACCOUNT
	Provider    string    `gorm:"size:32;not null" json:"provider"`       // e.g. stripe
	ProviderRef string    `gorm:"size:191" json:"provider_ref,omitempty"` // Processor-side id
	Last4       string    `gorm:"size:4" json:"last4"`
	Brand       string    `gorm:"size:32" json:"brand,omitempty"`
	ExpMonth    int       `json:"exp_month,omitempty"`
	ExpYear     int       `json:"exp_year,omitempty"`
	IsDefault   bool      `gorm:"default:false" json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
}
