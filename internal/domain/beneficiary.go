package domain

import (
	"time" // Time and durations

	"gorm.io/gorm" // GORM ORM library
)

// Beneficiary Model, a saved transfer recipient. Deletes are soft.
type Beneficiary struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"index;not null" json:"user_id"`   // Owner
	Name          string         `gorm:"size:150;not null" json:"name"`   // Display name
	Email         string         `gorm:"size:191" json:"email,omitempty"` // Contact email
	Phone         string         `gorm:"size:32" json:"phone,omitempty"`  // Contact phone
	BankName      string         `gorm:"size:150" json:"bank_name,omitempty"`
	AccountNumber string         `gorm:"size:64" json:"account_number,omitempty"`
	WalletID      *uint          `json:"wallet_id,omitempty"` // Linked InstaPay wallet
	Nickname      string         `gorm:"size:100" json:"nickname,omitempty"`
	IsFavorite    bool           `gorm:"default:false" json:"is_favorite"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"` // Soft delete marker
}
