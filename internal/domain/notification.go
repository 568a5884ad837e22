package domain

import "time" // Timestamps

// Notification types
const (
	NotifyTransaction = "TRANSACTION"
	NotifySecurity    = "SECURITY"
	NotifyPayment     = "PAYMENT"
	NotifySystem      = "SYSTEM"
)

// Notification Model
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Type      string    `gorm:"size:16;not null" json:"type"`
	Title     string    `gorm:"size:150;not null" json:"title"`
	Message   string    `gorm:"size:500" json:"message"`
	IsRead    bool      `gorm:"index;default:false" json:"read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
