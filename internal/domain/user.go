package domain

import "time" // Timestamps

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// KYC statuses, stored only
const (
	KYCPending  = "PENDING"
	KYCVerified = "VERIFIED"
	KYCRejected = "REJECTED"
)

// User Model. Identity lives at the identity provider; this row mirrors it.
type User struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`                             // Primary key
	ExternalID           string    `gorm:"size:191;uniqueIndex;not null" json:"external_id"` // Identity provider subject
	Email                string    `gorm:"size:191;index" json:"email"`                      // Primary email
	FirstName            string    `gorm:"size:100" json:"first_name"`                       // Given name
	LastName             string    `gorm:"size:100" json:"last_name"`                        // Family name
	Phone                string    `gorm:"size:32" json:"phone"`                             // Phone number
	AvatarURL            string    `gorm:"size:512" json:"avatar_url"`                       // Avatar hosted by the identity provider
	Role                 string    `gorm:"size:16;default:user" json:"role"`                 // Role: user or admin
	KYCStatus            string    `gorm:"column:kyc_status;size:16;default:PENDING" json:"kyc_status"`
	Currency             string    `gorm:"size:3;default:USD" json:"currency"`        // Preferred display currency
	Language             string    `gorm:"size:8;default:en" json:"language"`         // UI language
	Timezone             string    `gorm:"size:64;default:UTC" json:"timezone"`       // IANA zone
	OnboardingCompleted  bool      `gorm:"default:false" json:"onboarding_completed"` // Wizard finished
	NotificationSettings JSONMap   `gorm:"type:text" json:"notification_settings"`    // Opaque preferences
	PrivacySettings      JSONMap   `gorm:"type:text" json:"privacy_settings"`         // Opaque preferences
	Address              *Address  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"address,omitempty"`
	Wallets              []Wallet  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"wallets,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// WantsEmail reports whether email notifications are enabled. Missing setting means yes.
func (u *User) WantsEmail() bool {
	v, ok := u.NotificationSettings["email"]
	if !ok {
		return true
	}
	enabled, isBool := v.(bool)
	return !isBool || enabled
}

// Address Model, one per user
type Address struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Street     string    `gorm:"size:255" json:"street"`
	City       string    `gorm:"size:100" json:"city"`
	State      string    `gorm:"size:100" json:"state"`
	PostalCode string    `gorm:"size:20" json:"postal_code"`
	Country    string    `gorm:"size:2" json:"country"`
	UpdatedAt  time.Time `json:"updated_at"`
}
