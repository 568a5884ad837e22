package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"instapay/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// AddressRequest is the postal address part of a profile update
type AddressRequest struct {
	Street     string `json:"street" binding:"max=255"`                     // Street and number
	City       string `json:"city" binding:"max=100"`                       // City
	State      string `json:"state" binding:"max=100"`                      // State or region
	PostalCode string `json:"postal_code" binding:"max=20"`                 // Postal code
	Country    string `json:"country" binding:"omitempty,iso3166_1_alpha2"` // ISO country code
}

// UpdateProfileRequest carries the editable profile fields. Nil means unchanged.
type UpdateProfileRequest struct {
	FirstName           *string         `json:"first_name" binding:"omitempty,max=100"`     // Given name
	LastName            *string         `json:"last_name" binding:"omitempty,max=100"`      // Family name
	Phone               *string         `json:"phone" binding:"omitempty,max=32"`           // Phone number
	AvatarURL           *string         `json:"avatar_url" binding:"omitempty,url,max=512"` // Avatar location
	OnboardingCompleted *bool           `json:"onboarding_completed"`                       // Wizard finished
	Address             *AddressRequest `json:"address"`                                    // Address upsert
}

// GetProfileHandler returns the caller with address and wallets
func GetProfileHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		user, err := loadProfile(env.DB.WithContext(c.Request.Context()), userID)
		if err != nil {
			respondInternal(c, err, "Failed to fetch profile", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// UpdateProfileHandler updates names, phone, avatar, onboarding flag and the address
func UpdateProfileHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var req UpdateProfileRequest
		if !bindJSON(c, &req) {
			return
		}
		updates := map[string]any{}
		if req.FirstName != nil {
			updates["first_name"] = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			updates["last_name"] = strings.TrimSpace(*req.LastName)
		}
		if req.Phone != nil {
			updates["phone"] = strings.TrimSpace(*req.Phone)
		}
		if req.AvatarURL != nil {
			updates["avatar_url"] = *req.AvatarURL
		}
		if req.OnboardingCompleted != nil {
			updates["onboarding_completed"] = *req.OnboardingCompleted
		}

		db := env.DB.WithContext(c.Request.Context())
		err := db.Transaction(func(tx *gorm.DB) error {
			if len(updates) > 0 {
				if err := tx.Model(&domain.User{ID: userID}).Updates(updates).Error; err != nil {
					return err
				}
			}
			if req.Address == nil {
				return nil
			}
			a := req.Address
			var addr domain.Address
			return tx.Where(domain.Address{UserID: userID}).
				Assign(domain.Address{
					Street:     strings.TrimSpace(a.Street),
					City:       strings.TrimSpace(a.City),
					State:      strings.TrimSpace(a.State),
					PostalCode: strings.TrimSpace(a.PostalCode),
					Country:    strings.ToUpper(a.Country),
				}).
				FirstOrCreate(&addr).Error
		})
		if err != nil {
			respondInternal(c, err, "Failed to update profile", logrus.Fields{"user_id": userID})
			return
		}
		user, err := loadProfile(db, userID)
		if err != nil {
			respondInternal(c, err, "Failed to fetch profile", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": user})
	}
}

func loadProfile(db *gorm.DB, userID uint) (*domain.User, error) {
	var user domain.User
	err := db.Preload("Address").
		Preload("Wallets", func(q *gorm.DB) *gorm.DB { return q.Order("is_default desc, id asc") }).
		First(&user, userID).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
