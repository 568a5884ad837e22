package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Timezone validation

	"instapay/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Settings is the preferences view of a user
type Settings struct {
	Currency             string         `json:"currency"`
	Language             string         `json:"language"`
	Timezone             string         `json:"timezone"`
	NotificationSettings domain.JSONMap `json:"notification_settings"`
	PrivacySettings      domain.JSONMap `json:"privacy_settings"`
}

// UpdateSettingsRequest patches preferences. The JSON settings are merged key by key.
type UpdateSettingsRequest struct {
	Currency             *string        `json:"currency" binding:"omitempty,iso4217"`     // Display currency
	Language             *string        `json:"language" binding:"omitempty,min=2,max=8"` // UI language
	Timezone             *string        `json:"timezone" binding:"omitempty,max=64"`      // IANA zone
	NotificationSettings map[string]any `json:"notification_settings"`                    // Partial notification preferences
	PrivacySettings      map[string]any `json:"privacy_settings"`                         // Partial privacy preferences
}

func settingsOf(u *domain.User) Settings {
	s := Settings{
		Currency:             u.Currency,
		Language:             u.Language,
		Timezone:             u.Timezone,
		NotificationSettings: u.NotificationSettings,
		PrivacySettings:      u.PrivacySettings,
	}
	if s.NotificationSettings == nil {
		s.NotificationSettings = domain.JSONMap{}
	}
	if s.PrivacySettings == nil {
		s.PrivacySettings = domain.JSONMap{}
	}
	return s
}

// GetSettingsHandler returns the caller's preferences
func GetSettingsHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var user domain.User
		if err := env.DB.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			respondInternal(c, err, "Failed to fetch settings", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"settings": settingsOf(&user)})
	}
}

// UpdateSettingsHandler patches the caller's preferences
func UpdateSettingsHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var req UpdateSettingsRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.Timezone != nil {
			if _, err := time.LoadLocation(*req.Timezone); err != nil || *req.Timezone == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": gin.H{"timezone": "must be a valid IANA time zone"}})
				return
			}
		}

		db := env.DB.WithContext(c.Request.Context())
		var user domain.User
		if err := db.First(&user, userID).Error; err != nil {
			respondInternal(c, err, "Failed to fetch settings", logrus.Fields{"user_id": userID})
			return
		}
		if req.Currency != nil {
			user.Currency = strings.ToUpper(*req.Currency)
		}
		if req.Language != nil {
			user.Language = strings.ToLower(*req.Language)
		}
		if req.Timezone != nil {
			user.Timezone = *req.Timezone
		}
		if req.NotificationSettings != nil {
			user.NotificationSettings = user.NotificationSettings.Merge(req.NotificationSettings)
		}
		if req.PrivacySettings != nil {
			user.PrivacySettings = user.PrivacySettings.Merge(req.PrivacySettings)
		}
		if err := db.Model(&user).Select("currency", "language", "timezone", "notification_settings", "privacy_settings").
			Updates(&user).Error; err != nil {
			respondInternal(c, err, "Failed to update settings", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Settings updated", "settings": settingsOf(&user)})
	}
}
