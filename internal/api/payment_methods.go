package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"instapay/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// PaymentMethodRequest represents a card or bank account reference held by the processor
type PaymentMethodRequest struct {
	Type        string `json:"type" binding:"required,oneof=CARD BANK_ACCOUNT"` // Instrument type
	Provider    string `json:"provider" binding:"required,max=32"`              // Processor name
	ProviderRef string `json:"provider_ref" binding:"max=191"`                  // Processor-side id
	Last4       string `json:"last4" binding:"required,len=4,numeric"`          // Last four digits
	Brand       string `json:"brand" binding:"max=32"`                          // Card brand
	ExpMonth    int    `json:"exp_month" binding:"omitempty,min=1,max=12"`      // Card expiry month
	ExpYear     int    `json:"exp_year" binding:"omitempty,min=2000,max=2100"`  // Card expiry year
	IsDefault   bool   `json:"is_default"`                                      // Make default
}

// ListPaymentMethodsHandler lists the caller's payment methods, default first
func ListPaymentMethodsHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var methods []domain.PaymentMethod
		if err := env.DB.WithContext(c.Request.Context()).Where("user_id = ?", userID).
			Order("is_default desc, id asc").Find(&methods).Error; err != nil {
			respondInternal(c, err, "Failed to fetch payment methods", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
	}
}

// CreatePaymentMethodHandler stores a payment method. The first one becomes the default.
func CreatePaymentMethodHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var req PaymentMethodRequest
		if !bindJSON(c, &req) {
			return
		}
		if req.Type == domain.PaymentCard && (req.ExpMonth == 0 || req.ExpYear == 0) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": gin.H{"exp_month": "is required for cards"}})
			return
		}
		pm := domain.PaymentMethod{
			UserID:      userID,
			Type:        req.Type,
			Provider:    strings.ToLower(req.Provider),
			ProviderRef: req.ProviderRef,
			Last4:       req.Last4,
			Brand:       req.Brand,
			ExpMonth:    req.ExpMonth,
			ExpYear:     req.ExpYear,
		}
		err := env.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&domain.PaymentMethod{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
				return err
			}
			pm.IsDefault = req.IsDefault || count == 0
			if pm.IsDefault {
				if err := tx.Model(&domain.PaymentMethod{}).Where("user_id = ?", userID).Update("is_default", false).Error; err != nil {
					return err
				}
			}
			return tx.Create(&pm).Error
		})
		if err != nil {
			respondInternal(c, err, "Failed to add payment method", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Payment method added", "payment_method": pm})
	}
}

// SetDefaultPaymentMethodHandler makes one payment method the default
func SetDefaultPaymentMethodHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		pm, ok := loadPaymentMethod(env, c)
		if !ok {
			return
		}
		err := env.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&domain.PaymentMethod{}).Where("user_id = ? AND id <> ?", pm.UserID, pm.ID).
				Update("is_default", false).Error; err != nil {
				return err
			}
			return tx.Model(pm).Update("is_default", true).Error
		})
		if err != nil {
			respondInternal(c, err, "Failed to update payment method", logrus.Fields{"payment_method_id": pm.ID})
			return
		}
		pm.IsDefault = true
		c.JSON(http.StatusOK, gin.H{"payment_method": pm})
	}
}

// DeletePaymentMethodHandler removes a payment method, promoting the newest remaining one to default
func DeletePaymentMethodHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		pm, ok := loadPaymentMethod(env, c)
		if !ok {
			return
		}
		err := env.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(pm).Error; err != nil {
				return err
			}
			if !pm.IsDefault {
				return nil
			}
			var next domain.PaymentMethod
			err := tx.Where("user_id = ?", pm.UserID).Order("id desc").First(&next).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return tx.Model(&next).Update("is_default", true).Error
		})
		if err != nil {
			respondInternal(c, err, "Failed to delete payment method", logrus.Fields{"payment_method_id": pm.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Payment method deleted"})
	}
}

func loadPaymentMethod(env *Env, c *gin.Context) (*domain.PaymentMethod, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	var pm domain.PaymentMethod
	err := env.DB.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, userID).First(&pm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment method not found"})
		return nil, false
	}
	if err != nil {
		respondInternal(c, err, "Failed to fetch payment method", logrus.Fields{"payment_method_id": id})
		return nil, false
	}
	return &pm, true
}
