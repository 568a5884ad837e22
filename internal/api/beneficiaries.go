package api

import (
	"context"  // Context for lookups
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"instapay/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// BeneficiaryRequest represents a beneficiary create or update
type BeneficiaryRequest struct {
	Name          string `json:"name" binding:"required,max=150"`           // Display name
	Email         string `json:"email" binding:"omitempty,email"`           // Contact email
	Phone         string `json:"phone" binding:"omitempty,max=32"`          // Contact phone
	BankName      string `json:"bank_name" binding:"max=150"`               // Bank name
	AccountNumber string `json:"account_number" binding:"omitempty,max=64"` // Account number
	WalletID      *uint  `json:"wallet_id"`                                 // Linked InstaPay wallet
	Nickname      string `json:"nickname" binding:"max=100"`                // Nickname
	IsFavorite    bool   `json:"is_favorite"`                               // Favourite flag
}

func (r *BeneficiaryRequest) normalise() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.AccountNumber = strings.TrimSpace(r.AccountNumber)
}

// ListBeneficiariesHandler lists the caller's beneficiaries, favourites first
func ListBeneficiariesHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		q := env.DB.WithContext(c.Request.Context()).Where("user_id = ?", userID)
		if c.Query("favorites") == "true" {
			q = q.Where("is_favorite = ?", true)
		}
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(nickname) LIKE ?", like, like, like)
		}
		var list []domain.Beneficiary
		if err := q.Order("is_favorite desc, name asc").Find(&list).Error; err != nil {
			respondInternal(c, err, "Failed to fetch beneficiaries", logrus.Fields{"user_id": userID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"beneficiaries": list})
	}
}

// GetBeneficiaryHandler returns one beneficiary of the caller
func GetBeneficiaryHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := loadBeneficiary(env, c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"beneficiary": b})
	}
}

// CreateBeneficiaryHandler saves a recipient. An email of a registered user links their wallet.
func CreateBeneficiaryHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		var req BeneficiaryRequest
		if !bindJSON(c, &req) {
			return
		}
		req.normalise()
		ctx := c.Request.Context()
		if dup, err := beneficiaryExists(env.DB.WithContext(ctx), userID, 0, req); err != nil {
			respondInternal(c, err, "Failed to create beneficiary", logrus.Fields{"user_id": userID})
			return
		} else if dup {
			c.JSON(http.StatusConflict, gin.H{"error": "Beneficiary already exists"})
			return
		}

		b := domain.Beneficiary{
			UserID:        userID,
			Name:          req.Name,
			Email:         req.Email,
			Phone:         req.Phone,
			BankName:      req.BankName,
			AccountNumber: req.AccountNumber,
			Nickname:      req.Nickname,
			IsFavorite:    req.IsFavorite,
		}
		walletID, err := linkWallet(ctx, env, req)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
				return
			}
			respondInternal(c, err, "Failed to create beneficiary", logrus.Fields{"user_id": userID})
			return
		}
		b.WalletID = walletID
		if err := env.DB.WithContext(ctx).Create(&b).Error; err != nil {
			respondInternal(c, err, "Failed to create beneficiary", logrus.Fields{"user_id": userID})
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": userID, "beneficiary_id": b.ID}).Info("Beneficiary created")
		c.JSON(http.StatusCreated, gin.H{"message": "Beneficiary created", "beneficiary": b})
	}
}

// UpdateBeneficiaryHandler replaces the editable fields of a beneficiary
func UpdateBeneficiaryHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := loadBeneficiary(env, c)
		if !ok {
			return
		}
		var req BeneficiaryRequest
		if !bindJSON(c, &req) {
			return
		}
		req.normalise()
		ctx := c.Request.Context()
		if dup, err := beneficiaryExists(env.DB.WithContext(ctx), b.UserID, b.ID, req); err != nil {
			respondInternal(c, err, "Failed to update beneficiary", logrus.Fields{"beneficiary_id": b.ID})
			return
		} else if dup {
			c.JSON(http.StatusConflict, gin.H{"error": "Beneficiary already exists"})
			return
		}
		walletID, err := linkWallet(ctx, env, req)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
				return
			}
			respondInternal(c, err, "Failed to update beneficiary", logrus.Fields{"beneficiary_id": b.ID})
			return
		}
		b.Name = req.Name
		b.Email = req.Email
		b.Phone = req.Phone
		b.BankName = req.BankName
		b.AccountNumber = req.AccountNumber
		b.WalletID = walletID
		b.Nickname = req.Nickname
		b.IsFavorite = req.IsFavorite
		if err := env.DB.WithContext(ctx).Save(b).Error; err != nil {
			respondInternal(c, err, "Failed to update beneficiary", logrus.Fields{"beneficiary_id": b.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Beneficiary updated", "beneficiary": b})
	}
}

// ToggleFavoriteHandler flips the favourite flag
func ToggleFavoriteHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := loadBeneficiary(env, c)
		if !ok {
			return
		}
		b.IsFavorite = !b.IsFavorite
		if err := env.DB.WithContext(c.Request.Context()).Model(b).Update("is_favorite", b.IsFavorite).Error; err != nil {
			respondInternal(c, err, "Failed to update beneficiary", logrus.Fields{"beneficiary_id": b.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"beneficiary": b})
	}
}

// DeleteBeneficiaryHandler soft-deletes a beneficiary
func DeleteBeneficiaryHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, ok := loadBeneficiary(env, c)
		if !ok {
			return
		}
		if err := env.DB.WithContext(c.Request.Context()).Delete(b).Error; err != nil {
			respondInternal(c, err, "Failed to delete beneficiary", logrus.Fields{"beneficiary_id": b.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Beneficiary deleted"})
	}
}

// loadBeneficiary reads :id scoped to the caller or answers 404
func loadBeneficiary(env *Env, c *gin.Context) (*domain.Beneficiary, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	id, ok := idParam(c, "id")
	if !ok {
		return nil, false
	}
	var b domain.Beneficiary
	err := env.DB.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, userID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Beneficiary not found"})
		return nil, false
	}
	if err != nil {
		respondInternal(c, err, "Failed to fetch beneficiary", logrus.Fields{"beneficiary_id": id})
		return nil, false
	}
	return &b, true
}

// beneficiaryExists reports another live beneficiary of the user with the same account number or email
func beneficiaryExists(db *gorm.DB, userID, exceptID uint, req BeneficiaryRequest) (bool, error) {
	if req.AccountNumber == "" && req.Email == "" {
		return false, nil
	}
	q := db.Model(&domain.Beneficiary{}).Where("user_id = ? AND id <> ?", userID, exceptID)
	switch {
	case req.AccountNumber != "" && req.Email != "":
		q = q.Where("account_number = ? OR LOWER(email) = ?", req.AccountNumber, req.Email)
	case req.AccountNumber != "":
		q = q.Where("account_number = ?", req.AccountNumber)
	default:
		q = q.Where("LOWER(email) = ?", req.Email)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// linkWallet picks the wallet a beneficiary points at: the one given, or the active wallet
// of the registered user owning the email (default first). gorm.ErrRecordNotFound means the
// given wallet does not exist.
func linkWallet(ctx context.Context, env *Env, req BeneficiaryRequest) (*uint, error) {
	db := env.DB.WithContext(ctx)
	if req.WalletID != nil {
		var w domain.Wallet
		if err := db.Select("id").First(&w, *req.WalletID).Error; err != nil {
			return nil, err
		}
		return &w.ID, nil
	}
	if req.Email == "" {
		return nil, nil
	}
	var w domain.Wallet
	err := db.Joins("JOIN users ON users.id = wallets.user_id").
		Where("LOWER(users.email) = ? AND wallets.status = ?", req.Email, domain.WalletActive).
		Order("wallets.is_default desc, wallets.id asc").
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not a registered user, keep as a plain contact
	}
	if err != nil {
		return nil, err
	}
	return &w.ID, nil
}
