package api

import (
	"errors"   // Error matching
	"fmt"      // Key formatting
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"strings"  // String manipulation

	"instapay/internal/domain"     // Importing domain models
	"instapay/internal/middleware" // Acting admin
	"instapay/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

const (
	adminUsersCachePrefix = "admin:users:"
	adminTxsCachePrefix   = "admin:txs:"
)

// UserAdminResponse represents the user data returned to admin
type UserAdminResponse struct {
	ID        uint            `json:"id"`         // User ID
	Email     string          `json:"email"`      // Primary email
	Name      string          `json:"name"`       // Display name
	Role      string          `json:"role"`       // User role
	KYCStatus string          `json:"kyc_status"` // Verification state
	Wallets   []domain.Wallet `json:"wallets"`    // Associated wallets
}

// adminUsersPage is the paginated user list
type adminUsersPage struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
	Cached     bool                `json:"cached"`      // Served from cache
}

// KYCRequest sets a user's verification state
type KYCRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING VERIFIED REJECTED"` // New KYC status
}

// AdminListUsersHandler returns all users with their wallets
func AdminListUsersHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page := utils.ParsePage(c)
		search := strings.ToLower(strings.TrimSpace(c.Query("search")))
		// Create a cache key based on pagination parameters
		cacheKey := fmt.Sprintf("%spage=%d:size=%d:q=%s", adminUsersCachePrefix, page.Page, page.PageSize, search)
		var cached adminUsersPage
		// If cached data found, return it
		if found, err := utils.GetCache(ctx, env.Redis, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}

		query := env.DB.WithContext(ctx).Model(&domain.User{})
		if search != "" {
			like := "%" + search + "%"
			query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
		}
		var total int64 // Total user count
		if err := query.Count(&total).Error; err != nil {
			respondInternal(c, err, "Failed to count users", nil)
			return
		}
		var users []domain.User // Slice to hold users
		// Preload wallets, apply offset and limit for pagination
		if err := query.Preload("Wallets").Order("id asc").
			Offset(page.Offset()).Limit(page.PageSize).Find(&users).Error; err != nil {
			respondInternal(c, err, "Failed to fetch users", nil)
			return
		}
		resp := adminUsersPage{
			Users:      make([]UserAdminResponse, len(users)),
			Page:       page.Page,
			PageSize:   page.PageSize,
			Total:      total,
			TotalPages: page.TotalPages(total),
		}
		// Map users to response format
		for i, u := range users {
			resp.Users[i] = UserAdminResponse{
				ID:        u.ID,
				Email:     u.Email,
				Name:      u.FullName(),
				Role:      u.Role,
				KYCStatus: u.KYCStatus,
				Wallets:   u.Wallets,
			}
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, env.Redis, cacheKey, resp, env.cacheTTL())
		c.JSON(http.StatusOK, resp)
	}
}

// AdminListTransactionsHandler returns all transactions, with the history filters plus user_id
func AdminListTransactionsHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := parseTxFilter(c, true)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter"})
			return
		}
		page := utils.ParsePage(c)
		ctx := c.Request.Context()
		cacheKey := adminTxsCachePrefix + "user=" + strconv.FormatUint(uint64(f.UserID), 10) + ":" + f.cacheKey(page)
		var cached historyPage
		if found, err := utils.GetCache(ctx, env.Redis, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		resp, err := listTransactions(env.DB.WithContext(ctx), f, page)
		if err != nil {
			respondInternal(c, err, "Failed to fetch transactions", nil)
			return
		}
		_ = utils.SetCache(ctx, env.Redis, cacheKey, resp, env.cacheTTL())
		c.JSON(http.StatusOK, resp)
	}
}

// AdminUpdateKYCHandler sets the KYC status of a user
func AdminUpdateKYCHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req KYCRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		db := env.DB.WithContext(ctx)
		var user domain.User
		if err := db.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			respondInternal(c, err, "Failed to fetch user", logrus.Fields{"user_id": userID})
			return
		}
		previous := user.KYCStatus
		if err := db.Model(&user).Update("kyc_status", req.Status).Error; err != nil {
			respondInternal(c, err, "Failed to update KYC status", logrus.Fields{"user_id": userID})
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":  userID,                      // Target user
			"admin_id": middleware.CurrentUserID(c), // Acting admin
			"from":     previous,                    // Previous status
			"to":       req.Status,                  // New status
		}).Info("KYC status changed")
		if err := utils.DeleteCachePrefix(ctx, env.Redis, adminUsersCachePrefix); err != nil {
			logrus.WithError(err).Warn("Failed to invalidate cache")
		}
		if previous != req.Status {
			if _, err := env.Notifier.Notify(ctx, userID, domain.NotifySystem, "Verification updated",
				"Your identity verification status is now "+strings.ToLower(req.Status)+"."); err != nil {
				logrus.WithField("user_id", userID).WithError(err).Error("Failed to create notification")
			}
		}
		c.JSON(http.StatusOK, gin.H{"message": "KYC status updated", "user_id": userID, "kyc_status": req.Status})
	}
}
