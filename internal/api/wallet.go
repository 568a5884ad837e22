package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"instapay/internal/domain" // Importing domain models
	"instapay/internal/ledger" // Balance mutations
	"instapay/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/gorm"                  // GORM ORM library
)

var errWalletConflict = errors.New("wallet already exists for this currency")

// CreateWalletRequest represents a wallet creation request
type CreateWalletRequest struct {
	Name     string `json:"name" binding:"max=100"`               // Display name
	Currency string `json:"currency" binding:"omitempty,iso4217"` // ISO 4217 code, defaults to the user's currency
	Pin      string `json:"pin" binding:"required,pin"`           // 4 to 6 digit PIN
}

// UpdateWalletRequest represents a wallet update, absent fields are left unchanged
type UpdateWalletRequest struct {
	Name             *string          `json:"name" binding:"omitempty,max=100"` // Display name
	TransactionLimit *decimal.Decimal `json:"transaction_limit"`                // Cap per operation
	DailyLimit       *decimal.Decimal `json:"daily_limit"`                      // Cap on debits per day
	MonthlyLimit     *decimal.Decimal `json:"monthly_limit"`                    // Cap on debits per month
}

// UpdateBalanceRequest represents a deposit or withdrawal
type UpdateBalanceRequest struct {
	Amount      decimal.Decimal `json:"amount"`                                           // Signed amount
	Type        string          `json:"type" binding:"required,oneof=DEPOSIT WITHDRAWAL"` // Transaction type
	Pin         string          `json:"pin" binding:"required"`                           // Wallet PIN
	Description string          `json:"description" binding:"max=255"`                    // Free text
	Category    string          `json:"category" binding:"max=32"`                        // Optional category
}

// ChangePinRequest represents a PIN change
type ChangePinRequest struct {
	CurrentPin string `json:"current_pin" binding:"required"` // Current PIN
	NewPin     string `json:"new_pin" binding:"required,pin"` // Replacement PIN
}

// CreateWalletHandler creates a wallet. The first wallet of a user becomes the default one.
func CreateWalletHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Get userID from context
		if !ok {
			return
		}
		var req CreateWalletRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		currency := strings.ToUpper(req.Currency)
		if currency == "" {
			currency = env.Config.DefaultCurrency // Fall back to the configured currency
			if u := currentUser(c); u != nil && u.Currency != "" {
				currency = u.Currency
			}
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = currency + " Wallet"
		}
		hash, err := utils.HashPin(req.Pin) // Hash the PIN before storing
		if err != nil {
			respondInternal(c, err, "Failed to create wallet", logrus.Fields{"user_id": userID})
			return
		}
		txLimit, daily, monthly := env.Config.Limits() // Default limits

		wallet := domain.Wallet{
			UserID:           userID,
			Name:             name,
			Currency:         currency,
			Balance:          decimal.Zero,
			AvailableBalance: decimal.Zero,
			PinHash:          hash,
			TransactionLimit: txLimit,
			DailyLimit:       daily,
			MonthlyLimit:     monthly,
			Status:           domain.WalletActive,
		}
		err = env.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var open []domain.Wallet // Non-closed wallets of the user
			if err := tx.Where("user_id = ? AND status <> ?", userID, domain.WalletClosed).Find(&open).Error; err != nil {
				return err
			}
			for _, w := range open {
				if w.Currency == currency {
					return errWalletConflict // One wallet per currency
				}
			}
			wallet.IsDefault = len(open) == 0 // First wallet is the default
			return tx.Create(&wallet).Error
		})
		if errors.Is(err, errWalletConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "A " + currency + " wallet already exists"})
			return
		}
		if err != nil {
			respondInternal(c, err, "Failed to create wallet", logrus.Fields{"user_id": userID})
			return
		}
		// Log successful wallet creation
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,          // User ID
			"wallet_id": wallet.ID,       // Wallet ID
			"currency":  wallet.Currency, // Wallet currency
		}).Info("Wallet created")
		env.invalidateUsers(c.Request.Context(), userID) // Invalidate wallet cache
		c.JSON(http.StatusCreated, gin.H{"message": "Wallet created", "wallet": wallet})
	}
}

// ListWalletsHandler returns the wallets of the authenticated user, default first
func ListWalletsHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		cacheKey := walletsCacheKey(userID) // Cache key for wallets
		var wallets []domain.Wallet
		// If found in cache, return it
		if found, err := utils.GetCache(ctx, env.Redis, cacheKey, &wallets); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallets": wallets, "cached": true})
			return
		}
		if err := env.DB.WithContext(ctx).Where("user_id = ?", userID).
			Order("is_default desc, id asc").Find(&wallets).Error; err != nil {
			respondInternal(c, err, "Failed to fetch wallets", logrus.Fields{"user_id": userID})
			return
		}
		_ = utils.SetCache(ctx, env.Redis, cacheKey, wallets, env.cacheTTL()) // Cache the wallets
		c.JSON(http.StatusOK, gin.H{"wallets": wallets, "cached": false})
	}
}

// GetWalletHandler returns one wallet of the authenticated user
func GetWalletHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		walletID, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		cacheKey := walletCacheKey(userID, walletID) // Cache key for wallet
		var wallet domain.Wallet
		if found, err := utils.GetCache(ctx, env.Redis, cacheKey, &wallet); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallet": wallet, "cached": true})
			return
		}
		w, err := env.Ledger.GetOwnedWallet(ctx, userID, walletID)
		if err != nil {
			respondLedgerError(c, err, "Failed to fetch wallet", logrus.Fields{"wallet_id": walletID})
			return
		}
		_ = utils.SetCache(ctx, env.Redis, cacheKey, w, env.cacheTTL()) // Cache the wallet
		c.JSON(http.StatusOK, gin.H{"wallet": w, "cached": false})
	}
}

// UpdateWalletHandler renames a wallet or changes its limits
func UpdateWalletHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		walletID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req UpdateWalletRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		w, err := env.Ledger.GetOwnedWallet(ctx, userID, walletID)
		if err != nil {
			respondLedgerError(c, err, "Failed to update wallet", nil)
			return
		}
		if w.Status == domain.WalletClosed {
			c.JSON(http.StatusForbidden, gin.H{"error": "Wallet is closed"})
			return
		}

		updates := map[string]any{}
		if req.Name != nil {
			updates["name"] = strings.TrimSpace(*req.Name)
		}
		// Apply each limit that was sent, all must stay positive
		for column, limit := range map[string]*decimal.Decimal{
			"transaction_limit": req.TransactionLimit,
			"daily_limit":       req.DailyLimit,
			"monthly_limit":     req.MonthlyLimit,
		} {
			if limit == nil {
				continue
			}
			if !limit.IsPositive() || !limit.Equal(limit.Round(2)) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": gin.H{column: "must be a positive amount"}})
				return
			}
			updates[column] = *limit
		}
		daily, monthly := w.DailyLimit, w.MonthlyLimit
		if req.DailyLimit != nil {
			daily = *req.DailyLimit
		}
		if req.MonthlyLimit != nil {
			monthly = *req.MonthlyLimit
		}
		if daily.GreaterThan(monthly) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Daily limit cannot exceed the monthly limit"})
			return
		}
		if len(updates) == 0 {
			c.JSON(http.StatusOK, gin.H{"wallet": w})
			return
		}
		updates["updated_at"] = env.now()
		if err := env.DB.WithContext(ctx).Model(&domain.Wallet{}).Where("id = ?", w.ID).Updates(updates).Error; err != nil {
			respondInternal(c, err, "Failed to update wallet", logrus.Fields{"wallet_id": w.ID})
			return
		}
		if err := env.DB.WithContext(ctx).First(w, w.ID).Error; err != nil {
			respondInternal(c, err, "Failed to update wallet", logrus.Fields{"wallet_id": w.ID})
			return
		}
		env.invalidateUsers(ctx, userID)
		c.JSON(http.StatusOK, gin.H{"message": "Wallet updated", "wallet": w})
	}
}

// SetDefaultWalletHandler makes an active wallet the user's default
func SetDefaultWalletHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		walletID, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		w, err := env.Ledger.GetOwnedWallet(ctx, userID, walletID)
		if err != nil {
			respondLedgerError(c, err, "Failed to set default wallet", nil)
			return
		}
		if w.Status != domain.WalletActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "Wallet is not active"})
			return
		}
		// Exactly one default per user
		err = env.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&domain.Wallet{}).Where("user_id = ? AND id <> ?", userID, w.ID).
				Update("is_default", false).Error; err != nil {
				return err
			}
			return tx.Model(&domain.Wallet{}).Where("id = ?", w.ID).Update("is_default", true).Error
		})
		if err != nil {
			respondInternal(c, err, "Failed to set default wallet", logrus.Fields{"wallet_id": w.ID})
			return
		}
		w.IsDefault = true
		env.invalidateUsers(ctx, userID)
		c.JSON(http.StatusOK, gin.H{"message": "Default wallet updated", "wallet": w})
	}
}

// FreezeWalletHandler blocks all balance changes on an active wallet
func FreezeWalletHandler(env *Env) gin.HandlerFunc {
	return walletStatusHandler(env, domain.WalletActive, domain.WalletFrozen, "Wallet frozen")
}

// UnfreezeWalletHandler reactivates a frozen wallet
func UnfreezeWalletHandler(env *Env) gin.HandlerFunc {
	return walletStatusHandler(env, domain.WalletFrozen, domain.WalletActive, "Wallet unfrozen")
}

func walletStatusHandler(env *Env, from, to, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		walletID, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		w, err := env.Ledger.GetOwnedWallet(ctx, userID, walletID)
		if err != nil {
			respondLedgerError(c, err, "Failed to update wallet status", nil)
			return
		}
		if w.Status != from {
			c.JSON(http.StatusConflict, gin.H{"error": "Wallet is " + strings.ToLower(w.Status)})
			return
		}
		res := env.DB.WithContext(ctx).Model(&domain.Wallet{}).
			Where("id = ? AND status = ?", w.ID, from). // Guard against a concurrent change
			Updates(map[string]any{"status": to, "updated_at": env.now()})
		if res.Error != nil {
			respondInternal(c, res.Error, "Failed to update wallet status", logrus.Fields{"wallet_id": w.ID})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Wallet status changed, retry"})
			return
		}
		w.Status = to
		logrus.WithFields(logrus.Fields{"user_id": userID, "wallet_id": w.ID, "status": to}).Info(message)
		env.invalidateUsers(ctx, userID)
		c.JSON(http.StatusOK, gin.H{"message": message, "wallet": w})
	}
}

// CloseWalletHandler closes an empty wallet. Closing the default wallet promotes another active one.
func CloseWalletHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		walletID, ok := idParam(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		w, err := env.Ledger.GetOwnedWallet(ctx, userID, walletID)
		if err != nil {
			respondLedgerError(c, err, "Failed to close wallet", nil)
			return
		}
		if w.Status == domain.WalletClosed {
			c.JSON(http.StatusConflict, gin.H{"error": "Wallet is already closed"})
			return
		}
		if !w.Balance.IsZero() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet balance must be zero to close it"})
			return
		}
		err = env.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&domain.Wallet{}).Where("id = ? AND balance = 0", w.ID).Updates(map[string]any{
				"status":     domain.WalletClosed,
				"is_default": false,
				"updated_at": env.now(),
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ledger.ErrInsufficientFunds // Balance moved since the read
			}
			if !w.IsDefault {
				return nil
			}
			var next domain.Wallet // Promote the oldest active wallet
			err := tx.Where("user_id = ? AND status = ?", userID, domain.WalletActive).Order("id asc").First(&next).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return tx.Model(&next).Update("is_default", true).Error
		})
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Wallet balance must be zero to close it"})
			return
		}
		if err != nil {
			respondInternal(c, err, "Failed to close wallet", logrus.Fields{"wallet_id": w.ID})
			return
		}
		w.Status, w.IsDefault = domain.WalletClosed, false
		logrus.WithFields(logrus.Fields{"user_id": userID, "wallet_id": w.ID}).Info("Wallet closed")
		env.invalidateUsers(ctx, userID)
		c.JSON(http.StatusOK, gin.H{"message": "Wallet closed", "wallet": w})
	}
}

// ChangePinHandler replaces the wallet PIN, subject to the same lockout as payments
func ChangePinHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		walletID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ChangePinRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := env.Ledger.ChangePin(c.Request.Context(), userID, walletID, req.CurrentPin, req.NewPin); err != nil {
			env.afterPinFailure(c, userID, walletID, err)
			respondLedgerError(c, err, "Failed to change PIN", logrus.Fields{"wallet_id": walletID})
			return
		}
		logrus.WithFields(logrus.Fields{"user_id": userID, "wallet_id": walletID}).Info("Wallet PIN changed")
		c.JSON(http.StatusOK, gin.H{"message": "PIN updated"})
	}
}

// UpdateBalanceHandler deposits into or withdraws from a wallet after PIN and limit checks
func UpdateBalanceHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		walletID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req UpdateBalanceRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		wallet, entry, err := env.Ledger.UpdateBalance(ctx, ledger.BalanceChange{
			UserID:      userID,
			WalletID:    walletID,
			Pin:         req.Pin,
			Amount:      req.Amount,
			Type:        req.Type,
			Category:    req.Category,
			Description: req.Description,
		})
		if err != nil {
			env.afterPinFailure(c, userID, walletID, err)
			respondLedgerError(c, err, "Failed to update balance", logrus.Fields{
				"user_id":   userID,     // User ID
				"wallet_id": walletID,   // Wallet ID
				"type":      req.Type,   // Transaction type
				"amount":    req.Amount, // Requested amount
			})
			return
		}
		// Log successful balance change
		logrus.WithFields(logrus.Fields{
			"user_id":   userID,          // User ID
			"wallet_id": wallet.ID,       // Wallet ID
			"amount":    entry.Amount,    // Signed amount
			"type":      entry.Type,      // Transaction type
			"reference": entry.Reference, // Ledger reference
		}).Info(capitalize(strings.ToLower(entry.Type)) + " transaction")
		env.invalidateUsers(ctx, userID)              // Invalidate wallet and history cache
		env.Notifier.TransactionCompleted(ctx, entry) // Best effort
		c.JSON(http.StatusOK, gin.H{"message": "Balance updated", "wallet": wallet, "transaction": entry})
	}
}

// afterPinFailure drops the owner's cached wallet reads when err is a PIN failure or an
// open lockout, and warns the owner when this failure locked the wallet
func (e *Env) afterPinFailure(c *gin.Context, userID, walletID uint, err error) {
	var pinErr *ledger.PinError
	var lockedErr *ledger.LockedError
	if !errors.As(err, &pinErr) && !errors.As(err, &lockedErr) {
		return
	}
	ctx := c.Request.Context()
	e.invalidateUsers(ctx, userID) // Attempts or lock changed
	if pinErr != nil && pinErr.LockedUntil != nil {
		e.Notifier.WalletLocked(ctx, userID, walletID, *pinErr.LockedUntil)
	}
}
