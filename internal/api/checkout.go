package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes

	"instapay/internal/domain"   // Importing domain models
	"instapay/internal/payments" // Payment processor

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
)

// CheckoutRequest asks for a card top-up of a wallet
type CheckoutRequest struct {
	Amount decimal.Decimal `json:"amount"` // Amount in the wallet currency
}

// CreateCheckoutHandler opens a hosted card payment page for a top-up. The wallet is only
// credited when the processor confirms the payment through the webhook.
func CreateCheckoutHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		walletID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req CheckoutRequest
		if !bindJSON(c, &req) {
			return
		}
		if !req.Amount.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
			return
		}
		ctx := c.Request.Context()
		wallet, err := env.Ledger.GetOwnedWallet(ctx, userID, walletID)
		if err != nil {
			respondLedgerError(c, err, "Failed to fetch wallet", logrus.Fields{"wallet_id": walletID})
			return
		}
		if wallet.Status != domain.WalletActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "Wallet is not active"})
			return
		}
		if env.Payments == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Card payments are not available"})
			return
		}
		var email string
		if u := currentUser(c); u != nil {
			email = u.Email
		}
		session, err := env.Payments.CreateCheckoutSession(ctx, payments.CheckoutInput{
			WalletID: wallet.ID,
			UserID:   userID,
			Email:    email,
			Amount:   req.Amount,
			Currency: wallet.Currency,
		})
		switch {
		case errors.Is(err, payments.ErrNotConfigured):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Card payments are not available"})
			return
		case errors.Is(err, payments.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": capitalize(err.Error())})
			return
		case err != nil:
			logrus.WithFields(logrus.Fields{
				"user_id":   userID,     // User ID
				"wallet_id": walletID,   // Wallet ID
				"amount":    req.Amount, // Requested amount
			}).WithError(err).Error("Checkout session failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session"})
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":    userID,     // User ID
			"wallet_id":  walletID,   // Wallet ID
			"amount":     req.Amount, // Requested amount
			"session_id": session.ID, // Processor session
		}).Info("Checkout session created")
		c.JSON(http.StatusCreated, session)
	}
}
