package api

import (
	"net/http" // HTTP status codes

	"instapay/internal/ledger" // Balance mutations

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money amounts
	"github.com/sirupsen/logrus"    // Logging library
)

// TransferRequest represents a transfer request. Exactly one recipient selector is expected.
type TransferRequest struct {
	FromWalletID   uint            `json:"from_wallet_id" binding:"required"`         // Source wallet
	ToWalletID     uint            `json:"to_wallet_id"`                              // Recipient wallet
	RecipientEmail string          `json:"recipient_email" binding:"omitempty,email"` // Recipient user email
	BeneficiaryID  uint            `json:"beneficiary_id"`                            // Saved beneficiary
	Amount         decimal.Decimal `json:"amount"`                                    // Amount, must be positive
	Pin            string          `json:"pin" binding:"required"`                    // Source wallet PIN
	Description    string          `json:"description" binding:"max=255"`             // Free text
}

func (r *TransferRequest) selectors() int {
	n := 0
	for _, set := range []bool{r.ToWalletID != 0, r.RecipientEmail != "", r.BeneficiaryID != 0} {
		if set {
			n++
		}
	}
	return n
}

// TransferHandler moves money from one of the caller's wallets to another wallet
func TransferHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c) // Get userID from context
		if !ok {
			return
		}
		var req TransferRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		if req.selectors() != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Provide exactly one of to_wallet_id, recipient_email or beneficiary_id"})
			return
		}
		ctx := c.Request.Context()
		from, err := env.Ledger.GetOwnedWallet(ctx, userID, req.FromWalletID)
		if err != nil {
			respondLedgerError(c, err, "Transfer failed", nil)
			return
		}
		toWalletID, err := env.Ledger.ResolveRecipient(ctx, userID, ledger.Recipient{
			WalletID:      req.ToWalletID,
			Email:         req.RecipientEmail,
			BeneficiaryID: req.BeneficiaryID,
		}, from.Currency)
		if err != nil {
			respondLedgerError(c, err, "Transfer failed", logrus.Fields{"user_id": userID})
			return
		}

		res, err := env.Ledger.Transfer(ctx, ledger.TransferInput{
			UserID:       userID,
			FromWalletID: from.ID,
			ToWalletID:   toWalletID,
			Pin:          req.Pin,
			Amount:       req.Amount,
			Description:  req.Description,
		})
		if err != nil {
			env.afterPinFailure(c, userID, from.ID, err)
			// Log the error with context
			logrus.WithFields(logrus.Fields{
				"from_wallet_id": from.ID,    // Sender wallet ID
				"to_wallet_id":   toWalletID, // Recipient wallet ID
				"amount":         req.Amount, // Transfer amount
				"error":          err.Error(),
			}).Warn("Transfer failed")
			respondLedgerError(c, err, "Transfer failed", logrus.Fields{"user_id": userID})
			return
		}
		// Log successful transfer
		logrus.WithFields(logrus.Fields{
			"from_user_id":    res.Debit.UserID,         // Sender user ID
			"to_user_id":      res.Credit.UserID,        // Recipient user ID
			"amount":          res.Credit.Amount,        // Transfer amount
			"group_reference": res.Debit.GroupReference, // Shared by both legs
		}).Info("Transfer transaction")
		// Invalidate wallet and transaction history cache for both users
		env.invalidateUsers(ctx, res.Debit.UserID, res.Credit.UserID)
		env.Notifier.TransferCompleted(ctx, res)
		c.JSON(http.StatusOK, gin.H{
			"message":     "Transfer successful",
			"wallet":      res.From,
			"transaction": res.Debit,
		})
	}
}
