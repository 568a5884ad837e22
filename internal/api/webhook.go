package api

import (
	"errors"   // Error matching
	"io"       // Body reading
	"net/http" // HTTP status codes
	"time"     // Dedupe window

	"instapay/internal/ledger"   // Wallet credit
	"instapay/internal/metrics"  // Webhook counters
	"instapay/internal/payments" // Payment processor
	"instapay/internal/utils"    // Redis helpers

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

const (
	maxWebhookBody  = 64 << 10       // Stripe payloads are far smaller
	webhookDedupTTL = 72 * time.Hour // Stripe retries for up to three days
)

func webhookEventKey(id string) string {
	return "stripe:event:" + id
}

// StripeWebhookHandler receives checkout outcomes. It answers 2xx for everything it has
// handled or deliberately ignored, so the processor only retries real failures.
func StripeWebhookHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		if env.Payments == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Card payments are not available"})
			return
		}
		payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		event, err := env.Payments.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			logrus.WithError(err).Warn("Webhook rejected")
			metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
			return
		}

		ctx := c.Request.Context()
		fresh, err := utils.MarkOnce(ctx, env.Redis, webhookEventKey(event.ID), webhookDedupTTL)
		if err != nil {
			// Redis down: the unique external reference still prevents a double credit
			logrus.WithField("event_id", event.ID).WithError(err).Warn("Webhook dedupe unavailable")
			fresh = true
		}
		if !fresh {
			metrics.WebhookEvents.WithLabelValues(event.Type, "duplicate").Inc()
			c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
			return
		}

		result, err := env.handleStripeEvent(c, event)
		if err != nil {
			_ = utils.DeleteCache(ctx, env.Redis, webhookEventKey(event.ID)) // Let the retry through
			metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
			respondInternal(c, err, "Failed to process webhook", logrus.Fields{"event_id": event.ID, "event_type": event.Type})
			return
		}
		metrics.WebhookEvents.WithLabelValues(event.Type, result).Inc()
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

// handleStripeEvent applies one verified event and returns the metrics result label.
// A returned error is transient and makes the processor retry.
func (e *Env) handleStripeEvent(c *gin.Context, event *payments.WebhookEvent) (string, error) {
	ctx := c.Request.Context()
	fields := logrus.Fields{"event_id": event.ID, "event_type": event.Type}

	switch event.Type {
	case payments.EventSessionCompleted, payments.EventAsyncPaymentSucceeded:
		if !payments.Paid(event.Session) {
			// Delayed methods report completed first and async_payment_succeeded later
			return "pending", nil
		}
		s, err := payments.SettlementFor(event.Session)
		if err != nil {
			logrus.WithFields(fields).WithError(err).Error("Webhook session unusable")
			return "ignored", nil
		}
		wallet, entry, err := e.Ledger.CreditExternal(ctx, ledger.ExternalCredit{
			UserID:      s.UserID,
			WalletID:    s.WalletID,
			Amount:      s.Amount,
			Currency:    s.Currency,
			ExternalRef: s.SessionID,
			Description: "Card top-up",
			Metadata:    map[string]any{"stripe_event_id": event.ID},
		})
		switch {
		case errors.Is(err, ledger.ErrAlreadyProcessed):
			return "duplicate", nil
		case errors.Is(err, ledger.ErrWalletInactive):
			// Wallet closed after the session was opened
			logrus.WithFields(fields).WithFields(logrus.Fields{
				"wallet_id": s.WalletID, // Wallet ID
				"user_id":   s.UserID,   // User ID
				"amount":    s.Amount,   // Captured amount
				"currency":  s.Currency, // Captured currency
			}).Error("Top-up refused by closed wallet")
			e.Notifier.TopUpNotCredited(ctx, s.UserID, s.WalletID, s.SessionID, "wallet closed")
			return "refund_required", nil
		case errors.Is(err, ledger.ErrWalletNotFound), errors.Is(err, ledger.ErrCurrencyMismatch),
			errors.Is(err, ledger.ErrInvalidAmount):
			// Retrying cannot fix these, the money has to be refunded by hand
			logrus.WithFields(fields).WithFields(logrus.Fields{
				"wallet_id": s.WalletID, // Wallet ID
				"user_id":   s.UserID,   // User ID
				"amount":    s.Amount,   // Captured amount
				"currency":  s.Currency, // Captured currency
			}).WithError(err).Error("Top-up cannot be credited")
			return "ignored", nil
		case err != nil:
			return "", err
		}
		logrus.WithFields(fields).WithFields(logrus.Fields{
			"user_id":   entry.UserID,    // User ID
			"wallet_id": wallet.ID,       // Wallet ID
			"amount":    entry.Amount,    // Credited amount
			"reference": entry.Reference, // Ledger reference
		}).Info("Top-up transaction")
		e.invalidateUsers(ctx, entry.UserID)        // Invalidate wallet and history cache
		e.Notifier.TransactionCompleted(ctx, entry) // Best effort
		return "credited", nil

	case payments.EventAsyncPaymentFailed, payments.EventSessionExpired:
		s, err := payments.SettlementFor(event.Session)
		if err != nil {
			return "ignored", nil
		}
		reason := "payment failed"
		if event.Type == payments.EventSessionExpired {
			reason = "checkout expired"
		}
		logrus.WithFields(fields).WithFields(logrus.Fields{
			"user_id":   s.UserID,   // User ID
			"wallet_id": s.WalletID, // Wallet ID
		}).Info("Top-up failed")
		e.Notifier.PaymentFailed(ctx, s.UserID, s.WalletID, s.SessionID, reason)
		return "failed", nil
	}
	return "ignored", nil
}
