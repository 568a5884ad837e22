// Package notify records in-app notifications and fans them out to email and the event bus.
// Every method here is best effort: failures are logged and never undo a committed ledger change.
package notify

import (
	"context" // Context propagation
	"fmt"     // Error and message formatting
	"time"    // Time and durations

	"instapay/internal/domain" // Importing domain models
	"instapay/internal/events" // Event bus
	"instapay/internal/ledger" // Balance mutations

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Notifier creates notifications for ledger events
type Notifier struct {
	db        *gorm.DB
	publisher events.Publisher
	mailer    Mailer
	now       func() time.Time
}

// New builds a Notifier. A nil publisher or mailer disables that channel.
func New(db *gorm.DB, publisher events.Publisher, mailer Mailer) *Notifier {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Notifier{
		db:        db,
		publisher: publisher,
		mailer:    mailer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Notify stores a notification for userID and emails it when the user allows email
func (n *Notifier) Notify(ctx context.Context, userID uint, kind, title, message string) (*domain.Notification, error) {
	row := domain.Notification{
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: n.now(),
	}
	if err := n.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	n.email(ctx, userID, title, message)
	return &row, nil
}

func (n *Notifier) email(ctx context.Context, userID uint, subject, body string) {
	if isNilMailer(n.mailer) {
		return
	}
	var user domain.User
	if err := n.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		logrus.WithField("user_id", userID).WithError(err).Warn("Email skipped, user lookup failed")
		return
	}
	if user.Email == "" || !user.WantsEmail() {
		return
	}
	if err := n.mailer.Send(ctx, user.Email, user.FullName(), subject, body); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": userID, "subject": subject}).WithError(err).Warn("Failed to send email")
	}
}

func (n *Notifier) publish(ctx context.Context, key string, ev events.Event) {
	ev.Type = key
	ev.OccurredAt = n.now()
	if err := n.publisher.Publish(ctx, key, ev); err != nil {
		logrus.WithField("routing_key", key).WithError(err).Warn("Failed to publish event")
	}
}

func (n *Notifier) store(ctx context.Context, userID uint, kind, title, message string) {
	if _, err := n.Notify(ctx, userID, kind, title, message); err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to create notification")
	}
}

// TransactionCompleted announces a deposit, withdrawal or card top-up
func (n *Notifier) TransactionCompleted(ctx context.Context, entry *domain.Transaction) {
	amount := entry.Amount.Abs().StringFixed(2)
	var title, message string
	switch {
	case entry.Type == domain.TxDeposit:
		title = "Deposit received"
		message = fmt.Sprintf("%s %s was added to your wallet. New balance: %s %s.",
			amount, entry.Currency, entry.BalanceAfter.StringFixed(2), entry.Currency)
	case entry.Type == domain.TxWithdrawal:
		title = "Withdrawal completed"
		message = fmt.Sprintf("%s %s was withdrawn from your wallet. New balance: %s %s.",
			amount, entry.Currency, entry.BalanceAfter.StringFixed(2), entry.Currency)
	default:
		title = "Transaction completed"
		message = fmt.Sprintf("A %s of %s %s was completed.", entry.Type, amount, entry.Currency)
	}
	n.store(ctx, entry.UserID, domain.NotifyTransaction, title, message)
	n.publish(ctx, events.TransactionCompleted, events.Event{
		UserID:    entry.UserID,
		WalletID:  entry.WalletID,
		Reference: entry.Reference,
		Amount:    entry.Amount,
		Currency:  entry.Currency,
		Data:      map[string]any{"transaction_type": entry.Type, "category": entry.Category},
	})
}

// TransferCompleted notifies sender and recipient
func (n *Notifier) TransferCompleted(ctx context.Context, res *ledger.TransferResult) {
	amount := res.Credit.Amount.StringFixed(2)
	currency := res.Credit.Currency
	n.store(ctx, res.Debit.UserID, domain.NotifyTransaction, "Transfer sent",
		fmt.Sprintf("You sent %s %s. New balance: %s %s.", amount, currency, res.Debit.BalanceAfter.StringFixed(2), currency))
	n.store(ctx, res.Credit.UserID, domain.NotifyTransaction, "Transfer received",
		fmt.Sprintf("You received %s %s. New balance: %s %s.", amount, currency, res.Credit.BalanceAfter.StringFixed(2), currency))
	n.publish(ctx, events.TransferCompleted, events.Event{
		UserID:    res.Debit.UserID,
		WalletID:  res.Debit.WalletID,
		Reference: res.Debit.GroupReference,
		Amount:    res.Credit.Amount,
		Currency:  currency,
		Data: map[string]any{
			"recipient_user_id":   res.Credit.UserID,
			"recipient_wallet_id": res.Credit.WalletID,
		},
	})
}

// WalletLocked warns the owner after repeated PIN failures
func (n *Notifier) WalletLocked(ctx context.Context, userID, walletID uint, until time.Time) {
	n.store(ctx, userID, domain.NotifySecurity, "Wallet locked",
		fmt.Sprintf("Your wallet was locked after too many incorrect PIN attempts. Try again after %s UTC.",
			until.UTC().Format("2006-01-02 15:04")))
	n.publish(ctx, events.WalletLocked, events.Event{
		UserID:   userID,
		WalletID: walletID,
		Data:     map[string]any{"locked_until": until.UTC()},
	})
}

// PaymentFailed tells the user a card top-up did not go through
func (n *Notifier) PaymentFailed(ctx context.Context, userID, walletID uint, reference, reason string) {
	n.store(ctx, userID, domain.NotifyPayment, "Top-up failed",
		fmt.Sprintf("Your card top-up could not be completed (%s). No money was taken from your wallet.", reason))
	n.publish(ctx, events.PaymentFailed, events.Event{
		UserID:    userID,
		WalletID:  walletID,
		Reference: reference,
		Data:      map[string]any{"reason": reason},
	})
}

// TopUpNotCredited tells the user a captured card payment could not reach the wallet
// and is pending a manual refund
func (n *Notifier) TopUpNotCredited(ctx context.Context, userID, walletID uint, reference, reason string) {
	n.store(ctx, userID, domain.NotifyPayment, "Top-up not credited",
		fmt.Sprintf("Your card payment was received but could not be added to your wallet (%s). It will be refunded.", reason))
	n.publish(ctx, events.PaymentFailed, events.Event{
		UserID:    userID,
		WalletID:  walletID,
		Reference: reference,
		Data:      map[string]any{"reason": reason, "refund": true},
	})
}

// isNilMailer catches a typed nil *SendGridMailer stored in the interface
func isNilMailer(m Mailer) bool {
	if m == nil {
		return true
	}
	sg, ok := m.(*SendGridMailer)
	return ok && sg == nil
}
