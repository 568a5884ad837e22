package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"instapay/internal/db/dbtest"
	"instapay/internal/domain"
	"instapay/internal/events"
	"instapay/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, toEmail, _, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: toEmail, subject: subject, body: body})
	return nil
}

func seedUser(t *testing.T, db *gorm.DB, email string, settings domain.JSONMap) *domain.User {
	u := &domain.User{ExternalID: "sub_" + email, Email: email, FirstName: "Ada", NotificationSettings: settings}
	require.NoError(t, db.Create(u).Error)
	return u
}

func unread(t *testing.T, db *gorm.DB, userID uint) []domain.Notification {
	var rows []domain.Notification
	require.NoError(t, db.Where("user_id = ? AND is_read = ?", userID, false).Order("id").Find(&rows).Error)
	return rows
}

func TestTransactionCompletedNotifiesEmailsAndPublishes(t *testing.T) {
	db := dbtest.New(t)
	rec := &events.Recorder{}
	mailer := &fakeMailer{}
	n := New(db, rec, mailer)
	u := seedUser(t, db, "ada@example.com", nil)

	n.TransactionCompleted(context.Background(), &domain.Transaction{
		UserID: u.ID, WalletID: 7, Reference: "ref-1", Type: domain.TxDeposit,
		Amount: decimal.RequireFromString("25"), BalanceAfter: decimal.RequireFromString("125"), Currency: "USD",
	})

	rows := unread(t, db, u.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "Deposit received", rows[0].Title)
	assert.Contains(t, rows[0].Message, "25.00 USD")
	assert.Equal(t, domain.NotifyTransaction, rows[0].Type)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ada@example.com", mailer.sent[0].to)

	assert.Equal(t, []string{events.TransactionCompleted}, rec.Keys())
	ev := rec.Messages()[0].Body.(events.Event)
	assert.Equal(t, "ref-1", ev.Reference)
	assert.Equal(t, uint(7), ev.WalletID)
}

func TestEmailOptOut(t *testing.T) {
	db := dbtest.New(t)
	mailer := &fakeMailer{}
	n := New(db, nil, mailer)
	u := seedUser(t, db, "quiet@example.com", domain.JSONMap{"email": false})

	_, err := n.Notify(context.Background(), u.ID, domain.NotifySystem, "Hello", "World")
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
	assert.Len(t, unread(t, db, u.ID), 1)
}

func TestDeliveryFailuresAreNotFatal(t *testing.T) {
	db := dbtest.New(t)
	rec := &events.Recorder{Err: errors.New("broker down")}
	n := New(db, rec, &fakeMailer{err: errors.New("smtp down")})
	u := seedUser(t, db, "ada@example.com", nil)

	n.WalletLocked(context.Background(), u.ID, 3, time.Now().Add(30*time.Minute))

	rows := unread(t, db, u.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.NotifySecurity, rows[0].Type)
}

func TestTransferCompletedNotifiesBothSides(t *testing.T) {
	db := dbtest.New(t)
	rec := &events.Recorder{}
	n := New(db, rec, nil)
	sender := seedUser(t, db, "alice@example.com", nil)
	recipient := seedUser(t, db, "bob@example.com", nil)

	amount := decimal.RequireFromString("10")
	n.TransferCompleted(context.Background(), &ledger.TransferResult{
		Debit: &domain.Transaction{UserID: sender.ID, WalletID: 1, Amount: amount.Neg(), Currency: "USD",
			BalanceAfter: decimal.RequireFromString("90"), GroupReference: "grp"},
		Credit: &domain.Transaction{UserID: recipient.ID, WalletID: 2, Amount: amount, Currency: "USD",
			BalanceAfter: decimal.RequireFromString("10"), GroupReference: "grp"},
	})

	require.Len(t, unread(t, db, sender.ID), 1)
	require.Len(t, unread(t, db, recipient.ID), 1)
	assert.Equal(t, "Transfer received", unread(t, db, recipient.ID)[0].Title)
	assert.Equal(t, []string{events.TransferCompleted}, rec.Keys())
}

func TestPaymentFailed(t *testing.T) {
	db := dbtest.New(t)
	rec := &events.Recorder{}
	n := New(db, rec, nil)
	u := seedUser(t, db, "ada@example.com", nil)

	n.PaymentFailed(context.Background(), u.ID, 4, "cs_test_1", "session expired")

	rows := unread(t, db, u.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.NotifyPayment, rows[0].Type)
	assert.Contains(t, rows[0].Message, "session expired")
	assert.Equal(t, []string{events.PaymentFailed}, rec.Keys())
}

func TestTopUpNotCredited(t *testing.T) {
	db := dbtest.New(t)
	rec := &events.Recorder{}
	n := New(db, rec, nil)
	u := seedUser(t, db, "ada@example.com", nil)

	n.TopUpNotCredited(context.Background(), u.ID, 4, "cs_test_2", "wallet closed")

	rows := unread(t, db, u.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "Top-up not credited", rows[0].Title)
	assert.Contains(t, rows[0].Message, "refunded")
	require.Len(t, rec.Messages(), 1)
	assert.Equal(t, events.PaymentFailed, rec.Messages()[0].RoutingKey)
}

func TestNilSendGridMailerDisablesEmail(t *testing.T) {
	assert.Nil(t, NewSendGridMailer("", "no-reply@instapay.app"))
	var m Mailer = NewSendGridMailer("", "x")
	assert.True(t, isNilMailer(m))
	assert.False(t, isNilMailer(&fakeMailer{}))
}
