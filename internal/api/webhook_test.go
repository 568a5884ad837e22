package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"instapay/internal/domain"
	"instapay/internal/events"
	"instapay/internal/payments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

func sessionEvent(eventID, eventType, sessionID, status string, amount int64, walletID, userID uint) []byte {
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": %q,
  "api_version": "2023-10-16",
  "data": {"object": {
    "id": %q,
    "object": "checkout.session",
    "payment_status": %q,
    "amount_total": %d,
    "currency": "usd",
    "metadata": {"wallet_id": "%d", "user_id": "%d"}
  }}
}`, eventID, eventType, sessionID, status, amount, walletID, userID))
}

func (h *harness) deliver(payload []byte, secret string) *httptest.ResponseRecorder {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestWebhookCreditsWalletOnce(t *testing.T) {
	h := newHarness(t)
	u, _ := h.user(t, "ada@example.com", domain.RoleUser)
	wallet := h.wallet(t, u.ID, "USD", "10")
	payload := sessionEvent("evt_1", payments.EventSessionCompleted, "cs_1", "paid", 2550, wallet.ID, u.ID)

	w := h.deliver(payload, webhookSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, h.reload(t, wallet.ID).Balance.Equal(dec("35.50")))

	// Same event again: caught by the Redis marker
	w = h.deliver(payload, webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["duplicate"])

	// New event id for the same session: caught by the ledger
	h.redis.FlushAll()
	w = h.deliver(sessionEvent("evt_2", payments.EventAsyncPaymentSucceeded, "cs_1", "paid", 2550, wallet.ID, u.ID), webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)

	assert.True(t, h.reload(t, wallet.ID).Balance.Equal(dec("35.50")))
	var rows []domain.Transaction
	require.NoError(t, h.db.Where("wallet_id = ?", wallet.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.TxDeposit, rows[0].Type)
	assert.Equal(t, domain.CategoryTopUp, rows[0].Category)
	require.NotNil(t, rows[0].ExternalReference)
	assert.Equal(t, "cs_1", *rows[0].ExternalReference)
	assert.Equal(t, []string{events.TransactionCompleted}, h.events.Keys())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	u, _ := h.user(t, "ada@example.com", domain.RoleUser)
	wallet := h.wallet(t, u.ID, "USD", "0")
	payload := sessionEvent("evt_1", payments.EventSessionCompleted, "cs_1", "paid", 1000, wallet.ID, u.ID)

	w := h.deliver(payload, "whsec_wrong")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.True(t, h.reload(t, wallet.ID).Balance.IsZero())
}

func TestWebhookIgnoresUnpaidAndUnknownEvents(t *testing.T) {
	h := newHarness(t)
	u, _ := h.user(t, "ada@example.com", domain.RoleUser)
	wallet := h.wallet(t, u.ID, "USD", "0")

	w := h.deliver(sessionEvent("evt_1", payments.EventSessionCompleted, "cs_1", "unpaid", 1000, wallet.ID, u.ID), webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.deliver([]byte(`{"id":"evt_2","object":"event","type":"customer.created","api_version":"2023-10-16","data":{"object":{"id":"cus_1","object":"customer"}}}`), webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)

	// Wallet of someone else: acknowledged, never credited
	w = h.deliver(sessionEvent("evt_3", payments.EventSessionCompleted, "cs_3", "paid", 1000, wallet.ID, u.ID+1), webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.True(t, h.reload(t, wallet.ID).Balance.IsZero())
}

func TestWebhookFailedPaymentNotifiesUser(t *testing.T) {
	h := newHarness(t)
	u, _ := h.user(t, "ada@example.com", domain.RoleUser)
	wallet := h.wallet(t, u.ID, "USD", "0")

	w := h.deliver(sessionEvent("evt_1", payments.EventSessionExpired, "cs_1", "unpaid", 1000, wallet.ID, u.ID), webhookSecret)
	require.Equal(t, http.StatusOK, w.Code)

	var note domain.Notification
	require.NoError(t, h.db.Where("user_id = ?", u.ID).First(&note).Error)
	assert.Equal(t, domain.NotifyPayment, note.Type)
	assert.Contains(t, note.Message, "checkout expired")
	assert.Equal(t, []string{events.PaymentFailed}, h.events.Keys())
}

func TestWebhookDoesNotCreditClosedWallet(t *testing.T) {
	h := newHarness(t)
	u, tok := h.user(t, "ada@example.com", domain.RoleUser)
	h.wallet(t, u.ID, "EUR", "0")
	wallet := h.wallet(t, u.ID, "USD", "0")

	w := h.do(http.MethodPost, "/api/wallets/"+itoa(wallet.ID)+"/close", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.deliver(sessionEvent("evt_1", payments.EventSessionCompleted, "cs_1", "paid", 5000, wallet.ID, u.ID), webhookSecret)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := h.reload(t, wallet.ID)
	assert.Equal(t, domain.WalletClosed, got.Status)
	assert.True(t, got.Balance.IsZero())
	var count int64
	require.NoError(t, h.db.Model(&domain.Transaction{}).Where("wallet_id = ?", wallet.ID).Count(&count).Error)
	assert.Zero(t, count)

	var note domain.Notification
	require.NoError(t, h.db.Where("user_id = ?", u.ID).First(&note).Error)
	assert.Equal(t, "Top-up not credited", note.Title)
	assert.Equal(t, []string{events.PaymentFailed}, h.events.Keys())
}

type fakeGateway struct {
	payments.Gateway
	inputs []payments.CheckoutInput
	err    error
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, in payments.CheckoutInput) (*payments.CheckoutSession, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &payments.CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.com/c/pay/cs_new"}, nil
}

func TestCreateCheckout(t *testing.T) {
	h := newHarness(t)
	u, tok := h.user(t, "ada@example.com", domain.RoleUser)
	wallet := h.wallet(t, u.ID, "USD", "0")
	path := "/api/wallets/" + itoa(wallet.ID) + "/checkout"

	// Processor without an API key
	w := h.do(http.MethodPost, path, tok, obj{"amount": "20"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	gw := &fakeGateway{Gateway: h.env.Payments}
	h.env.Payments = gw

	w = h.do(http.MethodPost, path, tok, obj{"amount": "20"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "cs_new", body["session_id"])
	assert.Contains(t, body["url"], "checkout.stripe.com")
	require.Len(t, gw.inputs, 1)
	assert.Equal(t, wallet.ID, gw.inputs[0].WalletID)
	assert.Equal(t, u.ID, gw.inputs[0].UserID)
	assert.Equal(t, "USD", gw.inputs[0].Currency)
	assert.Equal(t, "ada@example.com", gw.inputs[0].Email)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, path, tok, obj{"amount": "-1"}).Code)

	gw.err = fmt.Errorf("%w: too precise", payments.ErrInvalidAmount)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, path, tok, obj{"amount": "1.001"}).Code)

	require.NoError(t, h.db.Model(wallet).Update("status", domain.WalletFrozen).Error)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, path, tok, obj{"amount": "20"}).Code)

	// No ledger rows until the webhook confirms the payment
	var count int64
	require.NoError(t, h.db.Model(&domain.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}
