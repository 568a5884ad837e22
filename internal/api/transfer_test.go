package api

import (
	"net/http"
	"testing"

	"instapay/internal/domain"
	"instapay/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferByWalletIDConservesMoney(t *testing.T) {
	h := newHarness(t)
	alice, tok := h.user(t, "alice@example.com", domain.RoleUser)
	bob, bobTok := h.user(t, "bob@example.com", domain.RoleUser)
	from := h.wallet(t, alice.ID, "USD", "200")
	to := h.wallet(t, bob.ID, "USD", "10")

	// Warm Bob's cache so the transfer has something to invalidate
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/wallets", bobTok, nil).Code)

	w := h.do(http.MethodPost, "/api/transfers", tok, obj{
		"from_wallet_id": from.ID, "to_wallet_id": to.ID, "amount": "75.50", "pin": testPin, "description": "rent",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Transfer successful", decode(t, w)["message"])

	assert.True(t, h.reload(t, from.ID).Balance.Equal(dec("124.50")))
	assert.True(t, h.reload(t, to.ID).Balance.Equal(dec("85.50")))

	var rows []domain.Transaction
	require.NoError(t, h.db.Where("type = ?", domain.TxTransfer).Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].GroupReference, rows[1].GroupReference)
	assert.True(t, rows[0].Amount.Add(rows[1].Amount).IsZero())

	w = h.do(http.MethodGet, "/api/wallets", bobTok, nil)
	body := decode(t, w)
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, "85.5", body["wallets"].([]any)[0].(map[string]any)["balance"])

	assert.Equal(t, []string{events.TransferCompleted}, h.events.Keys())
	var notes int64
	require.NoError(t, h.db.Model(&domain.Notification{}).Count(&notes).Error)
	assert.Equal(t, int64(2), notes)
}

func TestTransferByEmailAndBeneficiary(t *testing.T) {
	h := newHarness(t)
	alice, tok := h.user(t, "alice@example.com", domain.RoleUser)
	bob, _ := h.user(t, "bob@example.com", domain.RoleUser)
	from := h.wallet(t, alice.ID, "USD", "100")
	to := h.wallet(t, bob.ID, "USD", "0")

	w := h.do(http.MethodPost, "/api/transfers", tok, obj{
		"from_wallet_id": from.ID, "recipient_email": "BOB@example.com", "amount": "10", "pin": testPin,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ben := domain.Beneficiary{UserID: alice.ID, Name: "Bob", WalletID: &to.ID}
	require.NoError(t, h.db.Create(&ben).Error)
	w = h.do(http.MethodPost, "/api/transfers", tok, obj{
		"from_wallet_id": from.ID, "beneficiary_id": ben.ID, "amount": "5", "pin": testPin,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, h.reload(t, to.ID).Balance.Equal(dec("15")))
}

func TestTransferRejections(t *testing.T) {
	h := newHarness(t)
	alice, tok := h.user(t, "alice@example.com", domain.RoleUser)
	bob, _ := h.user(t, "bob@example.com", domain.RoleUser)
	from := h.wallet(t, alice.ID, "USD", "100")
	usd := h.wallet(t, bob.ID, "USD", "0")
	eur := h.wallet(t, bob.ID, "EUR", "0")

	tests := []struct {
		name string
		body obj
		code int
	}{
		{"no recipient", obj{"from_wallet_id": from.ID, "amount": "1", "pin": testPin}, http.StatusBadRequest},
		{"two recipients", obj{"from_wallet_id": from.ID, "to_wallet_id": usd.ID, "recipient_email": "bob@example.com", "amount": "1", "pin": testPin}, http.StatusBadRequest},
		{"same wallet", obj{"from_wallet_id": from.ID, "to_wallet_id": from.ID, "amount": "1", "pin": testPin}, http.StatusBadRequest},
		{"currency mismatch", obj{"from_wallet_id": from.ID, "to_wallet_id": eur.ID, "amount": "1", "pin": testPin}, http.StatusBadRequest},
		{"unknown recipient", obj{"from_wallet_id": from.ID, "to_wallet_id": 9999, "amount": "1", "pin": testPin}, http.StatusNotFound},
		{"unknown email", obj{"from_wallet_id": from.ID, "recipient_email": "nobody@example.com", "amount": "1", "pin": testPin}, http.StatusNotFound},
		{"foreign source", obj{"from_wallet_id": usd.ID, "to_wallet_id": from.ID, "amount": "1", "pin": testPin}, http.StatusNotFound},
		{"insufficient funds", obj{"from_wallet_id": from.ID, "to_wallet_id": usd.ID, "amount": "100.01", "pin": testPin}, http.StatusBadRequest},
		{"zero amount", obj{"from_wallet_id": from.ID, "to_wallet_id": usd.ID, "amount": "0", "pin": testPin}, http.StatusBadRequest},
		{"wrong pin", obj{"from_wallet_id": from.ID, "to_wallet_id": usd.ID, "amount": "1", "pin": "0000"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodPost, "/api/transfers", tok, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
	assert.True(t, h.reload(t, from.ID).Balance.Equal(dec("100")))
	assert.True(t, h.reload(t, usd.ID).Balance.IsZero())
}
