package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"instapay/internal/config"
	"instapay/internal/db/dbtest"
	"instapay/internal/domain"
	"instapay/internal/events"
	"instapay/internal/ledger"
	"instapay/internal/notify"
	"instapay/internal/payments"
	"instapay/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	jwtSecret     = "api-test-secret"
	webhookSecret = "whsec_api_test"
	testPin       = "1234"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	db     *gorm.DB
	redis  *miniredis.Miniredis
	events *events.Recorder
	env    *Env
	router *gin.Engine
	now    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{db: conn, redis: mr, events: &events.Recorder{}, now: time.Now().UTC()}
	cfg := &config.Config{
		DefaultCurrency:         "USD",
		DefaultTransactionLimit: "1000",
		DefaultDailyLimit:       "1500",
		DefaultMonthlyLimit:     "5000",
		CacheTTLSeconds:         60,
		PinMaxAttempts:          3,
		PinLockoutMinutes:       30,
	}
	clock := func() time.Time { return h.now }
	h.env = &Env{
		DB:       conn,
		Redis:    rdb,
		Ledger:   ledger.NewService(conn, ledger.Options{MaxPinAttempts: 3, LockoutWindow: 30 * time.Minute, Now: clock}),
		Notifier: notify.New(conn, h.events, nil),
		Payments: payments.NewProcessor(payments.Options{WebhookSecret: webhookSecret}),
		Config:   cfg,
		Now:      clock,
	}
	h.router = NewRouter(h.env, utils.NewTokenVerifier(jwtSecret, "", "", ""))
	return h
}

// user stores a user and returns it with a bearer token for it
func (h *harness) user(t *testing.T, email, role string) (*domain.User, string) {
	t.Helper()
	u := &domain.User{ExternalID: "idp|" + email, Email: email, Role: role, Currency: "USD"}
	require.NoError(t, h.db.Create(u).Error)
	tok, err := utils.GenerateJWT(utils.Claims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: u.ExternalID},
	}, jwtSecret, time.Hour)
	require.NoError(t, err)
	return u, tok
}

func (h *harness) wallet(t *testing.T, userID uint, currency, balance string) *domain.Wallet {
	t.Helper()
	hash, err := utils.HashPin(testPin)
	require.NoError(t, err)
	var count int64
	require.NoError(t, h.db.Model(&domain.Wallet{}).Where("user_id = ?", userID).Count(&count).Error)
	w := &domain.Wallet{
		UserID:           userID,
		Name:             currency + " Wallet",
		Currency:         currency,
		Balance:          decimal.RequireFromString(balance),
		AvailableBalance: decimal.RequireFromString(balance),
		PinHash:          hash,
		TransactionLimit: decimal.NewFromInt(1000),
		DailyLimit:       decimal.NewFromInt(1500),
		MonthlyLimit:     decimal.NewFromInt(5000),
		IsDefault:        count == 0,
		Status:           domain.WalletActive,
	}
	require.NoError(t, h.db.Create(w).Error)
	return w
}

func (h *harness) reload(t *testing.T, id uint) *domain.Wallet {
	t.Helper()
	var w domain.Wallet
	require.NoError(t, h.db.First(&w, id).Error)
	return &w
}

// do sends a JSON request through the router
func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type obj = map[string]any

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func (h *harness) reqCtx() context.Context { return context.Background() }
