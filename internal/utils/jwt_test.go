package utils

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseHS256(t *testing.T) {
	v := NewTokenVerifier("secret", "", "", "")
	token, err := GenerateJWT(Claims{
		Email:            "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_123"},
	}, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := v.ParseJWT(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user_123", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestParseRejectsBadTokens(t *testing.T) {
	v := NewTokenVerifier("secret", "", "", "")

	wrongSecret, err := GenerateJWT(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}, "other", time.Hour)
	require.NoError(t, err)
	_, err = v.ParseJWT(context.Background(), wrongSecret)
	assert.Error(t, err)

	expired, err := GenerateJWT(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}}, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = v.ParseJWT(context.Background(), expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	noSubject, err := GenerateJWT(Claims{}, "secret", time.Hour)
	require.NoError(t, err)
	_, err = v.ParseJWT(context.Background(), noSubject)
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestParseChecksIssuer(t *testing.T) {
	v := NewTokenVerifier("secret", "", "https://idp.example", "")
	token, err := GenerateJWT(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "https://evil.example"}}, "secret", time.Hour)
	require.NoError(t, err)
	_, err = v.ParseJWT(context.Background(), token)
	assert.Error(t, err)
}

func TestParseWithJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kid": "k1",
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	sign := func(kid string) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_rsa",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}})
		tok.Header["kid"] = kid
		s, err := tok.SignedString(key)
		require.NoError(t, err)
		return s
	}

	v := NewTokenVerifier("", srv.URL, "", "")
	claims, err := v.ParseJWT(context.Background(), sign("k1"))
	require.NoError(t, err)
	assert.Equal(t, "user_rsa", claims.Subject)

	_, err = v.ParseJWT(context.Background(), sign("k1"))
	require.NoError(t, err)
	assert.Equal(t, 1, hits, "second parse should use the cached key")

	_, err = v.ParseJWT(context.Background(), sign("k2"))
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, 1, hits, "unknown kid inside the cooldown must not refetch")
}

func TestJWKSRefreshCooldown(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	defer srv.Close()

	r := NewJWKSResolver(srv.URL, time.Minute)
	r.cooldown = 50 * time.Millisecond
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := r.Key(ctx, "rotated")
		assert.ErrorIs(t, err, ErrUnknownKey)
	}
	assert.Equal(t, 1, hits)

	time.Sleep(100 * time.Millisecond)
	_, err := r.Key(ctx, "rotated")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.Equal(t, 2, hits)
}
