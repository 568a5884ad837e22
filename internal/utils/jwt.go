package utils

import (
	"context" // Context for JWKS fetches
	"errors"  // Error values
	"time"    // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// ErrMissingSubject is returned for tokens without a sub claim
var ErrMissingSubject = errors.New("token has no subject")

// Claims issued by the identity provider
type Claims struct {
	Email                string `json:"email,omitempty"`       // Primary email
	FirstName            string `json:"given_name,omitempty"`  // Given name
	LastName             string `json:"family_name,omitempty"` // Family name
	Picture              string `json:"picture,omitempty"`     // Avatar URL
	jwt.RegisteredClaims        // Standard JWT claims, Subject is the user id at the provider
}

// GenerateJWT creates an HS256 token for a subject. Used for local development and tests.
func GenerateJWT(claims Claims, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl)) // Token expiry
	claims.IssuedAt = jwt.NewNumericDate(now)           // Issued at current time
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret)) // Sign the token with the secret
}

// TokenVerifier validates identity provider tokens, either against a JWKS endpoint (RS256)
// or a shared secret (HS256)
type TokenVerifier struct {
	secret   []byte        // HS256 secret
	jwks     *JWKSResolver // RS256 keys, preferred when set
	issuer   string        // Expected issuer, optional
	audience string        // Expected audience, optional
}

// NewTokenVerifier builds a verifier. jwksURL wins over secret when both are set.
func NewTokenVerifier(secret, jwksURL, issuer, audience string) *TokenVerifier {
	v := &TokenVerifier{secret: []byte(secret), issuer: issuer, audience: audience}
	if jwksURL != "" {
		v.jwks = NewJWKSResolver(jwksURL, 10*time.Minute)
	}
	return v
}

// ParseJWT parses and validates a JWT token string
func (v *TokenVerifier) ParseJWT(ctx context.Context, tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var keyFunc jwt.Keyfunc
	if v.jwks != nil {
		opts = append(opts, jwt.WithValidMethods([]string{"RS256"}))
		keyFunc = func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			return v.jwks.Key(ctx, kid)
		}
	} else {
		opts = append(opts, jwt.WithValidMethods([]string{"HS256"}))
		keyFunc = func(*jwt.Token) (any, error) {
			return v.secret, nil // Return the secret key for validation
		}
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, keyFunc, opts...)
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
