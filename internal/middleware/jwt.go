package middleware

import (
	"context"  // Context for token verification
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"instapay/internal/domain" // User model
	"instapay/internal/utils"  // Token claims

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library
)

// Context keys set by JWTAuthMiddleware
const (
	UserIDKey = "userID"
	UserKey   = "user"
)

// TokenParser verifies bearer tokens issued by the identity provider
type TokenParser interface {
	ParseJWT(ctx context.Context, tokenStr string) (*utils.Claims, error)
}

// JWTAuthMiddleware validates the bearer token and loads the matching local user,
// creating it from the token claims on first sight
func JWTAuthMiddleware(db *gorm.DB, parser TokenParser, defaultCurrency string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")         // Extract the token string
		claims, err := parser.ParseJWT(c.Request.Context(), tokenStr) // Verify signature and claims
		if err != nil {
			logrus.WithError(err).Debug("Token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		user, err := ProvisionUser(db.WithContext(c.Request.Context()), claims, defaultCurrency)
		if err != nil {
			logrus.WithField("subject", claims.Subject).WithError(err).Error("Failed to provision user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}
		c.Set(UserIDKey, user.ID) // Store userID in context
		c.Set(UserKey, user)      // Store the loaded user for handlers
		c.Next()                  // Proceed to the next handler
	}
}

// ProvisionUser returns the user for the token subject, creating it on first login.
// The email follows the identity provider when it changes.
func ProvisionUser(db *gorm.DB, claims *utils.Claims, defaultCurrency string) (*domain.User, error) {
	var user domain.User
	err := db.Where("external_id = ?", claims.Subject).First(&user).Error
	if err == nil {
		if claims.Email != "" && claims.Email != user.Email {
			if err := db.Model(&user).Update("email", claims.Email).Error; err != nil {
				return nil, err
			}
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = domain.User{
		ExternalID: claims.Subject,
		Email:      claims.Email,
		FirstName:  claims.FirstName,
		LastName:   claims.LastName,
		AvatarURL:  claims.Picture,
		Role:       domain.RoleUser,
		KYCStatus:  domain.KYCPending,
		Currency:   defaultCurrency,
	}
	if err := db.Create(&user).Error; err != nil {
		// A concurrent first request may have created the row
		if lookupErr := db.Where("external_id = ?", claims.Subject).First(&user).Error; lookupErr == nil {
			return &user, nil
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "subject": claims.Subject}).Info("User provisioned")
	return &user, nil
}

// CurrentUserID returns the authenticated user id, 0 when unauthenticated
func CurrentUserID(c *gin.Context) uint {
	return c.GetUint(UserIDKey)
}

// CurrentUser returns the authenticated user, nil when unauthenticated
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(UserKey); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}
