package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"instapay/internal/db/dbtest"
	"instapay/internal/domain"
	"instapay/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func token(t *testing.T, sub, email string) string {
	tok, err := utils.GenerateJWT(utils.Claims{
		Email:            email,
		FirstName:        "Ada",
		LastName:         "Lovelace",
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	}, secret, time.Hour)
	require.NoError(t, err)
	return tok
}

func authRouter(db *gorm.DB) *gin.Engine {
	r := gin.New()
	auth := r.Group("/", JWTAuthMiddleware(db, utils.NewTokenVerifier(secret, "", "", ""), "EUR"))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUserID(c), "email": CurrentUser(c).Email})
	})
	auth.GET("/admin", AdminOnlyMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthProvisionsUserOnce(t *testing.T) {
	db := dbtest.New(t)
	r := authRouter(db)
	tok := token(t, "user_123", "ada@example.com")

	for i := 0; i < 2; i++ {
		w := get(r, "/me", tok)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "ada@example.com")
	}

	var users []domain.User
	require.NoError(t, db.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "user_123", users[0].ExternalID)
	assert.Equal(t, "Ada", users[0].FirstName)
	assert.Equal(t, "EUR", users[0].Currency)
	assert.Equal(t, domain.RoleUser, users[0].Role)
}

func TestJWTAuthSyncsEmail(t *testing.T) {
	db := dbtest.New(t)
	r := authRouter(db)

	require.Equal(t, http.StatusOK, get(r, "/me", token(t, "user_1", "old@example.com")).Code)
	w := get(r, "/me", token(t, "user_1", "new@example.com"))
	require.Equal(t, http.StatusOK, w.Code)

	var u domain.User
	require.NoError(t, db.Where("external_id = ?", "user_1").First(&u).Error)
	assert.Equal(t, "new@example.com", u.Email)
}

func TestJWTAuthRejects(t *testing.T) {
	db := dbtest.New(t)
	r := authRouter(db)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "not-a-token").Code)

	other, err := utils.GenerateJWT(utils.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}}, "other-secret", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", other).Code)
}

func TestAdminOnly(t *testing.T) {
	db := dbtest.New(t)
	r := authRouter(db)

	assert.Equal(t, http.StatusForbidden, get(r, "/admin", token(t, "user_1", "u@example.com")).Code)

	require.NoError(t, db.Create(&domain.User{ExternalID: "admin_1", Email: "root@example.com", Role: domain.RoleAdmin}).Error)
	assert.Equal(t, http.StatusNoContent, get(r, "/admin", token(t, "admin_1", "root@example.com")).Code)
}

func TestAdminOnlyWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/admin", AdminOnlyMiddleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusUnauthorized, get(r, "/admin", "").Code)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(1, 2).Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "/ping", "").Code)
	w := get(r, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimiterDisabled(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(0, 0).Handler())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, get(r, "/ping", "").Code)
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/boom", func(c *gin.Context) { c.AbortWithStatus(http.StatusInternalServerError) })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusInternalServerError, get(r, "/boom", "").Code)
	assert.Equal(t, http.StatusOK, get(r, "/ok", "").Code)
}
