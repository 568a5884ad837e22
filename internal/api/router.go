package api

import (
	"net/http" // HTTP status codes

	"instapay/internal/metrics"    // Prometheus collectors
	"instapay/internal/middleware" // Auth, logging and rate limiting

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// NewRouter wires every route of the API
func NewRouter(env *Env, parser middleware.TokenParser) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Middleware(), middleware.RequestLogger())

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	r.GET("/health", HealthHandler(env))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Signed by the processor, no bearer token
	r.POST("/api/webhooks/stripe", StripeWebhookHandler(env))

	limiter := middleware.NewRateLimiter(env.Config.RateLimitRPS, env.Config.RateLimitBurst)
	auth := middleware.JWTAuthMiddleware(env.DB, parser, env.Config.DefaultCurrency)

	apiGroup := r.Group("/api")
	apiGroup.Use(auth, limiter.Handler())

	wallets := apiGroup.Group("/wallets")
	wallets.POST("", CreateWalletHandler(env))                 // Create wallet
	wallets.GET("", ListWalletsHandler(env))                   // List wallets
	wallets.GET("/:id", GetWalletHandler(env))                 // Get wallet
	wallets.PATCH("/:id", UpdateWalletHandler(env))            // Rename or change limits
	wallets.PATCH("/:id/balance", UpdateBalanceHandler(env))   // Deposit or withdrawal
	wallets.POST("/:id/default", SetDefaultWalletHandler(env)) // Make default
	wallets.POST("/:id/freeze", FreezeWalletHandler(env))      // Freeze
	wallets.POST("/:id/unfreeze", UnfreezeWalletHandler(env))  // Unfreeze
	wallets.POST("/:id/close", CloseWalletHandler(env))        // Close
	wallets.POST("/:id/pin", ChangePinHandler(env))            // Change PIN
	wallets.POST("/:id/checkout", CreateCheckoutHandler(env))  // Card top-up

	apiGroup.POST("/transfers", TransferHandler(env)) // Wallet to wallet transfer

	txs := apiGroup.Group("/transactions")
	txs.GET("", ListTransactionsHandler(env))          // History
	txs.GET("/export", ExportTransactionsHandler(env)) // CSV export
	txs.GET("/stats", TransactionStatsHandler(env))    // Period summary
	txs.GET("/:id", GetTransactionHandler(env))        // Single transaction

	beneficiaries := apiGroup.Group("/beneficiaries")
	beneficiaries.GET("", ListBeneficiariesHandler(env))
	beneficiaries.POST("", CreateBeneficiaryHandler(env))
	beneficiaries.GET("/:id", GetBeneficiaryHandler(env))
	beneficiaries.PATCH("/:id", UpdateBeneficiaryHandler(env))
	beneficiaries.POST("/:id/favorite", ToggleFavoriteHandler(env))
	beneficiaries.DELETE("/:id", DeleteBeneficiaryHandler(env))

	methods := apiGroup.Group("/payment-methods")
	methods.GET("", ListPaymentMethodsHandler(env))
	methods.POST("", CreatePaymentMethodHandler(env))
	methods.POST("/:id/default", SetDefaultPaymentMethodHandler(env))
	methods.DELETE("/:id", DeletePaymentMethodHandler(env))

	notifications := apiGroup.Group("/notifications")
	notifications.GET("", ListNotificationsHandler(env))
	notifications.GET("/unread-count", UnreadCountHandler(env))
	notifications.PATCH("/:id/read", MarkNotificationReadHandler(env))
	notifications.POST("/read-all", MarkAllNotificationsReadHandler(env))

	apiGroup.GET("/users/me", GetProfileHandler(env))
	apiGroup.PATCH("/users/me", UpdateProfileHandler(env))
	apiGroup.GET("/settings", GetSettingsHandler(env))
	apiGroup.PATCH("/settings", UpdateSettingsHandler(env))

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(auth, middleware.AdminOnlyMiddleware(), limiter.Handler())
	adminGroup.GET("/users", AdminListUsersHandler(env))               // List users
	adminGroup.PATCH("/users/:id/kyc", AdminUpdateKYCHandler(env))     // Set KYC status
	adminGroup.GET("/transactions", AdminListTransactionsHandler(env)) // List all transactions

	return r
}

// HealthHandler reports whether the database and Redis answer
func HealthHandler(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{"database": "ok"}
		healthy := true
		if sqlDB, err := env.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			healthy = false
		}
		if env.Redis != nil {
			checks["redis"] = "ok"
			if err := env.Redis.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unavailable"
				healthy = false
			}
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"healthy": healthy, "checks": checks})
	}
}
