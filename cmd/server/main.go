package main

import (
	"context"   // Context for Redis and shutdown
	"errors"    // Error matching
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal handling
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"instapay/internal/api"      // HTTP handlers
	"instapay/internal/config"   // Configuration
	"instapay/internal/db"       // Database connection
	"instapay/internal/events"   // Event bus
	"instapay/internal/ledger"   // Balance mutations
	"instapay/internal/notify"   // Notifications and email
	"instapay/internal/payments" // Stripe
	"instapay/internal/utils"    // Logger and token verification

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	utils.SetupLogger(cfg.IsProd, cfg.LogLevel) // Setup logger
	logrus.WithField("config", cfg.Redact()).Debug("Configuration loaded")

	conn, err := db.Open(cfg) // Connect to the database
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Redis is optional, without it caching and webhook dedupe are off
	rdb, err := utils.NewRedis(context.Background(), cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	publisher := events.New(cfg.RabbitMQURL, cfg.EventsExchange) // Noop when no broker is configured
	defer publisher.Close()

	var mailer notify.Mailer
	if m := notify.NewSendGridMailer(cfg.SendGridAPIKey, cfg.EmailSender); m != nil {
		mailer = m
	}

	env := &api.Env{
		DB:    conn,
		Redis: rdb,
		Ledger: ledger.NewService(conn, ledger.Options{
			MaxPinAttempts: cfg.PinMaxAttempts,
			LockoutWindow:  cfg.PinLockout(),
		}),
		Notifier: notify.New(conn, publisher, mailer),
		Payments: payments.NewProcessor(payments.Options{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			SuccessURL:    cfg.CheckoutSuccessURL,
			CancelURL:     cfg.CheckoutCancelURL,
		}),
		Config: cfg,
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}
	verifier := utils.NewTokenVerifier(cfg.JWTSecret, cfg.JWKSURL, cfg.JWTIssuer, cfg.JWTAudience)
	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           api.NewRouter(env, verifier),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running") // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
