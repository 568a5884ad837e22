package main

import (
	"context"   // Redis ping
	"os"        // Signals
	"os/signal" // Signal handling
	"syscall"   // SIGTERM
	"time"      // Retention window

	"instapay/internal/config" // Configuration
	"instapay/internal/db"     // Database connection
	"instapay/internal/jobs"   // Maintenance jobs
	"instapay/internal/utils"  // Logger and Redis connection

	"github.com/sirupsen/logrus" // Logging library
)

// Main runs the maintenance jobs until interrupted
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	utils.SetupLogger(cfg.IsProd, cfg.LogLevel)

	conn, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}

	rdb, err := utils.NewRedis(context.Background(), cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB) // Nil without REDIS_ADDR
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	retention := time.Duration(cfg.NotificationRetentionDays) * 24 * time.Hour
	scheduler := jobs.NewScheduler(jobs.New(conn, rdb, retention))
	if err := scheduler.Register(cfg.SchedulerUnlockSpec, cfg.SchedulerPurgeSpec); err != nil {
		logrus.Fatalf("invalid schedule: %v", err)
	}
	scheduler.Start()
	logrus.Info("Scheduler running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Stopping scheduler")
	<-scheduler.Stop().Done() // Wait for running jobs
}
