package main

import (
	"instapay/internal/config" // Configuration
	"instapay/internal/db"     // Database connection and migration
	"instapay/internal/utils"  // Logger

	"github.com/sirupsen/logrus" // Logging library
)

// Main entry point for migration
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
	if err := db.Migrate(conn); err != nil {
		logrus.Fatal(err)
	}
}
