package utils

import (
	"github.com/sirupsen/logrus" // Logging library
)

// SetupLogger configures the global logrus logger: JSON in production, text with full
// timestamps otherwise. An unknown level falls back to info.
func SetupLogger(isProd bool, level string) {
	if isProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
