package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// ConfigureLogger applies level and format to logger. Unknown levels fall
// back to info and any format other than "json" uses the text formatter.
func ConfigureLogger(logger *logrus.Logger, level string, format string) *logrus.Logger {
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
