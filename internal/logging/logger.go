// Package logging builds the logrus logger shared by every component and scrubs
// applicant data from log fields.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/domain"
)

// New creates a logger from the logging configuration. Unknown levels fall back to info.
func New(config domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if config.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	logger.SetOutput(output(config.Output))
	return logger
}

func output(name string) io.Writer {
	switch strings.ToLower(name) {
	case "stderr":
		return os.Stderr
	case "discard":
		return io.Discard
	default:
		return os.Stdout
	}
}

// Discard returns a logger that writes nowhere, for tests and quiet CLI runs.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var sensitivePatterns = []string{
	"password", "token", "secret", "key", "auth",
	"email", "phone", "address", "dateofbirth", "dob",
}

// Sanitize returns a copy of fields with applicant-identifying values redacted.
func Sanitize(fields logrus.Fields) logrus.Fields {
	sanitized := make(logrus.Fields, len(fields))
	for k, v := range fields {
		sanitized[k] = sanitizeField(k, v)
	}
	return sanitized
}

func sanitizeField(key string, value interface{}) interface{} {
	lowerKey := strings.ToLower(key)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerKey, pattern) {
			return "[REDACTED]"
		}
	}

	if str, ok := value.(string); ok && len(str) > 1000 {
		return str[:1000] + "... [TRUNCATED]"
	}

	return value
}
