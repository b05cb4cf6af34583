package logging

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/dpr-plan-engine/internal/domain"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name          string
		config        domain.LoggingConfig
		expectedLevel logrus.Level
		textFormatter bool
	}{
		{"json debug", domain.LoggingConfig{Level: "debug", Format: "json"}, logrus.DebugLevel, false},
		{"text warn", domain.LoggingConfig{Level: "warn", Format: "text"}, logrus.WarnLevel, true},
		{"unknown level", domain.LoggingConfig{Level: "loud"}, logrus.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.config)
			assert.Equal(t, tt.expectedLevel, logger.GetLevel())

			_, isText := logger.Formatter.(*logrus.TextFormatter)
			assert.Equal(t, tt.textFormatter, isText)
		})
	}
}

func TestSanitize(t *testing.T) {
	fields := logrus.Fields{
		"email":       "applicant@example.com",
		"dateOfBirth": "1990-01-01",
		"plan":        "LINK 1",
		"notes":       strings.Repeat("x", 1200),
	}

	sanitized := Sanitize(fields)

	assert.Equal(t, "[REDACTED]", sanitized["email"])
	assert.Equal(t, "[REDACTED]", sanitized["dateOfBirth"])
	assert.Equal(t, "LINK 1", sanitized["plan"])
	assert.True(t, strings.HasSuffix(sanitized["notes"].(string), "[TRUNCATED]"))
	assert.Equal(t, "applicant@example.com", fields["email"], "input must not be modified")
}
