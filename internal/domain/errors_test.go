package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestWidgetError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Invalid field",
			code:      ErrInvalidInput,
			message:   "Unknown filter field",
			details:   "field 'colour' is not a filter field",
			requestID: "req-123",
		},
		{
			name:      "Quote API failure",
			code:      ErrQuoteAPI,
			message:   "Quote request failed",
			details:   "quote API returned status 502",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewWidgetError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("dateOfBirth", "must be a date", "31/02/1990")

	expectedError := "validation error for field 'dateOfBirth': must be a date"
	if err.Error() != expectedError {
		t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
	}
	if err.Value != "31/02/1990" {
		t.Errorf("Expected value to be kept, got %v", err.Value)
	}
}

func TestSentinelErrorsWrap(t *testing.T) {
	wrapped := fmt.Errorf("add LINK 4: %w", ErrComparisonFull)
	if !errors.Is(wrapped, ErrComparisonFull) {
		t.Errorf("Expected wrapped error to match ErrComparisonFull")
	}
	if errors.Is(wrapped, ErrComparisonActive) {
		t.Errorf("Did not expect wrapped error to match ErrComparisonActive")
	}
}
