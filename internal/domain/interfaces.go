package domain

import (
	"context"
	"encoding/json"
)

// KeyValueStore holds one JSON object per named key. Get returns ErrNotFound on a miss.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Storage keys.
const (
	KeyFormData              = "formData"
	KeyQuoteSet              = "quoteSet"
	KeyHospitalAccommodation = "hospitalAccommodation"
)

// QuoteService fetches quotes from the remote quoting API.
type QuoteService interface {
	CreateQuoteSet(ctx context.Context, applicant *Applicant) (*QuoteSet, error)
	GetApplicationURL(ctx context.Context, confirmationNumber string) (string, error)
}

// QuoteHistory records fetched quote sets.
type QuoteHistory interface {
	Record(ctx context.Context, sessionID string, applicant *Applicant, set *QuoteSet) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetWidgetOptions() WidgetOptions
	Validate() error
}
