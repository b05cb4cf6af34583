// Package config loads the engine configuration from an optional YAML file,
// DPR_-prefixed environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/dpr-plan-engine/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v      *viper.Viper
	file   string
	config *domain.Config
}

// NewManager creates a new configuration manager. An explicit file path is optional;
// without one the usual search paths are tried and a missing file is not an error.
func NewManager(configFile ...string) (*Manager, error) {
	m := &Manager{v: viper.New()}
	if len(configFile) > 0 {
		m.file = configFile[0]
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := m.v
	if m.file != "" {
		v.SetConfigFile(m.file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dpr-plan-engine/")
	}

	v.SetEnvPrefix("DPR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	v := m.v

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.page_path", "")
	v.SetDefault("server.session_ttl", "2h")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "dpr_plan_engine")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")

	// Quote API defaults
	v.SetDefault("quote_api.base_url", "https://quotes.example.com/api/")
	v.SetDefault("quote_api.timeout", "20s")
	v.SetDefault("quote_api.rate_limit", 5)
	v.SetDefault("quote_api.retry_count", 2)

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.redis_url", "redis://localhost:6379")
	v.SetDefault("cache.default_ttl", "30m")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Storage defaults
	v.SetDefault("storage.persistent", "sqlite")
	v.SetDefault("storage.session", "memory")
	v.SetDefault("storage.sqlite_path", "data/widget.db")
	v.SetDefault("storage.memory_max_items", 10000)
	v.SetDefault("storage.session_ttl", "2h")

	// Widget defaults
	v.SetDefault("widget.display_mode", string(domain.DisplayShowAll))
	v.SetDefault("widget.sort_by_recommendation", false)
	v.SetDefault("widget.variant", string(domain.VariantIncludedSet))
	v.SetDefault("widget.static_shape", string(domain.StaticIncluded))

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetWidgetOptions returns the widget attach options with the display mode in
// canonical form. Call Validate first; unknown values are not corrected here.
func (m *Manager) GetWidgetOptions() domain.WidgetOptions {
	opts := m.config.Widget
	if mode, ok := domain.ParseDisplayMode(string(opts.DisplayMode)); ok {
		opts.DisplayMode = mode
	}
	return opts
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.QuoteAPI.BaseURL == "" {
		return fmt.Errorf("quote API base URL is required")
	}
	if _, err := url.ParseRequestURI(config.QuoteAPI.BaseURL); err != nil {
		return fmt.Errorf("invalid quote API base URL: %w", err)
	}
	if config.QuoteAPI.RateLimit <= 0 {
		return fmt.Errorf("quote API rate limit must be positive, got %d", config.QuoteAPI.RateLimit)
	}

	switch config.Storage.Persistent {
	case "sqlite":
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite store")
		}
	case "postgres":
		if !config.Database.Enabled {
			return fmt.Errorf("the postgres store requires database.enabled")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown persistent store: %s", config.Storage.Persistent)
	}

	switch config.Storage.Session {
	case "redis":
		if config.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required for the redis session store")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown session store: %s", config.Storage.Session)
	}

	if config.Database.Enabled {
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if _, ok := domain.ParseDisplayMode(string(config.Widget.DisplayMode)); !ok {
		return fmt.Errorf("invalid widget display mode: %s", config.Widget.DisplayMode)
	}
	switch config.Widget.Variant {
	case domain.VariantIncludedSet, domain.VariantTopThree:
	default:
		return fmt.Errorf("invalid widget variant: %s", config.Widget.Variant)
	}
	switch config.Widget.StaticShape {
	case domain.StaticIncluded, domain.StaticOrdered:
	default:
		return fmt.Errorf("invalid widget static shape: %s", config.Widget.StaticShape)
	}

	for _, origin := range config.Server.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid allowed origin: %s", origin)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
