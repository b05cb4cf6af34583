package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpr-plan-engine/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	clearEnvVars(t)

	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Server.SessionTTL)
	assert.Equal(t, "sqlite", cfg.Storage.Persistent)
	assert.Equal(t, "memory", cfg.Storage.Session)
	assert.Equal(t, 5, cfg.QuoteAPI.RateLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, m.Validate())

	opts := m.GetWidgetOptions()
	assert.Equal(t, domain.DisplayShowAll, opts.DisplayMode)
	assert.Equal(t, domain.VariantIncludedSet, opts.Variant)
	assert.Equal(t, domain.StaticIncluded, opts.StaticShape)
	assert.False(t, opts.SortByRecommendation)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestNewManager_File(t *testing.T) {
	clearEnvVars(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
widget:
  display_mode: limit
  sort_by_recommendation: true
  variant: topThree
  static_shape: ordered
quote_api:
  base_url: https://quotes.test/api/
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, 9090, m.GetServerConfig().Port)
	assert.Equal(t, "https://quotes.test/api/", m.GetConfig().QuoteAPI.BaseURL)

	opts := m.GetWidgetOptions()
	assert.Equal(t, domain.DisplayLimit, opts.DisplayMode)
	assert.True(t, opts.SortByRecommendation)
	assert.Equal(t, domain.VariantTopThree, opts.Variant)
	assert.Equal(t, domain.StaticOrdered, opts.StaticShape)
}

func TestNewManager_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("DPR_SERVER_PORT", "7070")
	t.Setenv("DPR_WIDGET_DISPLAY_MODE", "hideOnly")
	t.Setenv("DPR_LOGGING_LEVEL", "debug")
	t.Setenv("DPR_WIDGET_VARIANT", "topThree")

	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.Validate())
	assert.Equal(t, domain.VariantTopThree, m.GetWidgetOptions().Variant)

	assert.Equal(t, 7070, m.GetServerConfig().Port)
	assert.Equal(t, domain.DisplayHideOnly, m.GetWidgetOptions().DisplayMode)
	assert.Equal(t, "debug", m.GetConfig().Logging.Level)
}

func TestManager_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *domain.Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(cfg *domain.Config) { cfg.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing quote API",
			mutate:  func(cfg *domain.Config) { cfg.QuoteAPI.BaseURL = "" },
			wantErr: "quote API base URL is required",
		},
		{
			name:    "postgres store without database",
			mutate:  func(cfg *domain.Config) { cfg.Storage.Persistent = "postgres" },
			wantErr: "requires database.enabled",
		},
		{
			name:    "unknown session store",
			mutate:  func(cfg *domain.Config) { cfg.Storage.Session = "cookie" },
			wantErr: "unknown session store",
		},
		{
			name:    "bad display mode",
			mutate:  func(cfg *domain.Config) { cfg.Widget.DisplayMode = "carousel" },
			wantErr: "invalid widget display mode",
		},
		{
			name:    "unknown variant",
			mutate:  func(cfg *domain.Config) { cfg.Widget.Variant = "bestThree" },
			wantErr: "invalid widget variant",
		},
		{
			name:    "unknown static shape",
			mutate:  func(cfg *domain.Config) { cfg.Widget.StaticShape = "shuffled" },
			wantErr: "invalid widget static shape",
		},
		{
			name:    "origin without scheme",
			mutate:  func(cfg *domain.Config) { cfg.Server.AllowedOrigins = []string{"shop.example.com"} },
			wantErr: "invalid allowed origin",
		},
		{
			name:    "bad log level",
			mutate:  func(cfg *domain.Config) { cfg.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			m, err := NewManager()
			require.NoError(t, err)

			tt.mutate(m.GetConfig())
			err = m.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"DPR_SERVER_PORT",
		"DPR_WIDGET_DISPLAY_MODE",
		"DPR_LOGGING_LEVEL",
		"DPR_QUOTE_API_BASE_URL",
		"DPR_STORAGE_PERSISTENT",
		"DPR_WIDGET_VARIANT",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
