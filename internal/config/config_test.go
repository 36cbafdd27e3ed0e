package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10*time.Second, cfg.Engine.StepDeadline)
	assert.Equal(t, 2*time.Hour, cfg.Engine.ContextTTL)
	assert.Equal(t, time.Minute, cfg.Engine.SessionSweepInterval)
	assert.True(t, cfg.Observer.EnableDatabase)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("ENGINE_STEP_DEADLINE", "5s")
	t.Setenv("OBSERVER_HTTP_ENABLED", "true")
	t.Setenv("OBSERVER_HTTP_URL", "https://example.com/events")
	t.Setenv("OBSERVER_HTTP_HEADERS", "Authorization:Bearer abc,X-Tenant:acme")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 5*time.Second, cfg.Engine.StepDeadline)
	assert.True(t, cfg.Observer.EnableHTTP)
	assert.Equal(t, "https://example.com/events", cfg.Observer.HTTPCallbackURL)
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer abc",
		"X-Tenant":      "acme",
	}, cfg.Observer.HTTPHeaders)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("ENGINE_LOCK_TTL", "garbage")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Engine.LockTTL)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing database url", func(c *Config) { c.Database.URL = "" }},
		{"min over max connections", func(c *Config) {
			c.Database.MinConnections = 50
			c.Database.MaxConnections = 5
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	t.Setenv("TEST_SLICE", "a,b,,c")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvAsSlice("TEST_SLICE", nil))
	assert.Equal(t, []string{"x"}, getEnvAsSlice("TEST_SLICE_MISSING", []string{"x"}))
}
