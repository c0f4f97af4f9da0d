package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	cfg.RateLimiting.Login.AttemptsPerMinute = 10
	cfg.RateLimiting.Login.Burst = 3
	return cfg
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8*time.Hour, cfg.Auth.AdminSessionTTL)
	assert.Equal(t, 640, cfg.Camera.IdealWidth)
	assert.Equal(t, 480, cfg.Camera.IdealHeight)
	assert.Empty(t, cfg.Auth.AdminPasswordHash, "admin login must be disabled until a hash is configured")
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.Login.AttemptsPerMinute = 0
	cfg.RateLimiting.Login.Burst = 0

	assert.NoError(t, cfg.Validate())
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"http rps must be > 0", func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 }},
		{"http burst must be > 0", func(c *Config) { c.RateLimiting.HTTP.Burst = 0 }},
		{"http max concurrent must be >= 0", func(c *Config) { c.RateLimiting.HTTP.MaxConcurrent = -1 }},
		{"login attempts must be > 0", func(c *Config) { c.RateLimiting.Login.AttemptsPerMinute = 0 }},
		{"admin session ttl must be > 0", func(c *Config) { c.Auth.AdminSessionTTL = 0 }},
		{"jwt secret required", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"camera size required", func(c *Config) { c.Camera.IdealWidth = 0 }},
		{"negative idle timeout", func(c *Config) { c.Camera.IdleTimeout = -time.Second }},
		{"restart attempts required", func(c *Config) { c.Camera.Restart.MaxAttempts = 0 }},
		{"restart max delay below initial", func(c *Config) { c.Camera.Restart.MaxDelay = time.Millisecond }},
		{"restart multiplier below one", func(c *Config) { c.Camera.Restart.Multiplier = 0.5 }},
		{"geocoding user agent required", func(c *Config) { c.Geocoding.UserAgent = "" }},
		{"pong timeout must exceed ping", func(c *Config) { c.Preview.PongTimeout = c.Preview.PingInterval }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"redis address required when enabled", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}},
		{"backup directory required when enabled", func(c *Config) {
			c.Backup.Enabled = true
			c.Backup.Directory = ""
		}},
		{"backup interval floor", func(c *Config) {
			c.Backup.Enabled = true
			c.Backup.Interval = time.Second
		}},
		{"tracing sample rate range", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 2
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlData := `
server:
  address: ":9999"
camera:
  release_timeout: 5s
  restart:
    max_attempts: 5
    initial_delay: 100ms
    max_delay: 1s
    multiplier: 1.5
auth:
  tenant_admin_password_hashes:
    tenant_1: "$2a$10$abc"
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Camera.ReleaseTimeout)
	assert.Equal(t, 5, cfg.Camera.Restart.MaxAttempts)
	assert.Equal(t, "$2a$10$abc", cfg.Auth.TenantAdminPasswordHashes["tenant_1"])
	// untouched sections keep defaults
	assert.Equal(t, 480, cfg.Camera.IdealHeight)
}

func TestLoad_InvalidFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auth:\n  jwt_secret: \"\"\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOOTH_SERVER_ADDRESS", ":7000")
	t.Setenv("BOOTH_REDIS_ADDRESS", "redis:6379")
	t.Setenv("BOOTH_SEED_DEMO_USERS", "false")

	cfg, err := LoadFirst(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Address)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.False(t, cfg.Auth.SeedDemoUsers)
}
