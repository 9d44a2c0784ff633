package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, ParseEnv(&cfg))

	assert.Equal(t, "8787", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, DefaultEngagement(), cfg.Engagement)
	assert.Equal(t, 20, cfg.WSMessageBurst)
	require.NoError(t, cfg.Validate())
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("VIEW_COOLDOWN", "45m")
	t.Setenv("VIEW_RATE_LIMIT", "10")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("CORS_ORIGINS", "https://showcase.app,https://admin.showcase.app")

	var cfg Config
	require.NoError(t, ParseEnv(&cfg))

	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 45*time.Minute, cfg.Engagement.ViewCooldown)
	assert.Equal(t, 10, cfg.Engagement.ViewRateLimit)
	assert.Equal(t, "cache.internal:6379", cfg.RedisAddr())
	assert.Equal(t, []string{"https://showcase.app", "https://admin.showcase.app"}, cfg.CORSOrigins)
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("VIEW_RATE_LIMIT", "lots")

	var cfg Config
	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "parse env:"))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, "STORE_DRIVER"},
		{"zero cooldown", func(c *Config) { c.Engagement.ViewCooldown = 0 }, "VIEW_COOLDOWN"},
		{"horizon below recent window", func(c *Config) { c.Engagement.RetentionHorizon = 12 * time.Hour }, "RETENTION_HORIZON"},
		{"horizon below rate window", func(c *Config) {
			c.Engagement.ViewRateWindow = 48 * time.Hour
			c.Engagement.RetentionHorizon = 36 * time.Hour
		}, "RETENTION_HORIZON"},
		{"horizon equal to floor", func(c *Config) { c.Engagement.RetentionHorizon = 24 * time.Hour }, ""},
		{"production without secret", func(c *Config) { c.Environment = "production" }, "JWT_SECRET"},
		{"production with secret", func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "s3cret"
		}, ""},
		{"zero websocket burst", func(c *Config) { c.WSMessageBurst = 0 }, "WS_MESSAGE_BURST"},
		{"bad sampling rate", func(c *Config) {
			c.OTelEnabled = true
			c.OTelSamplingRate = 1.5
		}, "OTEL_SAMPLING_RATE"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				StoreDriver:    DriverMemory,
				HTTPRateLimit:  1,
				HTTPRateBurst:  1,
				WSMessageRate:  1,
				WSMessageBurst: 1,
				Engagement:     DefaultEngagement(),
			}
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
