package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds every setting the server and CLI read from the environment
type Config struct {
	Port        string `env:"PORT" envDefault:"8787"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE" envDefault:"server.log"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"showcase.db"`

	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     string `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	JWTSecret string `env:"JWT_SECRET"`

	// Per-IP request limiter in front of the API
	HTTPRateLimit float64 `env:"HTTP_RATE_LIMIT" envDefault:"20"`
	HTTPRateBurst int     `env:"HTTP_RATE_BURST" envDefault:"40"`

	// Inbound message limit per websocket connection
	WSMessageRate  float64 `env:"WS_MESSAGE_RATE" envDefault:"10"`
	WSMessageBurst int     `env:"WS_MESSAGE_BURST" envDefault:"20"`

	Engagement Engagement

	// Browser origins allowed by CORS and the websocket upgrade; empty allows any
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	OTelEnabled      bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTelSamplingRate float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1.0"`
}

// Engagement tunes the view/share/endorsement pipeline
type Engagement struct {
	ViewCooldown      time.Duration `env:"VIEW_COOLDOWN" envDefault:"30m"`
	ViewRateLimit     int           `env:"VIEW_RATE_LIMIT" envDefault:"100"`
	ViewRateWindow    time.Duration `env:"VIEW_RATE_WINDOW" envDefault:"1h"`
	RecentWindow      time.Duration `env:"RECENT_WINDOW" envDefault:"24h"`
	RetentionHorizon  time.Duration `env:"RETENTION_HORIZON" envDefault:"720h"`
	RetentionInterval time.Duration `env:"RETENTION_INTERVAL" envDefault:"1h"`
	FanoutBuffer      int           `env:"FANOUT_BUFFER" envDefault:"256"`
}

// DefaultEngagement returns the production defaults
func DefaultEngagement() Engagement {
	return Engagement{
		ViewCooldown:      30 * time.Minute,
		ViewRateLimit:     100,
		ViewRateWindow:    time.Hour,
		RecentWindow:      24 * time.Hour,
		RetentionHorizon:  30 * 24 * time.Hour,
		RetentionInterval: time.Hour,
		FanoutBuffer:      256,
	}
}

// Load reads .env (when present) and then the process environment
func Load() (*Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks values that would silently break the pipeline
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, sqlite, memory (got %q)", c.StoreDriver)
	}
	if c.HTTPRateLimit <= 0 || c.HTTPRateBurst <= 0 {
		return errors.New("HTTP_RATE_LIMIT and HTTP_RATE_BURST must be positive")
	}
	if c.WSMessageRate <= 0 || c.WSMessageBurst <= 0 {
		return errors.New("WS_MESSAGE_RATE and WS_MESSAGE_BURST must be positive")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.OTelEnabled && (c.OTelSamplingRate <= 0 || c.OTelSamplingRate > 1) {
		return fmt.Errorf("OTEL_SAMPLING_RATE must be in (0, 1] (got %v)", c.OTelSamplingRate)
	}
	return c.Engagement.Validate()
}

// Validate checks the engagement settings
func (e Engagement) Validate() error {
	if e.ViewCooldown <= 0 {
		return errors.New("VIEW_COOLDOWN must be positive")
	}
	if e.ViewRateLimit <= 0 || e.ViewRateWindow <= 0 {
		return errors.New("VIEW_RATE_LIMIT and VIEW_RATE_WINDOW must be positive")
	}
	if e.RecentWindow <= 0 {
		return errors.New("RECENT_WINDOW must be positive")
	}
	if e.FanoutBuffer <= 0 {
		return errors.New("FANOUT_BUFFER must be positive")
	}
	if e.RetentionInterval <= 0 {
		return errors.New("RETENTION_INTERVAL must be positive")
	}

	// The sweep must never remove events a guard or scan still reads
	floor := max(e.ViewCooldown, e.ViewRateWindow, e.RecentWindow)
	if e.RetentionHorizon < floor {
		return fmt.Errorf("RETENTION_HORIZON %s must be at least %s", e.RetentionHorizon, floor)
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RedisAddr returns host:port, or "" when Redis is not configured
func (c *Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return c.RedisHost + ":" + c.RedisPort
}
