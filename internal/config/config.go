package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the sync core.
// Environment variables are automatically parsed from the SATLAS_ prefix.
type Config struct {
	// Remote store access
	RemoteBaseURL     string        `envconfig:"REMOTE_BASE_URL" default:"http://localhost:8080"`
	RemoteTimeout     time.Duration `envconfig:"REMOTE_TIMEOUT" default:"30s"`
	RemoteMaxAttempts int           `envconfig:"REMOTE_MAX_ATTEMPTS" default:"4"`

	// Durable queue; empty path derives ~/.satlas/pending.db
	QueuePath string `envconfig:"QUEUE_PATH" default:""`

	// Business rules
	ProximityThresholdFeet float64 `envconfig:"PROXIMITY_THRESHOLD_FEET" default:"100"`
	SuperuserID            string  `envconfig:"SUPERUSER_ID" default:""`

	// Connectivity monitoring
	DebounceWindow time.Duration `envconfig:"DEBOUNCE_WINDOW" default:"100ms"`
	ProbeURL       string        `envconfig:"PROBE_URL" default:""`
	ProbeInterval  time.Duration `envconfig:"PROBE_INTERVAL" default:"15s"`

	// Agent HTTP surface (health + metrics)
	HTTPPort int `envconfig:"HTTP_PORT" default:"8090"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// New creates a new Config by parsing environment variables.
// Example: SATLAS_REMOTE_BASE_URL, SATLAS_PROXIMITY_THRESHOLD_FEET.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("SATLAS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("remote_base_url", cfg.RemoteBaseURL).
		Dur("remote_timeout", cfg.RemoteTimeout).
		Int("remote_max_attempts", cfg.RemoteMaxAttempts).
		Float64("proximity_threshold_feet", cfg.ProximityThresholdFeet).
		Dur("debounce_window", cfg.DebounceWindow).
		Dur("probe_interval", cfg.ProbeInterval).
		Int("http_port", cfg.HTTPPort).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	return &cfg, nil
}

// Validate rejects values the core cannot run with.
func (c *Config) Validate() error {
	if c.RemoteBaseURL == "" {
		return fmt.Errorf("remote base URL must not be empty")
	}
	if c.ProximityThresholdFeet <= 0 {
		return fmt.Errorf("proximity threshold must be > 0, got %v", c.ProximityThresholdFeet)
	}
	if c.DebounceWindow < 0 {
		return fmt.Errorf("debounce window must be >= 0, got %v", c.DebounceWindow)
	}
	if c.RemoteMaxAttempts <= 0 {
		return fmt.Errorf("remote max attempts must be > 0, got %d", c.RemoteMaxAttempts)
	}
	return nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	return &Config{
		RemoteBaseURL:          "http://localhost:8080",
		RemoteTimeout:          5 * time.Second,
		RemoteMaxAttempts:      1,
		ProximityThresholdFeet: 100,
		DebounceWindow:         100 * time.Millisecond,
		ProbeInterval:          time.Second,
		HTTPPort:               8090,
		LogLevel:               "info",
	}
}

// GetHTTPAddr returns the agent HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
