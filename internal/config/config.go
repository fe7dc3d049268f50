package config

import (
	"fmt"
	"time"

	"github.com/dialoq/dialoq/internal/core/engine"
)

// Config represents the complete application configuration
// following the Fulmen Forge Workhorse Standard three-layer pattern:
// Layer 1: Built-in defaults
// Layer 2: User overrides (~/.config/dialoq/config.yaml)
// Layer 3: Environment variables and runtime overrides
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Ingress   IngressConfig   `mapstructure:"ingress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig bounds the in-memory user store.
type StoreConfig struct {
	// Capacity is the maximum number of tracked users. Least recently
	// active users are evicted beyond this point.
	Capacity int `mapstructure:"capacity"`
}

// LimitsConfig contains per-user rate limiting configuration.
type LimitsConfig struct {
	// MaxMessages is the admission budget per window.
	MaxMessages int `mapstructure:"max_messages"`

	// Window is the fixed rate-limit window.
	Window time.Duration `mapstructure:"window"`

	// BanDuration is applied when a user exceeds the budget.
	BanDuration time.Duration `mapstructure:"ban_duration"`

	// WarnThreshold is the count at which a near-limit warning is sent.
	WarnThreshold int `mapstructure:"warn_threshold"`
}

// EngineLimits converts the loaded limit section into the engine's form.
func (l LimitsConfig) EngineLimits() engine.LimitConfig {
	return engine.LimitConfig{
		MaxMessages:   l.MaxMessages,
		Window:        l.Window,
		BanDuration:   l.BanDuration,
		WarnThreshold: l.WarnThreshold,
	}
}

// AssistantConfig configures the upstream completion provider.
type AssistantConfig struct {
	// Provider selects the completion backend. Currently "openai"
	// compatible endpoints only.
	Provider string `mapstructure:"provider"`

	// BaseURL overrides the provider API endpoint.
	BaseURL string `mapstructure:"base_url"`

	// APIKey authenticates against the provider.
	APIKey string `mapstructure:"api_key"`

	// Model names the completion model.
	Model string `mapstructure:"model"`

	// SystemPrompt is prepended to every conversation.
	SystemPrompt string `mapstructure:"system_prompt"`

	// Timeout bounds a single completion call.
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxHistory caps the number of conversation turns sent upstream.
	MaxHistory int `mapstructure:"max_history"`
}

// HeartbeatConfig configures the activity signal sent while a reply is
// being produced.
type HeartbeatConfig struct {
	Period time.Duration `mapstructure:"period"`
}

// IngressConfig configures the HTTP message ingress.
type IngressConfig struct {
	// CallbackURL receives reply events for requests that do not name
	// their own callback. Empty disables default webhook delivery.
	CallbackURL string `mapstructure:"callback_url"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	// See: gofulmen/docs/crucible-go/standards/observability/logging.md
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}

// Defaults returns the built-in Layer 1 configuration.
func Defaults() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"host":             "127.0.0.1",
			"port":             8080,
			"read_timeout":     "30s",
			"write_timeout":    "30s",
			"idle_timeout":     "120s",
			"shutdown_timeout": "30s",
		},
		"store": map[string]any{
			"capacity": 1000,
		},
		"limits": map[string]any{
			"max_messages":   20,
			"window":         "24h",
			"ban_duration":   "1h",
			"warn_threshold": 15,
		},
		"assistant": map[string]any{
			"provider":    "openai",
			"base_url":    "https://api.openai.com/v1",
			"model":       "gpt-4o-mini",
			"timeout":     "60s",
			"max_history": 20,
		},
		"heartbeat": map[string]any{
			"period": "1s",
		},
		"ingress": map[string]any{
			"callback_url": "",
		},
		"logging": map[string]any{
			"level":   "info",
			"profile": "STRUCTURED",
		},
		"metrics": map[string]any{
			"enabled": true,
			"port":    9090,
		},
		"health": map[string]any{
			"enabled": true,
		},
		"debug": map[string]any{
			"enabled":       false,
			"pprof_enabled": false,
		},
	}
}

// Validate checks cross-field constraints the type system cannot express.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	if c.Store.Capacity <= 0 {
		return fmt.Errorf("store.capacity must be positive, got %d", c.Store.Capacity)
	}
	if err := c.Limits.EngineLimits().Validate(); err != nil {
		return err
	}
	if c.Assistant.Provider != "" && c.Assistant.Provider != "openai" {
		return fmt.Errorf("assistant.provider %q is not supported", c.Assistant.Provider)
	}
	if c.Assistant.Timeout < 0 {
		return fmt.Errorf("assistant.timeout must not be negative, got %s", c.Assistant.Timeout)
	}
	if c.Assistant.MaxHistory < 0 {
		return fmt.Errorf("assistant.max_history must not be negative, got %d", c.Assistant.MaxHistory)
	}
	if c.Heartbeat.Period <= 0 {
		return fmt.Errorf("heartbeat.period must be positive, got %s", c.Heartbeat.Period)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 0 and 65535, got %d", c.Metrics.Port)
	}
	return nil
}
