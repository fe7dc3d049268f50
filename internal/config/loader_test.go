package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Test basic config loading with defaults
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)

		// Verify store defaults
		assert.Equal(t, 1000, cfg.Store.Capacity)

		// Verify rate limit defaults
		assert.Equal(t, 20, cfg.Limits.MaxMessages)
		assert.Equal(t, 24*time.Hour, cfg.Limits.Window)
		assert.Equal(t, time.Hour, cfg.Limits.BanDuration)
		assert.Equal(t, 15, cfg.Limits.WarnThreshold)

		// Verify assistant defaults
		assert.Equal(t, "openai", cfg.Assistant.Provider)
		assert.Equal(t, 60*time.Second, cfg.Assistant.Timeout)
		assert.Equal(t, 20, cfg.Assistant.MaxHistory)

		// Verify heartbeat defaults
		assert.Equal(t, time.Second, cfg.Heartbeat.Period)

		// Verify logging defaults
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)

		// Verify metrics defaults
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)

		// Verify health defaults
		assert.True(t, cfg.Health.Enabled)

		// Verify debug defaults
		assert.False(t, cfg.Debug.Enabled)
		assert.False(t, cfg.Debug.PprofEnabled)
	})

	// Test user config file overrides
	t.Run("UserConfigFile", func(t *testing.T) {
		configHome := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", configHome)

		configDir := filepath.Join(configHome, "dialoq")
		require.NoError(t, os.MkdirAll(configDir, 0o755))
		configFile := filepath.Join(configDir, "config.yaml")
		require.NoError(t, os.WriteFile(configFile, []byte(`
server:
  port: 9001
limits:
  max_messages: 50
  warn_threshold: 40
`), 0o644))

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 9001, cfg.Server.Port)
		assert.Equal(t, 50, cfg.Limits.MaxMessages)
		assert.Equal(t, 40, cfg.Limits.WarnThreshold)

		// Non-overridden values keep defaults
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 24*time.Hour, cfg.Limits.Window)
	})

	// Test runtime overrides
	t.Run("RuntimeOverrides", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify overrides were applied
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.Equal(t, 9090, cfg.Metrics.Port)
	})

	// Test environment variable overrides
	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("DIALOQ_PORT", "3000")
		t.Setenv("DIALOQ_LOG_LEVEL", "warn")
		t.Setenv("DIALOQ_METRICS_ENABLED", "false")
		t.Setenv("DIALOQ_LIMITS_MAX_MESSAGES", "30")
		t.Setenv("DIALOQ_LIMITS_WINDOW", "12h")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify env overrides were applied
		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 30, cfg.Limits.MaxMessages)
		assert.Equal(t, 12*time.Hour, cfg.Limits.Window)
	})

	// Test config precedence: runtime > env > defaults
	t.Run("ConfigPrecedence", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("DIALOQ_PORT", "4000")

		// Runtime override should win
		overrides := map[string]any{
			"server": map[string]any{
				"port": 5000,
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Runtime override should take precedence over env var
		assert.Equal(t, 5000, cfg.Server.Port)
	})

	// Invalid configuration is rejected at load time
	t.Run("RejectsInvalidConfig", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		overrides := map[string]any{
			"limits": map[string]any{
				"max_messages":   10,
				"warn_threshold": 99,
			},
		}

		_, err := Load(ctx, overrides)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "warn_threshold")
	})
}

func TestGetConfig(t *testing.T) {
	ctx := context.Background()

	// Load config first
	cfg, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Test GetConfig returns the same instance
	t.Run("GetConfigReturnsLoadedConfig", func(t *testing.T) {
		retrieved := GetConfig()
		assert.NotNil(t, retrieved)
		assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
		assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
	})
}

func TestEnvSpecs(t *testing.T) {
	// Need to set app identity for env specs
	ctx := context.Background()
	_, err := Load(ctx)
	require.NoError(t, err)

	specs := getEnvSpecs()
	assert.NotEmpty(t, specs)

	// Verify critical env var mappings exist
	envVarNames := make(map[string]bool)
	for _, spec := range specs {
		envVarNames[spec.Name] = true
	}

	// Check required Workhorse Standard env vars
	assert.True(t, envVarNames["DIALOQ_LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, envVarNames["DIALOQ_PORT"], "PORT env var must be mapped")
	assert.True(t, envVarNames["DIALOQ_HOST"], "HOST env var must be mapped")
	assert.True(t, envVarNames["DIALOQ_METRICS_PORT"], "METRICS_PORT env var must be mapped")
	assert.True(t, envVarNames["DIALOQ_STORE_CAPACITY"], "STORE_CAPACITY env var must be mapped")
	assert.True(t, envVarNames["DIALOQ_ASSISTANT_API_KEY"], "ASSISTANT_API_KEY env var must be mapped")
}

func TestDurationParsing(t *testing.T) {
	ctx := context.Background()

	// Test duration parsing from string env var
	t.Run("DurationFromEnv", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("DIALOQ_READ_TIMEOUT", "45s")
		t.Setenv("DIALOQ_SHUTDOWN_TIMEOUT", "5m")
		t.Setenv("DIALOQ_LIMITS_BAN_DURATION", "90m")

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
		assert.Equal(t, 90*time.Minute, cfg.Limits.BanDuration)
	})
}

func TestConfigReload(t *testing.T) {
	ctx := context.Background()

	// Load initial config
	cfg1, err := Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg1)
	initialPort := cfg1.Server.Port

	// Reload with different runtime overrides
	overrides := map[string]any{
		"server": map[string]any{
			"port": initialPort + 1000,
		},
	}

	cfg2, err := Load(ctx, overrides)
	require.NoError(t, err)
	require.NotNil(t, cfg2)

	// Verify reload updated the config
	assert.Equal(t, initialPort+1000, cfg2.Server.Port)

	// Verify GetConfig returns the updated config
	current := GetConfig()
	assert.Equal(t, cfg2.Server.Port, current.Server.Port)
}
