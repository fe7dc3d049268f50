// Package config provides centralized configuration management for dialoq.
// It implements the three-layer config pattern:
// Layer 1: Built-in defaults
// Layer 2: User overrides (discovered via app identity, XDG paths)
// Layer 3: Environment variables and runtime overrides
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/dialoq/dialoq/internal/appid"
)

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

// EnvVarSpec defines environment variable mappings for config fields
// following the pattern: {PREFIX}{NAME} maps to config path
type EnvVarSpec = gfconfig.EnvVarSpec

// Environment variable types
const (
	EnvString = gfconfig.EnvString
	EnvInt    = gfconfig.EnvInt
	EnvBool   = gfconfig.EnvBool
)

// Load loads configuration using the three-layer pattern:
// 1. Built-in defaults
// 2. User overrides from XDG config paths
// 3. Environment variables and runtime overrides
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	// Get app identity if not already loaded
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load app identity: %w", err)
		}
		appIdentity = identity
	}

	merged := Defaults()

	// Layer 2: first user config file that exists wins
	for _, path := range getUserConfigPaths() {
		overrides, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if overrides != nil {
			mergeMaps(merged, overrides)
			break
		}
	}

	// Layer 3: environment variables, then explicit runtime overrides
	envOverrides, err := gfconfig.LoadEnvOverrides(getEnvSpecs())
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}
	mergeMaps(merged, envOverrides)
	for _, overrides := range runtimeOverrides {
		mergeMaps(merged, overrides)
	}

	// Unmarshal into typed config struct
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// readConfigFile loads a single YAML config file. A missing file is not an
// error; it simply means the layer is absent.
func readConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	overrides := map[string]any{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return overrides, nil
}

// mergeMaps overlays src onto dst recursively. Nested maps merge key by key;
// any other value replaces the existing one.
func mergeMaps(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}
		dst[key] = value
	}
}

// getUserConfigPaths returns the list of user config file paths to check
// Uses gofulmen/config for XDG-compliant path discovery
func getUserConfigPaths() []string {
	if appIdentity == nil {
		return []string{}
	}

	appName := appIdentity.ConfigName
	if strings.TrimSpace(appName) == "" {
		appName = appIdentity.BinaryName
	}
	if strings.TrimSpace(appName) == "" {
		appName = "dialoq"
	}

	legacyNames := []string{}
	if appIdentity.BinaryName != "" && appIdentity.BinaryName != appName {
		legacyNames = append(legacyNames, appIdentity.BinaryName)
	}

	return gfconfig.GetAppConfigPaths(appName, legacyNames...)
}

// getEnvSpecs returns environment variable specifications for config mapping
// Maps {PREFIX}{NAME} environment variables to config paths
func getEnvSpecs() []EnvVarSpec {
	if appIdentity == nil {
		return []EnvVarSpec{}
	}

	prefix := appIdentity.EnvPrefix
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	return []EnvVarSpec{
		// Server config
		{Name: prefix + "HOST", Path: []string{"server", "host"}, Type: EnvString},
		{Name: prefix + "PORT", Path: []string{"server", "port"}, Type: EnvInt},
		// Duration fields are parsed as strings and converted by mapstructure decode hook
		{Name: prefix + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: EnvString},
		{Name: prefix + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: EnvString},
		{Name: prefix + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: EnvString},
		{Name: prefix + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: EnvString},

		// Logging config (REQUIRED per Workhorse Standard)
		{Name: prefix + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: EnvString},
		{Name: prefix + "LOG_PROFILE", Path: []string{"logging", "profile"}, Type: EnvString},

		// Store config
		{Name: prefix + "STORE_CAPACITY", Path: []string{"store", "capacity"}, Type: EnvInt},

		// Rate limit config
		{Name: prefix + "LIMITS_MAX_MESSAGES", Path: []string{"limits", "max_messages"}, Type: EnvInt},
		{Name: prefix + "LIMITS_WINDOW", Path: []string{"limits", "window"}, Type: EnvString},
		{Name: prefix + "LIMITS_BAN_DURATION", Path: []string{"limits", "ban_duration"}, Type: EnvString},
		{Name: prefix + "LIMITS_WARN_THRESHOLD", Path: []string{"limits", "warn_threshold"}, Type: EnvInt},

		// Assistant config
		{Name: prefix + "ASSISTANT_PROVIDER", Path: []string{"assistant", "provider"}, Type: EnvString},
		{Name: prefix + "ASSISTANT_BASE_URL", Path: []string{"assistant", "base_url"}, Type: EnvString},
		{Name: prefix + "ASSISTANT_API_KEY", Path: []string{"assistant", "api_key"}, Type: EnvString},
		{Name: prefix + "ASSISTANT_MODEL", Path: []string{"assistant", "model"}, Type: EnvString},
		{Name: prefix + "ASSISTANT_SYSTEM_PROMPT", Path: []string{"assistant", "system_prompt"}, Type: EnvString},
		{Name: prefix + "ASSISTANT_TIMEOUT", Path: []string{"assistant", "timeout"}, Type: EnvString},
		{Name: prefix + "ASSISTANT_MAX_HISTORY", Path: []string{"assistant", "max_history"}, Type: EnvInt},

		// Heartbeat config
		{Name: prefix + "HEARTBEAT_PERIOD", Path: []string{"heartbeat", "period"}, Type: EnvString},

		// Ingress config
		{Name: prefix + "INGRESS_CALLBACK_URL", Path: []string{"ingress", "callback_url"}, Type: EnvString},

		// Metrics config
		{Name: prefix + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: EnvBool},
		{Name: prefix + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: EnvInt},

		// Health config
		{Name: prefix + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: EnvBool},

		// Debug config
		{Name: prefix + "DEBUG_ENABLED", Path: []string{"debug", "enabled"}, Type: EnvBool},
		{Name: prefix + "DEBUG_PPROF_ENABLED", Path: []string{"debug", "pprof_enabled"}, Type: EnvBool},
	}
}

// appNamesForPaths returns the config name and binary name from app identity,
// falling back to "dialoq" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = "dialoq"
	binaryName = "dialoq"
	if appIdentity == nil {
		return configName, binaryName
	}

	if strings.TrimSpace(appIdentity.ConfigName) != "" {
		configName = appIdentity.ConfigName
	}
	if strings.TrimSpace(appIdentity.BinaryName) != "" {
		binaryName = appIdentity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultCacheDir returns the XDG-compliant cache directory for the app.
func DefaultCacheDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppCacheDir(configName)
}
