package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dialoq/dialoq/internal/config"
	"github.com/dialoq/dialoq/internal/observability"
	"github.com/fulmenhq/gofulmen/crucible"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		observability.CLILogger.Info("=== Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		identity := GetAppIdentity()
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + identity.BinaryName)
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info(fmt.Sprintf("  Store Capacity: %d", cfg.Store.Capacity), zap.Int("store_capacity", cfg.Store.Capacity))
		observability.CLILogger.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		observability.CLILogger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		observability.CLILogger.Info("")

		// Admission limits
		observability.CLILogger.Info("Limits:")
		observability.CLILogger.Info(fmt.Sprintf("  Max Messages:   %d", cfg.Limits.MaxMessages), zap.Int("max_messages", cfg.Limits.MaxMessages))
		observability.CLILogger.Info("  Window:         " + cfg.Limits.Window.String())
		observability.CLILogger.Info("  Ban Duration:   " + cfg.Limits.BanDuration.String())
		observability.CLILogger.Info(fmt.Sprintf("  Warn Threshold: %d", cfg.Limits.WarnThreshold), zap.Int("warn_threshold", cfg.Limits.WarnThreshold))
		observability.CLILogger.Info("")

		// Assistant provider configuration
		observability.CLILogger.Info("Assistant:")
		observability.CLILogger.Info("  Provider:       " + cfg.Assistant.Provider)
		observability.CLILogger.Info("  Base URL:       " + cfg.Assistant.BaseURL)
		observability.CLILogger.Info("  Model:          " + cfg.Assistant.Model)
		observability.CLILogger.Info("  Timeout:        " + cfg.Assistant.Timeout.String())
		observability.CLILogger.Info(fmt.Sprintf("  Max History:    %d", cfg.Assistant.MaxHistory))
		if strings.TrimSpace(cfg.Assistant.APIKey) != "" {
			observability.CLILogger.Info("  API Key:        (set)")
		} else {
			observability.CLILogger.Info("  API Key:        (not set)")
		}
		observability.CLILogger.Info("")

		// Ingress configuration
		observability.CLILogger.Info("Ingress:")
		if strings.TrimSpace(cfg.Ingress.CallbackURL) != "" {
			observability.CLILogger.Info("  Callback URL:   " + cfg.Ingress.CallbackURL)
		} else {
			observability.CLILogger.Info("  Callback URL:   (not set)")
		}
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
