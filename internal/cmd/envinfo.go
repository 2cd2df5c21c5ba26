package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postly/postly/internal/config"
	"github.com/postly/postly/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		version := crucible.GetVersion()
		identity := GetAppIdentity()

		log.Info("=== Postly Environment Information ===")
		log.Info("Application:")
		log.Info("  Name:       " + identity.BinaryName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS/ARCH:  " + runtime.GOOS + "/" + runtime.GOARCH)

		cfg, err := loadConfig()
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		configFile := config.DefaultConfigPath(identity.ConfigName)
		log.Info("Configuration:")
		log.Info(fmt.Sprintf("  Server:         %s:%d", cfg.Server.Host, cfg.Server.Port))
		log.Info("  Log Level:      " + cfg.Logging.Level)
		log.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port))
		log.Info(fmt.Sprintf("  Daily Limits:   analyze=%d improve=%d", cfg.Quota.AnalyzeDailyLimit, cfg.Quota.ImproveDailyLimit))
		log.Info(fmt.Sprintf("  Rate Limit:     enabled=%t rpm=%g burst=%d", cfg.RateLimit.Enabled, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))
		log.Info("  Model:          " + cfg.AILink.Model)
		log.Info(fmt.Sprintf("  API Key Set:    %t", cfg.AILink.APIKey != "" || len(cfg.AILink.Providers) > 0))
		log.Info("  Config File:    "+configFile, zap.String("config_file", configFile))
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
