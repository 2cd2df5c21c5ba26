package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postly/postly/internal/ailink"
	"github.com/postly/postly/internal/ailink/prompt"
	errwrap "github.com/postly/postly/internal/errors"
	"github.com/postly/postly/internal/generate"
	"github.com/postly/postly/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the application can start successfully.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration invalid", errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid"))
			return
		}
		log.Info("✅ Configuration valid")

		registry, err := prompt.BuildRegistry(cfg.AILink.PromptsDir)
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Prompts failed to load", errwrap.WrapConfigInvalid(cmd.Context(), err, "prompts failed to load"))
			return
		}
		for _, slug := range generate.PromptSlugs {
			if _, err := registry.Get(slug); err != nil {
				ExitWithCode(log, foundry.ExitConfigInvalid, "Prompt missing", errwrap.WrapConfigInvalid(cmd.Context(), err, "prompt "+slug+" missing"))
				return
			}
		}
		log.Info("✅ Prompts loaded")

		if ailink.NewRegistry(cfg.AILink).Configured() {
			log.Info("✅ AI provider configured")
		} else {
			log.Warn("⚠️  No AI provider credential configured (set " + GetAppIdentity().EnvPrefix + "AILINK_API_KEY)")
		}

		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
