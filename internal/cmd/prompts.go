package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postly/postly/internal/ailink/prompt"
	"github.com/postly/postly/internal/output"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage generation prompts",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available prompts",
	Long:  "List the embedded prompts together with any overrides from ailink.prompts_dir.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		registry, err := prompt.BuildRegistry(cfg.AILink.PromptsDir)
		if err != nil {
			return err
		}

		prompts := registry.List()
		if len(prompts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No prompts found.")
			return nil
		}
		return writeOutput(cmd, func(f output.Formatter) (string, error) {
			return f.FormatPrompts(prompts)
		})
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Print a prompt's system template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		registry, err := prompt.BuildRegistry(cfg.AILink.PromptsDir)
		if err != nil {
			return err
		}
		p, err := registry.Get(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s (%s)\n", p.Config.Slug, p.Source)
		fmt.Fprintln(out, p.Config.SystemTemplate)
		if p.Config.UserTemplate != "" {
			fmt.Fprintln(out, "\n# user template")
			fmt.Fprintln(out, p.Config.UserTemplate)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(promptsCmd)
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsShowCmd)
	addOutputFlags(promptsListCmd)
}
