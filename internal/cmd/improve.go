package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/postly/postly/internal/generate"
	"github.com/postly/postly/internal/observability"
	"github.com/postly/postly/internal/output"
)

var improveCmd = &cobra.Command{
	Use:   "improve [post text]",
	Short: "Rewrite an existing post",
	Long: fmt.Sprintf(`Rewrite an existing post, optionally in a named tone.

The post is read from the arguments, from --file, or from stdin.
Known tones: %s. Any other tone is ignored.`, toneList()),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readPostText(cmd, args)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gen, err := newGenerator(cfg, observability.CLILogger, false)
		if err != nil {
			return err
		}

		toneFlag, _ := cmd.Flags().GetString("tone")
		post, err := gen.service.Improve(cmd.Context(), text, generate.ParseTone(toneFlag), localClientID)
		if err != nil {
			return err
		}
		return writeOutput(cmd, func(f output.Formatter) (string, error) {
			return f.FormatPost(post)
		})
	},
}

func readPostText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	path, _ := cmd.Flags().GetString("file")
	var r io.Reader = cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path) // #nosec G304 -- path is an explicit CLI argument
		if err != nil {
			return "", err
		}
		defer f.Close() // nolint:errcheck // read-only handle
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read post: %w", err)
	}
	return string(data), nil
}

func toneList() string {
	tones := generate.Tones()
	names := make([]string, 0, len(tones))
	for _, t := range tones {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(improveCmd)
	improveCmd.Flags().StringP("tone", "t", "", "target tone for the rewrite")
	improveCmd.Flags().StringP("file", "f", "", "read the post from a file")
	addOutputFlags(improveCmd)
}
