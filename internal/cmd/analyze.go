package cmd

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postly/postly/internal/generate"
	"github.com/postly/postly/internal/observability"
	"github.com/postly/postly/internal/output"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Write a social post for a product photo",
	Long: `Write a social post for a product photo.

The image is sent to the model twice: once for a draft and once to refine
it. Use --variants for several styled posts plus hashtags in one call.
Pass "-" to read the image from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gen, err := newGenerator(cfg, observability.CLILogger, false)
		if err != nil {
			return err
		}

		upload, err := openImage(args[0], cfg.Upload.Dir, cfg.Upload.MaxBytes)
		if err != nil {
			return err
		}

		variants, _ := cmd.Flags().GetBool("variants")
		observability.CLILogger.Debug("Analyzing image",
			zap.String("path", args[0]),
			zap.Int64("bytes", upload.Size()),
			zap.Bool("variants", variants))

		if variants {
			analysis, err := gen.service.AnalyzeVariants(cmd.Context(), upload, localClientID)
			if err != nil {
				return err
			}
			return writeOutput(cmd, func(f output.Formatter) (string, error) {
				return f.FormatAnalysis(analysis)
			})
		}

		post, err := gen.service.Analyze(cmd.Context(), upload, localClientID)
		if err != nil {
			return err
		}
		return writeOutput(cmd, func(f output.Formatter) (string, error) {
			return f.FormatPost(post)
		})
	},
}

// localClientID labels CLI requests in logs; the CLI is not metered.
const localClientID = "local"

// openImage copies the image at path (or stdin for "-") into a scratch upload.
func openImage(path, dir string, maxBytes int64) (*generate.Upload, error) {
	var (
		r         io.Reader
		mediaType string
	)
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path) // #nosec G304 -- path is an explicit CLI argument
		if err != nil {
			return nil, err
		}
		defer f.Close() // nolint:errcheck // read-only handle
		r = f
		mediaType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	}

	upload, err := generate.NewUpload(dir, r, maxBytes, mediaType)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return upload, nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().Bool("variants", false, "return several styled posts with hashtags")
	addOutputFlags(analyzeCmd)
}
