package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/postly/postly/internal/appid"
	"github.com/postly/postly/internal/config"
	errwrap "github.com/postly/postly/internal/errors"
	"github.com/postly/postly/internal/generate"
	"github.com/postly/postly/internal/output"
	"github.com/postly/postly/internal/sanitize"
	"github.com/postly/postly/internal/server/handlers"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	cfg, err := config.Load(v, "POSTLY_CMDTEST_")
	require.NoError(t, err)
	return cfg
}

func TestAppIdentityDefaults(t *testing.T) {
	identity := GetAppIdentity()
	require.NotNil(t, identity)
	require.Equal(t, appid.Default().BinaryName, identity.BinaryName)
	require.True(t, strings.HasSuffix(identity.EnvPrefix, "_"), "env prefix %q", identity.EnvPrefix)
}

func TestExitCodeFor(t *testing.T) {
	_, statErr := os.Open(filepath.Join(t.TempDir(), "missing.jpg"))

	cases := []struct {
		name string
		err  error
		want foundry.ExitCode
	}{
		{"missing file", fmt.Errorf("read image: %w", statErr), foundry.ExitFileNotFound},
		{"upstream", &generate.Error{Kind: generate.KindUpstreamFailure, Stage: "draft"}, foundry.ExitExternalServiceUnavailable},
		{"config", errwrap.NewConfigInvalidError("bad port"), foundry.ExitConfigInvalid},
		{"quota", &generate.Error{Kind: generate.KindQuotaExceeded}, foundry.ExitFailure},
		{"plain", errors.New("boom"), foundry.ExitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ExitCodeFor(tc.err))
		})
	}
}

func TestWriteFatal(t *testing.T) {
	var buf bytes.Buffer
	writeFatal(&buf, foundry.ExitConfigInvalid, "Configuration invalid",
		errwrap.WrapConfigInvalid(context.Background(), errors.New("port out of range"), "invalid configuration"))
	out := buf.String()
	require.Contains(t, out, "FATAL: Configuration invalid [CONFIG_INVALID]")
	require.Contains(t, out, "Underlying error: port out of range")
	require.Contains(t, out, fmt.Sprintf("Exit Code: %d", foundry.ExitConfigInvalid))

	buf.Reset()
	writeFatal(&buf, foundry.ExitFailure, "Command failed", nil)
	require.True(t, strings.HasPrefix(buf.String(), "FATAL: Command failed\n"))
}

func TestExitWithCodeUsesSemanticCode(t *testing.T) {
	var code int
	osExit = func(c int) { code = c }
	t.Cleanup(func() { osExit = os.Exit })

	ExitWithCodeStderr(foundry.ExitFileNotFound, "missing", os.ErrNotExist)
	require.Equal(t, int(foundry.ExitFileNotFound), code)

	ExitWithCode(nil, foundry.ExitExternalServiceUnavailable, "upstream", errors.New("502"))
	require.Equal(t, int(foundry.ExitExternalServiceUnavailable), code)
}

func TestNewGeneratorAttachesQuota(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quota.AnalyzeDailyLimit = 2
	cfg.Quota.Timezone = "UTC"

	gen, err := newGenerator(cfg, nil, true)
	require.NoError(t, err)
	require.NotNil(t, gen.quota)
	require.Equal(t, gen.quota, gen.service.Quota)
	require.Equal(t, "UTC", gen.quota.Location.String())
	require.Equal(t, cfg.Image.MaxDimension, gen.service.Image.MaxDimension)

	usage, err := gen.quota.Snapshot(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, 2, usage.Classes["analyze"].Remaining)
}

func TestNewGeneratorWithoutQuota(t *testing.T) {
	gen, err := newGenerator(testConfig(t), nil, false)
	require.NoError(t, err)
	require.Nil(t, gen.quota)
	require.Nil(t, gen.service.Quota)
}

func TestNewGeneratorRejectsBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quota.Timezone = "Nowhere/Atlantis"

	_, err := newGenerator(cfg, nil, true)
	require.Error(t, err)
}

func TestNewGeneratorRejectsMissingPromptsDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.AILink.PromptsDir = filepath.Join(t.TempDir(), "absent")

	_, err := newGenerator(cfg, nil, false)
	require.Error(t, err)
}

func TestModelHealthChecker(t *testing.T) {
	cfg := testConfig(t)
	gen, err := newGenerator(cfg, nil, false)
	require.NoError(t, err)

	err = modelHealthChecker(gen.model).CheckHealth(context.Background())
	var degraded *handlers.DegradedError
	require.ErrorAs(t, err, &degraded)

	cfg.AILink.APIKey = "sk-test"
	gen, err = newGenerator(cfg, nil, false)
	require.NoError(t, err)
	require.NoError(t, modelHealthChecker(gen.model).CheckHealth(context.Background()))

	require.Error(t, modelHealthChecker(nil).CheckHealth(context.Background()))
}

func TestCORSFromConfig(t *testing.T) {
	opts := corsFromConfig(config.CORSConfig{
		AllowedOrigins: []string{"https://app.example"},
		AllowedMethods: []string{"POST"},
		MaxAge:         60,
	})
	require.Equal(t, []string{"https://app.example"}, opts.AllowedOrigins)
	require.Equal(t, []string{"POST"}, opts.AllowedMethods)
	require.Empty(t, opts.AllowedHeaders)
	require.Equal(t, 60, opts.MaxAge)
}

func newOutputCommand(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addOutputFlags(cmd)
	cmd.Flags().StringP("file", "f", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestWriteOutputToStdout(t *testing.T) {
	cmd, buf := newOutputCommand(t, "--output-format", "json")
	post := &sanitize.Post{Text: "hello"}

	err := writeOutput(cmd, func(f output.Formatter) (string, error) { return f.FormatPost(post) })
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "hello", decoded["post"])
	require.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestWriteOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "post.md")
	cmd, buf := newOutputCommand(t, "-o", "markdown", "--out", path)

	err := writeOutput(cmd, func(f output.Formatter) (string, error) {
		return f.FormatPost(&sanitize.Post{Text: "to disk"})
	})
	require.NoError(t, err)
	require.Empty(t, buf.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "to disk\n", string(data))
}

func TestWriteOutputRejectsUnknownFormat(t *testing.T) {
	cmd, _ := newOutputCommand(t, "-o", "csv")
	err := writeOutput(cmd, func(f output.Formatter) (string, error) { return "", nil })
	require.Error(t, err)
}

func TestReadPostText(t *testing.T) {
	cmd, _ := newOutputCommand(t)
	text, err := readPostText(cmd, []string{"new", "menu", "today"})
	require.NoError(t, err)
	require.Equal(t, "new menu today", text)

	cmd.SetIn(strings.NewReader("from stdin"))
	text, err = readPostText(cmd, nil)
	require.NoError(t, err)
	require.Equal(t, "from stdin", text)

	path := filepath.Join(t.TempDir(), "post.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o600))
	cmd, _ = newOutputCommand(t, "--file", path)
	text, err = readPostText(cmd, nil)
	require.NoError(t, err)
	require.Equal(t, "from file", text)
}

func TestOpenImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.PNG")
	require.NoError(t, os.WriteFile(path, []byte("not really a png"), 0o600))
	scratch := filepath.Join(dir, "scratch")

	upload, err := openImage(path, scratch, 1024)
	require.NoError(t, err)
	require.Equal(t, "image/png", upload.MediaType())
	require.EqualValues(t, 16, upload.Size())
	require.NoError(t, upload.Release())

	_, err = openImage(path, scratch, 4)
	require.ErrorIs(t, err, generate.ErrUploadTooLarge)

	empty := filepath.Join(dir, "empty.jpg")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = openImage(empty, scratch, 1024)
	require.ErrorIs(t, err, generate.ErrNoInput)

	_, err = openImage(filepath.Join(dir, "missing.jpg"), scratch, 1024)
	require.ErrorIs(t, err, os.ErrNotExist)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestVersionReport(t *testing.T) {
	SetVersionInfo("1.4.0", "abc1234", "2026-10-01")
	t.Cleanup(func() { SetVersionInfo("", "", "") })

	basic := buildVersionReport(false)
	require.Equal(t, "1.4.0", basic.Version)
	require.Empty(t, basic.Commit)

	extended := buildVersionReport(true)
	require.Equal(t, "abc1234", extended.Commit)
	require.NotEmpty(t, extended.Go)
}
