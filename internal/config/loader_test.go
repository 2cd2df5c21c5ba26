package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()

	v := viper.New()
	SetDefaults(v)
	BindEnv(v, "POSTLY_")
	return v
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(newTestViper(t), "POSTLY_")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 3001, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
		assert.False(t, cfg.Server.TrustProxyHeaders)

		// Verify quota defaults
		assert.Equal(t, 3, cfg.Quota.AnalyzeDailyLimit)
		assert.Equal(t, 10, cfg.Quota.ImproveDailyLimit)

		// Verify image and upload defaults
		assert.Equal(t, 1568, cfg.Image.MaxDimension)
		assert.Equal(t, 85, cfg.Image.JPEGQuality)
		assert.Equal(t, 24_000_000, cfg.Image.MaxPixels)
		assert.EqualValues(t, 10<<20, cfg.Upload.MaxBytes)

		// Verify limiter and CORS defaults
		assert.True(t, cfg.RateLimit.Enabled)
		assert.Equal(t, 30.0, cfg.RateLimit.RequestsPerMinute)
		assert.Equal(t, 5, cfg.RateLimit.Burst)
		assert.Equal(t, 10*time.Minute, cfg.RateLimit.IdleTTL)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)

		// Verify ailink defaults
		assert.Equal(t, 60*time.Second, cfg.AILink.DefaultTimeout)
		assert.Equal(t, "gpt-4o-mini", cfg.AILink.Model)
		assert.Empty(t, cfg.AILink.Providers)

		assert.Same(t, cfg, GetConfig())
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("POSTLY_QUOTA_ANALYZE_DAILY_LIMIT", "7")
		t.Setenv("POSTLY_QUOTA_TIMEZONE", "UTC")
		t.Setenv("POSTLY_AILINK_API_KEY", "sk-test")
		t.Setenv("POSTLY_AILINK_DEFAULT_TIMEOUT", "15s")
		t.Setenv("POSTLY_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

		cfg, err := Load(newTestViper(t), "POSTLY_")
		require.NoError(t, err)

		assert.Equal(t, 7, cfg.Quota.AnalyzeDailyLimit)
		assert.Equal(t, "UTC", cfg.Quota.Timezone)
		assert.Equal(t, "sk-test", cfg.AILink.APIKey)
		assert.Equal(t, 15*time.Second, cfg.AILink.DefaultTimeout)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `server:
  port: 9000
quota:
  analyze_daily_limit: 0
ratelimit:
  enabled: false
ailink:
  routing:
    post-draft: local
  providers:
    local:
      enabled: true
      ai_provider: openai
      base_url: http://localhost:8000/v1
      models:
        default: llava
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		v := newTestViper(t)
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v, "POSTLY_")
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 0, cfg.Quota.AnalyzeDailyLimit)
		assert.False(t, cfg.RateLimit.Enabled)
		assert.Equal(t, "local", cfg.AILink.Routing["post-draft"])

		local, ok := cfg.AILink.Providers["local"]
		require.True(t, ok)
		assert.Equal(t, "http://localhost:8000/v1", local.BaseURL)
		assert.Equal(t, "llava", local.Models["default"])
	})

	t.Run("DynamicProviderEnv", func(t *testing.T) {
		t.Setenv("POSTLY_AILINK_PROVIDERS_LOCAL_VLLM_BASE_URL", "http://vllm:8000/v1")
		t.Setenv("POSTLY_AILINK_PROVIDERS_LOCAL_VLLM_API_KEY", "secret")
		t.Setenv("POSTLY_AILINK_PROVIDERS_LOCAL_VLLM_ENABLED", "true")
		t.Setenv("POSTLY_AILINK_PROVIDERS_LOCAL_VLLM_MODEL", "qwen-vl")
		t.Setenv("POSTLY_AILINK_ROUTING_POST_IMPROVE", "local-vllm")

		cfg, err := Load(newTestViper(t), "POSTLY_")
		require.NoError(t, err)

		provider, ok := cfg.AILink.Providers["local-vllm"]
		require.True(t, ok)
		assert.True(t, provider.Enabled)
		assert.Equal(t, "http://vllm:8000/v1", provider.BaseURL)
		assert.Equal(t, "qwen-vl", provider.Models["default"])
		require.Len(t, provider.Credentials, 1)
		assert.Equal(t, "secret", provider.Credentials[0].APIKey)
		assert.Equal(t, "local-vllm", cfg.AILink.Routing["post-improve"])
	})

	t.Run("NilViper", func(t *testing.T) {
		_, err := Load(nil, "POSTLY_")
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := Load(newTestViper(t), "POSTLY_")
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad timezone", func(c *Config) { c.Quota.Timezone = "Mars/Olympus" }, "quota.timezone"},
		{"bad quality", func(c *Config) { c.Image.JPEGQuality = 101 }, "jpeg_quality"},
		{"negative pixels", func(c *Config) { c.Image.MaxPixels = -1 }, "image.max_pixels"},
		{"zero upload", func(c *Config) { c.Upload.MaxBytes = 0 }, "upload.max_bytes"},
		{"zero rate", func(c *Config) { c.RateLimit.RequestsPerMinute = 0 }, "requests_per_minute"},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }, "burst"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	t.Run("disabled limiter ignores rate", func(t *testing.T) {
		cfg := base(t)
		cfg.RateLimit.Enabled = false
		cfg.RateLimit.RequestsPerMinute = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestQuotaLocation(t *testing.T) {
	loc, err := QuotaConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = QuotaConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestAILinkEnvOverridesIgnoresUnrelated(t *testing.T) {
	overrides := ailinkEnvOverrides("POSTLY_", []string{
		"HOME=/root",
		"POSTLY_AILINK_PROVIDERS_X_BASE_URL=",
		"POSTLY_AILINK_PROVIDERS_UNKNOWN=1",
	})
	assert.Nil(t, overrides)
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := DefaultConfigPath("postly")
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Contains(t, path, "postly")
}
