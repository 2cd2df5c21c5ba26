// Package config provides centralized configuration management for Postly.
// Values are layered by viper: built-in defaults, an optional YAML config
// file, then POSTLY_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/postly/postly/internal/quota"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers built-in defaults on v. Every key that may be set
// from the environment needs a default so AutomaticEnv can resolve it during
// Unmarshal.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.trust_proxy_headers", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Quota defaults
	v.SetDefault("quota.analyze_daily_limit", quota.DefaultAnalyzeLimit)
	v.SetDefault("quota.improve_daily_limit", quota.DefaultImproveLimit)
	v.SetDefault("quota.timezone", "")

	// Image defaults
	v.SetDefault("image.max_dimension", 1568)
	v.SetDefault("image.jpeg_quality", 85)
	v.SetDefault("image.max_pixels", 24_000_000)

	// Upload defaults
	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("upload.dir", "")

	// Burst limiter defaults
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 30)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("ratelimit.idle_ttl", "10m")

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("cors.max_age", 600)

	// AILink defaults
	v.SetDefault("ailink.default_provider", "")
	v.SetDefault("ailink.default_timeout", "60s")
	v.SetDefault("ailink.prompts_dir", "")
	v.SetDefault("ailink.api_key", "")
	v.SetDefault("ailink.base_url", "")
	v.SetDefault("ailink.model", "gpt-4o-mini")
}

// BindEnv wires v to environment variables under prefix, mapping
// `quota.analyze_daily_limit` to `POSTLY_QUOTA_ANALYZE_DAILY_LIMIT`.
func BindEnv(v *viper.Viper, prefix string) {
	v.SetEnvPrefix(strings.TrimSuffix(strings.TrimSpace(prefix), "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the layered settings held by v into a validated Config and
// makes it the current configuration.
//
// Provider instances under `ailink.providers` are keyed dynamically, so they
// are read from `{prefix}AILINK_PROVIDERS_*` and `{prefix}AILINK_ROUTING_*`
// directly rather than through AutomaticEnv.
func Load(v *viper.Viper, envPrefix string) (*Config, error) {
	if v == nil {
		return nil, fmt.Errorf("viper instance is required")
	}

	if overrides := ailinkEnvOverrides(envPrefix, os.Environ()); len(overrides) > 0 {
		if err := v.MergeConfigMap(overrides); err != nil {
			return nil, fmt.Errorf("failed to apply ailink environment overrides: %w", err)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.StringToFloat64HookFunc(),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, err := c.Quota.Location(); err != nil {
		return err
	}
	if c.Image.MaxDimension < 0 {
		return fmt.Errorf("image.max_dimension must not be negative")
	}
	if c.Image.JPEGQuality < 0 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("image.jpeg_quality must be between 1 and 100")
	}
	if c.Image.MaxPixels < 0 {
		return fmt.Errorf("image.max_pixels must not be negative")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("ratelimit.requests_per_minute must be positive when enabled")
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("ratelimit.burst must be positive when enabled")
		}
	}
	if c.AILink.DefaultTimeout < 0 {
		return fmt.Errorf("ailink.default_timeout must not be negative")
	}
	return nil
}

// Location resolves the zone used for the quota calendar day.
func (q QuotaConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(q.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid quota.timezone %q: %w", name, err)
	}
	return loc, nil
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

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath(configName string) string {
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// ailinkEnvOverrides builds a nested override map from provider and routing
// variables such as POSTLY_AILINK_PROVIDERS_LOCAL_VLLM_BASE_URL.
func ailinkEnvOverrides(prefix string, environ []string) map[string]any {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	providerPrefix := prefix + "AILINK_PROVIDERS_"
	routingPrefix := prefix + "AILINK_ROUTING_"

	overrides := map[string]any{}
	for _, item := range environ {
		key, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}

		switch {
		case strings.HasPrefix(key, providerPrefix):
			applyProviderOverride(overrides, key[len(providerPrefix):], value)
		case strings.HasPrefix(key, routingPrefix):
			role := toSlug(key[len(routingPrefix):])
			if role == "" {
				continue
			}
			routing := ensureMap(ensureMap(overrides, "ailink"), "routing")
			routing[role] = strings.TrimSpace(value)
		}
	}

	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

// providerFields maps env suffixes to provider config keys. Longer suffixes
// come first so API_KEY is not mistaken for a provider named ..._API.
var providerFields = []struct {
	suffix string
	key    string
}{
	{"_AI_PROVIDER", "ai_provider"},
	{"_BASE_URL", "base_url"},
	{"_API_KEY", "api_key"},
	{"_ENABLED", "enabled"},
	{"_MODEL", "model"},
}

func applyProviderOverride(overrides map[string]any, raw, value string) {
	raw = strings.TrimSpace(raw)
	value = strings.TrimSpace(value)

	for _, field := range providerFields {
		name, ok := strings.CutSuffix(raw, field.suffix)
		if !ok {
			continue
		}
		providerID := toSlug(name)
		if providerID == "" {
			return
		}

		provider := ensureMap(ensureMap(ensureMap(overrides, "ailink"), "providers"), providerID)
		switch field.key {
		case "enabled":
			provider["enabled"] = strings.EqualFold(value, "true")
		case "ai_provider":
			provider["ai_provider"] = strings.ToLower(value)
		case "model":
			models := ensureMap(provider, "models")
			models["default"] = value
		case "api_key":
			provider["credentials"] = []any{map[string]any{"enabled": true, "label": "env", "api_key": value}}
		default:
			provider[field.key] = value
		}
		return
	}
}

func ensureMap(parent map[string]any, key string) map[string]any {
	if existing, ok := parent[key].(map[string]any); ok {
		return existing
	}
	next := map[string]any{}
	parent[key] = next
	return next
}

func toSlug(raw string) string {
	parts := strings.Split(strings.TrimSpace(raw), "_")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "-")
}
