package ailink

import (
	"strings"
	"time"
)

// DefaultProviderID is the provider instance synthesized from the single-key shorthand.
const DefaultProviderID = "openai"

// Config defines provider configuration for AILink.
type Config struct {
	DefaultProvider string        `mapstructure:"default_provider"`
	DefaultTimeout  time.Duration `mapstructure:"default_timeout"`

	// PromptsDir overlays prompts on top of the embedded set, matched by slug.
	PromptsDir string `mapstructure:"prompts_dir"`

	// APIKey, BaseURL and Model configure a single OpenAI-compatible provider
	// when Providers is empty.
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`

	// Providers is a set of provider instances keyed by a user-defined id (slug).
	// Each instance declares its underlying provider type via AIProvider.
	Providers map[string]ProviderInstanceConfig `mapstructure:"providers"`

	// Routing maps a role (prompt slug by default) to a provider id.
	Routing map[string]string `mapstructure:"routing"`
}

// ProviderInstanceConfig defines a configured provider instance (e.g. "postly-openai").
type ProviderInstanceConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// AIProvider is the provider type/driver identifier. Only "openai" is supported.
	AIProvider string `mapstructure:"ai_provider"`

	// SelectionPolicy controls which credential is chosen.
	// Supported values: "priority" (default), "round_robin".
	SelectionPolicy string `mapstructure:"selection_policy"`

	// DefaultCredential, if set, forces selecting the matching credential label.
	// If missing/invalid, selection falls back to SelectionPolicy.
	DefaultCredential string `mapstructure:"default_credential"`

	BaseURL      string            `mapstructure:"base_url"`
	Models       map[string]string `mapstructure:"models"`
	Capabilities Capabilities      `mapstructure:"capabilities"`
	Roles        []string          `mapstructure:"roles"`

	Credentials []CredentialConfig `mapstructure:"credentials"`
}

// CredentialConfig is a single credential for a provider instance.
type CredentialConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Label    string `mapstructure:"label"`
	APIKey   string `mapstructure:"api_key"`
	Priority int    `mapstructure:"priority"`
}

// Capabilities describes provider-level hints.
type Capabilities struct {
	Images    bool `mapstructure:"images"`
	Streaming bool `mapstructure:"streaming"`
}

// WithDefaults expands the single-key shorthand into a provider instance.
func (c Config) WithDefaults() Config {
	if len(c.Providers) > 0 || strings.TrimSpace(c.APIKey) == "" {
		return c
	}

	models := map[string]string{}
	if model := strings.TrimSpace(c.Model); model != "" {
		models["default"] = model
	}

	c.Providers = map[string]ProviderInstanceConfig{
		DefaultProviderID: {
			Enabled:      true,
			AIProvider:   "openai",
			BaseURL:      c.BaseURL,
			Models:       models,
			Capabilities: Capabilities{Images: true},
			Credentials:  []CredentialConfig{{Enabled: true, Label: "default", APIKey: c.APIKey}},
		},
	}
	if strings.TrimSpace(c.DefaultProvider) == "" {
		c.DefaultProvider = DefaultProviderID
	}
	return c
}
