package ailink

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/postly/postly/internal/ailink/driver"
	"github.com/postly/postly/internal/ailink/driver/openai"
	"github.com/postly/postly/internal/ailink/prompt"
)

var (
	ErrNoProvider   = errors.New("no AI provider available")
	ErrNoCredential = errors.New("no usable API credential")
	ErrNoModel      = errors.New("model not configured")
)

// Selection policies for ProviderInstanceConfig.SelectionPolicy.
const (
	PolicyPriority   = "priority"
	PolicyRoundRobin = "round_robin"
)

// Registry maps a pipeline role (the prompt slug unless the caller overrides
// it) to a provider instance, one of its credentials, a driver and a model.
// Drivers are built once per provider and credential and then reused.
type Registry struct {
	cfg Config

	mu      sync.Mutex
	clients map[string]driver.Driver
	turns   map[string]int
}

// ResolvedProvider is what a single model call runs against.
type ResolvedProvider struct {
	ProviderID string
	Provider   ProviderInstanceConfig
	Credential CredentialConfig
	Driver     driver.Driver
	Model      string
	BaseURL    string
}

// NewRegistry builds a registry, expanding the single-key shorthand.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg.WithDefaults(),
		clients: map[string]driver.Driver{},
		turns:   map[string]int{},
	}
}

// Resolve picks the provider for role and the model for promptDef. A
// non-empty modelOverride wins over prompt hints and provider defaults.
func (r *Registry) Resolve(role string, promptDef *prompt.Prompt, modelOverride string) (*ResolvedProvider, error) {
	if r == nil {
		return nil, ErrNoProvider
	}
	id, provider, err := r.providerFor(strings.TrimSpace(role))
	if err != nil {
		return nil, err
	}
	cred, err := r.credentialFor(id, provider)
	if err != nil {
		return nil, err
	}
	drv, err := r.clientFor(id, provider, cred)
	if err != nil {
		return nil, err
	}
	model, err := resolveModel(provider, promptDef, modelOverride)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", id, err)
	}

	resolved := &ResolvedProvider{
		ProviderID: id,
		Provider:   provider,
		Credential: cred,
		Driver:     drv,
		Model:      model,
		BaseURL:    strings.TrimSpace(provider.BaseURL),
	}
	if client, ok := drv.(*openai.Client); ok {
		resolved.BaseURL = client.BaseURL
	}
	return resolved, nil
}

// Configured reports whether at least one enabled provider has a usable credential.
func (r *Registry) Configured() bool {
	if r == nil {
		return false
	}
	for _, provider := range r.cfg.Providers {
		if provider.Enabled && len(usableCredentials(provider)) > 0 {
			return true
		}
	}
	return false
}

// providerFor tries, in order: an explicit routing entry, the first enabled
// provider (by id) that lists role, the default provider, and finally the
// only enabled provider.
func (r *Registry) providerFor(role string) (string, ProviderInstanceConfig, error) {
	if role != "" {
		if id := strings.TrimSpace(r.cfg.Routing[role]); id != "" {
			provider, err := r.enabled(id)
			if err != nil {
				return "", provider, fmt.Errorf("routing for %q: %w", role, err)
			}
			return id, provider, nil
		}
		for _, id := range r.enabledIDs() {
			if hasRole(r.cfg.Providers[id].Roles, role) {
				return id, r.cfg.Providers[id], nil
			}
		}
	}

	if id := strings.TrimSpace(r.cfg.DefaultProvider); id != "" {
		provider, err := r.enabled(id)
		if err != nil {
			return "", provider, fmt.Errorf("default provider: %w", err)
		}
		return id, provider, nil
	}

	switch ids := r.enabledIDs(); len(ids) {
	case 0:
		return "", ProviderInstanceConfig{}, fmt.Errorf("%w: no enabled providers configured", ErrNoProvider)
	case 1:
		return ids[0], r.cfg.Providers[ids[0]], nil
	default:
		return "", ProviderInstanceConfig{}, fmt.Errorf("%w: role %q matches no routing and %d providers are enabled", ErrNoProvider, role, len(ids))
	}
}

func (r *Registry) enabled(id string) (ProviderInstanceConfig, error) {
	provider, ok := r.cfg.Providers[id]
	switch {
	case !ok:
		return provider, fmt.Errorf("%w: provider %q not configured", ErrNoProvider, id)
	case !provider.Enabled:
		return provider, fmt.Errorf("%w: provider %q is disabled", ErrNoProvider, id)
	}
	return provider, nil
}

func (r *Registry) enabledIDs() []string {
	var ids []string
	for id, provider := range r.cfg.Providers {
		if provider.Enabled {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// credentialFor honors DefaultCredential, then picks from the highest
// priority tier, rotating through the tier under the round_robin policy.
func (r *Registry) credentialFor(id string, provider ProviderInstanceConfig) (CredentialConfig, error) {
	usable := usableCredentials(provider)
	if len(usable) == 0 {
		return CredentialConfig{}, fmt.Errorf("%w for provider %q", ErrNoCredential, id)
	}

	if want := strings.TrimSpace(provider.DefaultCredential); want != "" {
		for _, cred := range usable {
			if strings.EqualFold(strings.TrimSpace(cred.Label), want) {
				return cred, nil
			}
		}
	}

	tier, top := topTier(usable)
	if strings.EqualFold(strings.TrimSpace(provider.SelectionPolicy), PolicyRoundRobin) {
		return tier[r.nextTurn(id+"/"+strconv.Itoa(top), len(tier))], nil
	}
	return tier[0], nil
}

func (r *Registry) clientFor(id string, provider ProviderInstanceConfig, cred CredentialConfig) (driver.Driver, error) {
	key := id + "/" + credentialKey(cred)

	r.mu.Lock()
	defer r.mu.Unlock()
	if drv, ok := r.clients[key]; ok {
		return drv, nil
	}

	kind := strings.ToLower(strings.TrimSpace(provider.AIProvider))
	if kind != "openai" {
		if kind == "" {
			kind = "(unset)"
		}
		return nil, fmt.Errorf("unsupported ai_provider %q for provider %q", kind, id)
	}
	client := openai.NewClient(provider.BaseURL, cred.APIKey)
	client.Timeout = r.cfg.DefaultTimeout
	r.clients[key] = client
	return client, nil
}

// nextTurn returns the next index in [0, n) for key and advances it.
func (r *Registry) nextTurn(key string, n int) int {
	if n <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	turn := r.turns[key]
	r.turns[key] = turn + 1
	return turn % n
}

func usableCredentials(provider ProviderInstanceConfig) []CredentialConfig {
	var usable []CredentialConfig
	for _, cred := range provider.Credentials {
		if cred.Enabled && strings.TrimSpace(cred.APIKey) != "" {
			usable = append(usable, cred)
		}
	}
	return usable
}

// topTier returns the credentials sharing the highest priority, in config order.
func topTier(creds []CredentialConfig) ([]CredentialConfig, int) {
	top := creds[0].Priority
	for _, cred := range creds[1:] {
		top = max(top, cred.Priority)
	}
	var tier []CredentialConfig
	for _, cred := range creds {
		if cred.Priority == top {
			tier = append(tier, cred)
		}
	}
	return tier, top
}

func credentialKey(cred CredentialConfig) string {
	if label := strings.TrimSpace(cred.Label); label != "" {
		return label
	}
	return "p" + strconv.Itoa(cred.Priority)
}

func resolveModel(provider ProviderInstanceConfig, promptDef *prompt.Prompt, override string) (string, error) {
	candidates := append([]string{override}, preferredModels(promptDef)...)
	candidates = append(candidates, provider.Models["default"])
	for _, model := range candidates {
		if model = strings.TrimSpace(model); model != "" {
			return model, nil
		}
	}
	return "", ErrNoModel
}

// preferredModels reads the preferred_models provider hint, which YAML may
// decode as a string or a list.
func preferredModels(promptDef *prompt.Prompt) []string {
	if promptDef == nil {
		return nil
	}
	switch hint := promptDef.Config.ProviderHints["preferred_models"].(type) {
	case string:
		return []string{hint}
	case []string:
		return hint
	case []any:
		models := make([]string, 0, len(hint))
		for _, item := range hint {
			if s, ok := item.(string); ok {
				models = append(models, s)
			}
		}
		return models
	}
	return nil
}

func hasRole(roles []string, role string) bool {
	return slices.ContainsFunc(roles, func(candidate string) bool {
		return strings.EqualFold(strings.TrimSpace(candidate), role)
	})
}
