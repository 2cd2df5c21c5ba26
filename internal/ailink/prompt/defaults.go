package prompt

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts/*.md
var defaultPromptsFS embed.FS

// LoadDefaults loads the embedded prompt set.
func LoadDefaults() ([]*Prompt, error) {
	entries, err := defaultPromptsFS.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("read embedded prompts: %w", err)
	}
	results := make([]*Prompt, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := defaultPromptsFS.ReadFile("prompts/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded prompt %s: %w", entry.Name(), err)
		}
		prompt, err := Load(entry.Name(), data)
		if err != nil {
			return nil, err
		}
		results = append(results, prompt)
	}
	return results, nil
}

// DefaultRegistry builds a registry from embedded prompts.
func DefaultRegistry() (Registry, error) {
	prompts, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	return NewRegistry(prompts)
}

// BuildRegistry loads the embedded prompts and overlays any prompts found in dir.
// Prompts in dir replace embedded prompts with the same slug.
func BuildRegistry(dir string) (Registry, error) {
	prompts, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dir) != "" {
		custom, err := LoadFromDir(dir)
		if err != nil {
			return nil, err
		}
		prompts = Merge(prompts, custom)
	}
	return NewRegistry(prompts)
}

// Merge returns base with any prompt sharing a slug in overrides replaced.
func Merge(base, overrides []*Prompt) []*Prompt {
	index := make(map[string]int, len(base))
	result := make([]*Prompt, 0, len(base)+len(overrides))
	for _, p := range base {
		if p == nil {
			continue
		}
		index[p.Config.Slug] = len(result)
		result = append(result, p)
	}
	for _, p := range overrides {
		if p == nil {
			continue
		}
		if i, ok := index[p.Config.Slug]; ok {
			result[i] = p
			continue
		}
		index[p.Config.Slug] = len(result)
		result = append(result, p)
	}
	return result
}
