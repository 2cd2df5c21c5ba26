package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// Load parses and validates a prompt definition from YAML bytes.
func Load(source string, data []byte) (*Prompt, error) {
	config, body, err := parseYAMLWithFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}

	if strings.TrimSpace(config.SystemTemplate) == "" {
		config.SystemTemplate = strings.TrimSpace(body)
	}

	if strings.TrimSpace(config.SystemTemplate) == "" {
		return nil, fmt.Errorf("prompt %s missing system_template", source)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("validate prompt %s: %w", source, err)
	}

	return &Prompt{Config: config, Source: source}, nil
}

// LoadFromDir reads all prompt files (.md with YAML frontmatter) from a directory.
func LoadFromDir(dir string) ([]*Prompt, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("prompts dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompts dir %s is not a directory", dir)
	}
	entries, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	results := make([]*Prompt, 0, len(entries))
	for _, path := range entries {
		data, err := os.ReadFile(path) // #nosec G304 -- Prompt path is user-provided
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", path, err)
		}
		prompt, err := Load(path, data)
		if err != nil {
			return nil, err
		}
		results = append(results, prompt)
	}
	return results, nil
}

const fence = "---"

// parseYAMLWithFrontmatter accepts either a Markdown file whose YAML
// frontmatter is fenced by "---" lines, with the body as the system
// template, or a plain YAML document.
func parseYAMLWithFrontmatter(data []byte) (Config, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Config{}, "", errors.New("empty prompt")
	}

	var cfg Config
	front, body, fenced := splitFrontmatter(string(trimmed))
	if !fenced {
		if err := yaml.Unmarshal(trimmed, &cfg); err != nil {
			return Config{}, "", fmt.Errorf("invalid yaml: %w", err)
		}
		return cfg, "", nil
	}
	if err := yaml.Unmarshal([]byte(front), &cfg); err != nil {
		return Config{}, "", fmt.Errorf("invalid frontmatter: %w", err)
	}
	return cfg, body, nil
}

// splitFrontmatter separates a leading fenced block from the rest of doc.
// An unterminated fence makes the whole remainder frontmatter.
func splitFrontmatter(doc string) (front, body string, fenced bool) {
	first, rest, _ := strings.Cut(doc, "\n")
	if strings.TrimSpace(first) != fence {
		return "", doc, false
	}
	var frontLines []string
	for len(rest) > 0 {
		var line string
		line, rest, _ = strings.Cut(rest, "\n")
		if strings.TrimSpace(line) == fence {
			return strings.Join(frontLines, "\n"), rest, true
		}
		frontLines = append(frontLines, line)
	}
	return strings.Join(frontLines, "\n"), "", true
}

func validateConfig(cfg Config) error {
	slug := strings.TrimSpace(cfg.Slug)
	if slug == "" {
		return fmt.Errorf("slug is required")
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("slug %q must be lowercase kebab-case", slug)
	}
	if v := strings.TrimSpace(cfg.Version); v != "" && !versionPattern.MatchString(v) {
		return fmt.Errorf("version %q must be MAJOR.MINOR.PATCH", v)
	}
	switch cfg.ResponseFormat {
	case "", "text", "json_object":
	default:
		return fmt.Errorf("unsupported response_format %q", cfg.ResponseFormat)
	}
	if cfg.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	if t := cfg.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("temperature %.2f must be between 0 and 2", *t)
	}
	if cfg.Input.MaxImages < 0 {
		return fmt.Errorf("input.max_images must not be negative")
	}
	if !cfg.Input.AcceptsImages && (len(cfg.Input.ImageTypes) > 0 || cfg.Input.MaxImages > 0) {
		return fmt.Errorf("image settings require input.accepts_images")
	}
	for _, v := range cfg.Input.RequiredVariables {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("input.required_variables contains an empty name")
		}
	}
	return nil
}
