package prompt

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrNotFound is returned by Get for an unknown slug.
var ErrNotFound = errors.New("prompt not found")

// Registry provides access to prompt definitions.
type Registry interface {
	Get(slug string) (*Prompt, error)
	List() []*Prompt
}

// InMemoryRegistry is an immutable slug-keyed prompt set.
type InMemoryRegistry struct {
	bySlug map[string]*Prompt
}

// NewRegistry indexes prompts by slug. Nil entries are skipped; blank or
// repeated slugs are errors.
func NewRegistry(prompts []*Prompt) (*InMemoryRegistry, error) {
	bySlug := make(map[string]*Prompt, len(prompts))
	for _, p := range prompts {
		if p == nil {
			continue
		}
		slug := strings.TrimSpace(p.Config.Slug)
		switch {
		case slug == "":
			return nil, fmt.Errorf("prompt from %s missing slug", sourceName(p))
		case bySlug[slug] != nil:
			return nil, fmt.Errorf("duplicate prompt slug %q (%s and %s)", slug, sourceName(bySlug[slug]), sourceName(p))
		}
		bySlug[slug] = p
	}
	return &InMemoryRegistry{bySlug: bySlug}, nil
}

func (r *InMemoryRegistry) Get(slug string) (*Prompt, error) {
	if r == nil {
		return nil, errors.New("prompt registry not configured")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errors.New("prompt slug is required")
	}
	if p, ok := r.bySlug[slug]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, slug)
}

// List returns prompts sorted by slug.
func (r *InMemoryRegistry) List() []*Prompt {
	if r == nil {
		return nil
	}
	out := make([]*Prompt, 0, len(r.bySlug))
	for _, slug := range slices.Sorted(maps.Keys(r.bySlug)) {
		out = append(out, r.bySlug[slug])
	}
	return out
}

func sourceName(p *Prompt) string {
	if p.Source == "" {
		return "<inline>"
	}
	return p.Source
}
