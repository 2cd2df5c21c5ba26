// Package output renders generation results for the command line.
package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/postly/postly/internal/ailink/prompt"
	"github.com/postly/postly/internal/quota"
	"github.com/postly/postly/internal/sanitize"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders posts, analyses, quota usage and prompt listings.
type Formatter interface {
	FormatPost(post *sanitize.Post) (string, error)
	FormatAnalysis(analysis *sanitize.Analysis) (string, error)
	FormatUsage(usage quota.Usage) (string, error)
	FormatPrompts(prompts []*prompt.Prompt) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

// extraFields returns the post's extra fields as sorted key/value pairs with
// JSON strings unquoted.
func extraFields(post *sanitize.Post) [][2]string {
	if post == nil || len(post.Extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(post.Extra))
	for k := range post.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([][2]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, [2]string{k, rawValue(post.Extra[k])})
	}
	return fields
}

func rawValue(raw []byte) string {
	value := strings.TrimSpace(string(raw))
	if len(value) >= 2 && value[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return value
}

// sortedClasses returns usage classes in display order followed by any
// unknown classes alphabetically.
func sortedClasses(usage quota.Usage) []quota.Class {
	seen := make(map[quota.Class]bool, len(usage.Classes))
	classes := make([]quota.Class, 0, len(usage.Classes))
	for _, c := range quota.Classes {
		if _, ok := usage.Classes[c]; ok {
			classes = append(classes, c)
			seen[c] = true
		}
	}
	rest := make([]string, 0)
	for c := range usage.Classes {
		if !seen[c] {
			rest = append(rest, string(c))
		}
	}
	sort.Strings(rest)
	for _, c := range rest {
		classes = append(classes, quota.Class(c))
	}
	return classes
}

func limitLabel(u quota.ClassUsage) (limit, remaining string) {
	if u.Unlimited {
		return "unlimited", "-"
	}
	return fmt.Sprintf("%d", u.Limit), fmt.Sprintf("%d", u.Remaining)
}

func promptInput(p *prompt.Prompt) string {
	if p.Config.Input.AcceptsImages {
		return "image"
	}
	return "text"
}
