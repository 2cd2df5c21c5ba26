package output

import (
	"encoding/json"

	"github.com/postly/postly/internal/ailink/prompt"
	"github.com/postly/postly/internal/quota"
	"github.com/postly/postly/internal/sanitize"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatPost renders a post the way the HTTP API returns it.
func (f *JSONFormatter) FormatPost(post *sanitize.Post) (string, error) {
	if post == nil {
		return "", nil
	}
	return f.encode(post)
}

// FormatAnalysis renders a multi-variant analysis as JSON.
func (f *JSONFormatter) FormatAnalysis(analysis *sanitize.Analysis) (string, error) {
	if analysis == nil {
		return "", nil
	}
	return f.encode(analysis)
}

// FormatUsage renders quota usage as JSON.
func (f *JSONFormatter) FormatUsage(usage quota.Usage) (string, error) {
	return f.encode(usage)
}

type promptSummary struct {
	Slug        string `json:"slug"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Input       string `json:"input"`
	Format      string `json:"response_format,omitempty"`
	Source      string `json:"source"`
}

// FormatPrompts renders a prompt listing as JSON.
func (f *JSONFormatter) FormatPrompts(prompts []*prompt.Prompt) (string, error) {
	out := make([]promptSummary, 0, len(prompts))
	for _, p := range prompts {
		if p == nil {
			continue
		}
		out = append(out, promptSummary{
			Slug:        p.Config.Slug,
			Name:        p.Config.Name,
			Description: p.Config.Description,
			Input:       promptInput(p),
			Format:      p.Config.ResponseFormat,
			Source:      p.Source,
		})
	}
	return f.encode(out)
}

func (f *JSONFormatter) encode(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
