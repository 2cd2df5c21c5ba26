package output

import (
	"fmt"
	"strings"

	"github.com/postly/postly/internal/ailink/prompt"
	"github.com/postly/postly/internal/quota"
	"github.com/postly/postly/internal/sanitize"
)

// MarkdownFormatter renders results as Markdown.
type MarkdownFormatter struct{}

// FormatPost renders the post as a paragraph with extra fields as a list.
func (f *MarkdownFormatter) FormatPost(post *sanitize.Post) (string, error) {
	if post == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(post.Text))
	sb.WriteString("\n")
	if fields := extraFields(post); len(fields) > 0 {
		sb.WriteString("\n")
		for _, kv := range fields {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", kv[0], kv[1]))
		}
	}
	return sb.String(), nil
}

// FormatAnalysis renders one section per variant.
func (f *MarkdownFormatter) FormatAnalysis(analysis *sanitize.Analysis) (string, error) {
	if analysis == nil {
		return "", nil
	}

	var sb strings.Builder
	if analysis.Description != "" {
		sb.WriteString("> ")
		sb.WriteString(strings.TrimSpace(analysis.Description))
		sb.WriteString("\n\n")
	}
	for i, v := range analysis.Posts {
		title := v.Type
		if title == "" {
			title = fmt.Sprintf("Variant %d", i+1)
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n%s\n\n", title, strings.TrimSpace(v.Text)))
	}
	return strings.TrimRight(sb.String(), "\n") + "\n", nil
}

// FormatUsage renders quota usage as a Markdown table.
func (f *MarkdownFormatter) FormatUsage(usage quota.Usage) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Quota for %s on %s\n\n", escapeMarkdownCell(usage.ClientID), usage.Date))
	sb.WriteString("| Class | Used | Limit | Remaining |\n")
	sb.WriteString("|-------|------|-------|-----------|\n")
	for _, class := range sortedClasses(usage) {
		u := usage.Classes[class]
		limit, remaining := limitLabel(u)
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s |\n", class, u.Used, limit, remaining))
	}
	return sb.String(), nil
}

// FormatPrompts renders the prompt listing as a Markdown table.
func (f *MarkdownFormatter) FormatPrompts(prompts []*prompt.Prompt) (string, error) {
	var sb strings.Builder
	sb.WriteString("| Slug | Input | Format | Description |\n")
	sb.WriteString("|------|-------|--------|-------------|\n")
	for _, p := range prompts {
		if p == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdownCell(p.Config.Slug),
			promptInput(p),
			escapeMarkdownCell(p.Config.ResponseFormat),
			escapeMarkdownCell(p.Config.Description),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
