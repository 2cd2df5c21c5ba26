package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/postly/postly/internal/ailink/prompt"
	"github.com/postly/postly/internal/quota"
	"github.com/postly/postly/internal/sanitize"
)

const wrapWidth = 72

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

func newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(header)
	return t
}

// FormatPost renders a post and its extra fields as a two-column table.
func (f *TableFormatter) FormatPost(post *sanitize.Post) (string, error) {
	if post == nil {
		return "", nil
	}

	t := newTable(table.Row{"Field", "Value"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: wrapWidth}})
	t.AppendRow(table.Row{"post", text.WrapSoft(post.Text, wrapWidth)})
	for _, kv := range extraFields(post) {
		t.AppendRow(table.Row{kv[0], text.WrapSoft(kv[1], wrapWidth)})
	}
	return t.Render(), nil
}

// FormatAnalysis renders the description followed by one row per variant.
func (f *TableFormatter) FormatAnalysis(analysis *sanitize.Analysis) (string, error) {
	if analysis == nil {
		return "", nil
	}

	t := newTable(table.Row{"#", "Type", "Post"})
	for i, v := range analysis.Posts {
		t.AppendRow(table.Row{i + 1, v.Type, text.WrapSoft(v.Text, wrapWidth)})
	}
	if analysis.Description != "" {
		t.SetTitle(text.WrapSoft(analysis.Description, wrapWidth))
	}
	return t.Render(), nil
}

// FormatUsage renders one row per quota class.
func (f *TableFormatter) FormatUsage(usage quota.Usage) (string, error) {
	t := newTable(table.Row{"Class", "Used", "Limit", "Remaining"})
	for _, class := range sortedClasses(usage) {
		u := usage.Classes[class]
		limit, remaining := limitLabel(u)
		t.AppendRow(table.Row{string(class), u.Used, limit, remaining})
	}
	t.AppendFooter(table.Row{"", "", "Date", usage.Date})
	return t.Render(), nil
}

// FormatPrompts renders the prompt listing.
func (f *TableFormatter) FormatPrompts(prompts []*prompt.Prompt) (string, error) {
	t := newTable(table.Row{"Slug", "Input", "Format", "Description"})
	for _, p := range prompts {
		if p == nil {
			continue
		}
		t.AppendRow(table.Row{
			p.Config.Slug,
			promptInput(p),
			p.Config.ResponseFormat,
			text.WrapSoft(p.Config.Description, 48),
		})
	}
	return t.Render(), nil
}
