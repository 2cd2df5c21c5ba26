package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	prompts, err := LoadDefaults()
	require.NoError(t, err)
	require.Len(t, prompts, 4)

	reg, err := NewRegistry(prompts)
	require.NoError(t, err)

	for _, slug := range []string{"post-draft", "post-refine", "post-improve", "post-variants"} {
		p, err := reg.Get(slug)
		require.NoError(t, err, slug)
		assert.NotEmpty(t, p.Config.SystemTemplate, slug)
		assert.NotEmpty(t, p.Config.UserTemplate, slug)
		assert.Equal(t, "json_object", p.Config.ResponseFormat, slug)
	}

	draft, err := reg.Get("post-draft")
	require.NoError(t, err)
	assert.True(t, draft.AcceptsImageType("image/jpeg"))
	assert.False(t, draft.AcceptsImageType("image/tiff"))

	refine, err := reg.Get("post-refine")
	require.NoError(t, err)
	assert.False(t, refine.AcceptsImageType("image/jpeg"))
}

func TestLoadUsesBodyAsSystemTemplate(t *testing.T) {
	p, err := Load("inline.md", []byte("---\nslug: inline-test\nuser_template: hi\n---\nYou are helpful.\n"))
	require.NoError(t, err)
	assert.Equal(t, "inline-test", p.Config.Slug)
	assert.Equal(t, "You are helpful.", p.Config.SystemTemplate)
	assert.Equal(t, "inline.md", p.Source)
}

func TestLoadPlainYAMLAndTemperature(t *testing.T) {
	p, err := Load("plain.yaml", []byte("slug: plain\nsystem_template: Be brief.\ntemperature: 0.3\n"))
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", p.Config.SystemTemplate)
	require.NotNil(t, p.Config.Temperature)
	assert.InDelta(t, 0.3, *p.Config.Temperature, 1e-9)

	front, body, fenced := splitFrontmatter("---\nslug: open")
	assert.True(t, fenced)
	assert.Equal(t, "slug: open", front)
	assert.Empty(t, body)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"empty":           "",
		"missing slug":    "---\nname: x\n---\nbody",
		"bad slug":        "---\nslug: Bad_Slug\n---\nbody",
		"bad version":     "---\nslug: ok\nversion: v1\n---\nbody",
		"bad format":      "---\nslug: ok\nresponse_format: xml\n---\nbody",
		"missing system":  "---\nslug: ok\n---\n",
		"images disabled": "---\nslug: ok\ninput:\n  max_images: 1\n---\nbody",
		"hot temperature": "---\nslug: ok\ntemperature: 2.5\n---\nbody",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load("case.md", []byte(data))
			require.Error(t, err)
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("---\nslug: custom-a\n---\nSystem A"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	prompts, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "custom-a", prompts[0].Config.Slug)

	_, err = LoadFromDir(filepath.Join(dir, "absent"))
	require.Error(t, err)
	_, err = LoadFromDir(filepath.Join(dir, "a.md"))
	require.Error(t, err)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	a := &Prompt{Config: Config{Slug: "dup"}}
	_, err := NewRegistry([]*Prompt{a, a})
	require.Error(t, err)

	reg, err := NewRegistry([]*Prompt{a})
	require.NoError(t, err)
	_, err = reg.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = reg.Get(" ")
	require.Error(t, err)
}

func TestMergeOverridesBySlug(t *testing.T) {
	base := []*Prompt{{Config: Config{Slug: "a", Name: "base"}}, {Config: Config{Slug: "b"}}}
	override := []*Prompt{{Config: Config{Slug: "a", Name: "custom"}}}

	merged := Merge(base, override)
	require.Len(t, merged, 2)
	reg, err := NewRegistry(merged)
	require.NoError(t, err)
	p, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "custom", p.Config.Name)
}
