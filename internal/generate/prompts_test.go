package generate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/postly/postly/internal/ailink/prompt"
)

func TestEmbeddedPromptsCoverEveryCall(t *testing.T) {
	registry, err := prompt.DefaultRegistry()
	require.NoError(t, err)

	for _, slug := range PromptSlugs {
		p, err := registry.Get(slug)
		require.NoError(t, err, slug)
		require.Equal(t, "json_object", p.Config.ResponseFormat, slug)
	}

	draft, err := registry.Get(promptDraft)
	require.NoError(t, err)
	require.True(t, draft.Config.Input.AcceptsImages)

	improve, err := registry.Get(promptImprove)
	require.NoError(t, err)
	require.False(t, improve.Config.Input.AcceptsImages)
}
