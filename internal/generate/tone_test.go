package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToneInstructions(t *testing.T) {
	assert.Equal(t, "more assertive and sales-driven", ToneAggressive.Instruction())
	assert.Equal(t, "more polished and premium", ToneLuxury.Instruction())
	assert.Equal(t, "lighter and more conversational", ToneCasual.Instruction())
	assert.Equal(t, "more polished and premium", Tone(" Luxury ").Instruction())

	for _, unknown := range []Tone{"", "formal", "pirate"} {
		assert.Empty(t, unknown.Instruction(), "tone %q", unknown)
		assert.False(t, unknown.Known())
	}
	for _, tone := range Tones() {
		assert.True(t, tone.Known(), "tone %q", tone)
	}
}
