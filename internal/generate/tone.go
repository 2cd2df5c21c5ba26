package generate

import "strings"

// Tone selects a rewrite style for Improve.
type Tone string

const (
	ToneAggressive Tone = "aggressive"
	ToneLuxury     Tone = "luxury"
	ToneCasual     Tone = "casual"
)

var toneInstructions = map[Tone]string{
	ToneAggressive: "more assertive and sales-driven",
	ToneLuxury:     "more polished and premium",
	ToneCasual:     "lighter and more conversational",
}

// Tones lists the recognized tones.
func Tones() []Tone {
	return []Tone{ToneAggressive, ToneLuxury, ToneCasual}
}

// ParseTone normalizes s. Unknown values are returned as-is and select no instruction.
func ParseTone(s string) Tone {
	return Tone(strings.ToLower(strings.TrimSpace(s)))
}

// Instruction returns the rewrite instruction for t, or "" when t is unrecognized.
func (t Tone) Instruction() string {
	return toneInstructions[ParseTone(string(t))]
}

// Known reports whether t has an instruction.
func (t Tone) Known() bool {
	return t.Instruction() != ""
}
