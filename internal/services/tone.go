package services

import (
	"strings"

	"golang.org/x/text/cases"
)

// Tone selects the voice of a generated reply.
type Tone int

const (
	// ToneProfessional is the canonical default.
	ToneProfessional Tone = iota
	ToneFriendly
	ToneEmpathetic
)

var toneNames = [...]string{
	ToneProfessional: "Professional",
	ToneFriendly:     "Friendly",
	ToneEmpathetic:   "Empathetic",
}

// toneInstructions has one entry per Tone; the array length is fixed by the
// enum so a new Tone without an instruction fails to compile.
var toneInstructions = [len(toneNames)]string{
	ToneProfessional: "Write a warm, professional, short reply.",
	ToneFriendly:     "Write a friendly, upbeat, conversational short reply.",
	ToneEmpathetic:   "Write a deeply empathetic, understanding short reply that acknowledges the customer's feelings.",
}

var folder = cases.Fold()

// ParseTone maps untyped input to a Tone. Unknown or empty input yields
// ToneProfessional; it is never an error.
func ParseTone(s string) Tone {
	key := folder.String(strings.TrimSpace(s))
	for i, name := range toneNames {
		if folder.String(name) == key {
			return Tone(i)
		}
	}
	return ToneProfessional
}

// String returns the display name.
func (t Tone) String() string {
	if t < 0 || int(t) >= len(toneNames) {
		return toneNames[ToneProfessional]
	}
	return toneNames[t]
}

// Instruction returns the prompt sentence for t.
func (t Tone) Instruction() string {
	if t < 0 || int(t) >= len(toneInstructions) {
		return toneInstructions[ToneProfessional]
	}
	return toneInstructions[t]
}
