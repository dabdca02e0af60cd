package score

import (
	"fmt"
	"strings"
)

var stepSemitones = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// MIDINumber converts a spelled pitch to its MIDI note number (C4 = 60).
// Returns an error for steps outside C..B.
func MIDINumber(p Pitch) (int, error) {
	base, ok := stepSemitones[strings.ToUpper(strings.TrimSpace(p.Step))]
	if !ok {
		return 0, fmt.Errorf("unknown pitch step %q", p.Step)
	}
	return (p.Octave+1)*12 + base + p.Alter, nil
}

// SpellName renders a pitch the way the fingerboard labels it, e.g. "F#4" or
// "Bb3". Double alterations use "##" and "bb".
func SpellName(p Pitch) string {
	accidental := ""
	switch p.Alter {
	case 1:
		accidental = "#"
	case 2:
		accidental = "##"
	case -1:
		accidental = "b"
	case -2:
		accidental = "bb"
	}
	return fmt.Sprintf("%s%s%d", strings.ToUpper(strings.TrimSpace(p.Step)), accidental, p.Octave)
}
