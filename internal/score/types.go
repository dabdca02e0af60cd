package score

// TicksPerQuarter is the internal fixed time resolution. All part-local
// divisions are rescaled to this unit so events from different parts share an
// exact integer timebase and long scores accumulate no rounding drift.
const TicksPerQuarter = 960

// Pitch is a spelled pitch as written in the source notation.
type Pitch struct {
	Step   string // C, D, E, F, G, A, B
	Alter  int    // semitone alteration, -2..2
	Octave int
}

// NoteEvent is a single timed note. Times are in ticks (TicksPerQuarter per
// quarter note); seconds are derived through the owning Score's tempo.
type NoteEvent struct {
	Pitch         Pitch
	MIDI          int
	Name          string // e.g. "F#4"
	Voice         int
	Part          string
	Lyric         string
	StartTicks    int64
	DurationTicks int64
}

// EndTicks returns the tick at which the note stops sounding.
func (e NoteEvent) EndTicks() int64 {
	return e.StartTicks + e.DurationTicks
}

// Score is the parsed intermediate representation handed to the frame
// synthesizer: a single time-ordered event stream plus global metadata.
type Score struct {
	Title       string
	TempoBPM    float64
	BeatsPerBar int
	BeatUnit    int
	Events      []NoteEvent
	TotalTicks  int64
}

// Seconds converts a tick count to seconds under the score tempo.
func (s *Score) Seconds(ticks int64) float64 {
	return float64(ticks) * s.secondsPerTick()
}

// DurationSeconds returns the time at which the last note ends.
func (s *Score) DurationSeconds() float64 {
	return s.Seconds(s.TotalTicks)
}

// ActiveAt reports whether the event sounds at time t, using the half-open
// interval [start, start+duration).
func (s *Score) ActiveAt(e NoteEvent, t float64) bool {
	start := s.Seconds(e.StartTicks)
	end := s.Seconds(e.EndTicks())
	return start <= t && t < end
}

func (s *Score) secondsPerTick() float64 {
	tempo := s.TempoBPM
	if tempo <= 0 {
		tempo = DefaultTempoBPM
	}
	return 60.0 / (tempo * TicksPerQuarter)
}
