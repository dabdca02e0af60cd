package score

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"scoreframe/internal/services"
)

// DefaultTempoBPM is assumed when the score carries no tempo marking.
const DefaultTempoBPM = 120

// Parse converts an accepted notation payload into a Score. MXL payloads are
// unwrapped first; everything else is treated as uncompressed MusicXML.
func Parse(data []byte, filename string) (*Score, error) {
	if strings.EqualFold(filepath.Ext(filename), ".mxl") {
		unwrapped, err := unwrapMXL(data)
		if err != nil {
			return nil, parseErr("unwrap mxl", err.Error(), nil)
		}
		data = unwrapped
	}
	return parseMusicXML(data)
}

func parseErr(operation, message string, err error) error {
	return services.Wrap(services.ErrParse, "parse", operation, message, err)
}

// Raw document shapes. Measure content order matters for the tick cursor
// (backup/forward/chord semantics), so measures decode into an ordered entry
// list via a custom unmarshaller.

type xmlScorePartwise struct {
	XMLName       xml.Name `xml:"score-partwise"`
	Work          xmlWork  `xml:"work"`
	MovementTitle string   `xml:"movement-title"`
	Parts         []xmlPart `xml:"part"`
}

type xmlWork struct {
	Title string `xml:"work-title"`
}

type xmlPart struct {
	ID       string       `xml:"id,attr"`
	Measures []xmlMeasure `xml:"measure"`
}

type xmlMeasure struct {
	entries []measureEntry
}

type measureEntry struct {
	attributes *xmlAttributes
	note       *xmlNote
	backup     *xmlMove
	forward    *xmlMove
	direction  *xmlDirection
	sound      *xmlSound
}

type xmlAttributes struct {
	Divisions string   `xml:"divisions"`
	Time      *xmlTime `xml:"time"`
}

type xmlTime struct {
	Beats    string `xml:"beats"`
	BeatType string `xml:"beat-type"`
}

type xmlDirection struct {
	Sound     *xmlSound     `xml:"sound"`
	Metronome *xmlMetronome `xml:"direction-type>metronome"`
}

type xmlMetronome struct {
	PerMinute string `xml:"per-minute"`
}

type xmlSound struct {
	Tempo string `xml:"tempo,attr"`
}

type xmlMove struct {
	Duration string `xml:"duration"`
}

type xmlNote struct {
	Grace    *struct{} `xml:"grace"`
	Chord    *struct{} `xml:"chord"`
	Rest     *struct{} `xml:"rest"`
	Pitch    *xmlPitch `xml:"pitch"`
	Duration string    `xml:"duration"`
	Voice    string    `xml:"voice"`
	Lyric    *xmlLyric `xml:"lyric"`
}

type xmlPitch struct {
	Step   string `xml:"step"`
	Alter  string `xml:"alter"`
	Octave string `xml:"octave"`
}

type xmlLyric struct {
	Text string `xml:"text"`
}

func (m *xmlMeasure) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		token, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("unexpected end of measure")
			}
			return err
		}
		switch el := token.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "attributes":
				var attrs xmlAttributes
				if err := d.DecodeElement(&attrs, &el); err != nil {
					return err
				}
				m.entries = append(m.entries, measureEntry{attributes: &attrs})
			case "note":
				var note xmlNote
				if err := d.DecodeElement(&note, &el); err != nil {
					return err
				}
				m.entries = append(m.entries, measureEntry{note: &note})
			case "backup":
				var move xmlMove
				if err := d.DecodeElement(&move, &el); err != nil {
					return err
				}
				m.entries = append(m.entries, measureEntry{backup: &move})
			case "forward":
				var move xmlMove
				if err := d.DecodeElement(&move, &el); err != nil {
					return err
				}
				m.entries = append(m.entries, measureEntry{forward: &move})
			case "direction":
				var direction xmlDirection
				if err := d.DecodeElement(&direction, &el); err != nil {
					return err
				}
				m.entries = append(m.entries, measureEntry{direction: &direction})
			case "sound":
				var sound xmlSound
				if err := d.DecodeElement(&sound, &el); err != nil {
					return err
				}
				m.entries = append(m.entries, measureEntry{sound: &sound})
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

func parseMusicXML(data []byte) (*Score, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	// Scores exported from notation editors frequently declare legacy
	// encodings; the payloads themselves are UTF-8 compatible in practice.
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var doc xmlScorePartwise
	if err := decoder.Decode(&doc); err != nil {
		return nil, parseErr("decode xml", "invalid MusicXML document", err)
	}
	if len(doc.Parts) == 0 {
		return nil, parseErr("decode xml", "score contains no parts", nil)
	}

	result := &Score{
		Title:    firstNonEmpty(strings.TrimSpace(doc.Work.Title), strings.TrimSpace(doc.MovementTitle)),
		TempoBPM: 0,
	}

	for _, part := range doc.Parts {
		if err := appendPartEvents(result, part); err != nil {
			return nil, err
		}
	}

	if result.TempoBPM <= 0 {
		result.TempoBPM = DefaultTempoBPM
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		a, b := result.Events[i], result.Events[j]
		if a.StartTicks != b.StartTicks {
			return a.StartTicks < b.StartTicks
		}
		if a.Part != b.Part {
			return a.Part < b.Part
		}
		if a.Voice != b.Voice {
			return a.Voice < b.Voice
		}
		return a.MIDI < b.MIDI
	})

	for _, event := range result.Events {
		if end := event.EndTicks(); end > result.TotalTicks {
			result.TotalTicks = end
		}
	}
	return result, nil
}

// appendPartEvents walks one part's measures, maintaining the tick cursor and
// divisions state, and appends the part's notes to the score.
func appendPartEvents(result *Score, part xmlPart) error {
	var (
		divisions     int64
		cursor        int64
		lastNoteStart int64
		lastNoteSeen  bool
	)

	for measureIdx, measure := range part.Measures {
		for _, entry := range measure.entries {
			switch {
			case entry.attributes != nil:
				if value := strings.TrimSpace(entry.attributes.Divisions); value != "" {
					parsed, err := parsePositiveInt(value)
					if err != nil || parsed == 0 {
						return parseErr("read divisions", fmt.Sprintf("part %s measure %d: invalid divisions %q", part.ID, measureIdx+1, value), nil)
					}
					divisions = parsed
				}
				if entry.attributes.Time != nil && result.BeatsPerBar == 0 {
					result.BeatsPerBar = atoiDefault(entry.attributes.Time.Beats, 0)
					result.BeatUnit = atoiDefault(entry.attributes.Time.BeatType, 0)
				}
			case entry.direction != nil:
				applyTempo(result, entry.direction)
			case entry.sound != nil:
				applyTempoValue(result, entry.sound.Tempo)
			case entry.backup != nil:
				ticks, err := moveTicks(entry.backup.Duration, divisions, part.ID, measureIdx)
				if err != nil {
					return err
				}
				cursor -= ticks
				if cursor < 0 {
					cursor = 0
				}
			case entry.forward != nil:
				ticks, err := moveTicks(entry.forward.Duration, divisions, part.ID, measureIdx)
				if err != nil {
					return err
				}
				cursor += ticks
			case entry.note != nil:
				start, pitched, err := appendNote(result, part.ID, measureIdx, entry.note, divisions, &cursor, lastNoteStart, lastNoteSeen)
				if err != nil {
					return err
				}
				if pitched {
					lastNoteSeen = true
					lastNoteStart = start
				}
			}
		}
	}
	return nil
}

// appendNote handles one <note> element. It returns the note's start tick and
// whether a pitched, cursor-advancing note was emitted so the caller can
// anchor subsequent <chord/> notes.
func appendNote(result *Score, partID string, measureIdx int, note *xmlNote, divisions int64, cursor *int64, lastNoteStart int64, lastNoteSeen bool) (int64, bool, error) {
	if note.Grace != nil {
		// Grace notes have no metric duration; the renderer has nothing to
		// hold on screen for zero ticks.
		return 0, false, nil
	}

	durationTicks := int64(0)
	if strings.TrimSpace(note.Duration) != "" {
		raw, err := parsePositiveInt(strings.TrimSpace(note.Duration))
		if err != nil {
			return 0, false, parseErr("read note", fmt.Sprintf("part %s measure %d: invalid duration %q", partID, measureIdx+1, note.Duration), nil)
		}
		if divisions == 0 {
			return 0, false, parseErr("read note", fmt.Sprintf("part %s measure %d: note before divisions declaration", partID, measureIdx+1), nil)
		}
		durationTicks = rescaleTicks(raw, divisions)
	}

	if note.Rest != nil || note.Pitch == nil {
		// Rests and unpitched notes advance time but render nothing.
		*cursor += durationTicks
		return 0, false, nil
	}

	pitch, err := decodePitch(note.Pitch)
	if err != nil {
		return 0, false, parseErr("read note", fmt.Sprintf("part %s measure %d: %v", partID, measureIdx+1, err), nil)
	}
	midi, err := MIDINumber(pitch)
	if err != nil {
		return 0, false, parseErr("read note", fmt.Sprintf("part %s measure %d: %v", partID, measureIdx+1, err), nil)
	}

	start := *cursor
	if note.Chord != nil {
		if !lastNoteSeen {
			return 0, false, parseErr("read note", fmt.Sprintf("part %s measure %d: chord note without a preceding note", partID, measureIdx+1), nil)
		}
		start = lastNoteStart
	}

	lyric := ""
	if note.Lyric != nil {
		lyric = strings.TrimSpace(note.Lyric.Text)
	}

	result.Events = append(result.Events, NoteEvent{
		Pitch:         pitch,
		MIDI:          midi,
		Name:          SpellName(pitch),
		Voice:         atoiDefault(note.Voice, 1),
		Part:          partID,
		Lyric:         lyric,
		StartTicks:    start,
		DurationTicks: durationTicks,
	})

	if note.Chord == nil {
		*cursor += durationTicks
		return start, true, nil
	}
	return start, false, nil
}

func moveTicks(raw string, divisions int64, partID string, measureIdx int) (int64, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, nil
	}
	parsed, err := parsePositiveInt(value)
	if err != nil {
		return 0, parseErr("read measure", fmt.Sprintf("part %s measure %d: invalid move duration %q", partID, measureIdx+1, raw), nil)
	}
	if divisions == 0 {
		return 0, parseErr("read measure", fmt.Sprintf("part %s measure %d: move before divisions declaration", partID, measureIdx+1), nil)
	}
	return rescaleTicks(parsed, divisions), nil
}

// rescaleTicks converts a duration expressed in part-local divisions to the
// global TicksPerQuarter unit, rounding half away from zero for divisions
// that do not divide the fixed resolution.
func rescaleTicks(raw, divisions int64) int64 {
	return (raw*TicksPerQuarter + divisions/2) / divisions
}

func applyTempo(result *Score, direction *xmlDirection) {
	if direction.Sound != nil {
		applyTempoValue(result, direction.Sound.Tempo)
	}
	if direction.Metronome != nil {
		applyTempoValue(result, direction.Metronome.PerMinute)
	}
}

// applyTempoValue keeps the first tempo marking found in document order;
// tempo changes mid-score are not modeled.
func applyTempoValue(result *Score, raw string) {
	if result.TempoBPM > 0 {
		return
	}
	value := strings.TrimSpace(raw)
	if value == "" {
		return
	}
	if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 && !math.IsInf(parsed, 0) {
		result.TempoBPM = parsed
	}
}

func decodePitch(raw *xmlPitch) (Pitch, error) {
	step := strings.ToUpper(strings.TrimSpace(raw.Step))
	if _, ok := stepSemitones[step]; !ok {
		return Pitch{}, fmt.Errorf("invalid pitch step %q", raw.Step)
	}
	octave, err := strconv.Atoi(strings.TrimSpace(raw.Octave))
	if err != nil {
		return Pitch{}, fmt.Errorf("invalid pitch octave %q", raw.Octave)
	}
	alter := 0
	if value := strings.TrimSpace(raw.Alter); value != "" {
		// Some exporters emit alter as a float ("1.0").
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Pitch{}, fmt.Errorf("invalid pitch alter %q", raw.Alter)
		}
		alter = int(math.Round(parsed))
	}
	return Pitch{Step: step, Alter: alter, Octave: octave}, nil
}

// parsePositiveInt accepts integer durations and tolerates float-formatted
// values ("4.0") by rounding, rejecting negatives.
func parsePositiveInt(value string) (int64, error) {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
		if parsed < 0 {
			return 0, fmt.Errorf("negative value %q", value)
		}
		return parsed, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed < 0 {
		return 0, fmt.Errorf("invalid value %q", value)
	}
	return int64(math.Round(parsed)), nil
}

func atoiDefault(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
