package score_test

import (
	"archive/zip"
	"bytes"
	"errors"
	"math"
	"testing"

	"scoreframe/internal/score"
	"scoreframe/internal/services"
)

func scoreDoc(body string) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="3.1">` + body + `</score-partwise>`)
}

const singleNoteBody = `
  <work><work-title>Test Piece</work-title></work>
  <part-list><score-part id="P1"><part-name>Violin</part-name></score-part></part-list>
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>1</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
      </attributes>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>4</duration><voice>1</voice></note>
    </measure>
  </part>`

func TestParseSingleNote(t *testing.T) {
	parsed, err := score.Parse(scoreDoc(singleNoteBody), "test.musicxml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.Title != "Test Piece" {
		t.Fatalf("unexpected title %q", parsed.Title)
	}
	if parsed.TempoBPM != score.DefaultTempoBPM {
		t.Fatalf("expected default tempo, got %g", parsed.TempoBPM)
	}
	if parsed.BeatsPerBar != 4 || parsed.BeatUnit != 4 {
		t.Fatalf("unexpected time signature %d/%d", parsed.BeatsPerBar, parsed.BeatUnit)
	}
	if len(parsed.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(parsed.Events))
	}
	event := parsed.Events[0]
	if event.StartTicks != 0 {
		t.Fatalf("unexpected start %d", event.StartTicks)
	}
	if event.DurationTicks != 4*score.TicksPerQuarter {
		t.Fatalf("unexpected duration %d", event.DurationTicks)
	}
	if event.Name != "C4" || event.MIDI != 60 {
		t.Fatalf("unexpected pitch %q midi %d", event.Name, event.MIDI)
	}
	// Four quarters at 120 BPM is two seconds.
	if got := parsed.DurationSeconds(); math.Abs(got-2.0) > 1e-9 {
		t.Fatalf("unexpected score duration %g", got)
	}
}

func TestParseTempoFromSound(t *testing.T) {
	body := `
  <part id="P1">
    <measure number="1">
      <attributes><divisions>2</divisions></attributes>
      <direction><sound tempo="60"/></direction>
      <note><pitch><step>A</step><octave>4</octave></pitch><duration>2</duration></note>
    </measure>
  </part>`
	parsed, err := score.Parse(scoreDoc(body), "test.xml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.TempoBPM != 60 {
		t.Fatalf("expected tempo 60, got %g", parsed.TempoBPM)
	}
	// One quarter note at 60 BPM is one second.
	if got := parsed.DurationSeconds(); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("unexpected duration %g", got)
	}
}

func TestParseTempoFromMetronome(t *testing.T) {
	body := `
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions></attributes>
      <direction>
        <direction-type><metronome><beat-unit>quarter</beat-unit><per-minute>90</per-minute></metronome></direction-type>
      </direction>
      <note><pitch><step>G</step><octave>3</octave></pitch><duration>1</duration></note>
    </measure>
  </part>`
	parsed, err := score.Parse(scoreDoc(body), "test.xml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.TempoBPM != 90 {
		t.Fatalf("expected tempo 90, got %g", parsed.TempoBPM)
	}
}

func TestParseRestsAdvanceTime(t *testing.T) {
	body := `
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions></attributes>
      <note><rest/><duration>2</duration></note>
      <note><pitch><step>D</step><octave>4</octave></pitch><duration>1</duration></note>
    </measure>
  </part>`
	parsed, err := score.Parse(scoreDoc(body), "test.xml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(parsed.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(parsed.Events))
	}
	if parsed.Events[0].StartTicks != 2*score.TicksPerQuarter {
		t.Fatalf("rest did not advance cursor: start %d", parsed.Events[0].StartTicks)
	}
}

func TestParseChordSharesStart(t *testing.T) {
	body := `
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions></attributes>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>2</duration></note>
      <note><chord/><pitch><step>E</step><octave>4</octave></pitch><duration>2</duration></note>
      <note><pitch><step>G</step><octave>4</octave></pitch><duration>1</duration></note>
    </measure>
  </part>`
	parsed, err := score.Parse(scoreDoc(body), "test.xml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(parsed.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(parsed.Events))
	}
	if parsed.Events[0].StartTicks != parsed.Events[1].StartTicks {
		t.Fatalf("chord notes should share start: %d vs %d", parsed.Events[0].StartTicks, parsed.Events[1].StartTicks)
	}
	// The chord does not advance the cursor twice.
	if parsed.Events[2].StartTicks != 2*score.TicksPerQuarter {
		t.Fatalf("unexpected start for following note: %d", parsed.Events[2].StartTicks)
	}
}

func TestParseBackupOverlapsVoices(t *testing.T) {
	body := `
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions></attributes>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>4</duration><voice>1</voice></note>
      <backup><duration>4</duration></backup>
      <note><pitch><step>E</step><octave>3</octave></pitch><duration>4</duration><voice>2</voice></note>
    </measure>
  </part>`
	parsed, err := score.Parse(scoreDoc(body), "test.xml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(parsed.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(parsed.Events))
	}
	for _, event := range parsed.Events {
		if event.StartTicks != 0 {
			t.Fatalf("expected both voices to start at 0, got %d", event.StartTicks)
		}
	}
	if parsed.Events[0].Voice == parsed.Events[1].Voice {
		t.Fatal("expected distinct voices")
	}
	if parsed.TotalTicks != 4*score.TicksPerQuarter {
		t.Fatalf("unexpected total ticks %d", parsed.TotalTicks)
	}
}

func TestParseMergesPartsTimeOrdered(t *testing.T) {
	body := `
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions></attributes>
      <note><rest/><duration>1</duration></note>
      <note><pitch><step>A</step><octave>4</octave></pitch><duration>1</duration></note>
    </measure>
  </part>
  <part id="P2">
    <measure number="1">
      <attributes><divisions>2</divisions></attributes>
      <note><pitch><step>D</step><octave>4</octave></pitch><duration>2</duration></note>
    </measure>
  </part>`
	parsed, err := score.Parse(scoreDoc(body), "test.xml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(parsed.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(parsed.Events))
	}
	if parsed.Events[0].Part != "P2" || parsed.Events[0].StartTicks != 0 {
		t.Fatalf("expected P2 note first, got part %q start %d", parsed.Events[0].Part, parsed.Events[0].StartTicks)
	}
	if parsed.Events[1].Part != "P1" || parsed.Events[1].StartTicks != score.TicksPerQuarter {
		t.Fatalf("expected P1 note second, got part %q start %d", parsed.Events[1].Part, parsed.Events[1].StartTicks)
	}
}

func TestParseSkipsGraceNotes(t *testing.T) {
	body := `
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions></attributes>
      <note><grace/><pitch><step>B</step><octave>4</octave></pitch></note>
      <note><pitch><step>C</step><octave>5</octave></pitch><duration>1</duration></note>
    </measure>
  </part>`
	parsed, err := score.Parse(scoreDoc(body), "test.xml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(parsed.Events) != 1 {
		t.Fatalf("expected grace note to be skipped, got %d events", len(parsed.Events))
	}
	if parsed.Events[0].Name != "C5" {
		t.Fatalf("unexpected event %q", parsed.Events[0].Name)
	}
}

func TestParseAccidentalsAndLyrics(t *testing.T) {
	body := `
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions></attributes>
      <note>
        <pitch><step>F</step><alter>1</alter><octave>4</octave></pitch>
        <duration>1</duration>
        <lyric><syllabic>single</syllabic><text>la</text></lyric>
      </note>
      <note><pitch><step>B</step><alter>-1</alter><octave>3</octave></pitch><duration>1</duration></note>
    </measure>
  </part>`
	parsed, err := score.Parse(scoreDoc(body), "test.xml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed.Events[0].Name != "F#4" {
		t.Fatalf("unexpected name %q", parsed.Events[0].Name)
	}
	if parsed.Events[0].MIDI != 66 {
		t.Fatalf("unexpected midi %d", parsed.Events[0].MIDI)
	}
	if parsed.Events[0].Lyric != "la" {
		t.Fatalf("unexpected lyric %q", parsed.Events[0].Lyric)
	}
	if parsed.Events[1].Name != "Bb3" {
		t.Fatalf("unexpected name %q", parsed.Events[1].Name)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		body []byte
	}{
		{"invalid xml", []byte("<score-partwise><part id=")},
		{"wrong root", []byte(`<?xml version="1.0"?><score-timewise></score-timewise>`)},
		{"no parts", scoreDoc(``)},
		{"note before divisions", scoreDoc(`<part id="P1"><measure number="1"><note><pitch><step>C</step><octave>4</octave></pitch><duration>1</duration></note></measure></part>`)},
		{"zero divisions", scoreDoc(`<part id="P1"><measure number="1"><attributes><divisions>0</divisions></attributes><note><pitch><step>C</step><octave>4</octave></pitch><duration>1</duration></note></measure></part>`)},
		{"bad duration", scoreDoc(`<part id="P1"><measure number="1"><attributes><divisions>1</divisions></attributes><note><pitch><step>C</step><octave>4</octave></pitch><duration>abc</duration></note></measure></part>`)},
		{"bad step", scoreDoc(`<part id="P1"><measure number="1"><attributes><divisions>1</divisions></attributes><note><pitch><step>H</step><octave>4</octave></pitch><duration>1</duration></note></measure></part>`)},
		{"leading chord", scoreDoc(`<part id="P1"><measure number="1"><attributes><divisions>1</divisions></attributes><note><chord/><pitch><step>C</step><octave>4</octave></pitch><duration>1</duration></note></measure></part>`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := score.Parse(tc.body, "test.xml")
			if err == nil {
				t.Fatal("expected parse error")
			}
			if !errors.Is(err, services.ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
		})
	}
}

func buildMXL(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := writer.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestParseMXLWithManifest(t *testing.T) {
	payload := buildMXL(t, map[string]string{
		"META-INF/container.xml": `<?xml version="1.0"?>
<container><rootfiles><rootfile full-path="piece.xml"/></rootfiles></container>`,
		"piece.xml": string(scoreDoc(singleNoteBody)),
	})
	parsed, err := score.Parse(payload, "piece.mxl")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(parsed.Events) != 1 || parsed.Title != "Test Piece" {
		t.Fatalf("unexpected parse result: %d events title %q", len(parsed.Events), parsed.Title)
	}
}

func TestParseMXLWithoutManifest(t *testing.T) {
	payload := buildMXL(t, map[string]string{
		"piece.musicxml": string(scoreDoc(singleNoteBody)),
	})
	parsed, err := score.Parse(payload, "piece.mxl")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(parsed.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(parsed.Events))
	}
}

func TestParseMXLRejectsBadArchive(t *testing.T) {
	_, err := score.Parse([]byte("PK\x03\x04 not actually a zip"), "piece.mxl")
	if err == nil {
		t.Fatal("expected error for corrupt archive")
	}
	if !errors.Is(err, services.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestActiveAtHalfOpenInterval(t *testing.T) {
	parsed, err := score.Parse(scoreDoc(singleNoteBody), "test.xml")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	event := parsed.Events[0]
	if !parsed.ActiveAt(event, 0) {
		t.Fatal("note should be active at its start")
	}
	if !parsed.ActiveAt(event, 1.999) {
		t.Fatal("note should be active just before its end")
	}
	if parsed.ActiveAt(event, 2.0) {
		t.Fatal("note should not be active at its end (half-open interval)")
	}
}
