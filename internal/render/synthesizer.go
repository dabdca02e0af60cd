package render

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"
	"strings"

	"scoreframe/internal/logging"
	"scoreframe/internal/score"
	"scoreframe/internal/services"
)

// minClipSeconds keeps degenerate scores (no events, zero duration) from
// producing an unplayable zero-frame video.
const minClipSeconds = 1.0

// Params controls the frame geometry and pacing of a synthesized clip.
type Params struct {
	FrameRate   int
	Width       int
	Height      int
	TailSeconds float64
}

func (p Params) normalized() Params {
	if p.FrameRate <= 0 {
		p.FrameRate = 30
	}
	if p.Width <= 0 {
		p.Width = 1280
	}
	if p.Height <= 0 {
		p.Height = 720
	}
	if p.TailSeconds < 0 {
		p.TailSeconds = 0
	}
	return p
}

// Synthesizer turns parsed scores into deterministic fingerboard frames.
type Synthesizer struct {
	params Params
	logger *slog.Logger
}

func New(params Params, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Synthesizer{
		params: params.normalized(),
		logger: logging.NewComponentLogger(logger, "render"),
	}
}

// placement is a score event resolved to its fingerboard location. Events the
// board cannot show keep mapped=false and appear only in the header text.
// Display text prefers the event's lyric over the spelled note name.
type placement struct {
	event       score.NoteEvent
	stringIdx   int
	position    int
	mapped      bool
	headerName  string
	markerLabel string
}

// Sequence is a lazily rendered, deterministic frame source. Frames are
// produced on demand so long clips never hold the whole video in memory.
type Sequence struct {
	sc         *score.Score
	params     Params
	layout     boardLayout
	placements []placement
	count      int
	duration   float64
}

func synthErr(operation, message string) error {
	return services.Wrap(services.ErrSynthesis, "synthesize", operation, message, nil)
}

// Sequence plans the clip for a parsed score: total duration, frame count and
// the fingerboard placement of every event.
func (s *Synthesizer) Sequence(sc *score.Score) (*Sequence, error) {
	if sc == nil {
		return nil, synthErr("plan", "no score to render")
	}
	if s.params.Width < boardWidth || s.params.Height < boardHeight {
		return nil, synthErr("plan", fmt.Sprintf("canvas %dx%d is smaller than the %dx%d fingerboard", s.params.Width, s.params.Height, boardWidth, boardHeight))
	}

	total := sc.DurationSeconds() + s.params.TailSeconds
	if total < minClipSeconds {
		total = minClipSeconds
	}
	count := int(math.Ceil(total * float64(s.params.FrameRate)))
	if count < 1 {
		count = 1
	}

	seq := &Sequence{
		sc:       sc,
		params:   s.params,
		layout:   layoutFor(s.params.Width, s.params.Height),
		count:    count,
		duration: total,
	}
	for _, event := range sc.Events {
		p := placement{event: event, headerName: event.Name}
		p.stringIdx, p.position, p.mapped = PlacementFor(event.MIDI)
		if event.Lyric != "" {
			p.headerName = event.Lyric
		}
		if p.mapped {
			p.markerLabel = event.Lyric
			if p.markerLabel == "" {
				p.markerLabel = event.Pitch.Step + PositionLabel(p.position)
			}
		}
		seq.placements = append(seq.placements, p)
	}

	s.logger.Info("planned frame sequence",
		logging.String(logging.FieldEventType, "render_planned"),
		logging.Int("frames", count),
		logging.Float64("duration_seconds", total),
		logging.Int("events", len(sc.Events)),
		logging.Int("frame_rate", s.params.FrameRate),
	)
	return seq, nil
}

// Count reports the total number of frames in the clip.
func (seq *Sequence) Count() int { return seq.count }

// DurationSeconds reports the clip length including the tail.
func (seq *Sequence) DurationSeconds() float64 { return seq.duration }

// FrameRate reports the pacing the clip was planned for.
func (seq *Sequence) FrameRate() int { return seq.params.FrameRate }

// Size reports the frame geometry.
func (seq *Sequence) Size() (width, height int) {
	return seq.params.Width, seq.params.Height
}

// FrameTime reports the score time a frame index samples.
func (seq *Sequence) FrameTime(index int) float64 {
	return float64(index) / float64(seq.params.FrameRate)
}

// ActiveNames lists the display names of events sounding at a score time, in
// the header's display order. A note with a lyric is listed by its lyric text
// rather than its spelled name.
func (seq *Sequence) ActiveNames(t float64) []string {
	var names []string
	for _, p := range seq.placements {
		if seq.sc.ActiveAt(p.event, t) {
			names = append(names, p.headerName)
		}
	}
	sort.Strings(names)
	return names
}

// RenderFrame draws the frame at the given index. Rendering is pure: the same
// index always produces byte-identical pixels.
func (seq *Sequence) RenderFrame(index int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, seq.params.Width, seq.params.Height))
	fillRect(img, 0, 0, seq.params.Width, seq.params.Height, backgroundColor)
	drawBoard(img, seq.layout)

	t := seq.FrameTime(index)

	// Inactive markers first so active ones paint over shared positions.
	// Only sounding notes carry a label above the marker.
	for _, p := range seq.placements {
		if p.mapped && !seq.sc.ActiveAt(p.event, t) {
			drawMarker(img, seq.layout, p.stringIdx, p.position, inactiveColor, "")
		}
	}
	for _, p := range seq.placements {
		if p.mapped && seq.sc.ActiveAt(p.event, t) {
			drawMarker(img, seq.layout, p.stringIdx, p.position, activeColor, p.markerLabel)
		}
	}

	drawText(img, 20, 30, seq.headerText(t), labelColor)
	return img
}

func (seq *Sequence) headerText(t float64) string {
	names := seq.ActiveNames(t)
	playing := "-"
	if len(names) > 0 {
		playing = strings.Join(names, ", ")
	}
	return fmt.Sprintf("Time: %.2fs - Playing: %s", t, playing)
}
