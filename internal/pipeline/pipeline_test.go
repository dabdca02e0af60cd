package pipeline_test

import (
	"context"
	"errors"
	"image"
	"os"
	"strings"
	"testing"
	"time"

	"scoreframe/internal/encode"
	"scoreframe/internal/journal"
	"scoreframe/internal/pipeline"
	"scoreframe/internal/score"
	"scoreframe/internal/services"
	"scoreframe/internal/testsupport"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="3.1">
  <work><work-title>Sample</work-title></work>
  <part-list><score-part id="P1"/></part-list>
  <part id="P1">
    <measure number="1">
      <attributes><divisions>1</divisions></attributes>
      <note><pitch><step>A</step><octave>4</octave></pitch><duration>2</duration></note>
    </measure>
  </part>
</score-partwise>`

type countingParser struct {
	calls int
	err   error
}

func (p *countingParser) Parse(ctx context.Context, data []byte, filename string) (*score.Score, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return score.Parse(data, filename)
}

// blockedParser never returns until released, and ignores its context. It
// models a stage stuck in a computation that cannot observe cancellation.
type blockedParser struct {
	release chan struct{}
}

func (p *blockedParser) Parse(ctx context.Context, data []byte, filename string) (*score.Score, error) {
	<-p.release
	return nil, errors.New("released")
}

type stubFrames struct{}

func (stubFrames) Count() int                  { return 2 }
func (stubFrames) FrameRate() int              { return 10 }
func (stubFrames) Size() (int, int)            { return 4, 2 }
func (stubFrames) DurationSeconds() float64    { return 0.2 }
func (stubFrames) RenderFrame(int) *image.RGBA { return image.NewRGBA(image.Rect(0, 0, 4, 2)) }

type stubSynth struct {
	calls int
	err   error
}

func (s *stubSynth) Plan(ctx context.Context, sc *score.Score) (encode.FrameSource, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return stubFrames{}, nil
}

type stubEncoder struct {
	calls int
	err   error
	hang  bool
}

func (e *stubEncoder) Encode(ctx context.Context, frames encode.FrameSource, audioPath, outputPath string) error {
	e.calls++
	if e.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if e.err != nil {
		return e.err
	}
	return os.WriteFile(outputPath, []byte("fake-mp4"), 0o644)
}

func workDirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("read work dir: %v", err)
	}
	return len(entries)
}

// waitForCleanup polls for the work dir to drain. After a deadline the stage
// goroutine finishes its deferred cleanup asynchronously.
func waitForCleanup(t *testing.T, dir string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if workDirEntries(t, dir) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("work dir not cleaned: %d entries remain", workDirEntries(t, dir))
}

func TestConvertSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	parser := &countingParser{}
	synth := &stubSynth{}
	encoder := &stubEncoder{}
	p := pipeline.NewWithStages(cfg, nil, nil, parser, synth, encoder)

	result, err := p.Convert(context.Background(), pipeline.Request{
		Filename: "sample.musicxml",
		Payload:  []byte(sampleXML),
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if result.RequestID == "" {
		t.Fatal("missing request id")
	}
	if result.OutputName != "Sample_visualization.mp4" {
		t.Fatalf("unexpected output name %q", result.OutputName)
	}
	if string(result.Video) != "fake-mp4" {
		t.Fatalf("unexpected video payload %q", result.Video)
	}
	if result.NoteCount != 1 || result.FrameCount != 2 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if parser.calls != 1 || synth.calls != 1 || encoder.calls != 1 {
		t.Fatalf("unexpected stage calls: parse=%d synth=%d encode=%d", parser.calls, synth.calls, encoder.calls)
	}
	if n := workDirEntries(t, cfg.Paths.WorkDir); n != 0 {
		t.Fatalf("work dir not cleaned: %d entries remain", n)
	}
}

func TestConvertRejectionSkipsLaterStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	parser := &countingParser{}
	synth := &stubSynth{}
	encoder := &stubEncoder{}
	p := pipeline.NewWithStages(cfg, nil, nil, parser, synth, encoder)

	_, err := p.Convert(context.Background(), pipeline.Request{
		Filename: "notes.pdf",
		Payload:  []byte("%PDF-1.4"),
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if parser.calls != 0 || synth.calls != 0 || encoder.calls != 0 {
		t.Fatalf("later stages ran after rejection: parse=%d synth=%d encode=%d", parser.calls, synth.calls, encoder.calls)
	}
}

func TestConvertTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTimeoutSeconds(1))
	cfg.Limits.RequestTimeoutSeconds = 0 // fall through immediately
	p := pipeline.NewWithStages(cfg, nil, nil, &countingParser{}, &stubSynth{}, &stubEncoder{hang: true})

	_, err := p.Convert(context.Background(), pipeline.Request{
		Filename: "sample.musicxml",
		Payload:  []byte(sampleXML),
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if services.Code(err) != "timeout_error" {
		t.Fatalf("expected timeout_error code, got %s", services.Code(err))
	}
	waitForCleanup(t, cfg.Paths.WorkDir)
}

func TestConvertTimeoutWithUnresponsiveStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Limits.RequestTimeoutSeconds = 0 // fall through immediately

	parser := &blockedParser{release: make(chan struct{})}
	t.Cleanup(func() { close(parser.release) })
	p := pipeline.NewWithStages(cfg, nil, nil, parser, &stubSynth{}, &stubEncoder{})

	started := time.Now()
	_, err := p.Convert(context.Background(), pipeline.Request{
		Filename: "sample.musicxml",
		Payload:  []byte(sampleXML),
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	// The parser never returns on its own, so Convert must come back on the
	// deadline rather than wait for the stage.
	if elapsed := time.Since(started); elapsed > 3*time.Second {
		t.Fatalf("Convert blocked %s past an expired budget", elapsed)
	}
}

func TestConvertJournalsTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Limits.RequestTimeoutSeconds = 0 // fall through immediately
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer store.Close()

	p := pipeline.NewWithStages(cfg, nil, store, &countingParser{}, &stubSynth{}, &stubEncoder{hang: true})
	_, err = p.Convert(context.Background(), pipeline.Request{
		Filename: "sample.musicxml",
		Payload:  []byte(sampleXML),
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	entries, err := store.List(context.Background(), 1)
	if err != nil {
		t.Fatalf("journal list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(entries))
	}
	entry := entries[0]
	if !entry.Failed() {
		t.Fatalf("expected failed status, got %q", entry.Status)
	}
	if entry.ErrorCode != "timeout_error" {
		t.Fatalf("expected timeout_error code, got %q", entry.ErrorCode)
	}
}

func TestConvertEncodeFailureCleansUp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	encodeErr := services.Wrap(services.ErrEncode, "encode", "run ffmpeg", "boom", nil)
	p := pipeline.NewWithStages(cfg, nil, nil, &countingParser{}, &stubSynth{}, &stubEncoder{err: encodeErr})

	_, err := p.Convert(context.Background(), pipeline.Request{
		Filename: "sample.musicxml",
		Payload:  []byte(sampleXML),
	})
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
	if n := workDirEntries(t, cfg.Paths.WorkDir); n != 0 {
		t.Fatalf("work dir not cleaned after failure: %d entries remain", n)
	}
}

func TestConvertWrapsUnclassifiedErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p := pipeline.NewWithStages(cfg, nil, nil, &countingParser{err: errors.New("plain failure")}, &stubSynth{}, &stubEncoder{})

	_, err := p.Convert(context.Background(), pipeline.Request{
		Filename: "sample.musicxml",
		Payload:  []byte(sampleXML),
	})
	if !errors.Is(err, services.ErrInternal) {
		t.Fatalf("expected ErrInternal wrap, got %v", err)
	}
	if !strings.Contains(err.Error(), "plain failure") {
		t.Fatalf("original cause lost: %v", err)
	}
}

func TestConvertJournalsOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer store.Close()

	p := pipeline.NewWithStages(cfg, nil, store, &countingParser{}, &stubSynth{}, &stubEncoder{})
	result, err := p.Convert(context.Background(), pipeline.Request{
		Filename: "sample.musicxml",
		Payload:  []byte(sampleXML),
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	entry, err := store.GetByRequestID(context.Background(), result.RequestID)
	if err != nil {
		t.Fatalf("journal lookup: %v", err)
	}
	if entry == nil || entry.Status != journal.StatusResponded {
		t.Fatalf("unexpected journal entry: %+v", entry)
	}
	if entry.OutputName != result.OutputName {
		t.Fatalf("journal output %q does not match result %q", entry.OutputName, result.OutputName)
	}
}

func TestConvertProductionStagesEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFrameRate(5), testsupport.WithFakeFFmpeg())
	cfg.Render.CanvasWidth = 960
	cfg.Render.CanvasHeight = 480

	p := pipeline.New(cfg, nil, nil)
	result, err := p.Convert(context.Background(), pipeline.Request{
		Filename: "sample.musicxml",
		Payload:  []byte(sampleXML),
	})
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if string(result.Video) != "fake-mp4" {
		t.Fatalf("unexpected video payload %q", result.Video)
	}
	// One second of sound plus the one second tail at 5 fps.
	if result.FrameCount != 10 {
		t.Fatalf("unexpected frame count %d", result.FrameCount)
	}
}
