package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"scoreframe/internal/config"
	"scoreframe/internal/encode"
	"scoreframe/internal/fileutil"
	"scoreframe/internal/journal"
	"scoreframe/internal/logging"
	"scoreframe/internal/render"
	"scoreframe/internal/score"
	"scoreframe/internal/services"
	"scoreframe/internal/validation"
)

// Parser turns an accepted payload into a score.
type Parser interface {
	Parse(ctx context.Context, data []byte, filename string) (*score.Score, error)
}

// Synthesizer plans the frame sequence for a score.
type Synthesizer interface {
	Plan(ctx context.Context, sc *score.Score) (encode.FrameSource, error)
}

// Encoder finalizes a frame sequence into a video container.
type Encoder interface {
	Encode(ctx context.Context, frames encode.FrameSource, audioPath, outputPath string) error
}

// Request is one conversion job: a notation payload and its original name.
type Request struct {
	Filename string
	Payload  []byte
}

// Result is the outcome of a successful conversion.
type Result struct {
	RequestID       string
	OutputName      string
	Video           []byte
	Title           string
	NoteCount       int
	FrameCount      int
	DurationSeconds float64
	Elapsed         time.Duration
}

// Pipeline runs single-shot conversions: validate, parse, synthesize, encode.
// Each request is independent; the only state that outlives a request is the
// optional journal record.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *journal.Store
	parser  Parser
	synth   Synthesizer
	encoder Encoder
}

// New wires the production stages. store may be nil to run without a journal.
func New(cfg *config.Config, logger *slog.Logger, store *journal.Store) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		store:  store,
		parser: parserFunc(score.Parse),
		synth: &renderSynth{synth: render.New(render.Params{
			FrameRate:   cfg.Render.FrameRate,
			Width:       cfg.Render.CanvasWidth,
			Height:      cfg.Render.CanvasHeight,
			TailSeconds: cfg.Render.TailSeconds,
		}, logger)},
		encoder: encode.New(encode.Options{
			FFmpegBinary:  cfg.Encode.FFmpegBinary,
			FFprobeBinary: cfg.Encode.FFprobeBinary,
			Codec:         cfg.Encode.Codec,
			Verify:        cfg.Encode.Verify,
		}, logger),
	}
}

// NewWithStages wires custom stage implementations. It exists for tests that
// need to observe or fail individual stages.
func NewWithStages(cfg *config.Config, logger *slog.Logger, store *journal.Store, parser Parser, synth Synthesizer, encoder Encoder) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
		store:   store,
		parser:  parser,
		synth:   synth,
		encoder: encoder,
	}
}

type parserFunc func(data []byte, filename string) (*score.Score, error)

func (f parserFunc) Parse(ctx context.Context, data []byte, filename string) (*score.Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f(data, filename)
}

type renderSynth struct {
	synth *render.Synthesizer
}

func (r *renderSynth) Plan(ctx context.Context, sc *score.Score) (encode.FrameSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.synth.Sequence(sc)
}

// Convert runs one conversion under the configured wall-clock budget. All
// intermediate files live in a per-request temp directory that is removed
// before Convert returns, success or failure.
func (p *Pipeline) Convert(ctx context.Context, req Request) (*Result, error) {
	requestID := uuid.NewString()
	ctx = services.WithRequestID(ctx, requestID)
	logger := p.logger.With(logging.String(logging.FieldRequestID, requestID))
	started := time.Now()

	if err := p.store.Begin(ctx, requestID, req.Filename); err != nil {
		logger.Warn("journal begin failed", logging.Error(err))
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout())
	defer cancel()

	// Journal writes on the completion path must survive an expired request
	// context; a timed-out conversion still gets its failure recorded.
	journalCtx := context.WithoutCancel(ctx)

	result, err := p.run(ctx, logger, requestID, req)
	if err != nil {
		err = p.classify(ctx, err)
		details := services.ErrorDetails(err)
		logger.Error("conversion failed",
			logging.String(logging.FieldEventType, "conversion_failed"),
			logging.String("error_code", details.Code),
			logging.String("filename", req.Filename),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err),
		)
		if journalErr := p.store.Finish(journalCtx, requestID, journal.Outcome{
			ErrorCode:    details.Code,
			ErrorMessage: details.Message,
		}); journalErr != nil {
			logger.Warn("journal finish failed", logging.Error(journalErr))
		}
		return nil, err
	}

	result.RequestID = requestID
	result.Elapsed = time.Since(started)
	logger.Info("conversion finished",
		logging.String(logging.FieldEventType, "conversion_finished"),
		logging.String("filename", req.Filename),
		logging.String("output", result.OutputName),
		logging.Int("frames", result.FrameCount),
		logging.Int("notes", result.NoteCount),
		logging.Duration("elapsed", result.Elapsed),
	)
	if journalErr := p.store.Finish(journalCtx, requestID, journal.Outcome{
		OutputName:      result.OutputName,
		FrameCount:      result.FrameCount,
		DurationSeconds: result.DurationSeconds,
	}); journalErr != nil {
		logger.Warn("journal finish failed", logging.Error(journalErr))
	}
	return result, nil
}

// run executes the stages in a goroutine so the deadline is honored even when
// a stage never returns. A stage that ignores cancellation keeps its goroutine
// until it finishes on its own; the request itself still fails at the deadline.
func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, requestID string, req Request) (*Result, error) {
	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := p.convert(ctx, logger, requestID, req)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pipeline) convert(ctx context.Context, logger *slog.Logger, requestID string, req Request) (*Result, error) {
	if err := validation.Check(req.Payload, req.Filename, p.cfg.Limits.MaxUploadBytes); err != nil {
		return nil, err
	}
	p.advance(ctx, logger, requestID, journal.StatusValidated)

	sc, err := p.parser.Parse(ctx, req.Payload, req.Filename)
	if err != nil {
		return nil, err
	}
	p.advance(ctx, logger, requestID, journal.StatusParsed)
	logger.Info("score parsed",
		logging.String(logging.FieldEventType, "score_parsed"),
		logging.String("title", sc.Title),
		logging.Int("notes", len(sc.Events)),
		logging.Float64("tempo_bpm", sc.TempoBPM),
	)

	frames, err := p.synth.Plan(ctx, sc)
	if err != nil {
		return nil, err
	}
	p.advance(ctx, logger, requestID, journal.StatusSynthesized)

	if err := os.MkdirAll(p.cfg.Paths.WorkDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrInternal, "orchestrate", "prepare work area", p.cfg.Paths.WorkDir, err)
	}
	workDir, err := os.MkdirTemp(p.cfg.Paths.WorkDir, "request-")
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, "orchestrate", "create request directory", "", err)
	}
	defer func() {
		if removeErr := os.RemoveAll(workDir); removeErr != nil {
			logger.Warn("work area cleanup failed", logging.Error(removeErr))
		}
	}()

	audioPath := ""
	if p.cfg.Encode.Audio {
		audioPath = filepath.Join(workDir, "preview.wav")
		if err := encode.WriteSineWAV(audioPath, sc, p.cfg.Render.TailSeconds); err != nil {
			return nil, err
		}
	}

	outputPath := filepath.Join(workDir, "output.mp4")
	if err := p.encoder.Encode(ctx, frames, audioPath, outputPath); err != nil {
		return nil, err
	}
	p.advance(ctx, logger, requestID, journal.StatusEncoded)

	video, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, services.Wrap(services.ErrEncode, "encode", "read output", outputPath, err)
	}
	if len(video) == 0 {
		return nil, services.Wrap(services.ErrEncode, "encode", "read output", "encoded container is empty", nil)
	}

	return &Result{
		OutputName:      fileutil.OutputFilename(sc.Title, req.Filename),
		Video:           video,
		Title:           sc.Title,
		NoteCount:       len(sc.Events),
		FrameCount:      frames.Count(),
		DurationSeconds: frames.DurationSeconds(),
	}, nil
}

func (p *Pipeline) advance(ctx context.Context, logger *slog.Logger, requestID, status string) {
	if err := p.store.Advance(ctx, requestID, status); err != nil {
		logger.Warn("journal advance failed",
			logging.String("status", status),
			logging.Error(err),
		)
	}
}

// classify maps a deadline overrun onto the timeout marker so callers see a
// budget failure rather than the stage that happened to be running.
func (p *Pipeline) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() == context.DeadlineExceeded && errors.Is(err, context.Canceled)) {
		return services.Wrap(services.ErrTimeout, "orchestrate", "enforce budget",
			fmt.Sprintf("request exceeded the %s wall-clock budget", p.cfg.RequestTimeout()), nil)
	}
	if services.Code(err) == "internal_error" && !errors.Is(err, services.ErrInternal) {
		return services.Wrap(services.ErrInternal, "orchestrate", "run conversion", "", err)
	}
	return err
}
