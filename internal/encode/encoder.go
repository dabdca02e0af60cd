package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"scoreframe/internal/logging"
	"scoreframe/internal/media/ffprobe"
	"scoreframe/internal/services"
)

// stderrTailBytes bounds how much ffmpeg stderr is attached to a failure.
const stderrTailBytes = 2048

// Options configures the ffmpeg invocation.
type Options struct {
	FFmpegBinary  string
	FFprobeBinary string
	Codec         string
	Verify        bool
}

func (o Options) normalized() Options {
	if strings.TrimSpace(o.FFmpegBinary) == "" {
		o.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(o.FFprobeBinary) == "" {
		o.FFprobeBinary = "ffprobe"
	}
	if strings.TrimSpace(o.Codec) == "" {
		o.Codec = "libx264"
	}
	return o
}

// FrameSource supplies raw frames to the encoder. The render package's
// Sequence satisfies it.
type FrameSource interface {
	Count() int
	FrameRate() int
	Size() (width, height int)
	DurationSeconds() float64
	RenderFrame(index int) *image.RGBA
}

// Encoder streams rendered frames into ffmpeg over stdin and finalizes an MP4
// container.
type Encoder struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options, logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Encoder{
		opts:   opts.normalized(),
		logger: logging.NewComponentLogger(logger, "encode"),
	}
}

func encodeErr(operation, message string, err error) error {
	return services.Wrap(services.ErrEncode, "encode", operation, message, err)
}

// Encode renders every frame from the source and pipes it to ffmpeg as raw
// RGBA. audioPath may be empty; when set, the file is muxed as an AAC track.
func (e *Encoder) Encode(ctx context.Context, frames FrameSource, audioPath, outputPath string) error {
	width, height := frames.Size()
	if width <= 0 || height <= 0 {
		return encodeErr("prepare", fmt.Sprintf("invalid frame geometry %dx%d", width, height), nil)
	}
	if frames.Count() < 1 {
		return encodeErr("prepare", "frame source is empty", nil)
	}
	if strings.TrimSpace(outputPath) == "" {
		return encodeErr("prepare", "empty output path", nil)
	}

	args := e.commandArgs(frames, audioPath, outputPath)
	cmd := exec.CommandContext(ctx, e.opts.FFmpegBinary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return encodeErr("start ffmpeg", "open stdin pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return encodeErr("start ffmpeg", fmt.Sprintf("launch %q", e.opts.FFmpegBinary), err)
	}

	e.logger.Info("encoding started",
		logging.String(logging.FieldEventType, "encode_started"),
		logging.Int("frames", frames.Count()),
		logging.Int("width", width),
		logging.Int("height", height),
		logging.Int("frame_rate", frames.FrameRate()),
		logging.Bool("audio", audioPath != ""),
	)

	streamErr := e.streamFrames(ctx, frames, width, height, stdin)
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		// The deadline or cancellation is the real failure; ffmpeg's exit
		// status after a killed pipe is noise.
		return ctx.Err()
	}
	if streamErr != nil {
		return streamErr
	}
	if closeErr != nil {
		return encodeErr("stream frames", "close ffmpeg stdin", closeErr)
	}
	if waitErr != nil {
		return encodeErr("run ffmpeg", stderrTail(stderr.Bytes()), waitErr)
	}

	if e.opts.Verify {
		if err := e.verify(ctx, frames, outputPath); err != nil {
			return err
		}
	}

	e.logger.Info("encoding finished",
		logging.String(logging.FieldEventType, "encode_finished"),
		logging.String("output", outputPath),
	)
	return nil
}

func (e *Encoder) commandArgs(frames FrameSource, audioPath, outputPath string) []string {
	width, height := frames.Size()
	args := []string{
		"-v", "error",
		"-hide_banner",
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.Itoa(frames.FrameRate()),
		"-i", "-",
	}
	if audioPath != "" {
		args = append(args, "-i", audioPath, "-c:a", "aac", "-shortest")
	}
	args = append(args,
		"-c:v", e.opts.Codec,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outputPath,
	)
	return args
}

func (e *Encoder) streamFrames(ctx context.Context, frames FrameSource, width, height int, stdin io.Writer) error {
	expected := width * height * 4
	for i := 0; i < frames.Count(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame := frames.RenderFrame(i)
		if frame.Bounds().Dx() != width || frame.Bounds().Dy() != height {
			return encodeErr("stream frames", fmt.Sprintf("frame %d is %dx%d, expected %dx%d", i, frame.Bounds().Dx(), frame.Bounds().Dy(), width, height), nil)
		}
		if len(frame.Pix) != expected {
			return encodeErr("stream frames", fmt.Sprintf("frame %d has %d pixel bytes, expected %d", i, len(frame.Pix), expected), nil)
		}
		if _, err := stdin.Write(frame.Pix); err != nil {
			return encodeErr("stream frames", fmt.Sprintf("write frame %d to ffmpeg", i), err)
		}
	}
	return nil
}

// verify probes the finished container and checks it actually holds the video
// that was requested.
func (e *Encoder) verify(ctx context.Context, frames FrameSource, outputPath string) error {
	result, err := ffprobe.Inspect(ctx, e.opts.FFprobeBinary, outputPath)
	if err != nil {
		return encodeErr("verify output", "probe encoded container", err)
	}
	video, ok := result.VideoStream()
	if !ok {
		return encodeErr("verify output", "encoded container has no video stream", nil)
	}
	width, height := frames.Size()
	if video.Width != width || video.Height != height {
		return encodeErr("verify output", fmt.Sprintf("encoded video is %dx%d, expected %dx%d", video.Width, video.Height, width, height), nil)
	}
	if result.DurationSeconds() <= 0 {
		return encodeErr("verify output", "encoded container reports zero duration", nil)
	}
	return nil
}

func stderrTail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return "ffmpeg exited with an error"
	}
	if len(text) > stderrTailBytes {
		text = text[len(text)-stderrTailBytes:]
	}
	return "ffmpeg: " + text
}
