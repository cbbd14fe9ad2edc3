// Package compose assembles the final short. It builds ffmpeg invocations
// that concatenate the generated clips at their planned speeds, burn the
// validated overlays in, and mux the narration track, then delegates
// execution to a Runner so tests never need the binary.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/MrWong99/reelforge/internal/overlay"
	"github.com/MrWong99/reelforge/internal/syncplan"
	"github.com/MrWong99/reelforge/pkg/fault"
)

// Command is a fully built invocation of the ffmpeg binary.
type Command struct {
	Args       []string
	OutputPath string
}

// Request describes one assembly job.
type Request struct {
	ClipPaths  []string
	AudioPath  string
	Overlays   []overlay.Spec
	Plan       *syncplan.Plan
	OutputPath string

	// Width and Height default to the 1080x1920 vertical frame.
	Width   int
	Height  int
	Quality string
}

// Compositor turns a Request into the session's final video file.
type Compositor interface {
	BuildCommand(req Request) (*Command, error)
	Compose(ctx context.Context, req Request) (string, error)
}

const (
	defaultWidth   = 1080
	defaultHeight  = 1920
	defaultTimeout = 5 * time.Minute
)

// FFmpeg builds and runs ffmpeg assembly commands.
type FFmpeg struct {
	binary  string
	runner  Runner
	timeout time.Duration
	log     *slog.Logger
}

var _ Compositor = (*FFmpeg)(nil)

// Option adjusts an FFmpeg compositor.
type Option func(*FFmpeg)

// WithBinary overrides the ffmpeg binary path.
func WithBinary(path string) Option {
	return func(f *FFmpeg) { f.binary = path }
}

// WithRunner swaps the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(f *FFmpeg) { f.runner = r }
}

// WithTimeout bounds a single render.
func WithTimeout(d time.Duration) Option {
	return func(f *FFmpeg) { f.timeout = d }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *FFmpeg) { f.log = l }
}

// NewFFmpeg returns a compositor that shells out to ffmpeg on PATH.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{
		binary:  "ffmpeg",
		runner:  ExecRunner{},
		timeout: defaultTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BuildCommand constructs the full invocation without running it. Clips are
// speed-corrected and scaled individually, concatenated, overlaid with the
// drawtext chain, and muxed against the narration.
func (f *FFmpeg) BuildCommand(req Request) (*Command, error) {
	if len(req.ClipPaths) == 0 {
		return nil, fmt.Errorf("compose: %w: no clips", fault.ErrInvalidRequest)
	}
	if req.AudioPath == "" {
		return nil, fmt.Errorf("compose: %w: no narration track", fault.ErrInvalidRequest)
	}
	if req.OutputPath == "" {
		return nil, fmt.Errorf("compose: %w: no output path", fault.ErrInvalidRequest)
	}

	width, height := req.Width, req.Height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	b := newBuilder()
	for _, clip := range req.ClipPaths {
		b.add("-i", clip)
	}
	audioIndex := len(req.ClipPaths)
	b.add("-i", req.AudioPath)

	var filters []string
	labels := make([]string, len(req.ClipPaths))
	for i := range req.ClipPaths {
		speed := 1.0
		if req.Plan != nil && i < len(req.Plan.SpeedAdjustments) && req.Plan.SpeedAdjustments[i] > 0 {
			speed = req.Plan.SpeedAdjustments[i]
		}
		labels[i] = fmt.Sprintf("[v%d]", i)
		filters = append(filters, fmt.Sprintf(
			"[%d:v]setpts=PTS/%.3f,scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1%s",
			i, speed, width, height, width, height, labels[i]))
	}

	current := "[reel]"
	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=0%s",
		strings.Join(labels, ""), len(req.ClipPaths), current))

	for i, spec := range req.Overlays {
		if strings.TrimSpace(spec.Text) == "" {
			continue
		}
		next := fmt.Sprintf("[txt%d]", i)
		filters = append(filters, current+drawtextFilter(spec, height)+next)
		current = next
	}

	b.add("-filter_complex", strings.Join(filters, ";"))
	b.add("-map", current)
	b.add("-map", fmt.Sprintf("%d:a", audioIndex))
	b.add("-c:v", "libx264")
	b.add("-preset", "medium")
	if req.Quality == "high" {
		b.add("-crf", "18")
	} else {
		b.add("-crf", "23")
	}
	b.add("-pix_fmt", "yuv420p")
	b.add("-c:a", "aac")
	b.add("-movflags", "+faststart")
	b.add("-shortest")
	b.add(req.OutputPath)

	return &Command{Args: b.args, OutputPath: req.OutputPath}, nil
}

// Compose builds the command and runs it, removing a partial output on
// failure.
func (f *FFmpeg) Compose(ctx context.Context, req Request) (string, error) {
	cmd, err := f.BuildCommand(req)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	f.log.DebugContext(ctx, "rendering final video",
		"output", cmd.OutputPath, "args", strings.Join(cmd.Args, " "))
	if err := f.runner.Run(ctx, f.binary, cmd.Args...); err != nil {
		os.Remove(cmd.OutputPath)
		return "", fmt.Errorf("compose: render %q: %w", cmd.OutputPath, err)
	}
	f.log.InfoContext(ctx, "final video rendered", "output", cmd.OutputPath)
	return cmd.OutputPath, nil
}

// drawtextFilter renders one overlay spec as a drawtext stage without the
// surrounding stream labels.
func drawtextFilter(spec overlay.Spec, frameHeight int) string {
	s := spec.Style
	margin := int(float64(frameHeight) * s.MarginRatio)

	var y string
	switch s.Position {
	case "top":
		y = fmt.Sprintf("%d", margin)
	case "center":
		y = "(h-text_h)/2"
	default:
		y = fmt.Sprintf("h-text_h-%d", margin)
	}

	parts := []string{
		"drawtext=text='" + escapeDrawtext(spec.Text) + "'",
		fmt.Sprintf("font='%s'", s.FontFamily),
		fmt.Sprintf("fontsize=%d", s.FontSize),
		"fontcolor=" + s.FontColor,
		fmt.Sprintf("borderw=%d", s.StrokeWidth),
		"bordercolor=" + s.StrokeColor,
		"x=(w-text_w)/2",
		"y=" + y,
	}
	if s.Direction == "rtl" {
		parts = append(parts, "text_shaping=1")
	}
	if spec.End > spec.Start {
		parts = append(parts, fmt.Sprintf("enable='between(t\\,%.3f\\,%.3f)'", spec.Start, spec.End))
	}
	return strings.Join(parts, ":")
}

// escapeDrawtext escapes a fragment for use inside a single-quoted drawtext
// text value. Quotes are spliced filtergraph-style; backslashes and percent
// signs are escaped for drawtext's own text expansion.
func escapeDrawtext(text string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`%`, `\%`,
		`'`, `'\''`,
	)
	return r.Replace(text)
}

type builder struct {
	args []string
}

func newBuilder() *builder {
	return &builder{args: []string{"-y"}}
}

func (b *builder) add(args ...string) {
	b.args = append(b.args, args...)
}
