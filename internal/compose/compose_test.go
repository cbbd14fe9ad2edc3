package compose_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/reelforge/internal/compose"
	"github.com/MrWong99/reelforge/internal/overlay"
	"github.com/MrWong99/reelforge/internal/syncplan"
	"github.com/MrWong99/reelforge/pkg/fault"
)

type fakeRunner struct {
	mu     sync.Mutex
	runs   [][]string
	runErr error
	out    []byte
	outErr error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, append([]string{name}, args...))
	return f.runErr
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, append([]string{name}, args...))
	return f.out, f.outErr
}

func baseRequest(out string) compose.Request {
	return compose.Request{
		ClipPaths:  []string{"clips/clip_0.mp4", "clips/clip_1.mp4"},
		AudioPath:  "audio/combined.wav",
		OutputPath: out,
	}
}

// argValue returns the argument following the first occurrence of flag.
func argValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatalf("args missing %q: %v", flag, args)
	return ""
}

func TestBuildCommandLayout(t *testing.T) {
	t.Parallel()
	req := baseRequest("final.mp4")
	req.Plan = &syncplan.Plan{SpeedAdjustments: []float64{1.0, 2.0}}
	req.Overlays = []overlay.Spec{{
		Text:  "Hello world",
		Style: overlay.StyleFor(overlay.Result{}, "youtube"),
		Start: 0,
		End:   3.5,
	}}

	cmd, err := compose.NewFFmpeg().BuildCommand(req)
	if err != nil {
		t.Fatalf("BuildCommand() failed: %v", err)
	}
	if cmd.OutputPath != "final.mp4" {
		t.Errorf("OutputPath = %q, want final.mp4", cmd.OutputPath)
	}
	if cmd.Args[0] != "-y" {
		t.Errorf("Args[0] = %q, want -y", cmd.Args[0])
	}
	if got := cmd.Args[len(cmd.Args)-1]; got != "final.mp4" {
		t.Errorf("last arg = %q, want output path", got)
	}

	joined := strings.Join(cmd.Args, " ")
	for _, want := range []string{
		"-i clips/clip_0.mp4",
		"-i clips/clip_1.mp4",
		"-i audio/combined.wav",
		"-c:v libx264",
		"-c:a aac",
		"-shortest",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q:\n%s", want, joined)
		}
	}

	fc := argValue(t, cmd.Args, "-filter_complex")
	for _, want := range []string{
		"[0:v]setpts=PTS/1.000",
		"[1:v]setpts=PTS/2.000",
		"concat=n=2:v=1:a=0[reel]",
		"[reel]drawtext=text='Hello world'",
		"fontsize=56",
		`enable='between(t\,0.000\,3.500)'`,
	} {
		if !strings.Contains(fc, want) {
			t.Errorf("filter_complex missing %q:\n%s", want, fc)
		}
	}

	if got := argValue(t, cmd.Args, "-map"); got != "[txt0]" {
		t.Errorf("video map = %q, want [txt0]", got)
	}
	if !strings.Contains(joined, "-map 2:a") {
		t.Errorf("args missing audio map:\n%s", joined)
	}
}

func TestBuildCommandDefaultsAndQuality(t *testing.T) {
	t.Parallel()
	cmd, err := compose.NewFFmpeg().BuildCommand(baseRequest("out.mp4"))
	if err != nil {
		t.Fatalf("BuildCommand() failed: %v", err)
	}
	fc := argValue(t, cmd.Args, "-filter_complex")
	if !strings.Contains(fc, "scale=1080:1920") {
		t.Errorf("filter_complex missing vertical default scale:\n%s", fc)
	}
	if got := argValue(t, cmd.Args, "-crf"); got != "23" {
		t.Errorf("crf = %q, want 23", got)
	}

	req := baseRequest("out.mp4")
	req.Quality = "high"
	cmd, err = compose.NewFFmpeg().BuildCommand(req)
	if err != nil {
		t.Fatalf("BuildCommand(high) failed: %v", err)
	}
	if got := argValue(t, cmd.Args, "-crf"); got != "18" {
		t.Errorf("crf = %q, want 18 for high quality", got)
	}
}

func TestBuildCommandValidation(t *testing.T) {
	t.Parallel()
	f := compose.NewFFmpeg()

	req := baseRequest("out.mp4")
	req.ClipPaths = nil
	if _, err := f.BuildCommand(req); !errors.Is(err, fault.ErrInvalidRequest) {
		t.Errorf("BuildCommand without clips = %v, want fault.ErrInvalidRequest", err)
	}

	req = baseRequest("out.mp4")
	req.AudioPath = ""
	if _, err := f.BuildCommand(req); !errors.Is(err, fault.ErrInvalidRequest) {
		t.Errorf("BuildCommand without audio = %v, want fault.ErrInvalidRequest", err)
	}

	req = baseRequest("")
	if _, err := f.BuildCommand(req); !errors.Is(err, fault.ErrInvalidRequest) {
		t.Errorf("BuildCommand without output = %v, want fault.ErrInvalidRequest", err)
	}
}

func TestBuildCommandSkipsBlankOverlay(t *testing.T) {
	t.Parallel()
	req := baseRequest("out.mp4")
	req.Overlays = []overlay.Spec{{Text: "   "}}

	cmd, err := compose.NewFFmpeg().BuildCommand(req)
	if err != nil {
		t.Fatalf("BuildCommand() failed: %v", err)
	}
	if got := argValue(t, cmd.Args, "-map"); got != "[reel]" {
		t.Errorf("video map = %q, want [reel] when all overlays are blank", got)
	}
}

func TestBuildCommandRTLOverlay(t *testing.T) {
	t.Parallel()
	req := baseRequest("out.mp4")
	req.Overlays = []overlay.Spec{{
		Text:  "שלום עולם",
		Style: overlay.StyleFor(overlay.Result{IsRTL: true, Language: "he"}, "youtube"),
		Start: 0,
		End:   2,
	}}

	cmd, err := compose.NewFFmpeg().BuildCommand(req)
	if err != nil {
		t.Fatalf("BuildCommand() failed: %v", err)
	}
	fc := argValue(t, cmd.Args, "-filter_complex")
	if !strings.Contains(fc, "text_shaping=1") {
		t.Errorf("filter_complex missing text_shaping for RTL overlay:\n%s", fc)
	}
	if !strings.Contains(fc, "font='Noto Sans Hebrew'") {
		t.Errorf("filter_complex missing Hebrew font:\n%s", fc)
	}
}

func TestComposeRunsRunner(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{}
	f := compose.NewFFmpeg(compose.WithRunner(runner), compose.WithBinary("/opt/ffmpeg/bin/ffmpeg"))

	out, err := f.Compose(context.Background(), baseRequest(filepath.Join(t.TempDir(), "final.mp4")))
	if err != nil {
		t.Fatalf("Compose() failed: %v", err)
	}
	if len(runner.runs) != 1 {
		t.Fatalf("runner invoked %d times, want 1", len(runner.runs))
	}
	if runner.runs[0][0] != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("binary = %q, want configured path", runner.runs[0][0])
	}
	if filepath.Base(out) != "final.mp4" {
		t.Errorf("Compose() = %q, want final.mp4", out)
	}
}

func TestComposeFailureRemovesPartialOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	out := filepath.Join(dir, "final.mp4")
	if err := os.WriteFile(out, []byte("partial"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	runner := &fakeRunner{runErr: errors.New("exit status 1")}
	f := compose.NewFFmpeg(compose.WithRunner(runner))

	if _, err := f.Compose(context.Background(), baseRequest(out)); err == nil {
		t.Fatal("Compose() succeeded, want render error")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("partial output still present after failed render")
	}
}

func TestFFprobeProber(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{out: []byte(`{"format":{"duration":"12.480000"},"streams":[{"sample_rate":"44100","channels":2}]}`)}
	p := compose.NewFFprobeProber(compose.WithProbeRunner(runner))

	info, err := p.Probe(context.Background(), "clips/clip_0.mp4")
	if err != nil {
		t.Fatalf("Probe() failed: %v", err)
	}
	if info.Duration != 12.48 {
		t.Errorf("Duration = %f, want 12.48", info.Duration)
	}
	if info.SampleRate != 44100 || info.Channels != 2 {
		t.Errorf("Info = %+v, want 44100 Hz stereo", info)
	}
	if len(runner.runs) != 1 || runner.runs[0][0] != "ffprobe" {
		t.Fatalf("runner calls = %v, want one ffprobe invocation", runner.runs)
	}
	joined := strings.Join(runner.runs[0], " ")
	if !strings.Contains(joined, "-of json") || !strings.Contains(joined, "clips/clip_0.mp4") {
		t.Errorf("ffprobe args = %q, want json output and target path", joined)
	}
}

func TestFFprobeProberErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		runner *fakeRunner
	}{
		{"tool failure", &fakeRunner{outErr: errors.New("exit status 1")}},
		{"malformed json", &fakeRunner{out: []byte("not json")}},
		{"missing duration", &fakeRunner{out: []byte(`{"format":{},"streams":[]}`)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := compose.NewFFprobeProber(compose.WithProbeRunner(tc.runner))
			if _, err := p.Probe(context.Background(), "broken.mp4"); !errors.Is(err, fault.ErrAssetCorrupt) {
				t.Errorf("Probe() error = %v, want fault.ErrAssetCorrupt", err)
			}
		})
	}
}

func TestEscapeDrawtextInFilter(t *testing.T) {
	t.Parallel()
	req := baseRequest("out.mp4")
	req.Overlays = []overlay.Spec{{
		Text:  "It's 100% real",
		Style: overlay.StyleFor(overlay.Result{}, "tiktok"),
		Start: 1,
		End:   2,
	}}

	cmd, err := compose.NewFFmpeg().BuildCommand(req)
	if err != nil {
		t.Fatalf("BuildCommand() failed: %v", err)
	}
	fc := argValue(t, cmd.Args, "-filter_complex")
	if !strings.Contains(fc, `text='It'\''s 100\% real'`) {
		t.Errorf("filter_complex has unescaped text:\n%s", fc)
	}
}
