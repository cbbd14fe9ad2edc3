package mock

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/MrWong99/reelforge/pkg/media"
	"github.com/MrWong99/reelforge/pkg/provider/speech"
)

func TestSynthesize_WritesMeasurableArtifact(t *testing.T) {
	t.Parallel()

	p := &Provider{}
	out := filepath.Join(t.TempDir(), "seg-0.wav")

	// 10 words at 2.5 words per second is 4 seconds of audio.
	resp, err := p.Synthesize(context.Background(), speech.Request{
		Text:       "one two three four five six seven eight nine ten",
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if resp.Duration != 4.0 {
		t.Errorf("Duration = %v, want 4.0", resp.Duration)
	}

	info, err := media.ProbeWAV(out)
	if err != nil {
		t.Fatalf("ProbeWAV(%q) error = %v", out, err)
	}
	if math.Abs(info.Duration-resp.Duration) > 0.01 {
		t.Errorf("artifact duration = %v, want %v", info.Duration, resp.Duration)
	}
	if info.SampleRate != 44100 || info.Channels != 1 {
		t.Errorf("artifact layout = %d Hz %d ch, want 44100 Hz 1 ch", info.SampleRate, info.Channels)
	}
}

func TestSynthesize_DurationFuncOverride(t *testing.T) {
	t.Parallel()

	p := &Provider{
		DurationFunc: func(speech.Request) float64 { return 1.25 },
	}
	out := filepath.Join(t.TempDir(), "seg-1.wav")

	resp, err := p.Synthesize(context.Background(), speech.Request{Text: "hello world", OutputPath: out})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if resp.Duration != 1.25 {
		t.Errorf("Duration = %v, want 1.25", resp.Duration)
	}

	info, err := media.ProbeWAV(out)
	if err != nil {
		t.Fatalf("ProbeWAV(%q) error = %v", out, err)
	}
	if math.Abs(info.Duration-1.25) > 0.01 {
		t.Errorf("artifact duration = %v, want 1.25", info.Duration)
	}

	if got := len(p.Calls()); got != 1 {
		t.Errorf("recorded calls = %d, want 1", got)
	}
}
