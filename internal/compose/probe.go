package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/MrWong99/reelforge/internal/duration"
	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/media"
)

// FFprobeProber reads durations through ffprobe for artifacts the native WAV
// reader cannot parse, such as rendered MP4s.
type FFprobeProber struct {
	binary string
	runner Runner
}

var _ duration.Prober = (*FFprobeProber)(nil)

// ProbeOption adjusts an FFprobeProber.
type ProbeOption func(*FFprobeProber)

// WithProbeBinary overrides the ffprobe binary path.
func WithProbeBinary(path string) ProbeOption {
	return func(p *FFprobeProber) { p.binary = path }
}

// WithProbeRunner swaps the command runner, mainly for tests.
func WithProbeRunner(r Runner) ProbeOption {
	return func(p *FFprobeProber) { p.runner = r }
}

// NewFFprobeProber returns a prober that shells out to ffprobe on PATH.
func NewFFprobeProber(opts ...ProbeOption) *FFprobeProber {
	p := &FFprobeProber{binary: "ffprobe", runner: ExecRunner{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe reads the container duration and, when an audio stream exists, its
// sample rate and channel count. Unreadable files report fault.ErrAssetCorrupt.
func (p *FFprobeProber) Probe(ctx context.Context, path string) (media.Info, error) {
	out, err := p.runner.Output(ctx, p.binary,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "format=duration:stream=sample_rate,channels",
		"-of", "json",
		path)
	if err != nil {
		return media.Info{}, fmt.Errorf("probe %q: %w: %v", filepath.Base(path), fault.ErrAssetCorrupt, err)
	}

	var doc struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		return media.Info{}, fmt.Errorf("probe %q: %w: %v", filepath.Base(path), fault.ErrAssetCorrupt, err)
	}

	dur, err := strconv.ParseFloat(doc.Format.Duration, 64)
	if err != nil || dur <= 0 {
		return media.Info{}, fmt.Errorf("probe %q: %w: missing duration", filepath.Base(path), fault.ErrAssetCorrupt)
	}

	info := media.Info{Duration: dur}
	if len(doc.Streams) > 0 {
		if doc.Streams[0].SampleRate != "" {
			info.SampleRate, _ = strconv.Atoi(doc.Streams[0].SampleRate)
		}
		info.Channels = doc.Streams[0].Channels
	}
	return info, nil
}
