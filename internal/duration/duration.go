// Package duration gates synthesized narration against the target video
// length before any video-generation budget is spent. It measures the real
// audio artifacts on disk, scores how well they fit, and derives per-clip
// durations for the video stage.
package duration

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/media"
)

// Defaults for gate construction.
const (
	DefaultTolerancePct = 5.0
	DefaultMinSegment   = 1.0
	DefaultMaxSegment   = 10.0
	DefaultPadding      = 0.5
)

// Regeneration thresholds. A run outside the duration ratio band or below
// the quality floor must be regenerated regardless of tolerance.
const (
	ratioFloor   = 0.8
	ratioCeil    = 1.2
	qualityFloor = 0.6
	issueWeight  = 0.1
	jitterSpread = 0.1
)

// Prober measures an audio artifact on disk. The WAV prober covers native
// pipeline output; composition injects an ffprobe-backed one for anything
// else.
type Prober interface {
	Probe(ctx context.Context, path string) (media.Info, error)
}

// WAVProber probes 16-bit PCM WAV files without external tooling.
type WAVProber struct{}

// Probe implements Prober.
func (WAVProber) Probe(_ context.Context, path string) (media.Info, error) {
	return media.ProbeWAV(path)
}

// SegmentInfo describes one measured audio segment.
type SegmentInfo struct {
	Index      int     `json:"index"`
	Path       string  `json:"path"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Issue      string  `json:"issue,omitempty"`
}

// Analysis is the pure result of measuring a set of audio segments against a
// target duration. Total includes inter-segment padding.
type Analysis struct {
	TotalDuration      float64       `json:"total_duration"`
	TargetDuration     float64       `json:"target_duration"`
	SegmentDurations   []float64     `json:"segment_durations"`
	WithinTolerance    bool          `json:"within_tolerance"`
	TolerancePct       float64       `json:"tolerance_pct"`
	DurationDifference float64       `json:"duration_difference"`
	DurationRatio      float64       `json:"duration_ratio"`
	QualityScore       float64       `json:"quality_score"`
	MustRegenerate     bool          `json:"must_regenerate"`
	Segments           []SegmentInfo `json:"segments"`
	Recommendation     string        `json:"recommendation"`
}

// Manager is the duration gate. Safe for concurrent use; all fields are
// immutable after construction.
type Manager struct {
	tolerancePct float64
	minSegment   float64
	maxSegment   float64
	padding      float64
	prober       Prober
	seed         int64
	log          *slog.Logger
}

// Option adjusts a Manager.
type Option func(*Manager)

// WithTolerance sets the acceptable deviation from target, in percent.
func WithTolerance(pct float64) Option {
	return func(m *Manager) { m.tolerancePct = pct }
}

// WithSegmentBounds sets the allowed per-segment duration range in seconds.
func WithSegmentBounds(minSeconds, maxSeconds float64) Option {
	return func(m *Manager) { m.minSegment, m.maxSegment = minSeconds, maxSeconds }
}

// WithPadding sets the inter-segment silence inserted between narration
// segments, in seconds.
func WithPadding(seconds float64) Option {
	return func(m *Manager) { m.padding = seconds }
}

// WithProber replaces the native WAV prober.
func WithProber(p Prober) Option {
	return func(m *Manager) { m.prober = p }
}

// WithSeed fixes the RNG seed used for clip duration jitter.
func WithSeed(seed int64) Option {
	return func(m *Manager) { m.seed = seed }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager returns a duration gate with the default thresholds.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		tolerancePct: DefaultTolerancePct,
		minSegment:   DefaultMinSegment,
		maxSegment:   DefaultMaxSegment,
		padding:      DefaultPadding,
		prober:       WAVProber{},
		seed:         1,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Analyze probes every file and scores the set against target. The total
// includes one padding gap per segment boundary. An unreadable file aborts
// the analysis with a fault.ErrAssetCorrupt wrap; everything else is
// reported, not failed.
func (m *Manager) Analyze(ctx context.Context, files []string, target float64) (*Analysis, error) {
	if target <= 0 {
		return nil, fmt.Errorf("analyze durations: %w: target must be positive", fault.ErrInvalidRequest)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("analyze durations: %w: no audio segments", fault.ErrInvalidRequest)
	}

	segments := make([]SegmentInfo, 0, len(files))
	durations := make([]float64, 0, len(files))
	total := 0.0
	issues := 0

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := m.prober.Probe(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("analyze durations: probe %q: %w: %v", filepath.Base(f), fault.ErrAssetCorrupt, err)
		}
		si := SegmentInfo{
			Index:      i,
			Path:       f,
			Duration:   info.Duration,
			SampleRate: info.SampleRate,
			Channels:   info.Channels,
		}
		switch {
		case info.Duration < m.minSegment:
			si.Issue = fmt.Sprintf("%.2fs below the %.2fs segment minimum", info.Duration, m.minSegment)
			issues++
		case info.Duration > m.maxSegment:
			si.Issue = fmt.Sprintf("%.2fs above the %.2fs segment maximum", info.Duration, m.maxSegment)
			issues++
		}
		segments = append(segments, si)
		durations = append(durations, info.Duration)
		total += info.Duration
	}
	if len(files) > 1 {
		total += float64(len(files)-1) * m.padding
	}

	diff := total - target
	ratio := total / target
	within := math.Abs(diff) <= target*m.tolerancePct/100

	quality := 1 - (float64(issues)*issueWeight + math.Abs(diff)/target)
	if quality < 0 {
		quality = 0
	}

	a := &Analysis{
		TotalDuration:      total,
		TargetDuration:     target,
		SegmentDurations:   durations,
		WithinTolerance:    within,
		TolerancePct:       m.tolerancePct,
		DurationDifference: diff,
		DurationRatio:      ratio,
		QualityScore:       quality,
		MustRegenerate:     !within || ratio < ratioFloor || ratio > ratioCeil || quality < qualityFloor,
		Segments:           segments,
	}
	a.Recommendation = m.recommend(a, issues)
	return a, nil
}

// recommend renders a short operator-facing summary of the analysis.
func (m *Manager) recommend(a *Analysis, issues int) string {
	var s string
	switch {
	case !a.MustRegenerate:
		s = "narration fits the target; proceed to video generation"
	case a.DurationDifference > 0:
		cut := (1 - a.TargetDuration/a.TotalDuration) * 100
		s = fmt.Sprintf("narration runs %.1fs over the %.0fs target; narrow the word budget by ~%.0f%%",
			a.DurationDifference, a.TargetDuration, cut)
	default:
		grow := (a.TargetDuration/a.TotalDuration - 1) * 100
		s = fmt.Sprintf("narration runs %.1fs short of the %.0fs target; widen the word budget by ~%.0f%%",
			-a.DurationDifference, a.TargetDuration, grow)
	}
	if issues > 0 {
		s += fmt.Sprintf("; %d segment(s) violate duration bounds", issues)
	}
	return s
}

// ValidateBeforeVideoGeneration runs the gate ahead of the video stage. With
// block set a failing analysis returns a fault.ErrDurationMismatch error;
// otherwise the result is advisory and the analysis is returned either way.
func (m *Manager) ValidateBeforeVideoGeneration(ctx context.Context, files []string, target float64, block bool) (bool, *Analysis, error) {
	a, err := m.Analyze(ctx, files, target)
	if err != nil {
		return false, nil, err
	}
	if a.MustRegenerate {
		m.log.WarnContext(ctx, "duration gate failed",
			"total", a.TotalDuration,
			"target", a.TargetDuration,
			"quality", a.QualityScore)
		if block {
			return false, a, fmt.Errorf("duration gate: %w: %s", fault.ErrDurationMismatch, a.Recommendation)
		}
		return false, a, nil
	}
	return true, a, nil
}

// CalculateDynamicClipDurations derives per-clip video durations from an
// analysis. Measured segment durations are used verbatim when the counts
// line up; otherwise the total is spread evenly with deterministic jitter,
// per-clip bounds enforced, and the rounding remainder absorbed into the
// last clip.
func (m *Manager) CalculateDynamicClipDurations(a *Analysis, nClips int) []float64 {
	if a == nil || nClips <= 0 {
		return nil
	}
	if len(a.SegmentDurations) == nClips {
		out := make([]float64, nClips)
		copy(out, a.SegmentDurations)
		return out
	}

	total := a.TotalDuration
	out := make([]float64, nClips)
	if nClips == 1 {
		out[0] = total
		return out
	}

	rng := rand.New(rand.NewSource(m.seed))
	base := total / float64(nClips)
	sum := 0.0
	for i := 0; i < nClips-1; i++ {
		jitter := 1 + (rng.Float64()*2-1)*jitterSpread
		d := clamp(base*jitter, m.minSegment, m.maxSegment)
		out[i] = d
		sum += d
	}

	last := total - sum
	if last < m.minSegment {
		need := m.minSegment - last
		for i := 0; i < nClips-1 && need > 1e-9; i++ {
			avail := out[i] - m.minSegment
			if avail <= 0 {
				continue
			}
			take := math.Min(avail, need)
			out[i] -= take
			last += take
			need -= take
		}
	}
	if last > m.maxSegment {
		excess := last - m.maxSegment
		for i := 0; i < nClips-1 && excess > 1e-9; i++ {
			room := m.maxSegment - out[i]
			if room <= 0 {
				continue
			}
			give := math.Min(room, excess)
			out[i] += give
			last -= give
			excess -= give
		}
	}
	out[nClips-1] = last
	return out
}

// AddPaddingBetweenSegments writes a copy of every segment into outDir with
// the configured silence appended to all but the last, preserving each
// file's sample rate and channel count. Returns the new paths in order.
func (m *Manager) AddPaddingBetweenSegments(ctx context.Context, files []string, outDir string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pcm, info, err := media.ReadWAV(f)
		if err != nil {
			return nil, fmt.Errorf("pad segments: read %q: %w: %v", filepath.Base(f), fault.ErrAssetCorrupt, err)
		}
		if i < len(files)-1 && m.padding > 0 {
			pcm = append(pcm, media.Silence(m.padding, info.SampleRate, info.Channels)...)
		}
		dst := filepath.Join(outDir, filepath.Base(f))
		if err := media.WriteWAV(dst, pcm, info.SampleRate, info.Channels); err != nil {
			return nil, fmt.Errorf("pad segments: write %q: %w", dst, err)
		}
		out = append(out, dst)
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
