// Package syncplan aligns generated video clips with the narration track.
// It reads the combined narration, finds beats and voiced spans in its
// energy envelope, and derives per-clip durations plus speed corrections the
// compositor applies during assembly.
package syncplan

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/media"
)

// Strategy selects which audio features drive the plan.
type Strategy string

const (
	StrategyBeat   Strategy = "beat"
	StrategyVoice  Strategy = "voice"
	StrategyHybrid Strategy = "hybrid"
)

// PointKind classifies a sync point.
type PointKind string

const (
	PointBeat       PointKind = "beat"
	PointVoice      PointKind = "voice"
	PointSilence    PointKind = "silence"
	PointTransition PointKind = "transition"
)

// Point is one alignment anchor between the audio and video timelines.
type Point struct {
	AudioTS    float64   `json:"audio_ts"`
	VideoTS    float64   `json:"video_ts"`
	Kind       PointKind `json:"kind"`
	Confidence float64   `json:"confidence"`
}

// Plan is the compositor's alignment input. ClipDurations always sums to the
// duration the plan was derived from: the narration length when analysis
// succeeded, the target on the even fallback.
type Plan struct {
	ClipDurations    []float64 `json:"clip_durations"`
	SyncPoints       []Point   `json:"sync_points"`
	OverallScore     float64   `json:"overall_score"`
	SpeedAdjustments []float64 `json:"speed_adjustments"`
	Strategy         Strategy  `json:"strategy"`
}

// Defaults and scoring weights.
const (
	DefaultFrameDuration = 0.05
	DefaultVoiceFloor    = 0.2
	DefaultMaxClip       = 10.0

	minClip        = 0.5
	speedDeviation = 0.1
	speedMin       = 0.5
	speedMax       = 2.0
	beatWeight     = 0.6
	voiceWeight    = 0.4
)

// Planner derives sync plans. Immutable after construction.
type Planner struct {
	strategy   Strategy
	frameDur   float64
	voiceFloor float64
	maxClip    float64
	log        *slog.Logger
}

// Option adjusts a Planner.
type Option func(*Planner)

// WithStrategy selects the planning strategy. Default is hybrid.
func WithStrategy(s Strategy) Option {
	return func(p *Planner) { p.strategy = s }
}

// WithFrameDuration sets the RMS analysis frame length in seconds.
func WithFrameDuration(seconds float64) Option {
	return func(p *Planner) { p.frameDur = seconds }
}

// WithVoiceFloor sets the normalized energy level above which a frame counts
// as voiced.
func WithVoiceFloor(level float64) Option {
	return func(p *Planner) { p.voiceFloor = level }
}

// WithMaxClipDuration caps a single clip's planned duration.
func WithMaxClipDuration(seconds float64) Option {
	return func(p *Planner) { p.maxClip = seconds }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// NewPlanner returns a hybrid-strategy Planner with default analysis knobs.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{
		strategy:   StrategyHybrid,
		frameDur:   DefaultFrameDuration,
		voiceFloor: DefaultVoiceFloor,
		maxClip:    DefaultMaxClip,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan analyzes the narration at audioPath and aligns the given clips to it.
// currentDurations are the lengths the clips were generated with; when
// provided they yield per-clip speed corrections. A missing clip is logged
// and scored zero, never fatal. Plan fails with a fault.ErrSyncFailure wrap
// only when no plan can be built at all; the caller then falls back to an
// even distribution.
func (p *Planner) Plan(ctx context.Context, audioPath string, clipPaths []string, currentDurations []float64, target float64) (*Plan, error) {
	if target <= 0 {
		return nil, fmt.Errorf("sync plan: %w: target must be positive", fault.ErrInvalidRequest)
	}
	if len(clipPaths) == 0 {
		return nil, fmt.Errorf("sync plan: %w: no clips to align", fault.ErrSyncFailure)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pcm, info, err := media.ReadWAV(audioPath)
	if err != nil {
		return nil, fmt.Errorf("sync plan: read narration %q: %w: %v", audioPath, fault.ErrSyncFailure, err)
	}
	env := media.EnergyEnvelope(pcm, info.SampleRate, info.Channels, p.frameDur)
	if len(env) == 0 {
		return nil, fmt.Errorf("sync plan: %w: narration has no analyzable frames", fault.ErrSyncFailure)
	}

	var strategyPts []Point
	var extraPts []Point
	beatScore := 0.0
	voiceScore := 0.0

	if p.strategy != StrategyVoice {
		beats := p.beatPoints(env)
		strategyPts = append(strategyPts, beats...)
		beatScore = meanConfidence(beats)
	}
	if p.strategy != StrategyBeat {
		voiced, silences := p.voicePoints(env)
		strategyPts = append(strategyPts, voiced...)
		extraPts = append(extraPts, silences...)
		voiceScore = meanConfidence(voiced)
	}
	sort.Slice(strategyPts, func(i, j int) bool { return strategyPts[i].AudioTS < strategyPts[j].AudioTS })

	overall := clamp01(beatWeight*beatScore + voiceWeight*voiceScore)

	n := len(clipPaths)
	durations := p.clipDurations(strategyPts, n, info.Duration, target)

	present := 0
	for _, clip := range clipPaths {
		if _, err := os.Stat(clip); err != nil {
			p.log.WarnContext(ctx, "clip missing from sync analysis", "clip", clip, "error", err)
			continue
		}
		present++
	}
	if present < n {
		overall *= float64(present) / float64(n)
	}

	speeds := make([]float64, n)
	for i := range speeds {
		speeds[i] = 1.0
	}
	if len(currentDurations) == n {
		for i, cur := range currentDurations {
			if cur <= 0 || durations[i] <= 0 {
				continue
			}
			ratio := cur / durations[i]
			if math.Abs(ratio-1) > speedDeviation {
				speeds[i] = clamp(ratio, speedMin, speedMax)
			}
		}
	}

	// Transition anchors at the interior clip boundaries.
	cum := 0.0
	for _, d := range durations[:n-1] {
		cum += d
		extraPts = append(extraPts, Point{AudioTS: cum, VideoTS: cum, Kind: PointTransition, Confidence: 1})
	}

	points := append(strategyPts, extraPts...)
	sort.Slice(points, func(i, j int) bool { return points[i].AudioTS < points[j].AudioTS })

	return &Plan{
		ClipDurations:    durations,
		SyncPoints:       points,
		OverallScore:     overall,
		SpeedAdjustments: speeds,
		Strategy:         p.strategy,
	}, nil
}

// EvenPlan is the fallback when analysis fails: the target spread evenly
// across clips, no sync points, zero confidence, unit speeds.
func EvenPlan(nClips int, target float64) *Plan {
	if nClips <= 0 {
		return &Plan{Strategy: StrategyHybrid}
	}
	durations := make([]float64, nClips)
	speeds := make([]float64, nClips)
	for i := range durations {
		durations[i] = target / float64(nClips)
		speeds[i] = 1.0
	}
	return &Plan{
		ClipDurations:    durations,
		SpeedAdjustments: speeds,
		Strategy:         StrategyHybrid,
	}
}

// beatPoints turns energy peaks into beat anchors, confidence taken from the
// normalized envelope at the peak.
func (p *Planner) beatPoints(env []float64) []Point {
	var pts []Point
	for _, ts := range media.Peaks(env, p.frameDur) {
		idx := frameIndex(ts, p.frameDur, len(env))
		pts = append(pts, Point{AudioTS: ts, VideoTS: ts, Kind: PointBeat, Confidence: env[idx]})
	}
	return pts
}

// voicePoints returns one anchor per voiced span plus silence anchors for
// the gaps between spans. When detection yields nothing the whole clip
// counts as a single unvoiced span.
func (p *Planner) voicePoints(env []float64) (voiced, silences []Point) {
	spans := media.SpansAbove(env, p.frameDur, p.voiceFloor)
	if len(spans) == 0 {
		conf := meanRange(env, 0, len(env))
		return []Point{{AudioTS: 0, VideoTS: 0, Kind: PointVoice, Confidence: conf}}, nil
	}

	for _, sp := range spans {
		lo := frameIndex(sp.Start, p.frameDur, len(env))
		hi := frameIndex(sp.End, p.frameDur, len(env)+1)
		voiced = append(voiced, Point{
			AudioTS:    sp.Start,
			VideoTS:    sp.Start,
			Kind:       PointVoice,
			Confidence: meanRange(env, lo, hi),
		})
	}
	for i := 1; i < len(spans); i++ {
		gapStart, gapEnd := spans[i-1].End, spans[i].Start
		if gapEnd-gapStart < 2*p.frameDur {
			continue
		}
		lo := frameIndex(gapStart, p.frameDur, len(env))
		hi := frameIndex(gapEnd, p.frameDur, len(env)+1)
		silences = append(silences, Point{
			AudioTS:    gapStart,
			VideoTS:    gapStart,
			Kind:       PointSilence,
			Confidence: clamp01(1 - meanRange(env, lo, hi)),
		})
	}
	return voiced, silences
}

// clipDurations derives per-clip durations from the anchors. With enough
// anchors, consecutive deltas are clamped to [minClip, maxClip] and the sum
// is normalized back to the narration length by absorbing the remainder into
// the last clip with a rebalancing pass. Otherwise the target is spread
// evenly.
func (p *Planner) clipDurations(pts []Point, n int, total, target float64) []float64 {
	durations := make([]float64, n)

	if len(pts) < n {
		for i := range durations {
			durations[i] = target / float64(n)
		}
		return durations
	}

	sum := 0.0
	for i := 0; i < n-1; i++ {
		end := total
		if i+1 < len(pts) {
			end = pts[i+1].AudioTS
		}
		d := clamp(end-pts[i].AudioTS, minClip, p.maxClip)
		durations[i] = d
		sum += d
	}

	last := total - sum
	if last < minClip && n > 1 {
		need := minClip - last
		for i := 0; i < n-1 && need > 1e-9; i++ {
			avail := durations[i] - minClip
			if avail <= 0 {
				continue
			}
			take := math.Min(avail, need)
			durations[i] -= take
			last += take
			need -= take
		}
	}
	if last > p.maxClip && n > 1 {
		excess := last - p.maxClip
		for i := 0; i < n-1 && excess > 1e-9; i++ {
			room := p.maxClip - durations[i]
			if room <= 0 {
				continue
			}
			give := math.Min(room, excess)
			durations[i] += give
			last -= give
			excess -= give
		}
	}
	durations[n-1] = last
	return durations
}

func frameIndex(ts, frameDur float64, limit int) int {
	idx := int(math.Round(ts / frameDur))
	if idx < 0 {
		return 0
	}
	if idx >= limit {
		return limit - 1
	}
	return idx
}

func meanRange(env []float64, lo, hi int) float64 {
	if lo < 0 {
		lo = 0
	}
	if hi > len(env) {
		hi = len(env)
	}
	if hi <= lo {
		return 0
	}
	sum := 0.0
	for _, e := range env[lo:hi] {
		sum += e
	}
	return sum / float64(hi-lo)
}

func meanConfidence(pts []Point) float64 {
	if len(pts) == 0 {
		return 0
	}
	sum := 0.0
	for _, pt := range pts {
		sum += pt.Confidence
	}
	return clamp01(sum / float64(len(pts)))
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

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
