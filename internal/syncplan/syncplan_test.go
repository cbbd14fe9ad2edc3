package syncplan_test

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/reelforge/internal/syncplan"
	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/media"
)

const testRate = 16000

// writeBurstWAV writes a mono narration file with near-silent background and
// one loud 50ms sine burst per entry in burstsAt.
func writeBurstWAV(t *testing.T, path string, seconds float64, burstsAt []float64) {
	t.Helper()
	samples := int(seconds * testRate)
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(50)))
	}
	burstSamples := int(0.05 * testRate)
	for _, at := range burstsAt {
		start := int(at * testRate)
		for i := start; i < start+burstSamples && i < samples; i++ {
			v := int16(20000 * math.Sin(2*math.Pi*200*float64(i)/testRate))
			binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
		}
	}
	if err := media.WriteWAV(path, pcm, testRate, 1); err != nil {
		t.Fatalf("WriteWAV(%q) failed: %v", path, err)
	}
}

func writeSilentWAV(t *testing.T, path string, seconds float64) {
	t.Helper()
	if err := media.WriteWAV(path, media.Silence(seconds, testRate, 1), testRate, 1); err != nil {
		t.Fatalf("WriteWAV(%q) failed: %v", path, err)
	}
}

// writeClips creates n placeholder clip files and returns their paths.
func writeClips(t *testing.T, dir string, n int) []string {
	t.Helper()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, "clip_"+string(rune('a'+i))+".mp4")
		if err := os.WriteFile(paths[i], []byte("clip"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	return paths
}

func TestPlanHybridAlignsToNarration(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	audio := filepath.Join(dir, "narration.wav")
	writeBurstWAV(t, audio, 4.0, []float64{0.5, 1.5, 2.5, 3.5})
	clips := writeClips(t, dir, 2)

	plan, err := syncplan.NewPlanner().Plan(context.Background(), audio, clips, nil, 4.0)
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}

	if plan.Strategy != syncplan.StrategyHybrid {
		t.Errorf("Strategy = %q, want %q", plan.Strategy, syncplan.StrategyHybrid)
	}
	if len(plan.ClipDurations) != 2 {
		t.Fatalf("ClipDurations = %d entries, want 2", len(plan.ClipDurations))
	}
	sum := 0.0
	for i, d := range plan.ClipDurations {
		if d < 0.5-1e-9 || d > 10+1e-9 {
			t.Errorf("ClipDurations[%d] = %f, want within [0.5, 10]", i, d)
		}
		sum += d
	}
	if math.Abs(sum-4.0) > 1e-3 {
		t.Errorf("sum(ClipDurations) = %f, want 4.0", sum)
	}
	if plan.OverallScore < 0.9 || plan.OverallScore > 1.0 {
		t.Errorf("OverallScore = %f, want within (0.9, 1.0]", plan.OverallScore)
	}

	kinds := map[syncplan.PointKind]bool{}
	for _, pt := range plan.SyncPoints {
		kinds[pt.Kind] = true
		if pt.AudioTS != pt.VideoTS {
			t.Errorf("point %v has AudioTS != VideoTS", pt)
		}
	}
	for _, want := range []syncplan.PointKind{syncplan.PointBeat, syncplan.PointVoice, syncplan.PointSilence, syncplan.PointTransition} {
		if !kinds[want] {
			t.Errorf("SyncPoints missing kind %q (got %v)", want, kinds)
		}
	}

	for i, s := range plan.SpeedAdjustments {
		if s != 1.0 {
			t.Errorf("SpeedAdjustments[%d] = %f, want 1.0 without measured durations", i, s)
		}
	}
}

func TestPlanBeatStrategyOmitsVoicePoints(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	audio := filepath.Join(dir, "narration.wav")
	writeBurstWAV(t, audio, 4.0, []float64{0.5, 1.5, 2.5, 3.5})
	clips := writeClips(t, dir, 2)

	planner := syncplan.NewPlanner(syncplan.WithStrategy(syncplan.StrategyBeat))
	plan, err := planner.Plan(context.Background(), audio, clips, nil, 4.0)
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}
	for _, pt := range plan.SyncPoints {
		if pt.Kind == syncplan.PointVoice || pt.Kind == syncplan.PointSilence {
			t.Errorf("beat strategy produced %q point at %f", pt.Kind, pt.AudioTS)
		}
	}
	// Voice contribution drops out of the weighted score.
	if math.Abs(plan.OverallScore-0.6) > 0.01 {
		t.Errorf("OverallScore = %f, want ~0.6", plan.OverallScore)
	}
}

func TestPlanEvenWhenFewAnchors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	audio := filepath.Join(dir, "narration.wav")
	writeSilentWAV(t, audio, 6.0)
	clips := writeClips(t, dir, 3)

	plan, err := syncplan.NewPlanner().Plan(context.Background(), audio, clips, nil, 9.0)
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}
	for i, d := range plan.ClipDurations {
		if math.Abs(d-3.0) > 1e-9 {
			t.Errorf("ClipDurations[%d] = %f, want 3.0 (even split of target)", i, d)
		}
	}
	if plan.OverallScore != 0 {
		t.Errorf("OverallScore = %f, want 0 for silent narration", plan.OverallScore)
	}
}

func TestPlanSpeedAdjustments(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	audio := filepath.Join(dir, "narration.wav")
	writeSilentWAV(t, audio, 10.0)
	clips := writeClips(t, dir, 2)

	// Even fallback gives 5s per clip; the first clip was generated twice as
	// long, the second is within the 10% dead zone.
	current := []float64{10.0, 5.2}
	plan, err := syncplan.NewPlanner().Plan(context.Background(), audio, clips, current, 10.0)
	if err != nil {
		t.Fatalf("Plan() failed: %v", err)
	}
	if math.Abs(plan.SpeedAdjustments[0]-2.0) > 1e-9 {
		t.Errorf("SpeedAdjustments[0] = %f, want 2.0", plan.SpeedAdjustments[0])
	}
	if plan.SpeedAdjustments[1] != 1.0 {
		t.Errorf("SpeedAdjustments[1] = %f, want 1.0", plan.SpeedAdjustments[1])
	}
}

func TestPlanMissingClipLowersScore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	audio := filepath.Join(dir, "narration.wav")
	writeBurstWAV(t, audio, 4.0, []float64{0.5, 1.5, 2.5, 3.5})
	clips := writeClips(t, dir, 2)

	planner := syncplan.NewPlanner()
	full, err := planner.Plan(context.Background(), audio, clips, nil, 4.0)
	if err != nil {
		t.Fatalf("Plan() with all clips failed: %v", err)
	}

	clips[1] = filepath.Join(dir, "gone.mp4")
	partial, err := planner.Plan(context.Background(), audio, clips, nil, 4.0)
	if err != nil {
		t.Fatalf("Plan() with missing clip failed: %v", err)
	}
	if partial.OverallScore >= full.OverallScore {
		t.Errorf("OverallScore with missing clip = %f, want below %f", partial.OverallScore, full.OverallScore)
	}
}

func TestPlanUnreadableNarration(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	clips := writeClips(t, dir, 1)

	_, err := syncplan.NewPlanner().Plan(context.Background(), filepath.Join(dir, "missing.wav"), clips, nil, 5.0)
	if !errors.Is(err, fault.ErrSyncFailure) {
		t.Fatalf("Plan() error = %v, want fault.ErrSyncFailure", err)
	}
}

func TestPlanInvalidInput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	audio := filepath.Join(dir, "narration.wav")
	writeSilentWAV(t, audio, 2.0)
	clips := writeClips(t, dir, 1)

	if _, err := syncplan.NewPlanner().Plan(context.Background(), audio, nil, nil, 5.0); !errors.Is(err, fault.ErrSyncFailure) {
		t.Errorf("Plan() without clips = %v, want fault.ErrSyncFailure", err)
	}
	if _, err := syncplan.NewPlanner().Plan(context.Background(), audio, clips, nil, 0); !errors.Is(err, fault.ErrInvalidRequest) {
		t.Errorf("Plan() with zero target = %v, want fault.ErrInvalidRequest", err)
	}
}

func TestEvenPlan(t *testing.T) {
	t.Parallel()
	plan := syncplan.EvenPlan(4, 20)
	if len(plan.ClipDurations) != 4 {
		t.Fatalf("ClipDurations = %d entries, want 4", len(plan.ClipDurations))
	}
	for i, d := range plan.ClipDurations {
		if math.Abs(d-5.0) > 1e-9 {
			t.Errorf("ClipDurations[%d] = %f, want 5.0", i, d)
		}
		if plan.SpeedAdjustments[i] != 1.0 {
			t.Errorf("SpeedAdjustments[%d] = %f, want 1.0", i, plan.SpeedAdjustments[i])
		}
	}
	if plan.OverallScore != 0 {
		t.Errorf("OverallScore = %f, want 0", plan.OverallScore)
	}
	if len(plan.SyncPoints) != 0 {
		t.Errorf("SyncPoints = %v, want none", plan.SyncPoints)
	}

	if empty := syncplan.EvenPlan(0, 10); len(empty.ClipDurations) != 0 {
		t.Errorf("EvenPlan(0, 10).ClipDurations = %v, want empty", empty.ClipDurations)
	}
}
