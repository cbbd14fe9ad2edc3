package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/reelforge/internal/compose"
	"github.com/MrWong99/reelforge/internal/config"
	"github.com/MrWong99/reelforge/internal/duration"
	"github.com/MrWong99/reelforge/internal/mission"
	"github.com/MrWong99/reelforge/internal/observe"
	"github.com/MrWong99/reelforge/internal/overlay"
	"github.com/MrWong99/reelforge/internal/script"
	"github.com/MrWong99/reelforge/internal/syncplan"
	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/media"
	"github.com/MrWong99/reelforge/pkg/provider/image"
	"github.com/MrWong99/reelforge/pkg/provider/speech"
	"github.com/MrWong99/reelforge/pkg/provider/text"
	"github.com/MrWong99/reelforge/pkg/provider/video"
)

// Stage names as they appear in results, logs, and metric lookups.
const (
	StageParse    = "mission-parsing"
	StageScript   = "script-processing"
	StageSpeech   = "speech-synthesis"
	StageImage    = "image-generation"
	StageGate     = "duration-gate"
	StageVideo    = "video-generation"
	StageAudio    = "audio-assembly"
	StageSync     = "sync-planning"
	StageCompose  = "composition"
	StageFinalize = "finalization"
)

// shortStage maps stage names to the compact labels used in failure reasons.
var shortStage = map[string]string{
	StageParse:    "parse",
	StageScript:   "script",
	StageSpeech:   "speech",
	StageImage:    "image",
	StageGate:     "gate",
	StageVideo:    "video",
	StageAudio:    "audio",
	StageSync:     "sync",
	StageCompose:  "compose",
	StageFinalize: "finalize",
}

// StageError records which pipeline stage an error surfaced in.
type StageError struct {
	Stage   string
	Message string
	Err     error
}

// Error implements error.
func (e *StageError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying error for errors.Is and errors.As.
func (e *StageError) Unwrap() error { return e.Err }

// Reason returns the compact "<stage>:<kind>" label recorded on failed
// results, such as "image:policy" or "video:transient".
func (e *StageError) Reason() string {
	short, ok := shortStage[e.Stage]
	if !ok {
		short = e.Stage
	}
	return short + ":" + fault.Kind(e.Err)
}

// Status is the terminal state of a run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Mission is the pipeline input: what to say, how long the result should
// run, and where it will be published.
type Mission struct {
	// Text is the free-form mission statement.
	Text string

	// TargetDuration is the wanted video length in seconds.
	TargetDuration float64

	// Language is a BCP 47 tag. Empty means English.
	Language string

	// Platform selects overlay styling. Empty means "youtube".
	Platform string
}

// Backends holds the providers a run draws on. Speech and Video are
// required. Text enables model-backed parsing and script rewriting; without
// it both fall back to their rule-based paths. Image enables conditioning
// frames for image-to-video generation.
//
// Any field may be a resilience fallback chain instead of a bare provider.
type Backends struct {
	Text   text.Provider
	Image  image.Provider
	Speech speech.Provider
	Video  video.Provider
}

// Result is the terminal report of one run. Stage failures are reported
// here with Status [StatusFailed], not as an error from [Driver.Run]: a
// failed session is a run outcome, not a driver malfunction.
type Result struct {
	SessionID string `json:"session_id"`
	Status    Status `json:"status"`

	// AssetPath is the final video. Set only on completion.
	AssetPath string `json:"asset_path,omitempty"`

	Analysis *duration.Analysis `json:"analysis,omitempty"`
	Plan     *syncplan.Plan     `json:"sync_plan,omitempty"`
	Overlays []overlay.Spec     `json:"overlays,omitempty"`

	// Degraded means the narration never passed the duration gate and the
	// run continued with the closest attempt. Analysis.Recommendation then
	// says how to fix the mission.
	Degraded bool `json:"degraded,omitempty"`

	// Stage and Reason describe a failure: the stage name and the compact
	// "<stage>:<kind>" label from [StageError.Reason].
	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason,omitempty"`

	// ProvidersUsed maps provider kind to the backend that actually served,
	// which differs from the primary after a failover.
	ProvidersUsed map[string]string `json:"providers_used,omitempty"`

	// CostEstimate sums the advisory cost of all provider calls in USD.
	CostEstimate float64 `json:"cost_estimate"`

	Elapsed time.Duration `json:"-"`
}

// Metadata is the document written next to the final asset so a session
// can be audited after the fact.
type Metadata struct {
	Mission  *mission.ParsedMission  `json:"mission"`
	Script   *script.ProcessedScript `json:"script"`
	Analysis *duration.Analysis      `json:"analysis"`
	Plan     *syncplan.Plan          `json:"sync_plan"`
}

// Output frame for the vertical short formats all supported platforms use.
const (
	frameWidth  = 1080
	frameHeight = 1920
)

// ctaWindow is how many trailing seconds the call-to-action overlay covers.
const ctaWindow = 2.5

// Budget scale clamps keep a runaway regeneration loop from collapsing the
// script to nothing or inflating it without bound.
const (
	minBudgetScale = 0.25
	maxBudgetScale = 4.0
)

// Driver runs missions through the full pipeline. Safe for concurrent use;
// every run works inside its own session directory.
type Driver struct {
	backends Backends
	cfg      config.PipelineConfig

	parser  *mission.Parser
	script  *script.Processor
	gate    *duration.Manager
	planner *syncplan.Planner
	comp    compose.Compositor

	metrics *observe.Metrics
	log     *slog.Logger
	voices  []speech.Voice

	cleanupOnFailure bool
}

// Option adjusts a Driver.
type Option func(*Driver)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithMetrics overrides the process-default metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithParser replaces the mission parser built from the backends.
func WithParser(p *mission.Parser) Option {
	return func(d *Driver) { d.parser = p }
}

// WithScriptProcessor replaces the script processor built from the backends.
func WithScriptProcessor(p *script.Processor) Option {
	return func(d *Driver) { d.script = p }
}

// WithDurationManager replaces the duration gate built from the config,
// mainly to inject a different prober.
func WithDurationManager(m *duration.Manager) Option {
	return func(d *Driver) { d.gate = m }
}

// WithPlanner replaces the sync planner built from the config.
func WithPlanner(p *syncplan.Planner) Option {
	return func(d *Driver) { d.planner = p }
}

// WithCompositor replaces the default ffmpeg compositor.
func WithCompositor(c compose.Compositor) Option {
	return func(d *Driver) { d.comp = c }
}

// WithVoiceCatalog supplies the speech voices used for per-segment voice
// suggestions. Ignored when [WithScriptProcessor] is also given.
func WithVoiceCatalog(voices []speech.Voice) Option {
	return func(d *Driver) { d.voices = voices }
}

// WithCleanupOnFailure removes the session directory when a run fails.
// Default is to retain partial artifacts for inspection.
func WithCleanupOnFailure() Option {
	return func(d *Driver) { d.cleanupOnFailure = true }
}

// NewDriver wires a Driver from backends and pipeline configuration. The
// config is used as given; callers normally pass one produced by
// [config.Load], which applies defaults.
func NewDriver(backends Backends, cfg config.PipelineConfig, opts ...Option) *Driver {
	d := &Driver{
		backends: backends,
		cfg:      cfg,
		log:      slog.Default(),
		metrics:  observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.parser == nil {
		popts := []mission.Option{mission.WithLogger(d.log)}
		if backends.Text != nil {
			popts = append(popts, mission.WithTextProvider(backends.Text))
		}
		d.parser = mission.NewParser(popts...)
	}
	if d.script == nil {
		sopts := []script.Option{script.WithLogger(d.log)}
		if backends.Text != nil {
			sopts = append(sopts, script.WithTextProvider(backends.Text))
		}
		if len(d.voices) > 0 {
			sopts = append(sopts, script.WithVoiceCatalog(d.voices))
		}
		d.script = script.NewProcessor(sopts...)
	}
	if d.gate == nil {
		gopts := []duration.Option{
			duration.WithLogger(d.log),
			duration.WithPadding(cfg.InterSegmentPadding),
		}
		if cfg.TolerancePct > 0 {
			gopts = append(gopts, duration.WithTolerance(cfg.TolerancePct))
		}
		if cfg.MinSegmentDuration > 0 || cfg.MaxSegmentDuration > 0 {
			gopts = append(gopts, duration.WithSegmentBounds(cfg.MinSegmentDuration, cfg.MaxSegmentDuration))
		}
		d.gate = duration.NewManager(gopts...)
	}
	if d.planner == nil {
		plopts := []syncplan.Option{syncplan.WithLogger(d.log)}
		if cfg.SyncStrategy != "" {
			plopts = append(plopts, syncplan.WithStrategy(syncplan.Strategy(cfg.SyncStrategy)))
		}
		d.planner = syncplan.NewPlanner(plopts...)
	}
	if d.comp == nil {
		d.comp = compose.NewFFmpeg(compose.WithLogger(d.log))
	}
	return d
}

// Run executes one mission end to end and returns its Result.
//
// The error return covers input validation, session setup, and context
// cancellation only. A stage failure yields a Result with Status
// [StatusFailed] and a nil error; cancellation removes the partial session
// directory before returning.
func (d *Driver) Run(ctx context.Context, m Mission) (*Result, error) {
	if strings.TrimSpace(m.Text) == "" {
		return nil, fmt.Errorf("run pipeline: %w: empty mission text", fault.ErrInvalidRequest)
	}
	if m.TargetDuration <= 0 {
		return nil, fmt.Errorf("run pipeline: %w: target duration must be positive", fault.ErrInvalidRequest)
	}
	if d.backends.Speech == nil || d.backends.Video == nil {
		return nil, fmt.Errorf("run pipeline: %w: speech and video backends", fault.ErrConfigMissing)
	}
	platform := m.Platform
	if platform == "" {
		platform = "youtube"
	}

	sess, err := NewSession(d.cfg.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("run pipeline: %w", err)
	}

	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer span.End()

	d.metrics.ActiveSessions.Add(ctx, 1)
	defer d.metrics.ActiveSessions.Add(ctx, -1)

	log := d.log.With("session", sess.ID)
	log.InfoContext(ctx, "session started",
		"target", m.TargetDuration, "platform", platform, "dir", sess.Root)

	start := time.Now()
	res, err := d.runStages(ctx, sess, m, platform, log)
	switch {
	case err == nil:
		res.Elapsed = time.Since(start)
		d.metrics.RecordSession(ctx, string(StatusCompleted))
		return res, nil

	case ctx.Err() != nil:
		// A cancelled run leaves nothing worth inspecting behind.
		if cerr := sess.Cleanup(); cerr != nil {
			log.Warn("session cleanup failed", "error", cerr)
		}
		d.metrics.RecordSession(ctx, "canceled")
		return nil, fmt.Errorf("run pipeline: session %s: %w", sess.ID, ctx.Err())

	default:
		var se *StageError
		if !errors.As(err, &se) {
			se = &StageError{Stage: StageFinalize, Err: err}
		}
		log.ErrorContext(ctx, "session failed",
			"stage", se.Stage, "reason", se.Reason(), "error", se.Err)
		if d.cleanupOnFailure {
			if cerr := sess.Cleanup(); cerr != nil {
				log.Warn("session cleanup failed", "error", cerr)
			}
		}
		d.metrics.RecordSession(ctx, string(StatusFailed))
		return &Result{
			SessionID: sess.ID,
			Status:    StatusFailed,
			Stage:     se.Stage,
			Reason:    se.Reason(),
			Elapsed:   time.Since(start),
		}, nil
	}
}

// narration is what the script/speech/gate loop hands to the video stages.
type narration struct {
	script   *script.ProcessedScript
	analysis *duration.Analysis
	segments []string
	provider string
	cost     float64
	degraded bool
}

func (d *Driver) runStages(ctx context.Context, sess *Session, m Mission, platform string, log *slog.Logger) (*Result, error) {
	start := time.Now()
	parsed, err := d.parser.Parse(ctx, m.Text)
	d.metrics.RecordStage(ctx, StageParse, time.Since(start).Seconds())
	if err != nil {
		return nil, &StageError{Stage: StageParse, Message: "parse mission", Err: err}
	}
	log.InfoContext(ctx, "mission parsed",
		"type", parsed.MissionType,
		"confidence", parsed.ParsingConfidence,
		"visuals", len(parsed.VisualInstructions))

	// Narration and conditioning images run as parallel branches sharing
	// one concurrency window.
	window := d.cfg.Concurrency
	if window <= 0 {
		window = 4
	}
	sem := semaphore.NewWeighted(int64(window))

	var (
		nar           *narration
		imagePaths    []string
		imageProvider string
		imageCost     float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var nerr error
		nar, nerr = d.runNarration(gctx, sess, parsed, m, sem, log)
		return nerr
	})
	g.Go(func() error {
		var ierr error
		imagePaths, imageProvider, imageCost, ierr = d.generateImages(gctx, sess, parsed, sem)
		return ierr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	clips, clipDurations, videoProvider, videoCost, err := d.generateClips(ctx, sess, parsed, nar, imagePaths, sem)
	if err != nil {
		return nil, err
	}

	padded, err := d.gate.AddPaddingBetweenSegments(ctx, nar.segments, sess.AudioDir())
	if err != nil {
		return nil, &StageError{Stage: StageAudio, Message: "pad narration segments", Err: err}
	}
	combined := sess.CombinedAudioPath()
	info, err := media.ConcatWAV(combined, padded...)
	if err != nil {
		return nil, &StageError{Stage: StageAudio, Message: "concatenate narration", Err: err}
	}

	start = time.Now()
	plan, err := d.planner.Plan(ctx, combined, clips, clipDurations, m.TargetDuration)
	d.metrics.RecordStage(ctx, StageSync, time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, fault.ErrSyncFailure) {
			return nil, &StageError{Stage: StageSync, Message: "derive sync plan", Err: err}
		}
		// A short without beat alignment is still a short.
		log.WarnContext(ctx, "sync planning failed, falling back to even plan", "error", err)
		plan = syncplan.EvenPlan(len(clips), m.TargetDuration)
	}

	specs := d.buildOverlays(nar, m.Language, platform, info.Duration)
	if err := sess.WriteJSON(sess.OverlaySpecsPath(), specs); err != nil {
		return nil, &StageError{Stage: StageCompose, Message: "write overlay specs", Err: err}
	}

	start = time.Now()
	asset, err := d.comp.Compose(ctx, compose.Request{
		ClipPaths:  clips,
		AudioPath:  combined,
		Overlays:   specs,
		Plan:       plan,
		OutputPath: sess.FinalPath(),
		Width:      frameWidth,
		Height:     frameHeight,
	})
	d.metrics.RecordStage(ctx, StageCompose, time.Since(start).Seconds())
	if err != nil {
		return nil, &StageError{Stage: StageCompose, Message: "compose final video", Err: err}
	}

	md := Metadata{Mission: parsed, Script: nar.script, Analysis: nar.analysis, Plan: plan}
	if err := sess.WriteJSON(sess.MetadataPath(), md); err != nil {
		return nil, &StageError{Stage: StageFinalize, Message: "write metadata", Err: err}
	}

	providers := make(map[string]string, 3)
	if nar.provider != "" {
		providers["speech"] = nar.provider
	}
	if imageProvider != "" {
		providers["image"] = imageProvider
	}
	if videoProvider != "" {
		providers["video"] = videoProvider
	}

	res := &Result{
		SessionID:     sess.ID,
		Status:        StatusCompleted,
		AssetPath:     asset,
		Analysis:      nar.analysis,
		Plan:          plan,
		Overlays:      specs,
		Degraded:      nar.degraded,
		ProvidersUsed: providers,
		CostEstimate:  nar.cost + imageCost + videoCost,
	}
	log.InfoContext(ctx, "session completed",
		"asset", asset,
		"narration", nar.analysis.TotalDuration,
		"degraded", nar.degraded,
		"cost", res.CostEstimate)
	return res, nil
}

// runNarration is the script/speech/gate loop. When the gate rejects the
// measured narration the script is regenerated with a word budget scaled by
// how far off the audio landed, up to the configured attempt limit; after
// that the run continues degraded with the last attempt.
func (d *Driver) runNarration(ctx context.Context, sess *Session, parsed *mission.ParsedMission, m Mission, sem *semaphore.Weighted, log *slog.Logger) (*narration, error) {
	attempts := d.cfg.RegenerationAttempts
	if attempts <= 0 {
		attempts = 2
	}
	ext := speech.FormatWAV.Ext()
	scale := 1.0
	out := &narration{}

	for attempt := 0; ; attempt++ {
		start := time.Now()
		processed, err := d.script.Process(ctx, script.Request{
			Script:         parsed.ScriptContent,
			Language:       m.Language,
			TargetDuration: m.TargetDuration,
			StyleNotes:     parsed.StyleNotes,
			BudgetScale:    scale,
		})
		d.metrics.RecordStage(ctx, StageScript, time.Since(start).Seconds())
		if err != nil {
			return nil, &StageError{Stage: StageScript, Message: "process script", Err: err}
		}
		if len(processed.Segments) == 0 {
			return nil, &StageError{Stage: StageScript, Message: "process script",
				Err: fmt.Errorf("%w: no speakable sentences", fault.ErrInvalidRequest)}
		}

		// Drop the previous attempt's artifacts so a shorter regeneration
		// cannot leave stale segments behind.
		for _, p := range out.segments {
			_ = os.Remove(p)
		}

		lang := m.Language
		if lang == "" {
			lang = processed.Language
		}
		segments, provider, cost, err := d.synthesize(ctx, sess, processed, lang, ext, sem)
		if err != nil {
			return nil, err
		}
		out.script = processed
		out.segments = segments
		out.provider = provider
		out.cost += cost

		start = time.Now()
		ok, analysis, err := d.gate.ValidateBeforeVideoGeneration(ctx, segments, m.TargetDuration, false)
		d.metrics.RecordStage(ctx, StageGate, time.Since(start).Seconds())
		if err != nil {
			return nil, &StageError{Stage: StageGate, Message: "analyze narration", Err: err}
		}
		out.analysis = analysis
		if ok {
			return out, nil
		}
		if attempt >= attempts {
			out.degraded = true
			log.WarnContext(ctx, "duration gate exhausted retries, continuing degraded",
				"total", analysis.TotalDuration,
				"target", analysis.TargetDuration,
				"recommendation", analysis.Recommendation)
			return out, nil
		}

		if analysis.TotalDuration > 0 {
			scale = clampScale(scale * m.TargetDuration / analysis.TotalDuration)
		}
		d.metrics.Regenerations.Add(ctx, 1)
		log.InfoContext(ctx, "regenerating narration",
			"attempt", attempt+1,
			"total", analysis.TotalDuration,
			"target", analysis.TargetDuration,
			"budget_scale", scale)
	}
}

func (d *Driver) synthesize(ctx context.Context, sess *Session, processed *script.ProcessedScript, lang, ext string, sem *semaphore.Weighted) ([]string, string, float64, error) {
	start := time.Now()
	segments := make([]string, len(processed.Segments))
	responses := make([]*speech.Response, len(processed.Segments))

	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range processed.Segments {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return &StageError{Stage: StageSpeech, Message: "synthesize narration", Err: err}
			}
			defer sem.Release(1)

			callCtx, cancel := d.callContext(gctx)
			defer cancel()
			resp, err := d.backends.Speech.Synthesize(callCtx, speech.Request{
				Text:         seg.Text,
				VoiceID:      seg.VoiceSuggestion,
				Language:     lang,
				OutputFormat: speech.FormatWAV,
				OutputPath:   sess.AudioSegmentPath(i, ext),
			})
			if err != nil {
				return &StageError{Stage: StageSpeech,
					Message: fmt.Sprintf("synthesize segment %d", i), Err: err}
			}
			segments[i] = resp.AudioPath
			responses[i] = resp
			d.metrics.RecordProviderRequest(gctx, resp.Provider, "speech", "ok")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", 0, err
	}
	d.metrics.RecordStage(ctx, StageSpeech, time.Since(start).Seconds())

	var (
		cost     float64
		provider string
	)
	for _, r := range responses {
		cost += r.CostEstimate
		provider = r.Provider
	}
	return segments, provider, cost, nil
}

// generateImages renders one conditioning frame per visual instruction.
// Without an image backend or visual instructions the video stage runs
// text-to-video instead.
func (d *Driver) generateImages(ctx context.Context, sess *Session, parsed *mission.ParsedMission, sem *semaphore.Weighted) ([]string, string, float64, error) {
	if d.backends.Image == nil || len(parsed.VisualInstructions) == 0 {
		return nil, "", 0, nil
	}
	start := time.Now()
	paths := make([]string, len(parsed.VisualInstructions))
	responses := make([]*image.Response, len(parsed.VisualInstructions))

	g, gctx := errgroup.WithContext(ctx)
	for i, instruction := range parsed.VisualInstructions {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return &StageError{Stage: StageImage, Message: "generate conditioning images", Err: err}
			}
			defer sem.Release(1)

			callCtx, cancel := d.callContext(gctx)
			defer cancel()
			resp, err := d.backends.Image.Generate(callCtx, image.Request{
				Prompt:     instruction,
				Width:      frameWidth,
				Height:     frameHeight,
				Style:      parsed.StyleNotes,
				OutputPath: sess.ImagePath(i),
			})
			if err != nil {
				return &StageError{Stage: StageImage,
					Message: fmt.Sprintf("generate image %d", i), Err: err}
			}
			paths[i] = resp.ImagePath
			responses[i] = resp
			d.metrics.RecordProviderRequest(gctx, resp.Provider, "image", "ok")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", 0, err
	}
	d.metrics.RecordStage(ctx, StageImage, time.Since(start).Seconds())

	var (
		cost     float64
		provider string
	)
	for _, r := range responses {
		cost += r.CostEstimate
		provider = r.Provider
	}
	return paths, provider, cost, nil
}

// generateClips submits one video job per clip and waits for asynchronous
// backends to finish. Clip count follows the conditioning images when there
// are any, otherwise the narration segments.
func (d *Driver) generateClips(ctx context.Context, sess *Session, parsed *mission.ParsedMission, nar *narration, imagePaths []string, sem *semaphore.Weighted) ([]string, []float64, string, float64, error) {
	prompts := clipPrompts(parsed, nar.script, len(imagePaths))
	durations := d.gate.CalculateDynamicClipDurations(nar.analysis, len(prompts))

	caps := d.backends.Video.Capabilities()
	if !caps.TextToVideo && len(imagePaths) == 0 {
		return nil, nil, "", 0, &StageError{Stage: StageVideo, Message: "generate clips",
			Err: fmt.Errorf("%w: no text-to-video backend and no conditioning images", fault.ErrNoProvider)}
	}

	start := time.Now()
	clips := make([]string, len(prompts))
	jobs := make([]*video.Job, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	for i := range prompts {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return &StageError{Stage: StageVideo, Message: "generate clips", Err: err}
			}
			defer sem.Release(1)

			req := video.Request{
				Prompt:     prompts[i],
				Duration:   durations[i],
				Width:      frameWidth,
				Height:     frameHeight,
				OutputPath: sess.ClipPath(i),
			}
			if i < len(imagePaths) && imagePaths[i] != "" && caps.ImageToVideo {
				req.ImagePath = imagePaths[i]
			}
			if caps.MaxDuration > 0 && req.Duration > caps.MaxDuration {
				req.Duration = caps.MaxDuration
			}

			job, err := d.renderClip(gctx, req, i)
			if err != nil {
				return err
			}
			clips[i] = job.VideoPath
			if clips[i] == "" {
				clips[i] = req.OutputPath
			}
			jobs[i] = job
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, "", 0, err
	}
	d.metrics.RecordStage(ctx, StageVideo, time.Since(start).Seconds())

	var (
		cost     float64
		provider string
	)
	for _, j := range jobs {
		cost += j.CostEstimate
		provider = j.Provider
	}
	return clips, durations, provider, cost, nil
}

// renderClip submits one request and polls it to a terminal state.
// Synchronous backends complete inside Generate and are never polled.
func (d *Driver) renderClip(ctx context.Context, req video.Request, i int) (*video.Job, error) {
	callCtx, cancel := d.callContext(ctx)
	job, err := d.backends.Video.Generate(callCtx, req)
	cancel()
	if err != nil {
		return nil, &StageError{Stage: StageVideo,
			Message: fmt.Sprintf("generate clip %d", i), Err: err}
	}
	if job.Status == video.StatusProcessing {
		job, err = video.WaitForCompletion(ctx, d.backends.Video, job.ID,
			d.cfg.VideoPollInterval.Std(), d.cfg.VideoTimeout.Std())
		if err != nil {
			return nil, &StageError{Stage: StageVideo,
				Message: fmt.Sprintf("poll clip %d", i), Err: err}
		}
	}
	switch job.Status {
	case video.StatusCompleted:
		d.metrics.RecordProviderRequest(ctx, job.Provider, "video", "ok")
		return job, nil
	case video.StatusFailed:
		d.metrics.RecordProviderRequest(ctx, job.Provider, "video", "error")
		d.metrics.RecordProviderError(ctx, job.Provider, "video")
		return nil, &StageError{Stage: StageVideo,
			Message: fmt.Sprintf("render clip %d", i),
			Err:     fmt.Errorf("%w: %s", fault.ErrTransient, job.Reason)}
	default:
		return nil, &StageError{Stage: StageVideo,
			Message: fmt.Sprintf("render clip %d", i),
			Err:     fmt.Errorf("%w: job %s ended in state %q", fault.ErrTransient, job.ID, job.Status)}
	}
}

// clipPrompts derives one prompt per clip: the visual instructions when
// conditioning images exist, the narration sentences otherwise.
func clipPrompts(parsed *mission.ParsedMission, processed *script.ProcessedScript, nImages int) []string {
	if nImages > 0 {
		prompts := make([]string, nImages)
		for i := range prompts {
			prompts[i] = withStyle(parsed.VisualInstructions[i], parsed.StyleNotes)
		}
		return prompts
	}
	prompts := make([]string, len(processed.Segments))
	for i, seg := range processed.Segments {
		prompts[i] = withStyle(seg.Text, parsed.StyleNotes)
	}
	return prompts
}

func withStyle(prompt, notes string) string {
	if notes == "" {
		return prompt
	}
	return prompt + ", " + notes
}

// buildOverlays validates one subtitle per narration segment plus the
// trailing call to action, with on-screen windows derived from the measured
// segment durations and the configured padding.
func (d *Driver) buildOverlays(nar *narration, lang, platform string, total float64) []overlay.Spec {
	if lang == "" {
		lang = nar.script.Language
	}
	v := overlay.NewValidator(platform)

	specs := make([]overlay.Spec, 0, len(nar.script.Segments)+1)
	cursor := 0.0
	for i, seg := range nar.script.Segments {
		dur := seg.Duration
		if i < len(nar.analysis.SegmentDurations) {
			dur = nar.analysis.SegmentDurations[i]
		}
		res := v.Validate(seg.Text, overlay.ContextSubtitle, lang)
		specs = append(specs, overlay.Spec{
			Text:  res.Cleaned,
			Style: overlay.StyleFor(res, platform),
			Start: cursor,
			End:   cursor + dur,
		})
		cursor += dur + d.cfg.InterSegmentPadding
	}

	if cta := v.DefaultCTA(); cta != "" && total > ctaWindow {
		res := v.Validate(cta, overlay.ContextCTA, lang)
		specs = append(specs, overlay.Spec{
			Text:  res.Cleaned,
			Style: overlay.StyleFor(res, platform),
			Start: total - ctaWindow,
			End:   total,
		})
	}
	return specs
}

// callContext bounds a single provider call by the configured default
// timeout.
func (d *Driver) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t := d.cfg.DefaultTimeout.Std(); t > 0 {
		return context.WithTimeout(ctx, t)
	}
	return ctx, func() {}
}

func clampScale(s float64) float64 {
	if s < minBudgetScale {
		return minBudgetScale
	}
	if s > maxBudgetScale {
		return maxBudgetScale
	}
	return s
}
