// Package app wires all ReelForge subsystems into a running application.
//
// The App struct owns the full lifecycle: New resolves the configured
// provider chains, wraps them in circuit-breaking failover groups, and
// assembles the synthesis pipeline; Run drives one mission through it;
// Shutdown tears everything down in order.
//
// For testing, register factories returning test doubles on the
// [config.Registry] and declare them in the config. Options exist for the
// pieces that have no config representation (logger, metrics, compositor).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/reelforge/internal/compose"
	"github.com/MrWong99/reelforge/internal/config"
	"github.com/MrWong99/reelforge/internal/health"
	"github.com/MrWong99/reelforge/internal/observe"
	"github.com/MrWong99/reelforge/internal/pipeline"
	"github.com/MrWong99/reelforge/internal/resilience"
	"github.com/MrWong99/reelforge/internal/services"
	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/provider"
)

// App owns all subsystem lifetimes and drives missions through the ReelForge
// synthesis pipeline.
type App struct {
	reg     *config.Registry
	mgr     *services.Manager
	metrics *observe.Metrics
	log     *slog.Logger

	// level, when injected, lets config reloads adjust log verbosity.
	level *slog.LevelVar

	// compositor replaces the default ffmpeg compositor when set.
	compositor compose.Compositor

	auth             services.AuthProvider
	cleanupOnFailure bool

	// mu guards cfg, driver, and stale across Run and config reloads.
	mu     sync.Mutex
	cfg    *config.Config
	driver *pipeline.Driver
	stale  bool

	// ops is the operational HTTP listener, nil when disabled.
	ops     *http.Server
	opsAddr string

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithLogLevel hands the app the level var backing the process logger so
// config reloads can change verbosity at runtime.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithMetrics overrides the default metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithCompositor injects a compositor instead of the default ffmpeg one.
func WithCompositor(c compose.Compositor) Option {
	return func(a *App) { a.compositor = c }
}

// WithAuth overrides the credential source handed to the service manager.
func WithAuth(auth services.AuthProvider) Option {
	return func(a *App) { a.auth = auth }
}

// WithCleanupOnFailure removes the session workspace when a run fails
// instead of leaving the partial assets behind for inspection.
func WithCleanupOnFailure() Option {
	return func(a *App) { a.cleanupOnFailure = true }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The registry holds
// the provider factories (normally registered by main); cfg selects which of
// them to build and in what failover order.
//
// New performs all initialisation synchronously: provider chain construction,
// voice catalog discovery, pipeline assembly, and the ops listener bind.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{
		reg:     reg,
		cfg:     cfg,
		metrics: observe.DefaultMetrics(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}

	var mgrOpts []services.Option
	if a.auth != nil {
		mgrOpts = append(mgrOpts, services.WithAuth(a.auth))
	}
	a.mgr = services.NewManager(reg, cfg, mgrOpts...)
	a.closers = append(a.closers, a.mgr.Close)

	if err := a.rebuildDriver(ctx); err != nil {
		return nil, fmt.Errorf("app: build pipeline: %w", err)
	}

	if cfg.Server.OpsListen != "" {
		if err := a.startOps(cfg.Server.OpsListen); err != nil {
			return nil, fmt.Errorf("app: ops listener: %w", err)
		}
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// rebuildDriver resolves the provider chains against the current config and
// swaps in a fresh pipeline driver.
func (a *App) rebuildDriver(ctx context.Context) error {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	backends, err := a.buildBackends(ctx)
	if err != nil {
		return err
	}

	dopts := []pipeline.Option{
		pipeline.WithLogger(a.log),
		pipeline.WithMetrics(a.metrics),
	}
	if voices, err := backends.Speech.Voices(ctx); err != nil {
		a.log.Warn("voice catalog unavailable, style-based voice matching disabled", "err", err)
	} else if len(voices) > 0 {
		dopts = append(dopts, pipeline.WithVoiceCatalog(voices))
	}
	if a.compositor != nil {
		dopts = append(dopts, pipeline.WithCompositor(a.compositor))
	}
	if a.cleanupOnFailure {
		dopts = append(dopts, pipeline.WithCleanupOnFailure())
	}

	driver := pipeline.NewDriver(backends, cfg.Pipeline, dopts...)

	a.mu.Lock()
	a.driver = driver
	a.stale = false
	a.mu.Unlock()
	return nil
}

// buildBackends resolves the configured chain for every provider kind and
// wraps each in a failover group with per-entry circuit breakers. Speech and
// video are mandatory. Text and image may be absent: the pipeline then falls
// back to heuristic mission parsing and text-to-video prompting.
func (a *App) buildBackends(ctx context.Context) (pipeline.Backends, error) {
	var (
		b     pipeline.Backends
		fbCfg resilience.FallbackConfig
	)

	speechNames, speechHandles, err := resolveChain(ctx, a, provider.KindSpeech, a.mgr.Speech)
	if err != nil {
		return b, err
	}
	if len(speechHandles) == 0 {
		return b, fmt.Errorf("no speech provider configured: %w", fault.ErrNoProvider)
	}
	sf := resilience.NewSpeechFallback(speechHandles[0], speechNames[0], fbCfg)
	for i := 1; i < len(speechHandles); i++ {
		sf.AddFallback(speechNames[i], speechHandles[i])
	}
	b.Speech = sf

	videoNames, videoHandles, err := resolveChain(ctx, a, provider.KindVideo, a.mgr.Video)
	if err != nil {
		return b, err
	}
	if len(videoHandles) == 0 {
		return b, fmt.Errorf("no video provider configured: %w", fault.ErrNoProvider)
	}
	vf := resilience.NewVideoFallback(videoHandles[0], videoNames[0], fbCfg)
	for i := 1; i < len(videoHandles); i++ {
		vf.AddFallback(videoNames[i], videoHandles[i])
	}
	b.Video = vf

	textNames, textHandles, err := resolveChain(ctx, a, provider.KindText, a.mgr.Text)
	if err != nil {
		return b, err
	}
	if len(textHandles) > 0 {
		tf := resilience.NewTextFallback(textHandles[0], textNames[0], fbCfg)
		for i := 1; i < len(textHandles); i++ {
			tf.AddFallback(textNames[i], textHandles[i])
		}
		b.Text = tf
	} else {
		a.log.Warn("no text provider configured, mission parsing falls back to heuristics")
	}

	imageNames, imageHandles, err := resolveChain(ctx, a, provider.KindImage, a.mgr.Image)
	if err != nil {
		return b, err
	}
	if len(imageHandles) > 0 {
		imf := resilience.NewImageFallback(imageHandles[0], imageNames[0], fbCfg)
		for i := 1; i < len(imageHandles); i++ {
			imf.AddFallback(imageNames[i], imageHandles[i])
		}
		b.Image = imf
	} else {
		a.log.Info("no image provider configured, clips are prompted text-to-video")
	}

	a.log.Info("provider chains ready",
		"text", textNames,
		"image", imageNames,
		"speech", speechNames,
		"video", videoNames,
	)
	return b, nil
}

// resolveChain builds the ordered provider handles for kind using get. The
// primary must resolve; a fallback that fails to build is skipped with a
// warning so one bad credential does not take the whole chain down.
func resolveChain[T any](ctx context.Context, a *App, kind provider.Kind, get func(context.Context, string) (T, error)) ([]string, []T, error) {
	names := a.mgr.ChainFor(kind)
	if len(names) == 0 {
		return nil, nil, nil
	}

	primary, err := get(ctx, names[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%s provider %q: %w", kind, names[0], err)
	}
	kept := []string{names[0]}
	handles := []T{primary}

	for _, name := range names[1:] {
		p, err := get(ctx, name)
		if err != nil {
			a.log.Warn("skipping broken fallback provider", "kind", kind, "name", name, "err", err)
			continue
		}
		kept = append(kept, name)
		handles = append(handles, p)
	}
	return kept, handles, nil
}

// startOps binds the operational HTTP listener serving liveness/readiness
// probes and the Prometheus scrape endpoint.
func (a *App) startOps(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.opsAddr = ln.Addr().String()

	mux := http.NewServeMux()
	health.New(a.healthCheckers()...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.ops = srv

	go func() {
		a.log.Info("ops listener started", "addr", a.opsAddr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("ops listener failed", "err", err)
		}
	}()
	return nil
}

// healthCheckers lists the readiness probes: the mandatory provider chains
// must resolve, the output root must be writable, and ffmpeg must be on PATH
// unless a custom compositor was injected.
func (a *App) healthCheckers() []health.Checker {
	checkers := []health.Checker{
		{Name: "providers", Check: func(ctx context.Context) error {
			if _, err := a.mgr.Speech(ctx, ""); err != nil {
				return fmt.Errorf("speech: %w", err)
			}
			if _, err := a.mgr.Video(ctx, ""); err != nil {
				return fmt.Errorf("video: %w", err)
			}
			return nil
		}},
		{Name: "workspace", Check: func(context.Context) error {
			a.mu.Lock()
			root := a.cfg.Pipeline.OutputRoot
			a.mu.Unlock()
			return os.MkdirAll(root, 0o755)
		}},
	}
	if a.compositor == nil {
		checkers = append(checkers, health.Checker{Name: "ffmpeg", Check: func(context.Context) error {
			_, err := exec.LookPath("ffmpeg")
			return err
		}})
	}
	return checkers
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run drives one mission through the synthesis pipeline. When a config
// reload marked the wiring stale, the provider chains and driver are rebuilt
// first; in-flight missions keep the wiring they started with.
func (a *App) Run(ctx context.Context, m pipeline.Mission) (*pipeline.Result, error) {
	a.mu.Lock()
	stale := a.stale
	a.mu.Unlock()

	if stale {
		a.log.Info("configuration changed, rebuilding provider chains")
		if err := a.rebuildDriver(ctx); err != nil {
			return nil, fmt.Errorf("app: rebuild pipeline: %w", err)
		}
	}

	a.mu.Lock()
	d := a.driver
	a.mu.Unlock()
	return d.Run(ctx, m)
}

// OpsAddr returns the bound address of the operational listener, or "" when
// it is disabled. Useful when the configured address leaves the port to the
// kernel.
func (a *App) OpsAddr() string {
	return a.opsAddr
}

// ─── Config reload ───────────────────────────────────────────────────────────

// Watch starts hot-reloading the config file at path. Changes flow through
// [App.HandleConfigChange]; the watcher stops during Shutdown.
func (a *App) Watch(path string, opts ...config.WatcherOption) error {
	w, err := config.NewWatcher(path, a.HandleConfigChange, opts...)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		w.Stop()
		return nil
	})
	return nil
}

// HandleConfigChange applies a config reload. Log level changes take effect
// immediately. Provider, chain, and pipeline changes invalidate the cached
// handles and are picked up by the next Run.
func (a *App) HandleConfigChange(_, next *config.Config, d config.ConfigDiff) {
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Slog())
		a.log.Info("log level updated", "level", d.NewLogLevel)
	}
	if d.ServerChanged {
		a.log.Warn("ops_listen changed, the new address applies after a restart")
	}

	a.mgr.SetConfig(next)
	for _, pc := range d.ProviderChanges {
		if pc.Added {
			continue
		}
		if err := a.mgr.Invalidate(pc.Kind, pc.Name); err != nil {
			a.log.Warn("failed to drop cached provider", "kind", pc.Kind, "name", pc.Name, "err", err)
		}
	}

	a.mu.Lock()
	a.cfg = next
	if len(d.DefaultsChanged) > 0 || d.ProvidersChanged || d.PipelineChanged {
		a.stale = true
	}
	a.mu.Unlock()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))

		// Stop accepting scrapes and probes first.
		if a.ops != nil {
			if err := a.ops.Shutdown(ctx); err != nil {
				a.log.Warn("ops listener shutdown error", "err", err)
			}
		}

		// Run closers in order.
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
