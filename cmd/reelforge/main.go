// Command reelforge renders one short-video mission into a final MP4.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/MrWong99/reelforge/internal/app"
	"github.com/MrWong99/reelforge/internal/config"
	"github.com/MrWong99/reelforge/internal/observe"
	"github.com/MrWong99/reelforge/internal/pipeline"
	"github.com/MrWong99/reelforge/pkg/provider/image"
	imagemock "github.com/MrWong99/reelforge/pkg/provider/image/mock"
	"github.com/MrWong99/reelforge/pkg/provider/speech"
	speechmock "github.com/MrWong99/reelforge/pkg/provider/speech/mock"
	"github.com/MrWong99/reelforge/pkg/provider/text"
	textmock "github.com/MrWong99/reelforge/pkg/provider/text/mock"
	"github.com/MrWong99/reelforge/pkg/provider/video"
	videomock "github.com/MrWong99/reelforge/pkg/provider/video/mock"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	missionText := flag.String("mission", "", "mission text to synthesise")
	missionFile := flag.String("mission-file", "", "file containing the mission text (overrides -mission)")
	targetDuration := flag.Float64("duration", 30, "target video duration in seconds")
	language := flag.String("language", "en", "narration language (BCP-47)")
	platform := flag.String("platform", "youtube", "target platform for overlay styling (youtube, tiktok, instagram)")
	logLevel := flag.String("log-level", "", "override the configured log level (debug, info, warn, error)")
	watch := flag.Bool("watch", false, "hot-reload the config file while running")
	discardFailed := flag.Bool("discard-failed", false, "delete the session workspace when a run fails")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "reelforge: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "reelforge: %v\n", err)
		}
		return 1
	}

	level := cfg.Server.LogLevel
	if *logLevel != "" {
		level = config.LogLevel(*logLevel)
		if !level.IsValid() {
			fmt.Fprintf(os.Stderr, "reelforge: invalid -log-level %q\n", *logLevel)
			return 1
		}
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var levelVar slog.LevelVar
	levelVar.Set(level.Slog())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &levelVar}))
	slog.SetDefault(logger)

	slog.Info("reelforge starting",
		"version", version,
		"config", *configPath,
		"log_level", level,
	)

	// ── Mission ───────────────────────────────────────────────────────────────
	mission, err := buildMission(*missionText, *missionFile, *targetDuration, *language, *platform)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reelforge: %v\n", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "reelforge",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, mission)

	appOpts := []app.Option{app.WithLogLevel(&levelVar)}
	if *discardFailed {
		appOpts = append(appOpts, app.WithCleanupOnFailure())
	}
	application, err := app.New(ctx, cfg, reg, appOpts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if *watch {
		if err := application.Watch(*configPath); err != nil {
			slog.Error("failed to watch config", "err", err)
		} else {
			slog.Info("config hot-reload enabled", "path", *configPath)
		}
	}

	res, err := application.Run(ctx, mission)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if serr := application.Shutdown(shutdownCtx); serr != nil {
		slog.Error("shutdown error", "err", serr)
	}

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		slog.Warn("mission canceled")
		return 1
	case err != nil:
		slog.Error("mission rejected", "err", err)
		return 1
	}

	printResultSummary(res)
	if res.Status != pipeline.StatusCompleted {
		return 1
	}
	return 0
}

// buildMission assembles the pipeline mission from the CLI flags.
func buildMission(missionText, file string, targetDuration float64, language, platform string) (pipeline.Mission, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return pipeline.Mission{}, fmt.Errorf("read mission file: %w", err)
		}
		missionText = string(data)
	}
	missionText = strings.TrimSpace(missionText)
	if missionText == "" {
		return pipeline.Mission{}, errors.New("no mission given: use -mission or -mission-file")
	}
	return pipeline.Mission{
		Text:           missionText,
		TargetDuration: targetDuration,
		Language:       language,
		Platform:       platform,
	}, nil
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider kinds to the implementations that ship in
// this binary. Used for startup logging.
var builtinProviders = map[string][]string{
	"text":   {"mock"},
	"image":  {"mock"},
	"speech": {"mock"},
	"video":  {"mock"},
}

// registerBuiltinProviders wires the provider factories that ship with
// ReelForge into reg. The offline mock backend renders deterministic
// placeholder assets for every kind, so the full pipeline can run without
// external accounts; vendor backends register here as they land.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterText("mock", func(entry config.ProviderEntry) (text.Provider, error) {
		return &textmock.Provider{
			Cost: optFloat(entry.Options, "cost"),
		}, nil
	})

	reg.RegisterImage("mock", func(entry config.ProviderEntry) (image.Provider, error) {
		return &imagemock.Provider{
			Cost: optFloat(entry.Options, "cost"),
		}, nil
	})

	reg.RegisterSpeech("mock", func(entry config.ProviderEntry) (speech.Provider, error) {
		return &speechmock.Provider{
			WordsPerSecond: optFloat(entry.Options, "words_per_second"),
			Cost:           optFloat(entry.Options, "cost"),
		}, nil
	})

	reg.RegisterVideo("mock", func(entry config.ProviderEntry) (video.Provider, error) {
		return &videomock.Provider{
			CompleteAfterPolls: optInt(entry.Options, "complete_after_polls"),
			Cost:               optFloat(entry.Options, "cost"),
		}, nil
	})

	// Debug log of all registered providers.
	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// optFloat reads a numeric option from a provider entry. YAML decodes whole
// numbers as int and decimals as float64, so both are accepted.
func optFloat(opts map[string]any, key string) float64 {
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// ── Summary boxes ───────────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, m pipeline.Mission) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      ReelForge — render summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printChain("Text", cfg.Defaults.Text)
	printChain("Image", cfg.Defaults.Image)
	printChain("Speech", cfg.Defaults.Speech)
	printChain("Video", cfg.Defaults.Video)
	printRow("Target", fmt.Sprintf("%.0fs / %s", m.TargetDuration, m.Language))
	printRow("Platform", m.Platform)
	printRow("Mission words", fmt.Sprintf("%d", len(strings.Fields(m.Text))))
	printRow("Output root", cfg.Pipeline.OutputRoot)
	if cfg.Server.OpsListen != "" {
		printRow("Ops listener", cfg.Server.OpsListen)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

// printResultSummary reports the run outcome on stdout.
func printResultSummary(res *pipeline.Result) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      ReelForge — run result           ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Status", string(res.Status))
	printRow("Session", res.SessionID)
	if res.Status == pipeline.StatusCompleted {
		printRow("Asset", res.AssetPath)
		if res.Analysis != nil {
			printRow("Narration", fmt.Sprintf("%.1fs of %.1fs", res.Analysis.TotalDuration, res.Analysis.TargetDuration))
		}
		if res.Degraded {
			printRow("Degraded", "duration out of tolerance")
		}
		for _, kind := range slices.Sorted(maps.Keys(res.ProvidersUsed)) {
			printRow("Used "+kind, res.ProvidersUsed[kind])
		}
		printRow("Cost estimate", fmt.Sprintf("$%.4f", res.CostEstimate))
	} else {
		printRow("Failed stage", res.Stage)
		printRow("Reason", res.Reason)
	}
	printRow("Elapsed", res.Elapsed.Round(time.Millisecond).String())
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printChain(kind string, d config.KindDefaults) {
	value := d.Provider
	if value == "" {
		value = "(not configured)"
	} else if n := len(d.FallbackChain); n > 0 {
		value = fmt.Sprintf("%s (+%d fallback)", value, n)
	}
	printRow(kind, value)
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s: %-19s  ║\n", label, value)
}
