package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/reelforge/internal/app"
	"github.com/MrWong99/reelforge/internal/compose"
	"github.com/MrWong99/reelforge/internal/config"
	"github.com/MrWong99/reelforge/internal/pipeline"
	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/provider/speech"
	speechmock "github.com/MrWong99/reelforge/pkg/provider/speech/mock"
	"github.com/MrWong99/reelforge/pkg/provider/video"
	videomock "github.com/MrWong99/reelforge/pkg/provider/video/mock"
)

// recordingCompositor captures compose requests and fakes the render so
// tests never need the ffmpeg binary.
type recordingCompositor struct {
	mu   sync.Mutex
	reqs []compose.Request
}

func (c *recordingCompositor) BuildCommand(compose.Request) (*compose.Command, error) {
	return &compose.Command{Args: []string{"-y"}}, nil
}

func (c *recordingCompositor) Compose(_ context.Context, req compose.Request) (string, error) {
	c.mu.Lock()
	c.reqs = append(c.reqs, req)
	c.mu.Unlock()
	if err := os.WriteFile(req.OutputPath, []byte("mp4"), 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

func (c *recordingCompositor) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reqs)
}

// loadConfig parses a YAML literal and points the pipeline at a per-test
// output root.
func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader() error: %v", err)
	}
	cfg.Pipeline.OutputRoot = t.TempDir()
	return cfg
}

const baseYAML = `
defaults:
  speech:
    provider: mock
  video:
    provider: mock
providers:
  - name: mock
    kind: speech
  - name: mock
    kind: video
`

// harborMission narrates in roughly 5.6 seconds at the mock synthesis rate.
// With the default half-second gap between its two segments the measured
// total lands within tolerance of the six-second target.
func harborMission() pipeline.Mission {
	return pipeline.Mission{
		Text:           "Morning light spills over the harbor. Boats drift out before the little town wakes.",
		TargetDuration: 6,
		Language:       "en",
		Platform:       "youtube",
	}
}

func TestNewWiresChainsAndRunsMission(t *testing.T) {
	t.Parallel()

	speechP := &speechmock.Provider{}
	videoP := &videomock.Provider{}
	reg := config.NewRegistry()
	reg.RegisterSpeech("mock", func(config.ProviderEntry) (speech.Provider, error) { return speechP, nil })
	reg.RegisterVideo("mock", func(config.ProviderEntry) (video.Provider, error) { return videoP, nil })

	cfg := loadConfig(t, baseYAML)
	comp := &recordingCompositor{}

	application, err := app.New(context.Background(), cfg, reg, app.WithCompositor(comp))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer application.Shutdown(context.Background())

	if addr := application.OpsAddr(); addr != "" {
		t.Errorf("OpsAddr() = %q, want empty when ops_listen is unset", addr)
	}

	res, err := application.Run(context.Background(), harborMission())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Status != pipeline.StatusCompleted {
		t.Fatalf("Status = %q (stage %q, reason %q), want %q", res.Status, res.Stage, res.Reason, pipeline.StatusCompleted)
	}
	if _, err := os.Stat(res.AssetPath); err != nil {
		t.Errorf("final asset missing: %v", err)
	}
	if got := res.ProvidersUsed["speech"]; got != "mock" {
		t.Errorf("ProvidersUsed[speech] = %q, want %q", got, "mock")
	}
	if got := res.ProvidersUsed["video"]; got != "mock" {
		t.Errorf("ProvidersUsed[video] = %q, want %q", got, "mock")
	}
	if got := len(speechP.Calls()); got != 2 {
		t.Errorf("speech synthesize calls = %d, want 2", got)
	}
	if comp.calls() != 1 {
		t.Errorf("compositor calls = %d, want 1", comp.calls())
	}
}

func TestNewProviderErrors(t *testing.T) {
	t.Parallel()

	videoOnly := func() *config.Registry {
		reg := config.NewRegistry()
		reg.RegisterVideo("mock", func(config.ProviderEntry) (video.Provider, error) {
			return &videomock.Provider{}, nil
		})
		return reg
	}

	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no speech chain configured",
			yaml: `
defaults:
  video:
    provider: mock
providers:
  - name: mock
    kind: video
`,
		},
		{
			name: "speech factory not registered",
			yaml: `
defaults:
  speech:
    provider: elevenlabs
  video:
    provider: mock
providers:
  - name: elevenlabs
    kind: speech
  - name: mock
    kind: video
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := loadConfig(t, tt.yaml)
			_, err := app.New(context.Background(), cfg, videoOnly(), app.WithCompositor(&recordingCompositor{}))
			if !errors.Is(err, fault.ErrNoProvider) {
				t.Fatalf("New() error = %v, want wrapping fault.ErrNoProvider", err)
			}
		})
	}
}

func TestRunFailsOverAcrossConfiguredChain(t *testing.T) {
	t.Parallel()

	flaky := &speechmock.Provider{SynthesizeErr: fmt.Errorf("synthesis backend down: %w", fault.ErrTransient)}
	steady := &speechmock.Provider{}
	videoP := &videomock.Provider{}

	reg := config.NewRegistry()
	reg.RegisterSpeech("flaky", func(config.ProviderEntry) (speech.Provider, error) { return flaky, nil })
	reg.RegisterSpeech("steady", func(config.ProviderEntry) (speech.Provider, error) { return steady, nil })
	reg.RegisterVideo("mock", func(config.ProviderEntry) (video.Provider, error) { return videoP, nil })

	cfg := loadConfig(t, `
defaults:
  speech:
    provider: flaky
    fallback_chain: [steady]
  video:
    provider: mock
providers:
  - name: flaky
    kind: speech
  - name: steady
    kind: speech
  - name: mock
    kind: video
`)

	application, err := app.New(context.Background(), cfg, reg, app.WithCompositor(&recordingCompositor{}))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer application.Shutdown(context.Background())

	res, err := application.Run(context.Background(), harborMission())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Status != pipeline.StatusCompleted {
		t.Fatalf("Status = %q (stage %q, reason %q), want completed", res.Status, res.Stage, res.Reason)
	}
	if got := res.ProvidersUsed["speech"]; got != "steady" {
		t.Errorf("ProvidersUsed[speech] = %q, want %q", got, "steady")
	}
	if len(flaky.Calls()) == 0 {
		t.Error("flaky primary was never tried")
	}
	if got := len(steady.Calls()); got != 2 {
		t.Errorf("steady synthesize calls = %d, want 2", got)
	}
}

func TestOpsEndpoints(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterSpeech("mock", func(config.ProviderEntry) (speech.Provider, error) {
		return &speechmock.Provider{}, nil
	})
	reg.RegisterVideo("mock", func(config.ProviderEntry) (video.Provider, error) {
		return &videomock.Provider{}, nil
	})

	cfg := loadConfig(t, `
server:
  ops_listen: "127.0.0.1:0"
defaults:
  speech:
    provider: mock
  video:
    provider: mock
providers:
  - name: mock
    kind: speech
  - name: mock
    kind: video
`)

	application, err := app.New(context.Background(), cfg, reg, app.WithCompositor(&recordingCompositor{}))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	addr := application.OpsAddr()
	if addr == "" {
		t.Fatal("OpsAddr() is empty, want a bound address")
	}
	base := "http://" + addr

	checkGet := func(path, want string) {
		t.Helper()
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("GET %s read body: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, body %q", path, resp.StatusCode, body)
		}
		if !strings.Contains(string(body), want) {
			t.Errorf("GET %s body = %q, want substring %q", path, body, want)
		}
	}

	checkGet("/healthz", `"status":"ok"`)
	checkGet("/readyz", `"providers":"ok"`)
	checkGet("/metrics", "go_goroutines")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if _, err := http.Get(base + "/healthz"); err == nil {
		t.Error("ops listener still serving after Shutdown")
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Errorf("second Shutdown() error: %v", err)
	}
}

func TestHandleConfigChangeSwitchesChains(t *testing.T) {
	t.Parallel()

	alpha := &speechmock.Provider{}
	beta := &speechmock.Provider{}

	reg := config.NewRegistry()
	reg.RegisterSpeech("alpha", func(config.ProviderEntry) (speech.Provider, error) { return alpha, nil })
	reg.RegisterSpeech("beta", func(config.ProviderEntry) (speech.Provider, error) { return beta, nil })
	reg.RegisterVideo("mock", func(config.ProviderEntry) (video.Provider, error) {
		return &videomock.Provider{}, nil
	})

	const yamlA = `
server:
  log_level: info
defaults:
  speech:
    provider: alpha
  video:
    provider: mock
providers:
  - name: alpha
    kind: speech
  - name: beta
    kind: speech
  - name: mock
    kind: video
`
	const yamlB = `
server:
  log_level: debug
defaults:
  speech:
    provider: beta
  video:
    provider: mock
providers:
  - name: alpha
    kind: speech
  - name: beta
    kind: speech
  - name: mock
    kind: video
`

	cfgA := loadConfig(t, yamlA)
	cfgB := loadConfig(t, yamlB)
	cfgB.Pipeline.OutputRoot = cfgA.Pipeline.OutputRoot

	var level slog.LevelVar
	application, err := app.New(context.Background(), cfgA, reg,
		app.WithCompositor(&recordingCompositor{}),
		app.WithLogLevel(&level),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer application.Shutdown(context.Background())

	res, err := application.Run(context.Background(), harborMission())
	if err != nil {
		t.Fatalf("Run() before reload error: %v", err)
	}
	if got := res.ProvidersUsed["speech"]; got != "alpha" {
		t.Fatalf("ProvidersUsed[speech] before reload = %q, want %q", got, "alpha")
	}

	d := config.Diff(cfgA, cfgB)
	if len(d.DefaultsChanged) == 0 {
		t.Fatal("Diff() reported no defaults change")
	}
	application.HandleConfigChange(cfgA, cfgB, d)

	if got := level.Level(); got != slog.LevelDebug {
		t.Errorf("log level after reload = %v, want debug", got)
	}

	res, err = application.Run(context.Background(), harborMission())
	if err != nil {
		t.Fatalf("Run() after reload error: %v", err)
	}
	if got := res.ProvidersUsed["speech"]; got != "beta" {
		t.Errorf("ProvidersUsed[speech] after reload = %q, want %q", got, "beta")
	}
	if got := len(alpha.Calls()); got != 2 {
		t.Errorf("alpha synthesize calls = %d, want 2 (first run only)", got)
	}
	if got := len(beta.Calls()); got != 2 {
		t.Errorf("beta synthesize calls = %d, want 2 (second run only)", got)
	}
}
