package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/reelforge/internal/config"
	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/provider"
	"github.com/MrWong99/reelforge/pkg/provider/speech"
	speechmock "github.com/MrWong99/reelforge/pkg/provider/speech/mock"
	"github.com/MrWong99/reelforge/pkg/provider/text"
	textmock "github.com/MrWong99/reelforge/pkg/provider/text/mock"
	"github.com/MrWong99/reelforge/pkg/provider/video"
	videomock "github.com/MrWong99/reelforge/pkg/provider/video/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  ops_listen: ":9090"
  log_level: info

defaults:
  text:
    provider: openai
    fallback_chain: [anthropic]
  image:
    provider: openai
  speech:
    provider: elevenlabs
  video:
    provider: runway
    fallback_chain: [pika]

providers:
  - name: openai
    kind: text
    api_key: sk-test
    model: gpt-4o
    timeout: 45s
    max_retries: 2
    rate_limit: 3
  - name: anthropic
    kind: text
    model: claude-sonnet
  - name: openai
    kind: image
    model: gpt-image-1
  - name: elevenlabs
    kind: speech
    api_key: el-test
    options:
      stability: 0.6
  - name: runway
    kind: video
    timeout: 4m
  - name: pika
    kind: video

pipeline:
  output_root: /tmp/reelforge-out
  tolerance_pct: 5
  min_segment_duration: 1.0
  max_segment_duration: 10.0
  inter_segment_padding: 0.5
  concurrency: 4
  regeneration_attempts: 2
  video_poll_interval: 5s
  video_timeout: 300s
  default_timeout: 60s
  sync_strategy: hybrid
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.OpsListen != ":9090" {
		t.Errorf("server.ops_listen: got %q, want %q", cfg.Server.OpsListen, ":9090")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Defaults.Text.Provider != "openai" {
		t.Errorf("defaults.text.provider: got %q, want %q", cfg.Defaults.Text.Provider, "openai")
	}
	if len(cfg.Defaults.Video.FallbackChain) != 1 || cfg.Defaults.Video.FallbackChain[0] != "pika" {
		t.Errorf("defaults.video.fallback_chain: got %v, want [pika]", cfg.Defaults.Video.FallbackChain)
	}
	if len(cfg.Providers) != 6 {
		t.Fatalf("providers: got %d, want 6", len(cfg.Providers))
	}
	if cfg.Providers[0].Timeout.Std() != 45*time.Second {
		t.Errorf("providers[0].timeout: got %v, want 45s", cfg.Providers[0].Timeout.Std())
	}
	if cfg.Providers[4].Timeout.Std() != 4*time.Minute {
		t.Errorf("providers[4].timeout: got %v, want 4m", cfg.Providers[4].Timeout.Std())
	}
	if cfg.Pipeline.SyncStrategy != config.SyncHybrid {
		t.Errorf("pipeline.sync_strategy: got %q, want %q", cfg.Pipeline.SyncStrategy, config.SyncHybrid)
	}
	if cfg.Pipeline.VideoPollInterval.Std() != 5*time.Second {
		t.Errorf("pipeline.video_poll_interval: got %v, want 5s", cfg.Pipeline.VideoPollInterval.Std())
	}
}

func TestLoadFromReader_EmptyGetsDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("default log_level: got %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Pipeline.OutputRoot != "outputs" {
		t.Errorf("default output_root: got %q, want outputs", cfg.Pipeline.OutputRoot)
	}
	if cfg.Pipeline.TolerancePct != 5 {
		t.Errorf("default tolerance_pct: got %v, want 5", cfg.Pipeline.TolerancePct)
	}
	if cfg.Pipeline.Concurrency != 4 {
		t.Errorf("default concurrency: got %d, want 4", cfg.Pipeline.Concurrency)
	}
	if cfg.Pipeline.RegenerationAttempts != 2 {
		t.Errorf("default regeneration_attempts: got %d, want 2", cfg.Pipeline.RegenerationAttempts)
	}
	if cfg.Pipeline.VideoTimeout.Std() != 5*time.Minute {
		t.Errorf("default video_timeout: got %v, want 5m", cfg.Pipeline.VideoTimeout.Std())
	}
	if cfg.Pipeline.SyncStrategy != config.SyncHybrid {
		t.Errorf("default sync_strategy: got %q, want hybrid", cfg.Pipeline.SyncStrategy)
	}
}

func TestLoadFromReader_BadDurationString(t *testing.T) {
	yaml := `
providers:
  - name: openai
    kind: text
    timeout: fast
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unparseable duration, got nil")
	}
	if !strings.Contains(err.Error(), "duration") {
		t.Errorf("error should mention duration, got: %v", err)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
server:
  listen_port: 8080
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_DuplicateProviderEntry(t *testing.T) {
	yaml := `
providers:
  - name: openai
    kind: text
  - name: openai
    kind: text
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate provider entry, got nil")
	}
	if !strings.Contains(err.Error(), "twice") {
		t.Errorf("error should mention the duplicate, got: %v", err)
	}
}

func TestValidate_SameNameDifferentKindsAllowed(t *testing.T) {
	yaml := `
providers:
  - name: openai
    kind: text
  - name: openai
    kind: image
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidKind(t *testing.T) {
	yaml := `
providers:
  - name: openai
    kind: music
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid kind, got nil")
	}
	if !strings.Contains(err.Error(), "kind") {
		t.Errorf("error should mention kind, got: %v", err)
	}
}

func TestValidate_DefaultsReferenceUndeclaredProvider(t *testing.T) {
	yaml := `
defaults:
  text:
    provider: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for undeclared default provider, got nil")
	}
	if !strings.Contains(err.Error(), "not declared") {
		t.Errorf("error should mention the missing declaration, got: %v", err)
	}
}

func TestValidate_ChainReferenceUndeclaredProvider(t *testing.T) {
	yaml := `
defaults:
  speech:
    provider: elevenlabs
    fallback_chain: [google]
providers:
  - name: elevenlabs
    kind: speech
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for undeclared chain member, got nil")
	}
	if !strings.Contains(err.Error(), "fallback_chain") {
		t.Errorf("error should mention fallback_chain, got: %v", err)
	}
}

func TestValidate_ChainDuplicate(t *testing.T) {
	yaml := `
defaults:
  video:
    fallback_chain: [runway, runway]
providers:
  - name: runway
    kind: video
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicated chain member, got nil")
	}
}

func TestValidate_InvalidSyncStrategy(t *testing.T) {
	yaml := `
pipeline:
  sync_strategy: tempo
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid sync_strategy, got nil")
	}
}

func TestValidate_NegativeRateLimit(t *testing.T) {
	yaml := `
providers:
  - name: openai
    kind: text
    rate_limit: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative rate_limit, got nil")
	}
}

func TestValidate_SegmentBoundsInverted(t *testing.T) {
	yaml := `
pipeline:
  min_segment_duration: 8.0
  max_segment_duration: 2.0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for max <= min segment duration, got nil")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	yaml := `
server:
  log_level: loud
providers:
  - name: ""
    kind: music
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "kind") {
		t.Errorf("error should mention kind, got: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	for _, kind := range provider.Kinds() {
		names := config.ValidProviderNames[kind]
		if len(names) == 0 {
			t.Errorf("ValidProviderNames[%q] should not be empty", kind)
		}
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_UnknownProviders(t *testing.T) {
	reg := config.NewRegistry()

	if _, err := reg.CreateText(config.ProviderEntry{Name: "nonexistent"}); !errors.Is(err, fault.ErrNoProvider) {
		t.Errorf("CreateText: expected fault.ErrNoProvider, got: %v", err)
	}
	if _, err := reg.CreateImage(config.ProviderEntry{Name: "nonexistent"}); !errors.Is(err, fault.ErrNoProvider) {
		t.Errorf("CreateImage: expected fault.ErrNoProvider, got: %v", err)
	}
	if _, err := reg.CreateSpeech(config.ProviderEntry{Name: "nonexistent"}); !errors.Is(err, fault.ErrNoProvider) {
		t.Errorf("CreateSpeech: expected fault.ErrNoProvider, got: %v", err)
	}
	if _, err := reg.CreateVideo(config.ProviderEntry{Name: "nonexistent"}); !errors.Is(err, fault.ErrNoProvider) {
		t.Errorf("CreateVideo: expected fault.ErrNoProvider, got: %v", err)
	}
}

func TestRegistry_RegisteredFactoriesReturnInstances(t *testing.T) {
	reg := config.NewRegistry()

	wantText := &textmock.Provider{}
	reg.RegisterText("stub", func(e config.ProviderEntry) (text.Provider, error) {
		return wantText, nil
	})
	gotText, err := reg.CreateText(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatalf("CreateText: unexpected error: %v", err)
	}
	if gotText != wantText {
		t.Error("CreateText returned a different instance than the factory produced")
	}
}

func TestRegistry_FactoryReceivesEntry(t *testing.T) {
	reg := config.NewRegistry()

	var gotModel string
	reg.RegisterSpeech("stub", func(e config.ProviderEntry) (speech.Provider, error) {
		gotModel = e.Model
		return &speechmock.Provider{}, nil
	})
	if _, err := reg.CreateSpeech(config.ProviderEntry{Name: "stub", Model: "eleven_turbo_v2"}); err != nil {
		t.Fatalf("CreateSpeech: unexpected error: %v", err)
	}
	if gotModel != "eleven_turbo_v2" {
		t.Errorf("factory received model %q, want %q", gotModel, "eleven_turbo_v2")
	}
}

func TestRegistry_RegisteredAndNames(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterVideo("runway", func(config.ProviderEntry) (video.Provider, error) {
		return &videomock.Provider{}, nil
	})

	if !reg.Registered(provider.KindVideo, "runway") {
		t.Error("Registered(video, runway) = false, want true")
	}
	if reg.Registered(provider.KindText, "runway") {
		t.Error("Registered(text, runway) = true, want false")
	}
	names := reg.Names(provider.KindVideo)
	if len(names) != 1 || names[0] != "runway" {
		t.Errorf("Names(video) = %v, want [runway]", names)
	}
}
