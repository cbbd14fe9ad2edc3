// Package config provides the configuration schema, loader, and provider
// registry for the ReelForge synthesis pipeline.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/reelforge/pkg/provider"
	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the ReelForge process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps the level onto slog's scale. Unknown values map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SyncStrategy selects how the sync planner derives cut points from the
// narration audio.
type SyncStrategy string

const (
	// SyncBeat cuts on energy peaks.
	SyncBeat SyncStrategy = "beat"

	// SyncVoice cuts on voice-activity boundaries.
	SyncVoice SyncStrategy = "voice"

	// SyncHybrid merges beat and voice cut points.
	SyncHybrid SyncStrategy = "hybrid"
)

// IsValid reports whether s is a recognised sync strategy.
func (s SyncStrategy) IsValid() bool {
	switch s {
	case SyncBeat, SyncVoice, SyncHybrid:
		return true
	}
	return false
}

// Duration wraps time.Duration so YAML configs can carry human-readable
// values like "5s" or "2m30s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go's string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure for ReelForge.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Providers []ProviderEntry `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// OpsListen is the TCP address of the operational HTTP listener serving
	// health and metrics endpoints (e.g., ":9090"). Empty disables it.
	OpsListen string `yaml:"ops_listen"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// KindDefaults selects the primary provider and ordered fallback chain for
// one provider kind. Every name must reference an entry in
// [Config.Providers] of the same kind.
type KindDefaults struct {
	// Provider is the primary provider tried first.
	Provider string `yaml:"provider"`

	// FallbackChain lists providers tried in order after the primary
	// fails with a retryable error.
	FallbackChain []string `yaml:"fallback_chain"`
}

// DefaultsConfig holds the per-kind provider selection.
type DefaultsConfig struct {
	Text   KindDefaults `yaml:"text"`
	Image  KindDefaults `yaml:"image"`
	Speech KindDefaults `yaml:"speech"`
	Video  KindDefaults `yaml:"video"`
}

// ForKind returns the defaults block for k. Unknown kinds yield the zero
// value.
func (d DefaultsConfig) ForKind(k provider.Kind) KindDefaults {
	switch k {
	case provider.KindText:
		return d.Text
	case provider.KindImage:
		return d.Image
	case provider.KindSpeech:
		return d.Speech
	case provider.KindVideo:
		return d.Video
	}
	return KindDefaults{}
}

// ProviderEntry declares one backend instance. The (Kind, Name) pair must be
// unique; Name is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "openai", "elevenlabs", "runway").
	Name string `yaml:"name"`

	// Kind is the provider kind this entry serves.
	Kind provider.Kind `yaml:"kind"`

	// APIKey is the authentication key for the provider's API if any.
	// Environment credentials take precedence over this field.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gpt-4o", "eleven_turbo_v2").
	Model string `yaml:"model"`

	// Timeout bounds a single call to this provider. Zero means the
	// pipeline's default_timeout.
	Timeout Duration `yaml:"timeout"`

	// MaxRetries is how often a single call is retried in-place before the
	// fallback chain moves on. Zero means no in-place retries.
	MaxRetries int `yaml:"max_retries"`

	// RateLimit caps requests per second against this provider.
	// Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above. Values may be strings, numbers, booleans,
	// or nested maps.
	Options map[string]any `yaml:"options"`
}

// PipelineConfig holds the knobs of the synthesis pipeline itself.
type PipelineConfig struct {
	// OutputRoot is the directory under which per-run session directories
	// are created. Empty means "outputs".
	OutputRoot string `yaml:"output_root"`

	// TolerancePct is the allowed deviation between narrated and target
	// duration, in percent. Zero means 5.
	TolerancePct float64 `yaml:"tolerance_pct"`

	// MinSegmentDuration and MaxSegmentDuration bound a single segment's
	// narration in seconds. Zero means 1.0 and 10.0.
	MinSegmentDuration float64 `yaml:"min_segment_duration"`
	MaxSegmentDuration float64 `yaml:"max_segment_duration"`

	// InterSegmentPadding is the silence inserted between consecutive
	// narration segments in seconds. Zero means 0.5.
	InterSegmentPadding float64 `yaml:"inter_segment_padding"`

	// Concurrency caps how many asset-generation calls run at once.
	// Zero means 4.
	Concurrency int `yaml:"concurrency"`

	// RegenerationAttempts is how often a segment failing the duration
	// gate is re-synthesized before the run degrades. Zero means 2.
	RegenerationAttempts int `yaml:"regeneration_attempts"`

	// VideoPollInterval is how often pending video jobs are polled.
	// Zero means 5s.
	VideoPollInterval Duration `yaml:"video_poll_interval"`

	// VideoTimeout bounds a single video job from submission to
	// completion. Zero means 5m.
	VideoTimeout Duration `yaml:"video_timeout"`

	// DefaultTimeout bounds any provider call without an entry-level
	// timeout. Zero means 60s.
	DefaultTimeout Duration `yaml:"default_timeout"`

	// SyncStrategy selects the cut-point derivation mode. Empty means
	// hybrid.
	SyncStrategy SyncStrategy `yaml:"sync_strategy"`
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
// [LoadFromReader] calls it before validation; call it directly when
// constructing a Config programmatically.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}

	p := &c.Pipeline
	if p.OutputRoot == "" {
		p.OutputRoot = "outputs"
	}
	if p.TolerancePct == 0 {
		p.TolerancePct = 5
	}
	if p.MinSegmentDuration == 0 {
		p.MinSegmentDuration = 1.0
	}
	if p.MaxSegmentDuration == 0 {
		p.MaxSegmentDuration = 10.0
	}
	if p.InterSegmentPadding == 0 {
		p.InterSegmentPadding = 0.5
	}
	if p.Concurrency == 0 {
		p.Concurrency = 4
	}
	if p.RegenerationAttempts == 0 {
		p.RegenerationAttempts = 2
	}
	if p.VideoPollInterval == 0 {
		p.VideoPollInterval = Duration(5 * time.Second)
	}
	if p.VideoTimeout == 0 {
		p.VideoTimeout = Duration(5 * time.Minute)
	}
	if p.DefaultTimeout == 0 {
		p.DefaultTimeout = Duration(60 * time.Second)
	}
	if p.SyncStrategy == "" {
		p.SyncStrategy = SyncHybrid
	}
}
