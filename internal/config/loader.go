package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/MrWong99/reelforge/pkg/provider"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[provider.Kind][]string{
	provider.KindText:   {"openai", "anthropic", "gemini", "ollama", "groq", "mock"},
	provider.KindImage:  {"openai", "stability", "gemini", "flux", "mock"},
	provider.KindSpeech: {"elevenlabs", "openai", "google", "azure", "mock"},
	provider.KindVideo:  {"runway", "pika", "luma", "kling", "veo", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider entries. Track declared (kind, name) pairs for the defaults
	// cross-checks below.
	declared := make(map[provider.Kind]map[string]int)
	for i, p := range cfg.Providers {
		prefix := fmt.Sprintf("providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if !p.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("%s.kind %q is invalid; valid values: text, image, speech, video", prefix, p.Kind))
			continue
		}
		if p.Name != "" {
			if declared[p.Kind] == nil {
				declared[p.Kind] = make(map[string]int)
			}
			if prev, ok := declared[p.Kind][p.Name]; ok {
				errs = append(errs, fmt.Errorf("%s duplicates providers[%d]: %s/%s declared twice", prefix, prev, p.Kind, p.Name))
			} else {
				declared[p.Kind][p.Name] = i
			}
			validateProviderName(p.Kind, p.Name)
		}
		if p.Timeout < 0 {
			errs = append(errs, fmt.Errorf("%s.timeout must not be negative", prefix))
		}
		if p.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("%s.max_retries must not be negative", prefix))
		}
		if p.RateLimit < 0 {
			errs = append(errs, fmt.Errorf("%s.rate_limit must not be negative", prefix))
		}
	}

	// Defaults must reference declared providers of the matching kind.
	for _, kind := range provider.Kinds() {
		d := cfg.Defaults.ForKind(kind)
		prefix := fmt.Sprintf("defaults.%s", kind)
		if d.Provider != "" && !hasDeclared(declared, kind, d.Provider) {
			errs = append(errs, fmt.Errorf("%s.provider %q is not declared in providers", prefix, d.Provider))
		}
		chainSeen := make(map[string]bool, len(d.FallbackChain))
		for j, name := range d.FallbackChain {
			if !hasDeclared(declared, kind, name) {
				errs = append(errs, fmt.Errorf("%s.fallback_chain[%d] %q is not declared in providers", prefix, j, name))
			}
			if chainSeen[name] {
				errs = append(errs, fmt.Errorf("%s.fallback_chain lists %q twice", prefix, name))
			}
			chainSeen[name] = true
		}
		if d.Provider != "" && chainSeen[d.Provider] {
			slog.Warn("primary provider repeated in its own fallback chain; it will be tried twice",
				"kind", kind,
				"provider", d.Provider,
			)
		}
	}

	// Pipeline
	pl := cfg.Pipeline
	if pl.TolerancePct < 0 || pl.TolerancePct > 50 {
		errs = append(errs, fmt.Errorf("pipeline.tolerance_pct %.1f is out of range [0, 50]", pl.TolerancePct))
	}
	if pl.MinSegmentDuration < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_segment_duration must not be negative"))
	}
	if pl.MinSegmentDuration > 0 && pl.MaxSegmentDuration > 0 && pl.MaxSegmentDuration <= pl.MinSegmentDuration {
		errs = append(errs, fmt.Errorf("pipeline.max_segment_duration %.1f must exceed min_segment_duration %.1f", pl.MaxSegmentDuration, pl.MinSegmentDuration))
	}
	if pl.InterSegmentPadding < 0 {
		errs = append(errs, fmt.Errorf("pipeline.inter_segment_padding must not be negative"))
	}
	if pl.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("pipeline.concurrency must not be negative"))
	}
	if pl.RegenerationAttempts < 0 {
		errs = append(errs, fmt.Errorf("pipeline.regeneration_attempts must not be negative"))
	}
	if pl.VideoPollInterval < 0 || pl.VideoTimeout < 0 || pl.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline timeouts must not be negative"))
	}
	if pl.SyncStrategy != "" && !pl.SyncStrategy.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.sync_strategy %q is invalid; valid values: beat, voice, hybrid", pl.SyncStrategy))
	}

	return errors.Join(errs...)
}

func hasDeclared(declared map[provider.Kind]map[string]int, kind provider.Kind, name string) bool {
	_, ok := declared[kind][name]
	return ok
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind provider.Kind, name string) {
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
