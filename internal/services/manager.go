// Package services resolves provider handles from configuration.
//
// The [Manager] sits between the pipeline and the [config.Registry]: it
// picks the provider name for a kind (explicit request, then per-kind
// config default, then REELFORGE_<KIND>_PROVIDER from the environment),
// injects credentials through an [AuthProvider], instantiates the handle
// once, and caches it until the entry is invalidated or the manager closes.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/reelforge/internal/config"
	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/provider"
	"github.com/MrWong99/reelforge/pkg/provider/image"
	"github.com/MrWong99/reelforge/pkg/provider/speech"
	"github.com/MrWong99/reelforge/pkg/provider/text"
	"github.com/MrWong99/reelforge/pkg/provider/video"
)

// Manager caches instantiated provider handles per (kind, name) pair.
// It is safe for concurrent use.
type Manager struct {
	reg  *config.Registry
	auth AuthProvider

	mu     sync.RWMutex
	cfg    *config.Config
	text   map[string]text.Provider
	image  map[string]image.Provider
	speech map[string]speech.Provider
	video  map[string]video.Provider
}

// Option configures a [Manager].
type Option func(*Manager)

// WithAuth replaces the default [EnvKeyAuth] credential source.
func WithAuth(a AuthProvider) Option {
	return func(m *Manager) {
		if a != nil {
			m.auth = a
		}
	}
}

// NewManager returns a manager resolving handles against reg and cfg.
func NewManager(reg *config.Registry, cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{
		reg:    reg,
		auth:   NewEnvKeyAuth(),
		cfg:    cfg,
		text:   make(map[string]text.Provider),
		image:  make(map[string]image.Provider),
		speech: make(map[string]speech.Provider),
		video:  make(map[string]video.Provider),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetConfig swaps the active configuration. Cached handles are kept; call
// [Manager.Invalidate] for entries the config diff reports as changed.
func (m *Manager) SetConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// ResolveName picks the provider name for kind. An explicit non-empty name
// wins, then the per-kind config default, then the REELFORGE_<KIND>_PROVIDER
// environment variable. Empty means nothing is selected.
func (m *Manager) ResolveName(kind provider.Kind, explicit string) string {
	if explicit != "" {
		return explicit
	}
	m.mu.RLock()
	def := m.cfg.Defaults.ForKind(kind).Provider
	m.mu.RUnlock()
	if def != "" {
		return def
	}
	return os.Getenv("REELFORGE_" + strings.ToUpper(string(kind)) + "_PROVIDER")
}

// ChainFor returns the full ordered provider chain for kind: the resolved
// primary first, then the configured fallback chain with the primary
// deduplicated.
func (m *Manager) ChainFor(kind provider.Kind) []string {
	primary := m.ResolveName(kind, "")
	m.mu.RLock()
	chain := slices.Clone(m.cfg.Defaults.ForKind(kind).FallbackChain)
	m.mu.RUnlock()

	var names []string
	if primary != "" {
		names = append(names, primary)
	}
	for _, n := range chain {
		if n != primary {
			names = append(names, n)
		}
	}
	return names
}

// Text returns the cached or freshly created text provider. An empty name
// selects the default for the kind.
func (m *Manager) Text(ctx context.Context, name string) (text.Provider, error) {
	name = m.ResolveName(provider.KindText, name)
	if name == "" {
		return nil, fmt.Errorf("services: no text provider selected: %w", fault.ErrNoProvider)
	}

	m.mu.RLock()
	p, ok := m.text[name]
	m.mu.RUnlock()
	if ok {
		return p, nil
	}

	entry, err := m.prepare(ctx, provider.KindText, name)
	if err != nil {
		return nil, err
	}
	created, err := m.reg.CreateText(entry)
	if err != nil {
		return nil, err
	}
	wrapped := limitText(created, entry.RateLimit)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.text[name]; ok {
		// Lost a creation race; keep the first handle.
		closeHandle(wrapped)
		return existing, nil
	}
	m.text[name] = wrapped
	return wrapped, nil
}

// Image returns the cached or freshly created image provider.
func (m *Manager) Image(ctx context.Context, name string) (image.Provider, error) {
	name = m.ResolveName(provider.KindImage, name)
	if name == "" {
		return nil, fmt.Errorf("services: no image provider selected: %w", fault.ErrNoProvider)
	}

	m.mu.RLock()
	p, ok := m.image[name]
	m.mu.RUnlock()
	if ok {
		return p, nil
	}

	entry, err := m.prepare(ctx, provider.KindImage, name)
	if err != nil {
		return nil, err
	}
	created, err := m.reg.CreateImage(entry)
	if err != nil {
		return nil, err
	}
	wrapped := limitImage(created, entry.RateLimit)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.image[name]; ok {
		closeHandle(wrapped)
		return existing, nil
	}
	m.image[name] = wrapped
	return wrapped, nil
}

// Speech returns the cached or freshly created speech provider.
func (m *Manager) Speech(ctx context.Context, name string) (speech.Provider, error) {
	name = m.ResolveName(provider.KindSpeech, name)
	if name == "" {
		return nil, fmt.Errorf("services: no speech provider selected: %w", fault.ErrNoProvider)
	}

	m.mu.RLock()
	p, ok := m.speech[name]
	m.mu.RUnlock()
	if ok {
		return p, nil
	}

	entry, err := m.prepare(ctx, provider.KindSpeech, name)
	if err != nil {
		return nil, err
	}
	created, err := m.reg.CreateSpeech(entry)
	if err != nil {
		return nil, err
	}
	wrapped := limitSpeech(created, entry.RateLimit)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.speech[name]; ok {
		closeHandle(wrapped)
		return existing, nil
	}
	m.speech[name] = wrapped
	return wrapped, nil
}

// Video returns the cached or freshly created video provider.
func (m *Manager) Video(ctx context.Context, name string) (video.Provider, error) {
	name = m.ResolveName(provider.KindVideo, name)
	if name == "" {
		return nil, fmt.Errorf("services: no video provider selected: %w", fault.ErrNoProvider)
	}

	m.mu.RLock()
	p, ok := m.video[name]
	m.mu.RUnlock()
	if ok {
		return p, nil
	}

	entry, err := m.prepare(ctx, provider.KindVideo, name)
	if err != nil {
		return nil, err
	}
	created, err := m.reg.CreateVideo(entry)
	if err != nil {
		return nil, err
	}
	wrapped := limitVideo(created, entry.RateLimit)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.video[name]; ok {
		closeHandle(wrapped)
		return existing, nil
	}
	m.video[name] = wrapped
	return wrapped, nil
}

// Invalidate drops the cached handle for (kind, name), closing it if it
// implements io.Closer. The next access recreates it from current config.
func (m *Manager) Invalidate(kind provider.Kind, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var handle any
	switch kind {
	case provider.KindText:
		if p, ok := m.text[name]; ok {
			handle = p
			delete(m.text, name)
		}
	case provider.KindImage:
		if p, ok := m.image[name]; ok {
			handle = p
			delete(m.image, name)
		}
	case provider.KindSpeech:
		if p, ok := m.speech[name]; ok {
			handle = p
			delete(m.speech, name)
		}
	case provider.KindVideo:
		if p, ok := m.video[name]; ok {
			handle = p
			delete(m.video, name)
		}
	}
	if handle == nil {
		return nil
	}
	return closeHandle(handle)
}

// Close releases every cached handle implementing io.Closer and empties the
// cache. The returned error joins all close failures.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, p := range m.text {
		errs = append(errs, closeHandle(p))
		delete(m.text, name)
	}
	for name, p := range m.image {
		errs = append(errs, closeHandle(p))
		delete(m.image, name)
	}
	for name, p := range m.speech {
		errs = append(errs, closeHandle(p))
		delete(m.speech, name)
	}
	for name, p := range m.video {
		errs = append(errs, closeHandle(p))
		delete(m.video, name)
	}
	return errors.Join(errs...)
}

// prepare looks up the config entry for (kind, name) and injects resolved
// credentials. A missing secret is left for the factory to judge, since
// keyless backends are legitimate.
func (m *Manager) prepare(ctx context.Context, kind provider.Kind, name string) (config.ProviderEntry, error) {
	entry, ok := m.entryFor(kind, name)
	if !ok {
		return config.ProviderEntry{}, fmt.Errorf("services: %s provider %q is not declared in config: %w", kind, name, fault.ErrNoProvider)
	}

	key, err := m.auth.Credentials(ctx, entry)
	switch {
	case err == nil:
		entry.APIKey = key
	case errors.Is(err, fault.ErrConfigMissing):
	default:
		return config.ProviderEntry{}, err
	}
	return entry, nil
}

func (m *Manager) entryFor(kind provider.Kind, name string) (config.ProviderEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.cfg.Providers {
		if e.Kind == kind && e.Name == name {
			return e, true
		}
	}
	return config.ProviderEntry{}, false
}

func closeHandle(p any) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
