package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/provider"
	"github.com/MrWong99/reelforge/pkg/provider/image"
	"github.com/MrWong99/reelforge/pkg/provider/speech"
	"github.com/MrWong99/reelforge/pkg/provider/text"
	"github.com/MrWong99/reelforge/pkg/provider/video"
)

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	text   map[string]func(ProviderEntry) (text.Provider, error)
	image  map[string]func(ProviderEntry) (image.Provider, error)
	speech map[string]func(ProviderEntry) (speech.Provider, error)
	video  map[string]func(ProviderEntry) (video.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		text:   make(map[string]func(ProviderEntry) (text.Provider, error)),
		image:  make(map[string]func(ProviderEntry) (image.Provider, error)),
		speech: make(map[string]func(ProviderEntry) (speech.Provider, error)),
		video:  make(map[string]func(ProviderEntry) (video.Provider, error)),
	}
}

// RegisterText registers a text provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterText(name string, factory func(ProviderEntry) (text.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text[name] = factory
}

// RegisterImage registers an image provider factory under name.
func (r *Registry) RegisterImage(name string, factory func(ProviderEntry) (image.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.image[name] = factory
}

// RegisterSpeech registers a speech provider factory under name.
func (r *Registry) RegisterSpeech(name string, factory func(ProviderEntry) (speech.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speech[name] = factory
}

// RegisterVideo registers a video provider factory under name.
func (r *Registry) RegisterVideo(name string, factory func(ProviderEntry) (video.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.video[name] = factory
}

// CreateText instantiates a text provider using the factory registered under
// entry.Name. The error wraps [fault.ErrNoProvider] when no factory has been
// registered for that name.
func (r *Registry) CreateText(entry ProviderEntry) (text.Provider, error) {
	r.mu.RLock()
	factory, ok := r.text[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config: text provider %q not registered: %w", entry.Name, fault.ErrNoProvider)
	}
	return factory(entry)
}

// CreateImage instantiates an image provider using the factory registered under entry.Name.
func (r *Registry) CreateImage(entry ProviderEntry) (image.Provider, error) {
	r.mu.RLock()
	factory, ok := r.image[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config: image provider %q not registered: %w", entry.Name, fault.ErrNoProvider)
	}
	return factory(entry)
}

// CreateSpeech instantiates a speech provider using the factory registered under entry.Name.
func (r *Registry) CreateSpeech(entry ProviderEntry) (speech.Provider, error) {
	r.mu.RLock()
	factory, ok := r.speech[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config: speech provider %q not registered: %w", entry.Name, fault.ErrNoProvider)
	}
	return factory(entry)
}

// CreateVideo instantiates a video provider using the factory registered under entry.Name.
func (r *Registry) CreateVideo(entry ProviderEntry) (video.Provider, error) {
	r.mu.RLock()
	factory, ok := r.video[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config: video provider %q not registered: %w", entry.Name, fault.ErrNoProvider)
	}
	return factory(entry)
}

// Registered reports whether a factory exists for the (kind, name) pair.
func (r *Registry) Registered(kind provider.Kind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case provider.KindText:
		_, ok := r.text[name]
		return ok
	case provider.KindImage:
		_, ok := r.image[name]
		return ok
	case provider.KindSpeech:
		_, ok := r.speech[name]
		return ok
	case provider.KindVideo:
		_, ok := r.video[name]
		return ok
	}
	return false
}

// Names returns the sorted factory names registered for kind.
func (r *Registry) Names(kind provider.Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case provider.KindText:
		for n := range r.text {
			names = append(names, n)
		}
	case provider.KindImage:
		for n := range r.image {
			names = append(names, n)
		}
	case provider.KindSpeech:
		for n := range r.speech {
			names = append(names, n)
		}
	case provider.KindVideo:
		for n := range r.video {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
