package config

import (
	"reflect"
	"slices"

	"github.com/MrWong99/reelforge/pkg/provider"
)

// ConfigDiff describes what changed between two configs. Hot-reloadable
// fields are tracked in detail; ServerChanged flags settings that need a
// process restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DefaultsChanged lists kinds whose primary provider or fallback chain
	// changed. Fallback orchestrators for these kinds must be rebuilt.
	DefaultsChanged []provider.Kind

	// ProvidersChanged is true if any provider entry was added, removed,
	// or modified. Cached handles for the named providers are stale.
	ProvidersChanged bool
	ProviderChanges  []ProviderDiff

	// PipelineChanged is true if any pipeline knob changed. New runs pick
	// the values up; in-flight runs keep the old ones.
	PipelineChanged bool

	// ServerChanged is true if the ops listener address changed, which
	// only takes effect after a restart.
	ServerChanged bool
}

// Empty reports whether the diff records no changes at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged &&
		len(d.DefaultsChanged) == 0 &&
		!d.ProvidersChanged &&
		!d.PipelineChanged &&
		!d.ServerChanged
}

// ProviderDiff describes what changed for a single provider entry.
type ProviderDiff struct {
	Kind     provider.Kind
	Name     string
	Added    bool
	Removed  bool
	Modified bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.OpsListen != new.Server.OpsListen {
		d.ServerChanged = true
	}

	for _, kind := range provider.Kinds() {
		od := old.Defaults.ForKind(kind)
		nd := new.Defaults.ForKind(kind)
		if od.Provider != nd.Provider || !slices.Equal(od.FallbackChain, nd.FallbackChain) {
			d.DefaultsChanged = append(d.DefaultsChanged, kind)
		}
	}

	oldEntries := entryMap(old.Providers)
	newEntries := entryMap(new.Providers)

	for key, oldEntry := range oldEntries {
		newEntry, exists := newEntries[key]
		if !exists {
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Kind: key.kind, Name: key.name, Removed: true})
			d.ProvidersChanged = true
			continue
		}
		if !entryEqual(oldEntry, newEntry) {
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Kind: key.kind, Name: key.name, Modified: true})
			d.ProvidersChanged = true
		}
	}
	for key := range newEntries {
		if _, exists := oldEntries[key]; !exists {
			d.ProviderChanges = append(d.ProviderChanges, ProviderDiff{Kind: key.kind, Name: key.name, Added: true})
			d.ProvidersChanged = true
		}
	}

	if old.Pipeline != new.Pipeline {
		d.PipelineChanged = true
	}

	return d
}

type entryKey struct {
	kind provider.Kind
	name string
}

func entryMap(entries []ProviderEntry) map[entryKey]*ProviderEntry {
	m := make(map[entryKey]*ProviderEntry, len(entries))
	for i := range entries {
		m[entryKey{entries[i].Kind, entries[i].Name}] = &entries[i]
	}
	return m
}

// entryEqual compares two entries for the same (kind, name) pair.
func entryEqual(a, b *ProviderEntry) bool {
	return a.APIKey == b.APIKey &&
		a.BaseURL == b.BaseURL &&
		a.Model == b.Model &&
		a.Timeout == b.Timeout &&
		a.MaxRetries == b.MaxRetries &&
		a.RateLimit == b.RateLimit &&
		reflect.DeepEqual(a.Options, b.Options)
}
