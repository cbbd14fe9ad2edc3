package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/MrWong99/reelforge/internal/config"
	"github.com/MrWong99/reelforge/pkg/fault"
	"golang.org/x/sync/singleflight"
)

// AuthProvider supplies credentials for provider backends.
//
// Implementations must be safe for concurrent use. Credentials and Refresh
// return the secret to place into the provider entry's APIKey before its
// factory runs.
type AuthProvider interface {
	// Credentials resolves the current secret for entry. A missing secret
	// yields an error wrapping [fault.ErrConfigMissing] that names the
	// environment variable to set.
	Credentials(ctx context.Context, entry config.ProviderEntry) (string, error)

	// Refresh re-resolves the secret, bypassing any caching. Used after a
	// backend rejects the current credentials.
	Refresh(ctx context.Context, entry config.ProviderEntry) (string, error)
}

// EnvKeyAuth resolves static API keys from the environment with the config
// file as fallback. The environment wins so that secrets can stay out of
// checked-in configs.
//
// The variable name is derived from the provider name: "openai" reads
// OPENAI_API_KEY, "eleven-labs" reads ELEVEN_LABS_API_KEY.
type EnvKeyAuth struct {
	group singleflight.Group
}

// NewEnvKeyAuth returns a ready-to-use [EnvKeyAuth].
func NewEnvKeyAuth() *EnvKeyAuth {
	return &EnvKeyAuth{}
}

var _ AuthProvider = (*EnvKeyAuth)(nil)

// Credentials returns the environment key if set, otherwise the entry's
// api_key field.
func (a *EnvKeyAuth) Credentials(ctx context.Context, entry config.ProviderEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	envVar := KeyVar(entry.Name)
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	if entry.APIKey != "" {
		return entry.APIKey, nil
	}
	return "", fmt.Errorf("no credentials for %s provider %q: set %s or providers[].api_key: %w",
		entry.Kind, entry.Name, envVar, fault.ErrConfigMissing)
}

// Refresh re-reads the environment. Concurrent refreshes for the same entry
// are collapsed into one lookup.
func (a *EnvKeyAuth) Refresh(ctx context.Context, entry config.ProviderEntry) (string, error) {
	key := string(entry.Kind) + "/" + entry.Name
	v, err, _ := a.group.Do(key, func() (any, error) {
		return a.lookup(ctx, entry)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (a *EnvKeyAuth) lookup(ctx context.Context, entry config.ProviderEntry) (string, error) {
	return a.Credentials(ctx, entry)
}

// KeyVar returns the environment variable name holding the API key for the
// named provider.
func KeyVar(providerName string) string {
	name := strings.ToUpper(providerName)
	name = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(name)
	return name + "_API_KEY"
}
