package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/reelforge/internal/config"
	"github.com/MrWong99/reelforge/internal/services"
	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/provider"
)

func TestKeyVar(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		want string
	}{
		{"openai", "OPENAI_API_KEY"},
		{"eleven-labs", "ELEVEN_LABS_API_KEY"},
		{"my.provider", "MY_PROVIDER_API_KEY"},
	}
	for _, tt := range tests {
		if got := services.KeyVar(tt.name); got != tt.want {
			t.Errorf("KeyVar(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestEnvKeyAuth_EnvironmentWins(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	a := services.NewEnvKeyAuth()
	entry := config.ProviderEntry{Name: "openai", Kind: provider.KindText, APIKey: "sk-from-config"}

	got, err := a.Credentials(context.Background(), entry)
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if got != "sk-from-env" {
		t.Errorf("Credentials() = %q, want the environment value", got)
	}
}

func TestEnvKeyAuth_ConfigFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	a := services.NewEnvKeyAuth()
	entry := config.ProviderEntry{Name: "openai", Kind: provider.KindText, APIKey: "sk-from-config"}

	got, err := a.Credentials(context.Background(), entry)
	if err != nil {
		t.Fatalf("Credentials() error = %v", err)
	}
	if got != "sk-from-config" {
		t.Errorf("Credentials() = %q, want the config value", got)
	}
}

func TestEnvKeyAuth_MissingNamesTheVariable(t *testing.T) {
	t.Setenv("RUNWAY_API_KEY", "")

	a := services.NewEnvKeyAuth()
	entry := config.ProviderEntry{Name: "runway", Kind: provider.KindVideo}

	_, err := a.Credentials(context.Background(), entry)
	if !errors.Is(err, fault.ErrConfigMissing) {
		t.Fatalf("Credentials() error = %v, want fault.ErrConfigMissing", err)
	}
	if !strings.Contains(err.Error(), "RUNWAY_API_KEY") {
		t.Errorf("error should name the variable to set, got: %v", err)
	}
}

func TestEnvKeyAuth_RefreshRereadsEnvironment(t *testing.T) {
	t.Setenv("PIKA_API_KEY", "first")

	a := services.NewEnvKeyAuth()
	entry := config.ProviderEntry{Name: "pika", Kind: provider.KindVideo}

	got, err := a.Refresh(context.Background(), entry)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got != "first" {
		t.Errorf("Refresh() = %q, want %q", got, "first")
	}

	t.Setenv("PIKA_API_KEY", "second")
	got, err = a.Refresh(context.Background(), entry)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got != "second" {
		t.Errorf("Refresh() after rotation = %q, want %q", got, "second")
	}
}
