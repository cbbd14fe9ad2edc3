package resilience

import (
	"context"

	"github.com/MrWong99/reelforge/pkg/provider/text"
)

// TextFallback implements [text.Provider] with automatic failover across
// multiple text backends. Each backend has its own circuit breaker; when the
// primary fails or its breaker is open, the next healthy fallback is tried.
type TextFallback struct {
	group *FallbackGroup[text.Provider]
}

// Compile-time interface assertion.
var _ text.Provider = (*TextFallback)(nil)

// NewTextFallback creates a [TextFallback] with primary as the preferred backend.
func NewTextFallback(primary text.Provider, primaryName string, cfg FallbackConfig) *TextFallback {
	return &TextFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional text provider as a fallback.
func (f *TextFallback) AddFallback(name string, provider text.Provider) {
	f.group.AddFallback(name, provider)
}

// Generate sends the request to the first healthy provider and returns its
// response, annotated with the name of the entry that served it. If the
// primary fails with a retryable error, subsequent fallbacks are tried.
// Since [text.GenerateStructured] and [text.Chat] are built on Generate,
// structured output and conversations inherit failover for free.
func (f *TextFallback) Generate(ctx context.Context, req text.Request) (*text.Response, error) {
	resp, name, err := ExecuteWithResultNamed(f.group, nil, func(p text.Provider) (*text.Response, error) {
		return p.Generate(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	resp.Provider = name
	return resp, nil
}

// EstimateCost returns the primary's estimate. Estimates are advisory and do
// not participate in failover.
func (f *TextFallback) EstimateCost(req text.Request) float64 {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.EstimateCost(req)
	}
	return 0
}
