package resilience

import (
	"context"

	"github.com/MrWong99/reelforge/pkg/provider/image"
)

// ImageFallback implements [image.Provider] with automatic failover across
// multiple image backends. Policy refusals move to the next backend without
// tripping circuit breakers; if every backend refuses a prompt the chain
// reports [ErrAllRefused] so the pipeline can surface a content failure
// rather than an outage.
type ImageFallback struct {
	group *FallbackGroup[image.Provider]
}

// Compile-time interface assertion.
var _ image.Provider = (*ImageFallback)(nil)

// NewImageFallback creates an [ImageFallback] with primary as the preferred backend.
func NewImageFallback(primary image.Provider, primaryName string, cfg FallbackConfig) *ImageFallback {
	return &ImageFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional image provider as a fallback.
func (f *ImageFallback) AddFallback(name string, provider image.Provider) {
	f.group.AddFallback(name, provider)
}

// Generate sends the request to the first healthy provider and returns its
// response, annotated with the name of the entry that served it. If the
// primary fails with a retryable error, subsequent fallbacks are tried.
func (f *ImageFallback) Generate(ctx context.Context, req image.Request) (*image.Response, error) {
	resp, name, err := ExecuteWithResultNamed(f.group, nil, func(p image.Provider) (*image.Response, error) {
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
func (f *ImageFallback) EstimateCost(req image.Request) float64 {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.EstimateCost(req)
	}
	return 0
}
