// Package image defines the Provider interface for image-generation
// backends.
package image

import "context"

// Provider is the abstraction over any image-generation backend.
//
// Implementations must be safe for concurrent use and must propagate
// context cancellation promptly. Errors should wrap the matching pkg/fault
// sentinel; policy refusals in particular must wrap
// [github.com/MrWong99/reelforge/pkg/fault.ErrPolicyBlocked] so the fallback
// orchestrator can distinguish them from outages.
type Provider interface {
	// Generate renders req.Prompt as an image, writes the artifact to
	// req.OutputPath, and returns the result.
	Generate(ctx context.Context, req Request) (*Response, error)

	// EstimateCost returns the advisory cost of req in USD.
	EstimateCost(req Request) float64
}

// Request describes one image-generation job.
type Request struct {
	// Prompt is the scene description. Must be non-empty.
	Prompt string

	// NegativePrompt lists content to avoid. Optional.
	NegativePrompt string

	// Width and Height are the requested pixel dimensions. Zero means the
	// provider's default, typically a 9:16 portrait frame for short video.
	Width  int
	Height int

	// Style is a free-form style hint such as "cinematic" or "cartoon".
	Style string

	// Seed makes generation reproducible where the backend supports it.
	// Zero means random.
	Seed int64

	// OutputPath is where the provider writes the artifact. The parent
	// directory must already exist.
	OutputPath string
}

// Response reports a completed generation.
type Response struct {
	// ImagePath is the artifact location, normally equal to the request's
	// OutputPath.
	ImagePath string

	// Width and Height are the actual pixel dimensions of the artifact.
	Width  int
	Height int

	// Provider identifies which backend produced the image.
	Provider string

	// CostEstimate is the advisory cost of the call in USD.
	CostEstimate float64
}
