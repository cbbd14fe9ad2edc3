// Package speech defines the Provider interface for speech-synthesis
// backends.
//
// A speech provider turns one script segment into one audio artifact on
// disk. The pipeline fans synthesis out across segments, so implementations
// must be safe for concurrent use; each request carries its own output path
// and no two concurrent requests share one.
package speech

import "context"

// Provider is the abstraction over any speech-synthesis backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must propagate context cancellation promptly. Every returned [Response]
// carries the provider's identifier.
type Provider interface {
	// Synthesize renders req.Text as speech, writes the artifact to
	// req.OutputPath in req.OutputFormat, and returns the measured result.
	//
	// Errors should wrap the matching pkg/fault sentinel so the fallback
	// orchestrator can classify them.
	Synthesize(ctx context.Context, req Request) (*Response, error)

	// Voices returns the provider's current voice catalogue. The list may
	// change between calls if the underlying service adds or removes voices.
	Voices(ctx context.Context) ([]Voice, error)

	// EstimateCost returns the advisory cost of req in USD.
	EstimateCost(req Request) float64
}
