// Package video defines the Provider interface for video-generation
// backends.
//
// Video generation is asynchronous on most services: a request enqueues a
// job and the artifact becomes available only after polling. The Provider
// interface exposes that model directly, and [WaitForCompletion] implements
// the shared polling loop so callers never hand-roll it.
package video

import "context"

// Provider is the abstraction over any video-generation backend.
//
// Implementations must be safe for concurrent use and must propagate
// context cancellation promptly. Backends that render synchronously may
// return an already-completed [Job] from Generate; callers must handle both
// shapes.
type Provider interface {
	// Generate submits req and returns the resulting job. The job may
	// already be in [StatusCompleted] for synchronous backends.
	//
	// Errors should wrap the matching pkg/fault sentinel so the fallback
	// orchestrator can classify them.
	Generate(ctx context.Context, req Request) (*Job, error)

	// CheckStatus fetches the current state of a previously submitted job.
	CheckStatus(ctx context.Context, jobID string) (*Job, error)

	// Capabilities reports what request shapes the backend accepts.
	// Fallback chains consult this before attempting a provider so that an
	// unsupported request skips ahead instead of failing.
	Capabilities() Capabilities

	// EstimateCost returns the advisory cost of req in USD.
	EstimateCost(req Request) float64
}
