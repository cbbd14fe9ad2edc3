// Package text defines the Provider interface for text-generation backends.
//
// A text provider wraps a remote or local language model API and exposes a
// uniform request/response contract so the pipeline can write scripts, parse
// missions, and validate content without coupling to any specific SDK.
//
// Two higher-level operations are provided as package functions rather than
// interface methods, so every backend gets them for free:
//
//   - [GenerateStructured]: schema-validated JSON output with one stricter
//     re-ask on mismatch.
//   - [Chat]: multi-message conversations flattened into a single prompt
//     with role prefixes.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package text

import "context"

// Provider is the abstraction over any text-generation backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
// Every returned [Response] must carry the provider's identifier in its
// Provider field so fallback chains can report which backend served a
// request.
type Provider interface {
	// Generate sends req to the model and waits for the full response.
	//
	// Returns an error if the request fails or ctx is cancelled before the
	// response arrives. Errors should wrap the matching pkg/fault sentinel
	// so the fallback orchestrator can classify them.
	Generate(ctx context.Context, req Request) (*Response, error)

	// EstimateCost returns the advisory cost of req in USD. Estimates are
	// informational; the orchestrator never gates on them.
	EstimateCost(req Request) float64
}
