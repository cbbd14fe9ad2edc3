// Package fault defines the error taxonomy shared by every pipeline stage and
// provider implementation.
//
// Each failure kind is a plain sentinel value. Call sites wrap a sentinel with
// fmt.Errorf("%w: ...") and classify with errors.Is, so an error can travel
// through any number of wrapping layers without losing its kind:
//
//	return fmt.Errorf("%w: speech synthesis timed out after %s", fault.ErrTransient, d)
//
//	if fault.Retryable(err) { /* try the next provider */ }
//
// The taxonomy is deliberately small. Anything not matching a sentinel is
// treated as fatal by the fallback orchestrator and the pipeline driver.
package fault

import (
	"context"
	"errors"
)

// Sentinel errors, one per failure kind.
var (
	// ErrConfigMissing indicates a required configuration value or credential
	// is absent. Fatal; retrying cannot help.
	ErrConfigMissing = errors.New("required configuration missing")

	// ErrNoProvider indicates no provider is registered for the requested
	// kind and name. Fatal.
	ErrNoProvider = errors.New("no provider registered")

	// ErrTransient indicates a failure that may succeed on another provider
	// or a later attempt: timeouts, rate limits, 5xx responses, network
	// errors.
	ErrTransient = errors.New("transient provider failure")

	// ErrInvalidRequest indicates malformed or out-of-capability input.
	// Fatal for the operation; fallback chains short-circuit on it.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrPolicyBlocked indicates the provider refused the content. The
	// orchestrator moves to the next provider; if every provider refuses,
	// the chain reports all-refused.
	ErrPolicyBlocked = errors.New("content blocked by provider policy")

	// ErrSchemaMismatch indicates a structured response did not parse against
	// the requested JSON schema.
	ErrSchemaMismatch = errors.New("structured response did not match schema")

	// ErrDurationMismatch indicates produced audio falls outside the target
	// duration tolerance. Recoverable by regenerating the script and speech.
	ErrDurationMismatch = errors.New("audio duration outside tolerance")

	// ErrSyncFailure indicates no sync plan could be built. Non-fatal; the
	// driver falls back to an even clip distribution.
	ErrSyncFailure = errors.New("sync plan could not be built")

	// ErrAssetCorrupt indicates an artifact is missing or unreadable on disk.
	// Fatal for the session.
	ErrAssetCorrupt = errors.New("artifact missing or unreadable")
)

// Retryable reports whether err may be resolved by moving laterally to the
// next provider in a fallback chain. Transient failures and policy refusals
// are retryable; context deadline expiry counts as transient. Everything else
// short-circuits the chain.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrPolicyBlocked) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Kind returns a short machine-readable label for the taxonomy kind of err,
// e.g. "policy" or "transient". Unmatched errors yield "unknown". The label
// feeds session failure reasons ("image:policy") and metric attributes.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfigMissing):
		return "config"
	case errors.Is(err, ErrNoProvider):
		return "no-provider"
	case errors.Is(err, ErrPolicyBlocked):
		return "policy"
	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return "transient"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid-request"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema"
	case errors.Is(err, ErrDurationMismatch):
		return "duration"
	case errors.Is(err, ErrSyncFailure):
		return "sync"
	case errors.Is(err, ErrAssetCorrupt):
		return "asset"
	default:
		return "unknown"
	}
}
