package resilience

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/reelforge/pkg/fault"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// an open circuit breaker. It wraps the last error seen.
var ErrAllFailed = errors.New("all providers failed")

// ErrAllRefused is returned when every attempted entry refused the request on
// policy grounds. It wraps [fault.ErrPolicyBlocked] so callers can classify
// the whole chain outcome as a refusal rather than an outage.
var ErrAllRefused = fmt.Errorf("all providers refused the request: %w", fault.ErrPolicyBlocked)

// FallbackConfig configures the per-entry circuit breaker created for each
// provider in a [FallbackGroup].
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// fallbackEntry pairs a provider value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the
// same provider type. When the primary fails with a retryable error (or its
// circuit breaker is open), the next healthy fallback is tried in
// registration order. Non-retryable errors short-circuit the chain: a bad
// request fails the same way everywhere, so burning the remaining providers
// on it only wastes quota.
//
// FallbackGroup is safe for concurrent use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
// Additional fallbacks are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.entries = append(fg.entries, fg.newEntry(primaryName, primary))
	return fg
}

// AddFallback appends a fallback provider. Fallbacks are tried in the order
// they are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.entries = append(fg.entries, fg.newEntry(name, fallback))
}

func (fg *FallbackGroup[T]) newEntry(name string, value T) fallbackEntry[T] {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	if cbCfg.IsFailure == nil {
		// Refusals are policy outcomes, not provider health failures.
		cbCfg.IsFailure = func(err error) bool {
			return !errors.Is(err, fault.ErrPolicyBlocked)
		}
	}
	return fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	}
}

// Names returns the entry names in chain order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Execute tries fn against each entry in order until one succeeds.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in the group until one
// succeeds, returning both the result value and error. This is a
// package-level function because Go does not support method-level type
// parameters.
//
// Chain semantics:
//   - circuit-open entries are skipped
//   - retryable errors (transient, policy, deadline) move to the next entry
//   - any other error short-circuits and propagates unchanged
//   - [ErrAllRefused] when every attempted entry was policy-blocked
//   - [ErrAllFailed] wrapping the last error otherwise
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	r, _, err := ExecuteWithResultNamed(fg, nil, fn)
	return r, err
}

// ExecuteWithResultFiltered is [ExecuteWithResult] with a skip predicate.
// Entries for which skip returns true are passed over without counting as
// failures; a video backend that cannot animate a conditioning image, for
// example, is unsuitable rather than unhealthy. If the filter rejects every
// entry the error wraps [fault.ErrNoProvider].
func ExecuteWithResultFiltered[T any, R any](fg *FallbackGroup[T], skip func(T) bool, fn func(T) (R, error)) (R, error) {
	r, _, err := ExecuteWithResultNamed(fg, skip, fn)
	return r, err
}

// ExecuteWithResultNamed is [ExecuteWithResultFiltered] returning also the
// name of the entry that served the request, so callers can annotate their
// responses with the provider actually used after failover.
func ExecuteWithResultNamed[T any, R any](fg *FallbackGroup[T], skip func(T) bool, fn func(T) (R, error)) (R, string, error) {
	var (
		zero      R
		lastErr   error
		attempted int
		refused   int
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		if skip != nil && skip(entry.value) {
			slog.Debug("skipping provider (request unsupported)", "provider", entry.name)
			continue
		}

		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, entry.name, nil
		}
		lastErr = err

		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
			continue
		}
		attempted++

		switch {
		case errors.Is(err, fault.ErrPolicyBlocked):
			refused++
			slog.Info("provider refused request, trying next",
				"provider", entry.name, "error", err)
		case fault.Retryable(err):
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		default:
			return zero, "", err
		}
	}

	if lastErr == nil {
		return zero, "", fmt.Errorf("no provider in chain supports this request: %w", fault.ErrNoProvider)
	}
	if attempted > 0 && refused == attempted {
		return zero, "", fmt.Errorf("%w: %w", ErrAllRefused, lastErr)
	}
	// Wrap rather than flatten: callers inspect the last provider error to
	// label the failure ("image:policy", "speech:transient").
	return zero, "", fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
