package resilience

import (
	"context"

	"github.com/MrWong99/reelforge/pkg/provider/speech"
)

// SpeechFallback implements [speech.Provider] with automatic failover across
// multiple speech-synthesis backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// fallback is tried.
//
// Voice identifiers are provider-specific, so callers that pin a VoiceID
// should resolve it per backend (see internal/voicematch) before relying on
// failover. A fallback that does not know the requested voice will reject
// the request with an invalid-request error, which short-circuits the chain.
type SpeechFallback struct {
	group *FallbackGroup[speech.Provider]
}

// Compile-time interface assertion.
var _ speech.Provider = (*SpeechFallback)(nil)

// NewSpeechFallback creates a [SpeechFallback] with primary as the preferred backend.
func NewSpeechFallback(primary speech.Provider, primaryName string, cfg FallbackConfig) *SpeechFallback {
	return &SpeechFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional speech provider as a fallback.
func (f *SpeechFallback) AddFallback(name string, provider speech.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize sends the request to the first healthy provider and returns its
// response. If the primary fails with a retryable error, subsequent fallbacks
// are tried. The response's Provider field is set to the chain entry that
// served, so callers see which backend produced the audio after failover.
func (f *SpeechFallback) Synthesize(ctx context.Context, req speech.Request) (*speech.Response, error) {
	resp, name, err := ExecuteWithResultNamed(f.group, nil, func(p speech.Provider) (*speech.Response, error) {
		return p.Synthesize(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	resp.Provider = name
	return resp, nil
}

// Voices returns the voice catalog of the first healthy provider. The
// catalogs of different backends are not merged because their voice IDs are
// not interchangeable.
func (f *SpeechFallback) Voices(ctx context.Context) ([]speech.Voice, error) {
	return ExecuteWithResult(f.group, func(p speech.Provider) ([]speech.Voice, error) {
		return p.Voices(ctx)
	})
}

// EstimateCost returns the primary's estimate. Estimates are advisory and do
// not participate in failover.
func (f *SpeechFallback) EstimateCost(req speech.Request) float64 {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.EstimateCost(req)
	}
	return 0
}
