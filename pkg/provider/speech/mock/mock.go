// Package mock provides a configurable in-memory implementation of
// [speech.Provider] for tests.
//
// Unlike a stub that only returns canned structs, the mock writes a real WAV
// artifact to the requested output path so downstream stages can measure
// durations from actual files. The artifact length defaults to the word
// count divided by 2.5 words per second, mirroring how the duration gate
// estimates speech.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/MrWong99/reelforge/pkg/media"
	"github.com/MrWong99/reelforge/pkg/provider/speech"
)

// Provider is a mock implementation of [speech.Provider].
//
// The zero value is usable: it synthesizes silence at 44.1 kHz mono with a
// duration derived from the request text. Set the exported fields before use
// to steer behavior; do not mutate them while a call is in flight.
type Provider struct {
	mu sync.Mutex

	// SynthesizeFunc, when set, fully replaces the default Synthesize
	// behavior. The call is still recorded.
	SynthesizeFunc func(ctx context.Context, req speech.Request) (*speech.Response, error)

	// SynthesizeErr, when set, is returned by Synthesize after recording
	// the call.
	SynthesizeErr error

	// DurationFunc, when set, overrides the artifact duration in seconds
	// for a given request. Useful for duration-gate tests that need
	// too-short or too-long audio.
	DurationFunc func(req speech.Request) float64

	// WordsPerSecond controls the default duration estimate. Zero means 2.5.
	WordsPerSecond float64

	// SampleRate is the artifact sample rate. Zero means 44100.
	SampleRate int

	// VoiceList is returned by Voices. Nil yields a single English default.
	VoiceList []speech.Voice

	// VoicesErr, when set, is returned by Voices.
	VoicesErr error

	// Cost is returned by EstimateCost.
	Cost float64

	synthesizeCalls []speech.Request
}

var _ speech.Provider = (*Provider)(nil)

// Synthesize records the call, then either delegates to SynthesizeFunc,
// returns SynthesizeErr, or writes a silent WAV of the derived duration to
// req.OutputPath.
func (p *Provider) Synthesize(ctx context.Context, req speech.Request) (*speech.Response, error) {
	p.mu.Lock()
	p.synthesizeCalls = append(p.synthesizeCalls, req)
	fn := p.SynthesizeFunc
	errOut := p.SynthesizeErr
	durFn := p.DurationFunc
	wps := p.WordsPerSecond
	rate := p.SampleRate
	cost := p.Cost
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if errOut != nil {
		return nil, errOut
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if wps <= 0 {
		wps = 2.5
	}
	if rate <= 0 {
		rate = 44100
	}

	dur := float64(len(strings.Fields(req.Text))) / wps
	if req.Rate > 0 {
		dur /= req.Rate
	}
	if durFn != nil {
		dur = durFn(req)
	}
	if dur < 0.1 {
		dur = 0.1
	}

	if req.OutputPath != "" {
		pcm := media.Silence(dur, rate, 1)
		if err := media.WriteWAV(req.OutputPath, pcm, rate, 1); err != nil {
			return nil, err
		}
	}

	return &speech.Response{
		AudioPath:    req.OutputPath,
		Duration:     dur,
		SampleRate:   rate,
		Channels:     1,
		Provider:     "mock",
		CostEstimate: cost,
	}, nil
}

// Voices returns VoicesErr or VoiceList, falling back to one default voice.
func (p *Provider) Voices(ctx context.Context) ([]speech.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.VoicesErr != nil {
		return nil, p.VoicesErr
	}
	if p.VoiceList != nil {
		out := make([]speech.Voice, len(p.VoiceList))
		copy(out, p.VoiceList)
		return out, nil
	}
	return []speech.Voice{{
		ID:       "mock-default",
		Name:     "Mock Default",
		Language: "en-US",
		Gender:   "neutral",
		Provider: "mock",
	}}, nil
}

// EstimateCost returns the configured Cost.
func (p *Provider) EstimateCost(speech.Request) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Cost
}

// Calls returns a copy of all recorded Synthesize requests.
func (p *Provider) Calls() []speech.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]speech.Request, len(p.synthesizeCalls))
	copy(out, p.synthesizeCalls)
	return out
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthesizeCalls = nil
}
