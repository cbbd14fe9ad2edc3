// Package mock provides a test double for the text.Provider interface.
//
// Use Provider in unit tests to feed controlled responses without a live
// backend. Static response fields cover the common case; set GenerateFunc to
// script per-call behaviour (e.g. fail once, then succeed).
//
// Example:
//
//	p := &mock.Provider{
//	    GenerateResponse: &text.Response{Text: "Hello!", Provider: "mock"},
//	}
//	resp, err := p.Generate(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/reelforge/pkg/provider/text"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Req is the Request passed to Generate.
	Req text.Request
}

// Provider is a mock implementation of text.Provider.
// Zero values for response fields cause methods to return zero values and nil
// errors. Set Err fields to inject errors.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// GenerateFunc, when non-nil, takes full control of Generate. The static
	// fields below are ignored while it is set.
	GenerateFunc func(ctx context.Context, req text.Request) (*text.Response, error)

	// GenerateResponse is returned by Generate. May be nil (returns nil, nil).
	GenerateResponse *text.Response

	// GenerateErr, if non-nil, is returned as the error from Generate.
	GenerateErr error

	// Cost is returned by EstimateCost.
	Cost float64

	// --- Call records (read after test) ---

	// GenerateCalls records every invocation of Generate in order.
	GenerateCalls []GenerateCall
}

// Generate records the call and returns the scripted response.
func (p *Provider) Generate(ctx context.Context, req text.Request) (*text.Response, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Req: req})
	fn := p.GenerateFunc
	resp, err := p.GenerateResponse, p.GenerateErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return resp, err
}

// EstimateCost returns the configured Cost.
func (p *Provider) EstimateCost(text.Request) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Cost
}

// Calls returns a copy of the recorded Generate invocations. Thread-safe.
func (p *Provider) Calls() []GenerateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	calls := make([]GenerateCall, len(p.GenerateCalls))
	copy(calls, p.GenerateCalls)
	return calls
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
}

// Ensure Provider implements text.Provider at compile time.
var _ text.Provider = (*Provider)(nil)
