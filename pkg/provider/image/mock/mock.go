// Package mock provides a configurable in-memory implementation of
// [image.Provider] for tests.
package mock

import (
	"context"
	"os"
	"sync"

	"github.com/MrWong99/reelforge/pkg/provider/image"
)

// pngStub is a minimal but well-formed 1x1 PNG so that artifacts written by
// the mock carry a recognizable magic header.
var pngStub = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// Provider is a mock implementation of [image.Provider].
//
// The zero value writes a stub PNG to every requested output path. Set the
// exported fields before use to steer behavior; do not mutate them while a
// call is in flight.
type Provider struct {
	mu sync.Mutex

	// GenerateFunc, when set, fully replaces the default Generate behavior.
	// The call is still recorded.
	GenerateFunc func(ctx context.Context, req image.Request) (*image.Response, error)

	// GenerateErr, when set, is returned by Generate after recording the
	// call. Wrap a pkg/fault sentinel to exercise fallback paths.
	GenerateErr error

	// Cost is returned by EstimateCost.
	Cost float64

	generateCalls []image.Request
}

var _ image.Provider = (*Provider)(nil)

// Generate records the call, then either delegates to GenerateFunc, returns
// GenerateErr, or writes a stub PNG to req.OutputPath.
func (p *Provider) Generate(ctx context.Context, req image.Request) (*image.Response, error) {
	p.mu.Lock()
	p.generateCalls = append(p.generateCalls, req)
	fn := p.GenerateFunc
	errOut := p.GenerateErr
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

	if req.OutputPath != "" {
		if err := os.WriteFile(req.OutputPath, pngStub, 0o644); err != nil {
			return nil, err
		}
	}

	w, h := req.Width, req.Height
	if w == 0 {
		w = 1080
	}
	if h == 0 {
		h = 1920
	}
	return &image.Response{
		ImagePath:    req.OutputPath,
		Width:        w,
		Height:       h,
		Provider:     "mock",
		CostEstimate: cost,
	}, nil
}

// EstimateCost returns the configured Cost.
func (p *Provider) EstimateCost(image.Request) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Cost
}

// Calls returns a copy of all recorded Generate requests.
func (p *Provider) Calls() []image.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]image.Request, len(p.generateCalls))
	copy(out, p.generateCalls)
	return out
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generateCalls = nil
}
