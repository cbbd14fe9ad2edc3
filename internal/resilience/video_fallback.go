package resilience

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/reelforge/pkg/fault"
	"github.com/MrWong99/reelforge/pkg/provider/video"
)

// VideoFallback implements [video.Provider] with automatic failover across
// multiple video backends. On top of the usual health-based failover it
// filters by capability: a backend that cannot animate a conditioning image
// is skipped for image-to-video requests instead of being burned as a
// failure.
//
// Video generation is asynchronous, so the fallback remembers which backend
// accepted each job and routes CheckStatus calls back to it. The job map is
// unbounded in principle but entries are removed once a job leaves the
// processing state; a pipeline session holds at most a handful of in-flight
// renders.
type VideoFallback struct {
	group *FallbackGroup[video.Provider]

	mu   sync.Mutex
	jobs map[string]video.Provider
}

// Compile-time interface assertion.
var _ video.Provider = (*VideoFallback)(nil)

// NewVideoFallback creates a [VideoFallback] with primary as the preferred backend.
func NewVideoFallback(primary video.Provider, primaryName string, cfg FallbackConfig) *VideoFallback {
	return &VideoFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
		jobs:  make(map[string]video.Provider),
	}
}

// AddFallback registers an additional video provider as a fallback.
func (f *VideoFallback) AddFallback(name string, provider video.Provider) {
	f.group.AddFallback(name, provider)
}

// Generate submits the request to the first healthy backend whose
// capabilities cover it. Backends that cannot serve the request shape are
// skipped without penalty; if no backend in the chain supports it the error
// wraps [fault.ErrNoProvider].
//
// The accepted job is recorded so later CheckStatus calls reach the backend
// that owns it.
func (f *VideoFallback) Generate(ctx context.Context, req video.Request) (*video.Job, error) {
	skip := func(p video.Provider) bool {
		return !p.Capabilities().Supports(req)
	}
	var owner video.Provider
	job, name, err := ExecuteWithResultNamed(f.group, skip, func(p video.Provider) (*video.Job, error) {
		j, genErr := p.Generate(ctx, req)
		if genErr == nil {
			owner = p
		}
		return j, genErr
	})
	if err != nil {
		return nil, err
	}
	job.Provider = name
	if job.Status == video.StatusProcessing {
		f.mu.Lock()
		f.jobs[job.ID] = owner
		f.mu.Unlock()
	}
	return job, nil
}

// CheckStatus polls the backend that accepted jobID. Jobs this chain did not
// create (or that already finished) yield an invalid-request error; status
// checks never fail over because only the owning backend knows the job.
func (f *VideoFallback) CheckStatus(ctx context.Context, jobID string) (*video.Job, error) {
	f.mu.Lock()
	owner, ok := f.jobs[jobID]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown video job %q", fault.ErrInvalidRequest, jobID)
	}

	job, err := owner.CheckStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != video.StatusProcessing {
		f.mu.Lock()
		delete(f.jobs, jobID)
		f.mu.Unlock()
	}
	return job, nil
}

// Capabilities returns the union across all backends: the chain can serve a
// request if at least one entry can, and the advertised maximum duration is
// the largest any entry offers.
func (f *VideoFallback) Capabilities() video.Capabilities {
	var caps video.Capabilities
	for i := range f.group.entries {
		c := f.group.entries[i].value.Capabilities()
		caps.TextToVideo = caps.TextToVideo || c.TextToVideo
		caps.ImageToVideo = caps.ImageToVideo || c.ImageToVideo
		if c.MaxDuration > caps.MaxDuration {
			caps.MaxDuration = c.MaxDuration
		}
	}
	return caps
}

// EstimateCost returns the primary's estimate. Estimates are advisory and do
// not participate in failover.
func (f *VideoFallback) EstimateCost(req video.Request) float64 {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.EstimateCost(req)
	}
	return 0
}
