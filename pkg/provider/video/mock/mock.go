// Package mock provides a configurable in-memory implementation of
// [video.Provider] for tests.
//
// Jobs progress through the asynchronous lifecycle: Generate returns a
// processing job and CheckStatus flips it to completed after a configurable
// number of polls, writing a stub MP4 artifact on completion. Setting
// CompleteAfterPolls to zero makes the provider synchronous.
package mock

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/MrWong99/reelforge/pkg/provider/video"
)

// mp4Stub is a minimal ftyp box so artifacts carry a recognizable header.
var mp4Stub = []byte{
	0x00, 0x00, 0x00, 0x14, 0x66, 0x74, 0x79, 0x70,
	0x69, 0x73, 0x6f, 0x6d, 0x00, 0x00, 0x00, 0x01,
	0x69, 0x73, 0x6f, 0x6d,
}

type jobState struct {
	req   video.Request
	polls int
}

// Provider is a mock implementation of [video.Provider].
//
// The zero value completes every job synchronously and supports both text
// and image conditioning. Set the exported fields before use to steer
// behavior; do not mutate them while a call is in flight.
type Provider struct {
	mu sync.Mutex

	// GenerateFunc, when set, fully replaces the default Generate behavior.
	// The call is still recorded.
	GenerateFunc func(ctx context.Context, req video.Request) (*video.Job, error)

	// GenerateErr, when set, is returned by Generate after recording the
	// call. Wrap a pkg/fault sentinel to exercise fallback paths.
	GenerateErr error

	// CheckStatusErr, when set, is returned by every CheckStatus call.
	CheckStatusErr error

	// CompleteAfterPolls is how many CheckStatus calls a job needs before
	// it completes. Zero means Generate returns an already-completed job.
	CompleteAfterPolls int

	// FailReason, when set, makes jobs fail with this reason instead of
	// completing.
	FailReason string

	// Caps overrides the advertised capabilities. Nil means text-to-video
	// and image-to-video with no duration limit.
	Caps *video.Capabilities

	// Cost is returned by EstimateCost.
	Cost float64

	nextID        int
	jobs          map[string]*jobState
	generateCalls []video.Request
}

var _ video.Provider = (*Provider)(nil)

// Generate records the call and submits a job. With CompleteAfterPolls of
// zero the job finishes inline, otherwise it starts processing.
func (p *Provider) Generate(ctx context.Context, req video.Request) (*video.Job, error) {
	p.mu.Lock()
	p.generateCalls = append(p.generateCalls, req)
	fn := p.GenerateFunc
	errOut := p.GenerateErr
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

	p.mu.Lock()
	p.nextID++
	id := fmt.Sprintf("mock-job-%d", p.nextID)
	inline := p.CompleteAfterPolls <= 0
	fail := p.FailReason
	cost := p.Cost
	if !inline {
		if p.jobs == nil {
			p.jobs = make(map[string]*jobState)
		}
		p.jobs[id] = &jobState{req: req}
	}
	p.mu.Unlock()

	if !inline {
		return &video.Job{ID: id, Status: video.StatusProcessing, Provider: "mock", CostEstimate: cost}, nil
	}
	if fail != "" {
		return &video.Job{ID: id, Status: video.StatusFailed, Reason: fail, Provider: "mock", CostEstimate: cost}, nil
	}
	if err := writeArtifact(req.OutputPath); err != nil {
		return nil, err
	}
	return &video.Job{ID: id, Status: video.StatusCompleted, VideoPath: req.OutputPath, Provider: "mock", CostEstimate: cost}, nil
}

// CheckStatus advances the job's poll count and reports its state.
func (p *Provider) CheckStatus(ctx context.Context, jobID string) (*video.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.CheckStatusErr != nil {
		err := p.CheckStatusErr
		p.mu.Unlock()
		return nil, err
	}
	st, ok := p.jobs[jobID]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("mock: unknown job %q", jobID)
	}
	st.polls++
	done := st.polls >= p.CompleteAfterPolls
	fail := p.FailReason
	cost := p.Cost
	req := st.req
	p.mu.Unlock()

	if !done {
		return &video.Job{ID: jobID, Status: video.StatusProcessing, Provider: "mock", CostEstimate: cost}, nil
	}
	if fail != "" {
		return &video.Job{ID: jobID, Status: video.StatusFailed, Reason: fail, Provider: "mock", CostEstimate: cost}, nil
	}
	if err := writeArtifact(req.OutputPath); err != nil {
		return nil, err
	}
	return &video.Job{ID: jobID, Status: video.StatusCompleted, VideoPath: req.OutputPath, Provider: "mock", CostEstimate: cost}, nil
}

// Capabilities returns Caps or a fully capable default.
func (p *Provider) Capabilities() video.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Caps != nil {
		return *p.Caps
	}
	return video.Capabilities{TextToVideo: true, ImageToVideo: true}
}

// EstimateCost returns the configured Cost.
func (p *Provider) EstimateCost(video.Request) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Cost
}

// Calls returns a copy of all recorded Generate requests.
func (p *Provider) Calls() []video.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]video.Request, len(p.generateCalls))
	copy(out, p.generateCalls)
	return out
}

// Reset clears recorded calls and forgets all jobs.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generateCalls = nil
	p.jobs = nil
	p.nextID = 0
}

func writeArtifact(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, mp4Stub, 0o644)
}
