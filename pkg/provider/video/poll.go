package video

import (
	"context"
	"time"
)

// DefaultPollInterval is how often [WaitForCompletion] checks job status
// when the caller passes a non-positive interval.
const DefaultPollInterval = 5 * time.Second

// DefaultTimeout bounds a polling loop when the caller passes a
// non-positive timeout.
const DefaultTimeout = 5 * time.Minute

// WaitForCompletion polls p until the job leaves [StatusProcessing] or the
// timeout elapses. The job is checked once immediately and then every
// interval.
//
// When the deadline passes while the backend still reports processing, the
// job is returned in [StatusFailed] with Reason [ReasonTimeout] and a nil
// error; a stuck render is a job outcome, not a polling malfunction. Errors
// from CheckStatus and context cancellation propagate to the caller.
func WaitForCompletion(ctx context.Context, p Provider, jobID string, interval, timeout time.Duration) (*Job, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := p.CheckStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status != StatusProcessing {
			return job, nil
		}
		if !time.Now().Before(deadline) {
			return &Job{
				ID:       jobID,
				Status:   StatusFailed,
				Reason:   ReasonTimeout,
				Provider: job.Provider,
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
