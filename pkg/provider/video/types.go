package video

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	// StatusProcessing means the backend accepted the job and is rendering.
	StatusProcessing JobStatus = "processing"

	// StatusCompleted means the artifact is ready at Job.VideoPath.
	StatusCompleted JobStatus = "completed"

	// StatusFailed means the backend gave up; Job.Reason explains why.
	StatusFailed JobStatus = "failed"
)

// ReasonTimeout is the Job.Reason set when polling exhausts its deadline
// while the backend still reports processing.
const ReasonTimeout = "timeout"

// Request describes one video-generation job.
type Request struct {
	// Prompt is the motion and scene description. Must be non-empty.
	Prompt string

	// ImagePath optionally conditions generation on a still frame
	// (image-to-video). Providers without that capability reject or skip
	// such requests, see [Capabilities].
	ImagePath string

	// Duration is the requested clip length in seconds.
	Duration float64

	// Width, Height, and FPS describe the requested output format. Zero
	// means the provider's default.
	Width  int
	Height int
	FPS    int

	// Seed makes generation reproducible where the backend supports it.
	// Zero means random.
	Seed int64

	// OutputPath is where the artifact lands once the job completes. The
	// parent directory must already exist.
	OutputPath string
}

// Job is the backend's view of one submitted request.
type Job struct {
	// ID is the backend-scoped job identifier used with CheckStatus.
	ID string

	// Status is the current lifecycle state.
	Status JobStatus

	// VideoPath is the artifact location. Set only once Status is
	// [StatusCompleted].
	VideoPath string

	// Reason explains a failure. Set only once Status is [StatusFailed].
	Reason string

	// Provider identifies which backend owns the job.
	Provider string

	// CostEstimate is the advisory cost of the job in USD.
	CostEstimate float64
}

// Capabilities reports the request shapes a backend accepts.
type Capabilities struct {
	// TextToVideo means the backend accepts prompts without a
	// conditioning image.
	TextToVideo bool

	// ImageToVideo means the backend accepts a conditioning image.
	ImageToVideo bool

	// MaxDuration is the longest clip the backend renders, in seconds.
	// Zero means no advertised limit.
	MaxDuration float64
}

// Supports reports whether req fits within the capability set. Fallback
// chains use this to skip providers that cannot serve a request at all,
// which is not a failure.
func (c Capabilities) Supports(req Request) bool {
	if req.ImagePath != "" && !c.ImageToVideo {
		return false
	}
	if req.ImagePath == "" && !c.TextToVideo {
		return false
	}
	if c.MaxDuration > 0 && req.Duration > c.MaxDuration {
		return false
	}
	return true
}
