// Package observe provides application-wide observability primitives for
// Reelforge: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Reelforge metrics.
const meterName = "github.com/MrWong99/reelforge"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ParseDuration tracks mission-parsing latency.
	ParseDuration metric.Float64Histogram

	// ScriptDuration tracks script-processing latency.
	ScriptDuration metric.Float64Histogram

	// SpeechDuration tracks speech-synthesis latency across a whole fan-out.
	SpeechDuration metric.Float64Histogram

	// ImageDuration tracks image-generation latency across a whole fan-out.
	ImageDuration metric.Float64Histogram

	// GateDuration tracks duration-gate analysis latency.
	GateDuration metric.Float64Histogram

	// VideoDuration tracks video-generation latency from submission to the
	// last completed clip, polling included.
	VideoDuration metric.Float64Histogram

	// SyncDuration tracks sync-planning latency.
	SyncDuration metric.Float64Histogram

	// ComposeDuration tracks composition (render/mux) latency.
	ComposeDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// Sessions counts finished pipeline sessions. Use with attribute:
	//   attribute.String("status", ...)
	Sessions metric.Int64Counter

	// Regenerations counts duration-gate retries that re-invoked script
	// processing with a narrowed word budget.
	Regenerations metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of pipeline sessions in flight.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The upper
// range is wide because video rendering jobs run for minutes, not
// milliseconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	stageHistograms := []struct {
		field *metric.Float64Histogram
		name  string
		desc  string
	}{
		{&met.ParseDuration, "reelforge.parse.duration", "Latency of mission parsing."},
		{&met.ScriptDuration, "reelforge.script.duration", "Latency of script processing."},
		{&met.SpeechDuration, "reelforge.speech.duration", "Latency of speech synthesis fan-out."},
		{&met.ImageDuration, "reelforge.image.duration", "Latency of image generation fan-out."},
		{&met.GateDuration, "reelforge.gate.duration", "Latency of duration-gate analysis."},
		{&met.VideoDuration, "reelforge.video.duration", "Latency of video generation including polling."},
		{&met.SyncDuration, "reelforge.sync.duration", "Latency of sync planning."},
		{&met.ComposeDuration, "reelforge.compose.duration", "Latency of final composition."},
	}
	for _, h := range stageHistograms {
		if *h.field, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("reelforge.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.Sessions, err = m.Int64Counter("reelforge.sessions",
		metric.WithDescription("Total finished pipeline sessions by status."),
	); err != nil {
		return nil, err
	}
	if met.Regenerations, err = m.Int64Counter("reelforge.regenerations",
		metric.WithDescription("Total duration-gate retries with a narrowed word budget."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("reelforge.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("reelforge.active_sessions",
		metric.WithDescription("Number of pipeline sessions in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("reelforge.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// StageHistogram maps a pipeline stage name to its latency histogram.
// Returns nil for unknown stages so callers can guard the Record call.
func (m *Metrics) StageHistogram(stage string) metric.Float64Histogram {
	switch stage {
	case "mission-parsing":
		return m.ParseDuration
	case "script-processing":
		return m.ScriptDuration
	case "speech-synthesis":
		return m.SpeechDuration
	case "image-generation":
		return m.ImageDuration
	case "duration-gate":
		return m.GateDuration
	case "video-generation":
		return m.VideoDuration
	case "sync-planning":
		return m.SyncDuration
	case "composition":
		return m.ComposeDuration
	default:
		return nil
	}
}

// RecordStage records a stage latency in seconds on the histogram matching
// the stage name. Unknown stages are dropped silently.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	if h := m.StageHistogram(stage); h != nil {
		h.Record(ctx, seconds)
	}
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordSession is a convenience method that records a finished session
// counter increment.
func (m *Metrics) RecordSession(ctx context.Context, status string) {
	m.Sessions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
