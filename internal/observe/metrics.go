// Package observe provides application-wide observability primitives for
// Lectio: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware for the metrics endpoint.
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

// meterName is the instrumentation scope name used for all Lectio metrics.
const meterName = "github.com/lectio/lectio"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SegmentationDuration tracks how long splitting a recording into
	// upload-sized pieces takes.
	SegmentationDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency per request.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM completion latency per request.
	LLMDuration metric.Float64Histogram

	// PipelineDuration tracks end-to-end processing time for one recording.
	PipelineDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// SegmentsTranscribed counts audio segments sent for transcription.
	// Use with attribute: attribute.String("status", ...)
	SegmentsTranscribed metric.Int64Counter

	// ChunksSummarized counts transcript chunks processed per summary pass.
	// Use with attribute: attribute.String("pass", ...)
	ChunksSummarized metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Distributions ---

	// TranscriptCoverage records the coverage percentage of finished
	// transcripts, so silent audio loss shows up on a dashboard.
	TranscriptCoverage metric.Float64Histogram

	// --- Gauges ---

	// ActivePipelines tracks the number of recordings being processed.
	ActivePipelines metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Remote
// transcription of long recordings runs far past typical request latencies,
// so the upper buckets stretch into minutes.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// coverageBuckets defines bucket boundaries for transcript coverage percent.
var coverageBuckets = []float64{
	50, 75, 90, 95, 98, 99, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SegmentationDuration, err = m.Float64Histogram("lectio.segmentation.duration",
		metric.WithDescription("Latency of splitting one recording into upload segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("lectio.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("lectio.llm.duration",
		metric.WithDescription("Latency of LLM completion requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PipelineDuration, err = m.Float64Histogram("lectio.pipeline.duration",
		metric.WithDescription("End-to-end processing time for one recording."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("lectio.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.SegmentsTranscribed, err = m.Int64Counter("lectio.segments.transcribed",
		metric.WithDescription("Total audio segments sent for transcription by status."),
	); err != nil {
		return nil, err
	}
	if met.ChunksSummarized, err = m.Int64Counter("lectio.chunks.summarized",
		metric.WithDescription("Total transcript chunks processed by summary pass."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("lectio.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Distributions.
	if met.TranscriptCoverage, err = m.Float64Histogram("lectio.transcript.coverage",
		metric.WithDescription("Coverage percentage of finished transcripts."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(coverageBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActivePipelines, err = m.Int64UpDownCounter("lectio.active_pipelines",
		metric.WithDescription("Number of recordings currently being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lectio.http.request.duration",
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

// RecordSegment records one transcribed (or failed) audio segment.
func (m *Metrics) RecordSegment(ctx context.Context, status string) {
	m.SegmentsTranscribed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordChunk records one summarized transcript chunk for the given pass.
func (m *Metrics) RecordChunk(ctx context.Context, pass string) {
	m.ChunksSummarized.Add(ctx, 1,
		metric.WithAttributes(attribute.String("pass", pass)),
	)
}
