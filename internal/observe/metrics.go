// Package observe provides observability primitives for the ASHTRAA server:
// OpenTelemetry metrics with a Prometheus exporter bridge, request tracing
// helpers, and HTTP middleware tying them together.
//
// A package-level default [Metrics] is not provided; construct one with
// [NewMetrics] and pass it where needed so tests can use an isolated
// [metric.MeterProvider].
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all ASHTRAA metrics.
const meterName = "github.com/akhilsonga/ASHTRAA"

// Metrics holds all OpenTelemetry metric instruments for the pipeline. The
// underlying OTel types handle their own synchronisation.
type Metrics struct {
	// LLMDuration tracks script-generation latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks per-segment synthesis latency.
	TTSDuration metric.Float64Histogram

	// TurnDuration tracks whole chat-turn latency, extraction through append.
	TurnDuration metric.Float64Histogram

	// SegmentsSynthesized counts segments that produced an audio clip.
	SegmentsSynthesized metric.Int64Counter

	// SynthesisFailures counts segments skipped after exhausting retries.
	SynthesisFailures metric.Int64Counter

	// ProviderRequests counts external provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram boundaries (seconds) sized for network
// synthesis and LLM calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LLMDuration, err = m.Float64Histogram("ashtraa.llm.duration",
		metric.WithDescription("Latency of script generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("ashtraa.tts.duration",
		metric.WithDescription("Latency of one segment's speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("ashtraa.turn.duration",
		metric.WithDescription("Latency of a full chat turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentsSynthesized, err = m.Int64Counter("ashtraa.segments.synthesized",
		metric.WithDescription("Segments that produced an audio clip."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisFailures, err = m.Int64Counter("ashtraa.segments.failed",
		metric.WithDescription("Segments skipped after synthesis failure."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("ashtraa.provider.requests",
		metric.WithDescription("External provider API calls."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("ashtraa.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}
