// Package observe provides application-wide observability primitives for
// sensegate: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all sensegate metrics.
const meterName = "github.com/openspeechlab/sensegate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// InferenceDuration tracks recognizer inference latency. Use with:
	//   attribute.String("path", "batch"|"segment"|"stream")
	InferenceDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram

	// BufferDuration samples the unconsumed ring-buffer duration (seconds) at
	// each consumer poll.
	BufferDuration metric.Float64Histogram

	// --- Counters ---

	// SegmentsDispatched counts speech segments dispatched to the recognizer.
	SegmentsDispatched metric.Int64Counter

	// WSMessages counts WebSocket messages by direction and type. Use with:
	//   attribute.String("direction", "in"|"out"), attribute.String("type", ...)
	WSMessages metric.Int64Counter

	// RecognizerErrors counts failed inferences by path.
	RecognizerErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveConnections tracks the number of live streaming connections.
	ActiveConnections metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.InferenceDuration, err = m.Float64Histogram("sensegate.inference.duration",
		metric.WithDescription("Latency of recognizer inference by path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("sensegate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.BufferDuration, err = m.Float64Histogram("sensegate.buffer.duration",
		metric.WithDescription("Unconsumed audio buffer duration sampled at each consumer poll."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.SegmentsDispatched, err = m.Int64Counter("sensegate.segments.dispatched",
		metric.WithDescription("Total speech segments dispatched to the recognizer."),
	); err != nil {
		return nil, err
	}
	if met.WSMessages, err = m.Int64Counter("sensegate.ws.messages",
		metric.WithDescription("Total WebSocket messages by direction and type."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerErrors, err = m.Int64Counter("sensegate.recognizer.errors",
		metric.WithDescription("Total failed inferences by path."),
	); err != nil {
		return nil, err
	}

	if met.ActiveConnections, err = m.Int64UpDownCounter("sensegate.active_connections",
		metric.WithDescription("Number of live streaming connections."),
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

// RecordInference records one inference latency sample for the given path
// ("batch", "segment", or "stream").
func (m *Metrics) RecordInference(ctx context.Context, path string, seconds float64) {
	m.InferenceDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("path", path)),
	)
}

// RecordRecognizerError records one failed inference for the given path.
func (m *Metrics) RecordRecognizerError(ctx context.Context, path string) {
	m.RecognizerErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("path", path)),
	)
}

// RecordWSMessage records one WebSocket message by direction and type.
func (m *Metrics) RecordWSMessage(ctx context.Context, direction, msgType string) {
	m.WSMessages.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("direction", direction),
			attribute.String("type", msgType),
		),
	)
}
