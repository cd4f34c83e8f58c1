// Package observe provides application-wide observability primitives for
// Jarvis: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all Jarvis metrics.
const meterName = "github.com/MrWong99/jarvis"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Recognizer sessions ---

	// SessionsStarted counts recognizer sessions opened.
	SessionsStarted metric.Int64Counter

	// SessionDuration tracks how long each recognizer session stayed open.
	SessionDuration metric.Float64Histogram

	// ActiveSessions is 1 while a recognizer session is open.
	ActiveSessions metric.Int64UpDownCounter

	// SessionErrors counts sessions that ended abnormally. Use with attribute:
	//   attribute.String("kind", "service" | "deadline" | "transport" | "open")
	SessionErrors metric.Int64Counter

	// --- Audio pipeline ---

	// FramesCaptured counts frames pushed by the capture source.
	FramesCaptured metric.Int64Counter

	// AudioChunks counts chunks sent to the recognizer.
	AudioChunks metric.Int64Counter

	// AudioBytes counts PCM bytes sent to the recognizer.
	AudioBytes metric.Int64Counter

	// OverlapBytes counts bytes replayed from the overlap window.
	OverlapBytes metric.Int64Counter

	// --- Transcripts and dialog ---

	// TranscriptEvents counts classified inbound responses. Use with attribute:
	//   attribute.String("kind", ...)
	TranscriptEvents metric.Int64Counter

	// WakeDetections counts wake-word detections.
	WakeDetections metric.Int64Counter

	// Commands counts delivered commands. Use with attributes:
	//   attribute.String("sink", ...), attribute.String("status", ...)
	Commands metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// sessionBuckets are histogram bucket boundaries (in seconds) for recognizer
// session lifetimes, which range from a short utterance to the hard deadline.
var sessionBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 30, 60, 120, 185,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionsStarted, err = m.Int64Counter("jarvis.sessions.started",
		metric.WithDescription("Total recognizer sessions opened."),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("jarvis.session.duration",
		metric.WithDescription("Lifetime of recognizer sessions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(sessionBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("jarvis.active_sessions",
		metric.WithDescription("Number of open recognizer sessions."),
	); err != nil {
		return nil, err
	}
	if met.SessionErrors, err = m.Int64Counter("jarvis.session.errors",
		metric.WithDescription("Recognizer sessions that ended abnormally, by kind."),
	); err != nil {
		return nil, err
	}

	if met.FramesCaptured, err = m.Int64Counter("jarvis.audio.frames_captured",
		metric.WithDescription("Audio frames pushed by the capture source."),
	); err != nil {
		return nil, err
	}
	if met.AudioChunks, err = m.Int64Counter("jarvis.audio.chunks",
		metric.WithDescription("Audio chunks sent to the recognizer."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytes, err = m.Int64Counter("jarvis.audio.bytes",
		metric.WithDescription("PCM bytes sent to the recognizer."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.OverlapBytes, err = m.Int64Counter("jarvis.audio.overlap_bytes",
		metric.WithDescription("PCM bytes replayed from the overlap window."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}

	if met.TranscriptEvents, err = m.Int64Counter("jarvis.transcript.events",
		metric.WithDescription("Classified recognizer responses by kind."),
	); err != nil {
		return nil, err
	}
	if met.WakeDetections, err = m.Int64Counter("jarvis.wake.detections",
		metric.WithDescription("Wake-word detections."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("jarvis.commands",
		metric.WithDescription("Commands delivered by sink and status."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("jarvis.http.request.duration",
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

// RecordSessionError records an abnormal session end of the given kind.
func (m *Metrics) RecordSessionError(ctx context.Context, kind string) {
	m.SessionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordTranscriptEvent records one classified recognizer response.
func (m *Metrics) RecordTranscriptEvent(ctx context.Context, kind string) {
	m.TranscriptEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordChunk records one chunk of n bytes sent to the recognizer.
func (m *Metrics) RecordChunk(ctx context.Context, n int) {
	m.AudioChunks.Add(ctx, 1)
	m.AudioBytes.Add(ctx, int64(n))
}

// RecordCommand records a command delivery attempt.
func (m *Metrics) RecordCommand(ctx context.Context, sink, status string) {
	m.Commands.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("sink", sink),
			attribute.String("status", status),
		),
	)
}
