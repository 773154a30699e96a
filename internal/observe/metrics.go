// Package observe provides application-wide observability primitives for
// Chantey: OpenTelemetry metrics, tracing helpers, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// Prometheus scraping via the bridge set up by [InitProvider]. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with their own [metric.MeterProvider] to
// avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Chantey metrics.
const meterName = "github.com/lumabyte/chantey"

// Metrics holds the OTel instruments for the voice pipeline. All fields are
// safe for concurrent use; the underlying OTel types synchronise themselves.
type Metrics struct {
	// WakeDetections counts wake-word hits. Attributes: keyword.
	WakeDetections metric.Int64Counter

	// WakeEventsDropped counts wake events discarded because the consumer
	// lagged behind the frame path.
	WakeEventsDropped metric.Int64Counter

	// CapturesCompleted counts finished capture sessions. Attributes:
	// trigger ("silence" or "timeout").
	CapturesCompleted metric.Int64Counter

	// TranscribeDuration tracks speech-to-text latency. Attributes: provider,
	// status.
	TranscribeDuration metric.Float64Histogram

	// CommandsDispatched counts classified voice commands. Attributes: kind.
	CommandsDispatched metric.Int64Counter

	// SongsEnqueued counts songs added to the queue.
	SongsEnqueued metric.Int64Counter

	// DownloadDuration tracks song download latency. Attributes: status.
	DownloadDuration metric.Float64Histogram

	// ActiveSessions tracks in-flight capture sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveSpeakers tracks speakers with a live detector stream.
	ActiveSpeakers metric.Int64UpDownCounter

	// HTTPRequestDuration tracks admin-listener request latency. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram boundaries (seconds) sized for the voice
// pipeline: transcription lands under a second, downloads take tens.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.WakeDetections, err = m.Int64Counter("chantey.wake.detections",
		metric.WithDescription("Wake-word detections by keyword."),
	); err != nil {
		return nil, err
	}
	if met.WakeEventsDropped, err = m.Int64Counter("chantey.wake.events_dropped",
		metric.WithDescription("Wake events dropped due to consumer backpressure."),
	); err != nil {
		return nil, err
	}
	if met.CapturesCompleted, err = m.Int64Counter("chantey.capture.completed",
		metric.WithDescription("Capture sessions completed, by trigger."),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("chantey.transcribe.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CommandsDispatched, err = m.Int64Counter("chantey.commands.dispatched",
		metric.WithDescription("Voice commands dispatched, by grammar kind."),
	); err != nil {
		return nil, err
	}
	if met.SongsEnqueued, err = m.Int64Counter("chantey.queue.enqueued",
		metric.WithDescription("Songs added to the playback queue."),
	); err != nil {
		return nil, err
	}
	if met.DownloadDuration, err = m.Float64Histogram("chantey.download.duration",
		metric.WithDescription("Latency of song downloads."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("chantey.capture.active_sessions",
		metric.WithDescription("In-flight capture sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSpeakers, err = m.Int64UpDownCounter("chantey.wake.active_speakers",
		metric.WithDescription("Speakers with a live wake-detector stream."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("chantey.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from the global meter provider. Panics if instrument creation fails, which
// cannot happen with the global provider.
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

// RecordWakeDetection increments the wake counter for a keyword.
func (m *Metrics) RecordWakeDetection(ctx context.Context, keyword string) {
	m.WakeDetections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("keyword", keyword)))
}

// RecordCaptureCompleted increments the completion counter for a trigger.
func (m *Metrics) RecordCaptureCompleted(ctx context.Context, trigger string) {
	m.CapturesCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("trigger", trigger)))
}

// RecordTranscription records one transcription's latency and outcome.
func (m *Metrics) RecordTranscription(ctx context.Context, provider, status string, seconds float64) {
	m.TranscribeDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		))
}

// RecordCommand increments the dispatch counter for a grammar kind.
func (m *Metrics) RecordCommand(ctx context.Context, kind string) {
	m.CommandsDispatched.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordDownload records one song download's latency and outcome.
func (m *Metrics) RecordDownload(ctx context.Context, status string, seconds float64) {
	m.DownloadDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)))
}
