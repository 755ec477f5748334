// Package observe provides observability primitives for the Bat Computer:
// OpenTelemetry metric instruments and SDK provider initialisation with a
// Prometheus exporter bridge for the admin /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all Bat Computer metrics.
const meterName = "github.com/ethanwacker/batcomputer"

// Metrics holds all OpenTelemetry metric instruments for the application.
// The underlying OTel types handle their own synchronisation.
type Metrics struct {
	// DispatchDuration tracks command dispatch latency, including any
	// collaborator call (weather, device registry).
	DispatchDuration metric.Float64Histogram

	// AuthDuration tracks voice authentication latency, including sample
	// transcription and similarity scoring.
	AuthDuration metric.Float64Histogram

	// Transcripts counts final transcripts received from the transcription
	// provider. Use with attribute.String("outcome", "dispatched"|"ignored").
	Transcripts metric.Int64Counter

	// Dispatches counts command dispatches. Use with attributes:
	//   attribute.String("command", ...), attribute.String("status", ...)
	Dispatches metric.Int64Counter

	// AuthAttempts counts authentication attempts. Use with attribute:
	//   attribute.String("result", "matched"|"rejected"|"phrase_mismatch"|"error")
	AuthAttempts metric.Int64Counter

	// SessionRestarts counts ErrorRecovery cycles of the listening session.
	SessionRestarts metric.Int64Counter

	// ActiveSessions tracks how many listening sessions are live (0 or 1).
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DispatchDuration, err = m.Float64Histogram("batcomputer.dispatch.duration",
		metric.WithDescription("Latency of command dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AuthDuration, err = m.Float64Histogram("batcomputer.auth.duration",
		metric.WithDescription("Latency of voice authentication."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("batcomputer.transcripts",
		metric.WithDescription("Final transcripts received, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Dispatches, err = m.Int64Counter("batcomputer.dispatches",
		metric.WithDescription("Command dispatches by command kind and status."),
	); err != nil {
		return nil, err
	}
	if met.AuthAttempts, err = m.Int64Counter("batcomputer.auth.attempts",
		metric.WithDescription("Voice authentication attempts by result."),
	); err != nil {
		return nil, err
	}
	if met.SessionRestarts, err = m.Int64Counter("batcomputer.session.restarts",
		metric.WithDescription("Listening session error-recovery restarts."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("batcomputer.active_sessions",
		metric.WithDescription("Number of live listening sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from the global meter provider. Panics if instrument creation
// fails (should not happen with the global provider).
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

// RecordDispatch increments the dispatch counter with the standard
// attribute set.
func (m *Metrics) RecordDispatch(ctx context.Context, kind, status string) {
	m.Dispatches.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("command", kind),
			attribute.String("status", status),
		),
	)
}

// RecordTranscript increments the transcript counter for one outcome.
func (m *Metrics) RecordTranscript(ctx context.Context, outcome string) {
	m.Transcripts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordAuthAttempt increments the authentication attempt counter.
func (m *Metrics) RecordAuthAttempt(ctx context.Context, result string) {
	m.AuthAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}
