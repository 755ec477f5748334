package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	// Every instrument must be usable without a nil-pointer panic.
	ctx := context.Background()
	m.DispatchDuration.Record(ctx, 0.1)
	m.AuthDuration.Record(ctx, 0.1)
	m.RecordTranscript(ctx, "dispatched")
	m.RecordDispatch(ctx, "time", "ok")
	m.RecordAuthAttempt(ctx, "matched")
	m.SessionRestarts.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	t.Parallel()

	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
