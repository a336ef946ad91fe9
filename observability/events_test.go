package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"lendingpool/core/events"
)

type namedEvent string

func (e namedEvent) EventType() string { return string(e) }

func TestEventEmitterCountsByType(t *testing.T) {
	m := Events()
	emitter := events.Fanout{m.Emitter("counter-test"), events.NoopEmitter{}}
	emitter.Emit(namedEvent("pool.deposited"))
	emitter.Emit(namedEvent("pool.deposited"))
	emitter.Emit(namedEvent(""))
	emitter.Emit(nil)

	if got := testutil.ToFloat64(m.emitted.WithLabelValues("counter-test", "pool.deposited")); got != 2 {
		t.Fatalf("deposited count: got %v", got)
	}
	if got := testutil.ToFloat64(m.emitted.WithLabelValues("counter-test", "unknown")); got != 1 {
		t.Fatalf("unknown count: got %v", got)
	}
}

func TestHTTPObserveSplitsOutcome(t *testing.T) {
	m := HTTP()
	m.Observe("metrics-test", 200, time.Millisecond)
	m.Observe("metrics-test", 409, time.Millisecond)
	m.RecordThrottle("")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("metrics-test", "error")); got != 1 {
		t.Fatalf("error count: got %v", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("metrics-test", "409")); got != 1 {
		t.Fatalf("status count: got %v", got)
	}
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unspecified")); got < 1 {
		t.Fatalf("throttle count: got %v", got)
	}
}
