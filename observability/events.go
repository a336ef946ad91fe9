package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"lendingpool/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry counting committed pool events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendingpool",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed pool events segmented by pool and type.",
			}, []string{"pool", "type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Record increments the counter for one event type of pool.
func (m *eventMetrics) Record(pool, eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(pool, normalized).Inc()
}

// Emitter returns an events.Emitter counting every event it receives for pool.
func (m *eventMetrics) Emitter(pool string) events.Emitter {
	return eventCounter{metrics: m, pool: pool}
}

type eventCounter struct {
	metrics *eventMetrics
	pool    string
}

func (c eventCounter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	c.metrics.Record(c.pool, evt.EventType())
}
