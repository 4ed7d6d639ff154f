package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics counts committed and persisted events.
type EventMetrics struct {
	emitted *prometheus.CounterVec
	dropped *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the metrics registry tracking committed pool events.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "persist_failures_total",
				Help:      "Count of events the event log failed to persist.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.dropped)
	})
	return eventRegistry
}

// RecordEmitted increments the counter for the supplied event type.
func (m *EventMetrics) RecordEmitted(eventType string) {
	if m == nil {
		return
	}
	m.emitted.WithLabelValues(normalizeType(eventType)).Inc()
}

// RecordPersistFailure counts an event that could not be appended to the log.
func (m *EventMetrics) RecordPersistFailure(eventType string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeType(eventType)).Inc()
}

func normalizeType(eventType string) string {
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
