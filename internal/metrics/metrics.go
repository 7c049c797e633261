// Package metrics exposes relay counters on a dedicated Prometheus
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/syncdata/cdc-relay/internal/domain"
)

// Event outcomes.
const (
	OutcomeSynced   = "synced"
	OutcomeDeleted  = "deleted"
	OutcomeSkipped  = "skipped"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

// Snapshot lookup results.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Metrics holds the relay collectors.
type Metrics struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	sinkOps       *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	eventDuration prometheus.Histogram
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdc_relay_events_total",
			Help: "Change events handled, by outcome.",
		}, []string{"outcome"}),
		sinkOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdc_relay_sink_operations_total",
			Help: "Sink calls, by sink, action and result.",
		}, []string{"sink", "action", "result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cdc_relay_snapshot_lookups_total",
			Help: "Snapshot lookups against the system of record, by result.",
		}, []string{"result"}),
		eventDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdc_relay_event_duration_seconds",
			Help:    "Time to handle one change event end to end.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		m.events,
		m.sinkOps,
		m.lookups,
		m.eventDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent records the outcome and duration of one event.
func (m *Metrics) ObserveEvent(outcome string, elapsed time.Duration) {
	m.events.WithLabelValues(outcome).Inc()
	m.eventDuration.Observe(elapsed.Seconds())
}

// ObserveSink records one sink call. Calls with ActionNone are ignored.
func (m *Metrics) ObserveSink(sink string, res domain.SinkResult) {
	if !res.Attempted() {
		return
	}
	result := "ok"
	if res.Failed() {
		result = "error"
	}
	m.sinkOps.WithLabelValues(sink, string(res.Action), result).Inc()
}

// ObserveLookup records one snapshot lookup.
func (m *Metrics) ObserveLookup(result string) {
	m.lookups.WithLabelValues(result).Inc()
}

// OutcomeOf classifies a handled event for the events counter.
func OutcomeOf(o domain.Outcome) string {
	switch {
	case o.Skipped:
		return OutcomeSkipped
	case o.Failed():
		return OutcomeFailed
	case o.Document.Action == domain.ActionDelete:
		return OutcomeDeleted
	case !o.SnapshotHit:
		return OutcomeNotFound
	default:
		return OutcomeSynced
	}
}
