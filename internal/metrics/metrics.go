// Package metrics exposes Prometheus instrumentation for the daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"berth/internal/events"
	"berth/internal/queue"
)

// Metrics bundles the daemon's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	queueItems    *prometheus.GaugeVec
	grabsTotal    prometheus.Counter
	importsTotal  prometheus.Counter
	failuresTotal prometheus.Counter
	removedTotal  prometheus.Counter
	pollDuration  prometheus.Histogram
	clientHealthy *prometheus.GaugeVec
}

// New builds a metrics set on a fresh registry, including the standard Go
// and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		queueItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "berth",
			Name:      "queue_items",
			Help:      "Queue items by status.",
		}, []string{"status"}),
		grabsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "berth",
			Name:      "grabs_total",
			Help:      "Releases handed to download clients.",
		}),
		importsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "berth",
			Name:      "imports_total",
			Help:      "Completed library imports.",
		}),
		failuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "berth",
			Name:      "failures_total",
			Help:      "Download and import failures.",
		}),
		removedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "berth",
			Name:      "removed_total",
			Help:      "Items closed out because their download vanished.",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "berth",
			Name:      "poll_duration_seconds",
			Help:      "Duration of reconciliation passes.",
			Buckets:   prometheus.DefBuckets,
		}),
		clientHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "berth",
			Name:      "client_healthy",
			Help:      "Per-client connectivity health (1 healthy, 0.5 warning, 0 failing).",
		}, []string{"client"}),
	}
	registry.MustRegister(
		m.queueItems,
		m.grabsTotal,
		m.importsTotal,
		m.failuresTotal,
		m.removedTotal,
		m.pollDuration,
		m.clientHealthy,
	)
	return m
}

// Registry returns the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObservePoll records one reconciliation pass duration in seconds.
func (m *Metrics) ObservePoll(seconds float64) { m.pollDuration.Observe(seconds) }

// SetClientHealth records a client's health score.
func (m *Metrics) SetClientHealth(clientID string, score float64) {
	m.clientHealthy.WithLabelValues(clientID).Set(score)
}

// setQueueStats refreshes the per-status gauges from a queue snapshot.
func (m *Metrics) setQueueStats(stats queue.Stats) {
	for _, status := range queue.AllStatuses() {
		m.queueItems.WithLabelValues(string(status)).Set(float64(stats.ByStatus[status]))
	}
}

// Attach subscribes the metrics set to queue lifecycle events.
func (m *Metrics) Attach(bus *events.Bus) func() {
	return bus.Subscribe(func(event events.Event) {
		switch event.Type {
		case events.TypeAdded:
			m.grabsTotal.Inc()
		case events.TypeImported:
			m.importsTotal.Inc()
		case events.TypeFailed:
			m.failuresTotal.Inc()
		case events.TypeRemoved:
			m.removedTotal.Inc()
		}
		if event.Stats.ByStatus != nil {
			m.setQueueStats(event.Stats)
		}
	})
}
