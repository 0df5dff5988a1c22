package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"switchmonitor/internal/models"
)

const namespace = "switchmonitor"

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	Transitions  *prometheus.CounterVec
	SinkFailures *prometheus.CounterVec
	Devices      *prometheus.GaugeVec
}

// New registers all collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Polling cycles executed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one polling cycle, probes included.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Detected status transitions by new status.",
		}, []string{"status"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Transitions a sink failed to record.",
		}, []string{"sink"}),
		Devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Devices by current status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.Ticks,
		m.TickDuration,
		m.Transitions,
		m.SinkFailures,
		m.Devices,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveTick records one completed cycle.
func (m *Metrics) ObserveTick(elapsed time.Duration, snap models.Snapshot, events []models.TransitionEvent) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TickDuration.Observe(elapsed.Seconds())
	for _, ev := range events {
		m.Transitions.WithLabelValues(string(ev.NewStatus)).Inc()
	}

	up, down := snap.Split()
	m.Devices.WithLabelValues(string(models.StatusUp)).Set(float64(len(up)))
	m.Devices.WithLabelValues(string(models.StatusDown)).Set(float64(len(down)))
}

// SinkFailed counts a failed Record call.
func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(sink).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
