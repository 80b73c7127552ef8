package bus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the bus's event counters to Prometheus, grounded on
// ent0n29-samantha/internal/observability/metrics.go's promauto-registered
// Gauge/CounterVec pattern.
type Metrics struct {
	EventsPublished prometheus.Counter
	EventsDropped   prometheus.Counter
	SubscriberErrors prometheus.Counter
	ModuleErrors    prometheus.Counter
}

// NewMetrics registers the bus's counters against reg (pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// *prometheus.Registry in tests to avoid duplicate-registration panics).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: "carline",
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Total events published on the bus.",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "carline",
			Subsystem: "bus",
			Name:      "events_dropped_total",
			Help:      "Audit-ring events dropped on overflow.",
		}),
		SubscriberErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "carline",
			Subsystem: "bus",
			Name:      "subscriber_errors_total",
			Help:      "Subscriber callbacks that panicked or errored.",
		}),
		ModuleErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "carline",
			Subsystem: "bus",
			Name:      "module_errors_total",
			Help:      "Module HandleEvent calls that panicked.",
		}),
	}
}

// AttachMetrics wires m into the Controller; subsequent Publish calls update
// the Prometheus counters alongside the in-memory Stats.
func (c *Controller) AttachMetrics(m *Metrics) {
	c.metrics = m
}
