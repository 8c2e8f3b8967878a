package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tmplserve"

// Metrics holds the server's Prometheus collectors. Each server owns its
// own registry so several servers can run in one process.
type Metrics struct {
	Registry *prometheus.Registry

	Accepted       prometheus.Counter
	Dropped        prometheus.Counter
	AcceptErrors   prometheus.Counter
	ProtocolErrors prometheus.Counter
	ActiveSlots    prometheus.Gauge
	Requests       *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors. free reports the number
// of idle slots when scraped; it may be nil.
func NewMetrics(free func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		Accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "connections_accepted_total",
			Help:      "Connections handed to a slot",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "connections_dropped_total",
			Help:      "Connections closed because no slot was free",
		}),
		AcceptErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "accept_errors_total",
			Help:      "Failed accept calls",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "protocol_errors_total",
			Help:      "Sessions ended by a malformed request or I/O error",
		}),
		ActiveSlots: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "active_slots",
			Help:      "Slots currently serving a connection",
		}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Requests by dispatch outcome",
		}, []string{"outcome"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time from parsed request to written response",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"outcome"}),
	}

	if free != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "free_slots",
			Help:      "Slots waiting for a connection",
		}, func() float64 { return float64(free()) })
	}

	return m
}

// ObserveRequest counts one dispatched request.
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
	m.Duration.WithLabelValues(outcome).Observe(d.Seconds())
}
