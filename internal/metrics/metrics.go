package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the vending collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	allocated  prometheus.Counter
	released   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cidrvend_operations_total",
				Help: "Vending operations by operation and error kind.",
			},
			[]string{"op", "result", "kind"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cidrvend_operation_duration_seconds",
				Help:    "Latency of vending operations including store round trips.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		allocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cidrvend_blocks_allocated_total",
			Help: "Blocks handed out since start.",
		}),
		released: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cidrvend_blocks_released_total",
			Help: "Blocks released since start.",
		}),
	}

	m.registry.MustRegister(
		m.operations,
		m.latency,
		m.allocated,
		m.released,
		collectors.NewGoCollector(),
	)
	return m
}

// Observe records one finished operation. kind is empty on success.
func (m *Metrics) Observe(op string, kind string, start time.Time) {
	result := ResultSuccess
	if kind != "" {
		result = ResultFailure
	}
	m.operations.WithLabelValues(op, result, kind).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) BlockAllocated() { m.allocated.Inc() }
func (m *Metrics) BlockReleased()  { m.released.Inc() }

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
