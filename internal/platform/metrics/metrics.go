package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
	Panics          prometheus.Counter
}

// New creates and registers the metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leasehold_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method", "status"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "leasehold_http_requests_in_flight",
			Help: "Requests currently being served",
		}),
		Panics: f.NewCounter(prometheus.CounterOpts{
			Name: "leasehold_http_panics_total",
			Help: "Handler panics recovered by middleware",
		}),
	}
}

// ObserveRequest records one served request.
// Call with time.Now() at the start of the request.
func (m *Metrics) ObserveRequest(route, method string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

// IncrementPanics records a recovered panic.
func (m *Metrics) IncrementPanics() {
	if m == nil {
		return
	}
	m.Panics.Inc()
}
