package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "leasehold/pkg/domain-errors"
)

// Metrics provides observability for the leasing engine.
// Tracks operation latency and failures by code, registrations and custody moves.
type Metrics struct {
	OperationDuration    *prometheus.HistogramVec
	OperationFailures    *prometheus.CounterVec
	Registrations        prometheus.Counter
	CustodyTransfers     *prometheus.CounterVec
	CustodyCompensations prometheus.Counter
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leasehold_operation_duration_seconds",
			Help:    "Duration of leasing engine operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		OperationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leasehold_operation_failures_total",
			Help: "Failed leasing engine operations by error code",
		}, []string{"operation", "code"}),
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "leasehold_subdomains_registered_total",
			Help: "Total number of subdomain leases granted",
		}),
		CustodyTransfers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "leasehold_custody_transfers_total",
			Help: "Custody transfers by direction (in: to the engine, out: back to the real owner)",
		}, []string{"direction"}),
		CustodyCompensations: f.NewCounter(prometheus.CounterOpts{
			Name: "leasehold_custody_compensations_total",
			Help: "Custody transfers reversed because the bookkeeping commit failed",
		}),
	}
}

// ObserveOperation records latency and, on failure, the error code.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.OperationFailures.WithLabelValues(op, string(dErrors.CodeOf(err))).Inc()
	}
}

func (m *Metrics) IncrementRegistrations() {
	if m == nil {
		return
	}
	m.Registrations.Inc()
}

func (m *Metrics) IncrementCustodyTransfer(direction string) {
	if m == nil {
		return
	}
	m.CustodyTransfers.WithLabelValues(direction).Inc()
}

func (m *Metrics) IncrementCompensation() {
	if m == nil {
		return
	}
	m.CustodyCompensations.Inc()
}
