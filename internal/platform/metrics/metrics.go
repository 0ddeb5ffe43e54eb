package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics holds the Prometheus collectors for the HTTP surface and the
// patient store.
type Metrics struct {
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	StoreOperations    *prometheus.CounterVec
	StoreDuration      *prometheus.HistogramVec
	ValidationFailures prometheus.Counter
}

// New registers all collectors with reg. Passing a fresh registry keeps
// tests independent of the global default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pats_http_requests_total",
			Help: "Total HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pats_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: durationBuckets,
		}, []string{"method", "route"}),
		StoreOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pats_store_operations_total",
			Help: "Patient store operations by operation and outcome",
		}, []string{"op", "outcome"}),
		StoreDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pats_store_operation_duration_seconds",
			Help:    "Patient store operation latency",
			Buckets: durationBuckets,
		}, []string{"op"}),
		ValidationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "pats_validation_failures_total",
			Help: "Inbound patient documents rejected by validation",
		}),
	}
}

// ObserveHTTP records one served request. Safe on a nil receiver.
func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// ObserveStore records one store call and whether it failed. Safe on a nil
// receiver.
func (m *Metrics) ObserveStore(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StoreOperations.WithLabelValues(op, outcome).Inc()
	m.StoreDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// IncrementValidationFailures counts a rejected document. Safe on a nil
// receiver.
func (m *Metrics) IncrementValidationFailures() {
	if m == nil {
		return
	}
	m.ValidationFailures.Inc()
}
