package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "omnipos_reservation"

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	sweepExpired   prometheus.Counter
	rateLimited    *prometheus.CounterVec
	publishFailure prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Reservation engine operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Reservation engine operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		sweepExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_expired_total",
			Help:      "Reservations expired by the sweeper.",
		}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"method"}),
		publishFailure: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movement_publish_failures_total",
			Help:      "Movement events that could not be published.",
		}),
	}
}

func (m *Metrics) ObserveOperation(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) AddSweepExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepExpired.Add(float64(n))
}

func (m *Metrics) IncRateLimited(method string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(method).Inc()
}

func (m *Metrics) IncPublishFailure() {
	if m == nil {
		return
	}
	m.publishFailure.Inc()
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
