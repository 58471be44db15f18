// Package metrics defines Prometheus instrumentation for the rate tracker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	PairChangeTotal *prometheus.CounterVec
}

// New registers and returns the service metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		RefreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_refresh_total",
				Help: "Total number of exchange rate refresh attempts",
			},
			[]string{"result"},
		),

		RefreshDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rate_refresh_duration_seconds",
				Help:    "Exchange rate refresh duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		PairChangeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_pair_change_total",
				Help: "Total number of tracked currency or native asset change requests",
			},
			[]string{"field"},
		),
	}
}

// ObserveRefresh records the outcome and duration of one refresh attempt.
// Safe to call on a nil receiver.
func (m *Metrics) ObserveRefresh(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(d.Seconds())
}

// IncPairChange counts a currency or native asset change request.
// Safe to call on a nil receiver.
func (m *Metrics) IncPairChange(field string) {
	if m == nil {
		return
	}
	m.PairChangeTotal.WithLabelValues(field).Inc()
}
