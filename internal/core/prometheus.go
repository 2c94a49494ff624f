package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports service operations as a duration
// histogram and an outcome counter.
type PrometheusMetricsRecorder struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the roster service collectors with reg.
// A nil reg uses the default registerer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roster",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Latency of roster service operations, including simulated delay.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 1.5, 2, 5},
		}, []string{"operation"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Roster service operations by outcome.",
		}, []string{"operation", "status"}),
	}
	for _, c := range []prometheus.Collector{r.duration, r.total} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
	r.total.WithLabelValues(operation, status).Inc()
}
