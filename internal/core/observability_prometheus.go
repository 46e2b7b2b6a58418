package core

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports session operations as a counter and a
// latency histogram labelled by operation and result.
type PrometheusMetricsRecorder struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the collectors with reg, reusing
// collectors that are already registered. A nil reg uses the default registerer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipflow",
		Subsystem: "session",
		Name:      "operations_total",
		Help:      "Form session operations by outcome.",
	}, []string{"operation", "result"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shipflow",
		Subsystem: "session",
		Name:      "operation_duration_seconds",
		Help:      "Form session operation latency.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"operation", "result"})

	var err error
	if ops, err = register(reg, ops); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	return &PrometheusMetricsRecorder{ops: ops, latency: latency}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	result := resultLabel(success)
	r.ops.WithLabelValues(operation, result).Inc()
	r.latency.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// MultiRecorder fans observations out to several recorders.
type MultiRecorder []MetricsRecorder

// Observe implements MetricsRecorder.
func (m MultiRecorder) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	for _, r := range m {
		if r != nil {
			r.Observe(ctx, operation, success, duration)
		}
	}
}
