package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/thunder/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	StepsApplied  *prometheus.CounterVec
	StepsFailed   *prometheus.CounterVec
	Batches       prometheus.Counter
	MountDuration prometheus.Histogram
	MountFailures prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		StepsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thunder_steps_applied_total",
				Help: "Total number of steps folded into a file tree",
			},
			[]string{"kind"},
		),
		StepsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thunder_steps_failed_total",
				Help: "Total number of steps rejected by the synthesizer",
			},
			[]string{"kind"},
		),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thunder_batches_total",
			Help: "Total number of reconciliation batches",
		}),
		MountDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thunder_mount_duration_seconds",
			Help:    "Duration of sandbox mounts",
			Buckets: prometheus.DefBuckets,
		}),
		MountFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thunder_mount_failures_total",
			Help: "Total number of failed sandbox mounts",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.StepsApplied, m.StepsFailed, m.Batches, m.MountDuration, m.MountFailures)
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepApplied: func(_ context.Context, e *domain.StepEvent) {
			m.StepsApplied.WithLabelValues(string(e.Kind)).Inc()
		},
		OnStepFailed: func(_ context.Context, e *domain.StepEvent) {
			m.StepsFailed.WithLabelValues(string(e.Kind)).Inc()
		},
		OnBatchSettled: func(context.Context, *domain.BatchEvent) {
			m.Batches.Inc()
		},
		OnMount: func(_ context.Context, e *domain.MountEvent) {
			m.MountDuration.Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.MountFailures.Inc()
			}
		},
	}
}

// Handler serves the metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
