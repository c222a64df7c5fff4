// Package metrics exposes prometheus instrumentation for analysis runs.
package metrics

import (
	"errors"
	"net/http"
	"time"

	causalimpact "github.com/gabriellapppaixao/causal-impact-mvp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "causalimpact"

var ErrNoMetrics = errors.New("metrics not initialized")

// Run outcomes
const (
	OutcomeSuccess    = "success"
	OutcomeInputError = "input_error"
	OutcomeFitError   = "fit_error"
)

// Metrics holds the collectors of one registry
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	postDays    prometheus.Histogram
}

// New registers the run collectors along with the go runtime collectors on a fresh
// registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Analysis runs by outcome.",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of an analysis run including the model fit.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		postDays: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "post_period_days",
				Help:      "Length of the post period of successful runs.",
				Buckets:   []float64{7, 14, 30, 60, 90, 180, 365},
			},
		),
	}
	m.registry.MustRegister(
		m.runs,
		m.runDuration,
		m.postDays,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Outcome classifies the error returned by a run
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case causalimpact.IsInputError(err):
		return OutcomeInputError
	default:
		return OutcomeFitError
	}
}

// ObserveRun records a finished run. r may be nil when the run failed.
func (m *Metrics) ObserveRun(r *causalimpact.Report, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(Outcome(err)).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	if err == nil && r != nil {
		m.postDays.Observe(float64(r.Periods.Post.Days()))
	}
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Count returns the number of runs recorded with outcome
func (m *Metrics) Count(outcome string) (float64, error) {
	if m == nil {
		return 0, ErrNoMetrics
	}
	families, err := m.registry.Gather()
	if err != nil {
		return 0, err
	}
	for _, f := range families {
		if f.GetName() != namespace+"_runs_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return metric.GetCounter().GetValue(), nil
				}
			}
		}
	}
	return 0, nil
}
