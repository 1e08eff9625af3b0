// Package telemetry exposes Prometheus metrics for model-selection runs.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithSubsystem sets the subsystem for all metrics.
func WithSubsystem(subsystem string) Option {
	return func(r *Recorder) {
		if subsystem != "" {
			r.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for fit latency.
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.histogramBuckets = buckets
		}
	}
}

// WithConstLabels adds constant labels (for example the run ID) to all metrics.
func WithConstLabels(labels map[string]string) Option {
	return func(r *Recorder) {
		if labels != nil {
			r.constLabels = labels
		}
	}
}

// WithRegistry sets the Prometheus registry metrics are registered with.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}
