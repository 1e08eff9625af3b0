package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Fold evaluation outcomes used as the status label.
const (
	StatusOK         = "ok"
	StatusDegenerate = "degenerate"
	StatusFailed     = "failed"
)

// Recorder records evaluation telemetry. A nil *Recorder is valid and
// records nothing, so callers never need to guard calls.
type Recorder struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         *prometheus.Registry

	foldEvaluations   *prometheus.CounterVec
	foldFitDuration   *prometheus.HistogramVec
	configEvaluations *prometheus.CounterVec
	bestScore         *prometheus.GaugeVec
	finalScore        *prometheus.GaugeVec
}

// NewRecorder creates a Recorder backed by its own registry unless
// WithRegistry is given.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace:        "churnsel",
		subsystem:        "selection",
		histogramBuckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		constLabels:      map[string]string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}
	r.initializeMetrics()
	return r
}

func (r *Recorder) initializeMetrics() {
	factory := promauto.With(r.registry)

	r.foldEvaluations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Subsystem:   r.subsystem,
		Name:        "fold_evaluations_total",
		Help:        "Fold evaluations by model and outcome.",
		ConstLabels: r.constLabels,
	}, []string{"model", "status"})

	r.foldFitDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   r.namespace,
		Subsystem:   r.subsystem,
		Name:        "fold_fit_seconds",
		Help:        "Wall time of recipe fit, model fit and scoring for one fold.",
		Buckets:     r.histogramBuckets,
		ConstLabels: r.constLabels,
	}, []string{"model"})

	r.configEvaluations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace:   r.namespace,
		Subsystem:   r.subsystem,
		Name:        "config_evaluations_total",
		Help:        "Hyperparameter configurations evaluated by the tuner.",
		ConstLabels: r.constLabels,
	}, []string{"model"})

	r.bestScore = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Subsystem:   r.subsystem,
		Name:        "best_cv_score",
		Help:        "Resampled mean of the selection metric for the chosen configuration.",
		ConstLabels: r.constLabels,
	}, []string{"model", "metric"})

	r.finalScore = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   r.namespace,
		Subsystem:   r.subsystem,
		Name:        "final_test_score",
		Help:        "Metric value on the held-out test partition.",
		ConstLabels: r.constLabels,
	}, []string{"model", "metric"})
}

// ObserveFold counts one fold evaluation and records its duration.
func (r *Recorder) ObserveFold(model, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.foldEvaluations.WithLabelValues(model, status).Inc()
	r.foldFitDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveConfig counts one tuned configuration.
func (r *Recorder) ObserveConfig(model string) {
	if r == nil {
		return
	}
	r.configEvaluations.WithLabelValues(model).Inc()
}

// SetBestScore records the selected configuration's resampled score.
func (r *Recorder) SetBestScore(model, metric string, v float64) {
	if r == nil {
		return
	}
	r.bestScore.WithLabelValues(model, metric).Set(v)
}

// SetFinalScore records a held-out metric value.
func (r *Recorder) SetFinalScore(model, metric string, v float64) {
	if r == nil {
		return
	}
	r.finalScore.WithLabelValues(model, metric).Set(v)
}

// Registry returns the registry metrics are registered with.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile writes all gathered metrics in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
