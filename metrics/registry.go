package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Polarity says which direction of a metric is better.
type Polarity int

const (
	HigherIsBetter Polarity = iota
	LowerIsBetter
)

func (p Polarity) String() string {
	if p == LowerIsBetter {
		return "lower_is_better"
	}
	return "higher_is_better"
}

// Metric names.
const (
	NameAccuracy    = "accuracy"
	NameKappa       = "kappa"
	NameSensitivity = "sensitivity"
	NameSpecificity = "specificity"
	NamePrecision   = "precision"
	NameRecall      = "recall"
	NameF1          = "f1"
	NameROCAUC      = "roc_auc"
	NameLogLoss     = "log_loss"
	NameBrier       = "brier"
)

// Metric computes one score from labels and positive-class probabilities.
type Metric struct {
	Name     string
	Polarity Polarity
	// ClassConditional metrics are reported as NaN when the labels contain
	// only one class.
	ClassConditional bool
	compute          func(truth []int, prob []float64, cm ConfusionMatrix) float64
}

// Better reports whether a beats b. NaN never beats anything, and any
// finite value beats NaN.
func (m Metric) Better(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	if m.Polarity == LowerIsBetter {
		return a < b
	}
	return a > b
}

var registry = map[string]Metric{
	NameAccuracy: {Name: NameAccuracy, compute: func(_ []int, _ []float64, cm ConfusionMatrix) float64 { return cm.Accuracy() }},
	NameKappa: {Name: NameKappa, ClassConditional: true,
		compute: func(_ []int, _ []float64, cm ConfusionMatrix) float64 { return cm.Kappa() }},
	NameSensitivity: {Name: NameSensitivity, ClassConditional: true,
		compute: func(_ []int, _ []float64, cm ConfusionMatrix) float64 { return cm.Sensitivity() }},
	NameSpecificity: {Name: NameSpecificity, ClassConditional: true,
		compute: func(_ []int, _ []float64, cm ConfusionMatrix) float64 { return cm.Specificity() }},
	NamePrecision: {Name: NamePrecision, ClassConditional: true,
		compute: func(_ []int, _ []float64, cm ConfusionMatrix) float64 { return cm.Precision() }},
	NameRecall: {Name: NameRecall, ClassConditional: true,
		compute: func(_ []int, _ []float64, cm ConfusionMatrix) float64 { return cm.Recall() }},
	NameF1: {Name: NameF1, ClassConditional: true,
		compute: func(_ []int, _ []float64, cm ConfusionMatrix) float64 { return cm.F1() }},
	NameROCAUC: {Name: NameROCAUC, ClassConditional: true,
		compute: func(truth []int, prob []float64, _ ConfusionMatrix) float64 { return rocAUC(truth, prob) }},
	NameLogLoss: {Name: NameLogLoss, Polarity: LowerIsBetter,
		compute: func(truth []int, prob []float64, _ ConfusionMatrix) float64 { return logLoss(truth, prob) }},
	NameBrier: {Name: NameBrier, Polarity: LowerIsBetter,
		compute: func(truth []int, prob []float64, _ ConfusionMatrix) float64 { return brier(truth, prob) }},
}

// Lookup returns the registered metric called name.
func Lookup(name string) (Metric, error) {
	m, ok := registry[name]
	if !ok {
		return Metric{}, errors.NewValidationError("metric", "unknown metric", name)
	}
	return m, nil
}

// Names lists every registered metric in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every name is registered and that there is at least one.
func Validate(names []string) error {
	if len(names) == 0 {
		return errors.NewValidationError("metrics", "at least one metric is required", names)
	}
	for _, n := range names {
		if _, err := Lookup(n); err != nil {
			return err
		}
	}
	return nil
}

// Score computes the named metrics at DefaultThreshold. degenerate is true
// when truth holds a single class; class-conditional metrics are NaN then.
func Score(names []string, truth []int, prob []float64) (values map[string]float64, degenerate bool, err error) {
	if len(truth) != len(prob) {
		return nil, false, errors.NewDimensionError("metrics.Score", len(truth), len(prob), 0)
	}
	if err := Validate(names); err != nil {
		return nil, false, err
	}

	var pos int
	for _, y := range truth {
		pos += y
	}
	degenerate = pos == 0 || pos == len(truth)

	cm := ConfusionAt(truth, prob, DefaultThreshold)
	values = make(map[string]float64, len(names))
	for _, name := range names {
		m := registry[name]
		if degenerate && m.ClassConditional {
			values[name] = math.NaN()
			if name == NameROCAUC {
				errors.Warn(errors.NewUndefinedMetricWarning(name, "only one class present in y_true", values[name]))
			}
			continue
		}
		values[name] = m.compute(truth, prob, cm)
	}
	return values, degenerate, nil
}
