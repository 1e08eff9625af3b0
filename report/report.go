// Package report collects class balance, tuning resamples and final
// held-out results into a Report that can be rendered as text tables,
// plotted with gonum/plot and persisted as JSON.
package report

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/dataset"
	"github.com/YuminosukeSato/churnsel/metrics"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/sklearn/model_selection"
)

// Float is a float64 that encodes NaN and ±Inf as JSON null and decodes
// null back to NaN.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// IsNaN reports whether f is NaN.
func (f Float) IsNaN() bool { return math.IsNaN(float64(f)) }

func floats(m map[string]float64) map[string]Float {
	out := make(map[string]Float, len(m))
	for k, v := range m {
		out[k] = Float(v)
	}
	return out
}

// BalanceRow is the outcome distribution of one named partition.
type BalanceRow struct {
	Split        string `json:"split"`
	Total        int    `json:"total"`
	Positive     int    `json:"positive"`
	Negative     int    `json:"negative"`
	PositiveRate Float  `json:"positive_rate"`
}

// ROCPoint is one operating point. The first point's threshold is +Inf in
// memory and null once persisted.
type ROCPoint struct {
	Threshold Float   `json:"threshold"`
	FPR       float64 `json:"fpr"`
	TPR       float64 `json:"tpr"`
}

// ModelResult is the held-out evaluation of one model.
type ModelResult struct {
	Model      string                  `json:"model"`
	ConfigID   string                  `json:"config_id"`
	Params     model.Params            `json:"params"`
	Metrics    map[string]Float        `json:"metrics"`
	Degenerate bool                    `json:"degenerate"`
	Confusion  metrics.ConfusionMatrix `json:"confusion"`
	ROC        []ROCPoint              `json:"roc,omitempty"`
	ROCArea    Float                   `json:"roc_area"`
}

// FoldRow holds one configuration's metrics on one fold.
type FoldRow struct {
	ConfigID string           `json:"config_id"`
	Fold     int              `json:"fold"`
	Values   map[string]Float `json:"values"`
	Failed   bool             `json:"failed"`
}

// ConfigRow holds the fold averages of one configuration. Value is the
// tuned parameter as a number, NaN when it is not numeric.
type ConfigRow struct {
	ConfigID string           `json:"config_id"`
	Value    Float            `json:"value"`
	Mean     map[string]Float `json:"mean"`
	StdErr   map[string]Float `json:"std_err"`
	N        map[string]int   `json:"n"`
	Failed   int              `json:"failed"`
}

// Tuning is the resampling record of one model. Param is empty when the
// model was evaluated with a single fixed configuration.
type Tuning struct {
	Model     string      `json:"model"`
	Param     string      `json:"param"`
	Metric    string      `json:"metric"`
	BestIndex int         `json:"best_index"`
	Best      string      `json:"best"`
	Folds     []FoldRow   `json:"folds"`
	Configs   []ConfigRow `json:"configs"`
}

// Report is the complete outcome of one run.
type Report struct {
	RunID     string        `json:"run_id"`
	Seed      uint64        `json:"seed"`
	CreatedAt time.Time     `json:"created_at"`
	Metrics   []string      `json:"metrics"`
	Balance   []BalanceRow  `json:"balance"`
	Tuning    []Tuning      `json:"tuning"`
	Models    []ModelResult `json:"models"`
}

// Model returns the final result of the named model.
func (r *Report) Model(name string) (ModelResult, bool) {
	for _, m := range r.Models {
		if m.Model == name {
			return m, true
		}
	}
	return ModelResult{}, false
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(a *Aggregator) { a.runID = id }
}

// WithMetricOrder fixes the metric column order of tables.
func WithMetricOrder(names []string) Option {
	return func(a *Aggregator) { a.metricOrder = append([]string(nil), names...) }
}

// Aggregator accumulates report sections. It is safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	runID       string
	seed        uint64
	createdAt   time.Time
	metricOrder []string

	balance []BalanceRow
	tuning  []Tuning
	models  []ModelResult
}

// NewAggregator starts a report for a run seeded with seed. The run ID is a
// random UUID unless WithRunID is given.
func NewAggregator(seed uint64, opts ...Option) *Aggregator {
	a := &Aggregator{
		runID:     uuid.NewString(),
		seed:      seed,
		createdAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetClassBalance records the outcome distribution of a named partition.
// Setting the same name twice replaces the earlier row.
func (a *Aggregator) SetClassBalance(split string, b dataset.ClassBalance) {
	a.mu.Lock()
	defer a.mu.Unlock()
	row := BalanceRow{
		Split:        split,
		Total:        b.Total,
		Positive:     b.Positive,
		Negative:     b.Negative,
		PositiveRate: Float(b.PositiveRate),
	}
	for i := range a.balance {
		if a.balance[i].Split == split {
			a.balance[i] = row
			return
		}
	}
	a.balance = append(a.balance, row)
}

// AddFinal records a held-out result with its ROC curve and the confusion
// matrix at the 0.5 threshold. A single-class test piece has no ROC curve.
func (a *Aggregator) AddFinal(name string, res *model_selection.FinalResult) error {
	if res == nil {
		return errors.NewValidationError("final", "result is nil", name)
	}
	truth, prob := res.Truth(), res.Probabilities()
	mr := ModelResult{
		Model:      name,
		ConfigID:   res.ConfigID,
		Params:     res.Params,
		Metrics:    floats(res.Values),
		Degenerate: res.Degenerate,
		Confusion:  metrics.ConfusionAt(truth, prob, metrics.DefaultThreshold),
		ROCArea:    Float(math.NaN()),
	}
	if curve, err := metrics.ROCCurve(truth, prob); err == nil {
		mr.ROC = make([]ROCPoint, len(curve))
		for i, p := range curve {
			mr.ROC[i] = ROCPoint{Threshold: Float(p.Threshold), FPR: p.FPR, TPR: p.TPR}
		}
		mr.ROCArea = Float(metrics.TrapezoidAUC(curve))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.models = append(a.models, mr)
	return nil
}

// AddTuning records the per-fold and averaged metrics of a grid search over
// param. An empty metric uses the tuner's selection metric.
func (a *Aggregator) AddTuning(name string, res *model_selection.TuneResult, param, metric string) error {
	if res == nil {
		return errors.NewValidationError("tuning", "result is nil", name)
	}
	if metric == "" {
		metric = res.Metric
	}
	if _, err := metrics.Lookup(metric); err != nil {
		return err
	}

	tr := Tuning{
		Model:     name,
		Param:     param,
		Metric:    metric,
		BestIndex: res.BestIndex,
		Best:      res.Best.String(),
	}
	tr.fill(res.Records, res.Summaries, param)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tuning = append(a.tuning, tr)
	return nil
}

// AddResamples records the cross-validated metrics of a model evaluated with
// a single fixed configuration. It is rendered like a one-row tuning table
// without a tuned parameter.
func (a *Aggregator) AddResamples(name string, res *model_selection.Resamples, metricNames []string) error {
	if res == nil {
		return errors.NewValidationError("resamples", "result is nil", name)
	}
	if err := metrics.Validate(metricNames); err != nil {
		return err
	}
	tr := Tuning{Model: name, Best: res.ConfigID}
	if len(metricNames) > 0 {
		tr.Metric = metricNames[0]
	}
	tr.fill(res.Records, []model_selection.Summary{model_selection.Summarize(res, metricNames)}, "")

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tuning = append(a.tuning, tr)
	return nil
}

func (t *Tuning) fill(records []model_selection.MetricRecord, summaries []model_selection.Summary, param string) {
	for _, rec := range records {
		t.Folds = append(t.Folds, FoldRow{
			ConfigID: rec.ConfigID,
			Fold:     rec.Fold,
			Values:   floats(rec.Values),
			Failed:   rec.Err != nil,
		})
	}
	for _, s := range summaries {
		row := ConfigRow{
			ConfigID: s.ConfigID,
			Value:    Float(math.NaN()),
			Mean:     make(map[string]Float, len(s.Metrics)),
			StdErr:   make(map[string]Float, len(s.Metrics)),
			N:        make(map[string]int, len(s.Metrics)),
			Failed:   s.Failed,
		}
		if param != "" {
			if v, err := s.Params.Float(param); err == nil {
				row.Value = Float(v)
			}
		}
		for k, ms := range s.Metrics {
			row.Mean[k] = Float(ms.Mean)
			row.StdErr[k] = Float(ms.StdErr)
			row.N[k] = ms.N
		}
		t.Configs = append(t.Configs, row)
	}
}

// Build snapshots the accumulated sections into a Report.
func (a *Aggregator) Build() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := &Report{
		RunID:     a.runID,
		Seed:      a.seed,
		CreatedAt: a.createdAt,
		Metrics:   a.metricOrder,
		Balance:   append([]BalanceRow(nil), a.balance...),
		Tuning:    append([]Tuning(nil), a.tuning...),
		Models:    append([]ModelResult(nil), a.models...),
	}
	if len(r.Metrics) == 0 {
		r.Metrics = a.observedMetrics()
	}
	return r
}

func (a *Aggregator) observedMetrics() []string {
	seen := make(map[string]struct{})
	for _, m := range a.models {
		for k := range m.Metrics {
			seen[k] = struct{}{}
		}
	}
	for _, t := range a.tuning {
		for _, c := range t.Configs {
			for k := range c.Mean {
				seen[k] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func formatFloat(f Float) string {
	if f.IsNaN() {
		return "NA"
	}
	return strconv.FormatFloat(float64(f), 'f', 4, 64)
}
