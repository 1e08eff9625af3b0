package model_selection

import (
	"context"
	"math"
	"sort"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/core/parallel"
	"github.com/YuminosukeSato/churnsel/metrics"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/pkg/log"
)

// Grid is an enumerated list of configurations, evaluated in order.
type Grid []model.Params

// ExpandGrid returns the Cartesian product of space. Keys are sorted and the
// last key varies fastest. A key with no values yields an empty grid.
func ExpandGrid(space map[string][]any) Grid {
	if len(space) == 0 {
		return nil
	}
	keys := make([]string, 0, len(space))
	for k := range space {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	grid := Grid{model.Params{}}
	for _, k := range keys {
		values := space[k]
		next := make(Grid, 0, len(grid)*len(values))
		for _, p := range grid {
			for _, v := range values {
				q := p.Clone()
				q[k] = v
				next = append(next, q)
			}
		}
		grid = next
	}
	return grid
}

// MetricSummary aggregates one metric over the finite fold values.
// N < K means some folds produced NaN.
type MetricSummary struct {
	Mean   float64 `json:"mean"`
	StdErr float64 `json:"std_err"`
	N      int     `json:"n"`
}

// Summary is the per-configuration average over folds.
type Summary struct {
	ConfigID string                   `json:"config_id"`
	Params   model.Params             `json:"params"`
	Metrics  map[string]MetricSummary `json:"metrics"`
	Failed   int                      `json:"failed"`
}

// Summarize averages the finite values of each metric. StdErr uses the
// sample standard deviation and is NaN when fewer than two values exist.
func Summarize(res *Resamples, names []string) Summary {
	s := Summary{
		ConfigID: res.ConfigID,
		Params:   res.Params,
		Metrics:  make(map[string]MetricSummary, len(names)),
		Failed:   res.Failed(),
	}
	for _, name := range names {
		var vals []float64
		for _, rec := range res.Records {
			if v, ok := rec.Values[name]; ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
				vals = append(vals, v)
			}
		}
		s.Metrics[name] = summarizeValues(vals)
	}
	return s
}

func summarizeValues(vals []float64) MetricSummary {
	ms := MetricSummary{Mean: math.NaN(), StdErr: math.NaN(), N: len(vals)}
	if len(vals) == 0 {
		return ms
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	ms.Mean = sum / float64(len(vals))
	if len(vals) < 2 {
		return ms
	}
	var ss float64
	for _, v := range vals {
		d := v - ms.Mean
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(vals)-1))
	ms.StdErr = sd / math.Sqrt(float64(len(vals)))
	return ms
}

// TuneResult is the outcome of a grid search. Records has len(grid)*K
// entries in grid order, then fold order.
type TuneResult struct {
	Model       string
	Metric      string
	Best        model.Params
	BestIndex   int
	Records     []MetricRecord
	Summaries   []Summary
	Predictions [][]PredictionRecord
}

// BestSummary returns the summary of the selected configuration.
func (r *TuneResult) BestSummary() Summary { return r.Summaries[r.BestIndex] }

// Tuner evaluates every configuration of a grid with the same fold set and
// selects the best mean of a metric.
type Tuner struct {
	Evaluator *Evaluator
	// Workers bounds how many configurations run at once. Each one still
	// fans out over folds through the Evaluator.
	Workers int
}

// NewTuner returns a tuner that evaluates one configuration at a time.
func NewTuner(e *Evaluator) *Tuner {
	return &Tuner{Evaluator: e, Workers: 1}
}

// Tune evaluates cand under each grid entry and selects by the selection
// metric's polarity. NaN means never win and exact ties go to the earliest
// configuration.
func (t *Tuner) Tune(ctx context.Context, cand Candidate, grid Grid, folds *FoldSet, selection string) (*TuneResult, error) {
	name := cand.Name()
	if len(grid) == 0 {
		return nil, errors.NewStageError(errors.StageTune, name, "", -1, errors.NewEmptyGridError(name))
	}
	if t.Evaluator == nil {
		return nil, errors.NewValidationError("evaluator", "is required", nil)
	}
	metric, err := metrics.Lookup(selection)
	if err != nil {
		return nil, err
	}
	if !contains(t.Evaluator.Metrics, selection) {
		return nil, errors.NewValidationError("selection_metric", "must be one of the evaluated metrics", selection)
	}

	resolved := make([]model.Params, len(grid))
	for i, g := range grid {
		p, err := cand.Resolve(g)
		if err != nil {
			return nil, errors.NewStageError(errors.StageTune, name, g.String(), -1, err)
		}
		resolved[i] = p
	}

	logger := t.Evaluator.logger().With(
		log.ModelNameKey, name,
		log.OperationKey, log.OperationTune,
		log.GridSizeKey, len(grid),
		log.FoldsKey, folds.Len(),
	)
	logger.Info("tuning started")

	results := make([]*Resamples, len(grid))
	errs := make([]error, len(grid))
	perr := parallel.ForEach(len(grid), t.Workers, func(i int) {
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			return
		}
		results[i], errs[i] = t.Evaluator.evaluate(ctx, cand, resolved[i], folds)
		t.Evaluator.Telemetry.ObserveConfig(name)
	})
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "tune")
	}
	if perr != nil {
		return nil, errors.NewStageError(errors.StageTune, name, "", -1, perr)
	}
	for i, err := range errs {
		if err != nil {
			return nil, errors.NewStageError(errors.StageTune, name, resolved[i].String(), -1, err)
		}
	}

	res := &TuneResult{Model: name, Metric: selection, BestIndex: -1}
	for i, r := range results {
		res.Records = append(res.Records, r.Records...)
		res.Predictions = append(res.Predictions, r.Predictions)
		s := Summarize(r, t.Evaluator.Metrics)
		res.Summaries = append(res.Summaries, s)
		logger.Debug("configuration evaluated",
			log.ConfigKey, s.ConfigID,
			log.MetricNameKey, selection,
			log.MetricValueKey, s.Metrics[selection].Mean,
		)

		v := s.Metrics[selection].Mean
		if math.IsNaN(v) {
			continue
		}
		if res.BestIndex < 0 || metric.Better(v, res.Summaries[res.BestIndex].Metrics[selection].Mean) {
			res.BestIndex = i
		}
	}
	if res.BestIndex < 0 {
		return nil, errors.NewStageError(errors.StageTune, name, "", -1, errors.ErrNoFiniteScore)
	}

	res.Best = resolved[res.BestIndex]
	best := res.Summaries[res.BestIndex].Metrics[selection]
	t.Evaluator.Telemetry.SetBestScore(name, selection, best.Mean)
	logger.Info("tuning finished",
		log.ConfigKey, res.Best.String(),
		log.MetricNameKey, selection,
		log.MetricValueKey, best.Mean,
	)
	return res, nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
