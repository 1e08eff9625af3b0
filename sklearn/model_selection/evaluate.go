package model_selection

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/core/parallel"
	"github.com/YuminosukeSato/churnsel/dataset"
	"github.com/YuminosukeSato/churnsel/metrics"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/pkg/log"
	"github.com/YuminosukeSato/churnsel/pkg/telemetry"
	"github.com/YuminosukeSato/churnsel/preprocessing"
)

// MetricRecord holds the metrics of one configuration on one fold. When Err
// is set every value is NaN.
type MetricRecord struct {
	Model      string             `json:"model"`
	ConfigID   string             `json:"config_id"`
	Params     model.Params       `json:"params"`
	Fold       int                `json:"fold"`
	Values     map[string]float64 `json:"values"`
	Degenerate bool               `json:"degenerate"`
	Err        error              `json:"-"`
}

// PredictionRecord is the held-out prediction for one dataset row. Fold is
// -1 for test-set predictions.
type PredictionRecord struct {
	Fold        int     `json:"fold"`
	Row         int     `json:"row"`
	Truth       int     `json:"truth"`
	Predicted   int     `json:"predicted"`
	Probability float64 `json:"probability"`
}

// Resamples is the outcome of evaluating one configuration over a fold set.
// Records are ordered by fold ID.
type Resamples struct {
	Model       string
	ConfigID    string
	Params      model.Params
	Records     []MetricRecord
	Predictions []PredictionRecord
}

// Failed returns the number of folds that errored.
func (r *Resamples) Failed() int {
	var n int
	for _, rec := range r.Records {
		if rec.Err != nil {
			n++
		}
	}
	return n
}

// Evaluator fits a recipe and a fresh classifier on every fold's training
// piece and scores the validation piece.
type Evaluator struct {
	Recipe          *preprocessing.Recipe
	Metrics         []string
	Workers         int
	KeepPredictions bool
	Logger          log.Logger
	Telemetry       *telemetry.Recorder
}

// NewEvaluator returns an evaluator running one fold per CPU.
func NewEvaluator(recipe *preprocessing.Recipe, metricNames []string) *Evaluator {
	return &Evaluator{
		Recipe:  recipe,
		Metrics: append([]string(nil), metricNames...),
		Workers: runtime.NumCPU(),
	}
}

func (e *Evaluator) logger() log.Logger {
	if e.Logger == nil {
		return log.NewNopLogger()
	}
	return e.Logger
}

func (e *Evaluator) validate() error {
	if e.Recipe == nil {
		return errors.NewValidationError("recipe", "is required", nil)
	}
	if err := e.Recipe.Validate(); err != nil {
		return err
	}
	return metrics.Validate(e.Metrics)
}

// Evaluate scores cand with its own parameters on every fold. Per-fold
// failures are recorded in the fold's MetricRecord; only structural problems
// and cancellation fail the call.
func (e *Evaluator) Evaluate(ctx context.Context, cand Candidate, folds *FoldSet) (*Resamples, error) {
	params, err := cand.Resolve(nil)
	if err != nil {
		return nil, err
	}
	return e.evaluate(ctx, cand, params, folds)
}

func (e *Evaluator) evaluate(ctx context.Context, cand Candidate, params model.Params, folds *FoldSet) (*Resamples, error) {
	if folds.Len() == 0 {
		return nil, errors.NewValidationError("folds", "fold set is empty", nil)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "evaluate")
	}

	res := &Resamples{
		Model:    cand.Name(),
		ConfigID: params.String(),
		Params:   params,
		Records:  make([]MetricRecord, folds.Len()),
	}
	preds := make([][]PredictionRecord, folds.Len())
	logger := e.logger().With(
		log.ModelNameKey, res.Model,
		log.ConfigKey, res.ConfigID,
		log.OperationKey, log.OperationEvaluate,
	)

	perr := parallel.ForEach(folds.Len(), e.Workers, func(i int) {
		if ctx.Err() != nil {
			return
		}
		res.Records[i], preds[i] = e.evaluateFold(cand, params, folds.Folds[i], logger)
	})
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "evaluate")
	}
	if perr != nil {
		return nil, errors.Wrap(perr, "evaluate")
	}

	for _, p := range preds {
		res.Predictions = append(res.Predictions, p...)
	}
	return res, nil
}

func (e *Evaluator) evaluateFold(cand Candidate, params model.Params, fold Fold, logger log.Logger) (MetricRecord, []PredictionRecord) {
	start := time.Now()
	rec := MetricRecord{
		Model:    cand.Name(),
		ConfigID: params.String(),
		Params:   params,
		Fold:     fold.ID,
	}
	logger = logger.With(log.FoldKey, fold.ID)

	var (
		truth []int
		prob  []float64
	)
	err := errors.SafeExecute(fmt.Sprintf("fold %d", fold.ID), func() error {
		var err error
		prob, err = fitPredict(e.Recipe, cand, params, fold.Train, fold.Valid)
		if err != nil {
			return err
		}
		truth = fold.Valid.Outcomes()
		rec.Values, rec.Degenerate, err = metrics.Score(e.Metrics, truth, prob)
		return err
	})
	elapsed := time.Since(start)

	if err != nil {
		rec.Err = errors.NewStageError(errors.StageFold, rec.Model, rec.ConfigID, fold.ID, err)
		rec.Values = nanValues(e.Metrics)
		rec.Degenerate = false
		logger.Error("fold failed", log.ErrorCodeKey, log.ErrorFoldFailed, "error", rec.Err)
		e.Telemetry.ObserveFold(rec.Model, telemetry.StatusFailed, elapsed)
		return rec, nil
	}

	status := telemetry.StatusOK
	if rec.Degenerate {
		status = telemetry.StatusDegenerate
		errors.Warn(errors.NewDegenerateFoldWarning(rec.Model, fold.ID, missingClass(truth)))
	}
	e.Telemetry.ObserveFold(rec.Model, status, elapsed)
	logger.Debug("fold evaluated",
		log.SamplesKey, fold.Valid.Len(),
		log.DegenerateKey, rec.Degenerate,
		log.DurationMsKey, elapsed.Milliseconds(),
	)

	if !e.KeepPredictions {
		return rec, nil
	}
	return rec, predictionRecords(fold.ID, fold.Valid, truth, prob)
}

// fitPredict fits the recipe and a fresh classifier on train and returns
// P(y=1) for every row of score.
func fitPredict(recipe *preprocessing.Recipe, cand Candidate, params model.Params, train, score dataset.View) ([]float64, error) {
	fitted, err := recipe.Fit(train)
	if err != nil {
		return nil, err
	}
	Xtr, err := fitted.Apply(train)
	if err != nil {
		return nil, err
	}
	Xsc, err := fitted.Apply(score)
	if err != nil {
		return nil, err
	}
	clf, err := cand.Build(params)
	if err != nil {
		return nil, err
	}
	if err := clf.Fit(Xtr, train.Labels()); err != nil {
		return nil, err
	}
	proba, err := clf.PredictProba(Xsc)
	if err != nil {
		return nil, err
	}
	return model.PositiveColumn(proba), nil
}

func predictionRecords(fold int, v dataset.View, truth []int, prob []float64) []PredictionRecord {
	out := make([]PredictionRecord, len(prob))
	for i, p := range prob {
		pred := 0
		if p >= metrics.DefaultThreshold {
			pred = 1
		}
		out[i] = PredictionRecord{
			Fold:        fold,
			Row:         v.Row(i),
			Truth:       truth[i],
			Predicted:   pred,
			Probability: p,
		}
	}
	return out
}

func nanValues(names []string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for _, n := range names {
		out[n] = math.NaN()
	}
	return out
}

// missingClass returns the class absent from a single-class truth vector.
func missingClass(truth []int) int {
	if len(truth) > 0 && truth[0] == 0 {
		return 1
	}
	return 0
}
