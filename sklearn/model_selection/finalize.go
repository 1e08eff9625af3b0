package model_selection

import (
	"context"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/metrics"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/pkg/log"
	"github.com/YuminosukeSato/churnsel/preprocessing"
)

// FinalResult is the single held-out evaluation of a chosen configuration.
type FinalResult struct {
	Model       string             `json:"model"`
	ConfigID    string             `json:"config_id"`
	Params      model.Params       `json:"params"`
	Values      map[string]float64 `json:"values"`
	Degenerate  bool               `json:"degenerate"`
	Predictions []PredictionRecord `json:"predictions"`
}

// Truth returns the test outcomes in prediction order.
func (r *FinalResult) Truth() []int {
	out := make([]int, len(r.Predictions))
	for i, p := range r.Predictions {
		out[i] = p.Truth
	}
	return out
}

// Probabilities returns P(y=1) in prediction order.
func (r *FinalResult) Probabilities() []float64 {
	out := make([]float64, len(r.Predictions))
	for i, p := range r.Predictions {
		out[i] = p.Probability
	}
	return out
}

// Finalize fits recipe and model on split.Train, scores split.Test once and
// returns the metric set with per-row predictions. This is the only place
// the test piece is read. Every failure is wrapped in a StageError for the
// finalize stage.
func Finalize(ctx context.Context, cand Candidate, params model.Params, recipe *preprocessing.Recipe, split *Split, metricNames []string) (*FinalResult, error) {
	name := cand.Name()
	resolved, err := cand.Resolve(params)
	if err != nil {
		return nil, errors.NewStageError(errors.StageFinalize, name, params.String(), -1, err)
	}
	config := resolved.String()
	fail := func(err error) (*FinalResult, error) {
		return nil, errors.NewStageError(errors.StageFinalize, name, config, -1, err)
	}

	if split == nil {
		return fail(errors.NewValidationError("split", "is required", nil))
	}
	if recipe == nil {
		return fail(errors.NewValidationError("recipe", "is required", nil))
	}
	if err := metrics.Validate(metricNames); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	var prob []float64
	err = errors.SafeExecute("finalize "+name, func() error {
		var err error
		prob, err = fitPredict(recipe, cand, resolved, split.Train, split.Test)
		return err
	})
	if err != nil {
		return fail(err)
	}

	truth := split.Test.Outcomes()
	values, degenerate, err := metrics.Score(metricNames, truth, prob)
	if err != nil {
		return fail(err)
	}
	return &FinalResult{
		Model:       name,
		ConfigID:    config,
		Params:      resolved,
		Values:      values,
		Degenerate:  degenerate,
		Predictions: predictionRecords(-1, split.Test, truth, prob),
	}, nil
}

// Finalize runs the package-level Finalize with the evaluator's recipe and
// metrics, logging and recording the held-out scores.
func (e *Evaluator) Finalize(ctx context.Context, cand Candidate, params model.Params, split *Split) (*FinalResult, error) {
	res, err := Finalize(ctx, cand, params, e.Recipe, split, e.Metrics)
	logger := e.logger().With(log.ModelNameKey, cand.Name(), log.OperationKey, log.OperationFinalize)
	if err != nil {
		logger.Error("finalize failed", "error", err)
		return nil, err
	}
	for _, name := range e.Metrics {
		e.Telemetry.SetFinalScore(res.Model, name, res.Values[name])
	}
	logger.Info("model finalized",
		log.ConfigKey, res.ConfigID,
		log.SamplesKey, len(res.Predictions),
	)
	return res, nil
}
