package model_selection

import (
	"context"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/metrics"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/pkg/log"
	"github.com/YuminosukeSato/churnsel/pkg/telemetry"
	"github.com/YuminosukeSato/churnsel/preprocessing"
)

var testMetrics = []string{metrics.NameAccuracy, metrics.NameROCAUC, metrics.NameLogLoss}

// counterTotal sums every series of a counter family.
func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestEvaluator_RecordsPerFoldInOrder(t *testing.T) {
	v := syntheticView(t, 300, 5)
	folds, err := MakeFolds(v, 5, 5)
	require.NoError(t, err)

	cand, err := NewCandidate(KNearestNeighbors, model.Params{"n_neighbors": 7})
	require.NoError(t, err)

	rec := telemetry.NewRecorder()
	e := NewEvaluator(preprocessing.NewRecipe(), testMetrics)
	e.KeepPredictions = true
	e.Telemetry = rec

	res, err := e.Evaluate(context.Background(), cand, folds)
	require.NoError(t, err)
	require.Len(t, res.Records, 5)
	assert.Equal(t, "n_neighbors=7", res.ConfigID)
	assert.Zero(t, res.Failed())

	for i, r := range res.Records {
		assert.Equal(t, i, r.Fold)
		assert.Equal(t, KNearestNeighbors, r.Model)
		assert.NoError(t, r.Err)
		assert.False(t, r.Degenerate)
		for _, name := range testMetrics {
			assert.False(t, math.IsNaN(r.Values[name]), "%s fold %d", name, i)
		}
	}

	// every training row is predicted exactly once
	seen := make(map[int]int)
	all := v.Dataset().All()
	for _, p := range res.Predictions {
		seen[p.Row]++
		assert.Equal(t, all.Outcome(p.Row), p.Truth)
	}
	assert.Len(t, seen, v.Len())

	assert.Equal(t, 5.0, counterTotal(t, rec.Registry(), "churnsel_selection_fold_evaluations_total"))
}

func TestEvaluator_DeterministicAcrossWorkers(t *testing.T) {
	v := syntheticView(t, 200, 8)
	folds, err := MakeFolds(v, 4, 8)
	require.NoError(t, err)
	cand, err := NewCandidate(LogisticRegression, nil)
	require.NoError(t, err)

	run := func(workers int) []MetricRecord {
		e := NewEvaluator(preprocessing.NewRecipe(), testMetrics)
		e.Workers = workers
		res, err := e.Evaluate(context.Background(), cand, folds)
		require.NoError(t, err)
		return res.Records
	}

	serial, concurrent := run(1), run(4)
	for i := range serial {
		assert.Equal(t, serial[i].Values, concurrent[i].Values, "fold %d", i)
	}
}

func TestEvaluator_FailingFoldIsIsolated(t *testing.T) {
	v := syntheticView(t, 40, 2)
	half := make([]int, 20)
	for i := range half {
		half[i] = i
	}
	rest := make([]int, 20)
	for i := range rest {
		rest[i] = 20 + i
	}
	folds := &FoldSet{K: 2, Folds: []Fold{
		{ID: 0, Train: v.Subset(half), Valid: v.Subset(rest)},
		{ID: 1, Train: v.Subset(rest), Valid: v.Subset(nil)},
	}}

	logger, _ := log.NewTestLogger(log.LevelDebug)
	e := NewEvaluator(preprocessing.NewRecipe(), testMetrics)
	e.Logger = logger

	res, err := e.Evaluate(context.Background(), constantCandidate(nil), folds)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	assert.NoError(t, res.Records[0].Err)
	assert.InDelta(t, math.Log(2), res.Records[0].Values[metrics.NameLogLoss], 1e-9)

	failed := res.Records[1]
	require.Error(t, failed.Err)
	var se *errors.StageError
	require.True(t, errors.As(failed.Err, &se))
	assert.Equal(t, errors.StageFold, se.Stage)
	assert.Equal(t, 1, se.Fold)
	for _, name := range testMetrics {
		assert.True(t, math.IsNaN(failed.Values[name]))
	}
	assert.Equal(t, 1, res.Failed())
	assert.True(t, logger.ContainsMessage("fold failed"))
}

func TestEvaluator_PanicIsRecovered(t *testing.T) {
	v := syntheticView(t, 60, 4)
	folds, err := MakeFolds(v, 3, 4)
	require.NoError(t, err)

	e := NewEvaluator(preprocessing.NewRecipe(), testMetrics)
	res, err := e.Evaluate(context.Background(), constantCandidate(model.Params{"fail": "panic"}), folds)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Failed())
	for _, r := range res.Records {
		var pe *errors.PanicError
		assert.True(t, errors.As(r.Err, &pe))
	}
}

func TestEvaluator_DegenerateFold(t *testing.T) {
	warnings := captureWarnings(t)
	v := imbalancedView(t, 20, 3)
	folds, err := MakeFolds(v, 5, 1)
	require.NoError(t, err)
	*warnings = nil

	e := NewEvaluator(preprocessing.NewRecipe(), testMetrics)
	res, err := e.Evaluate(context.Background(), constantCandidate(nil), folds)
	require.NoError(t, err)

	var degenerate int
	for _, r := range res.Records {
		assert.NoError(t, r.Err)
		if r.Degenerate {
			degenerate++
			assert.True(t, math.IsNaN(r.Values[metrics.NameROCAUC]))
			assert.False(t, math.IsNaN(r.Values[metrics.NameAccuracy]))
		} else {
			assert.False(t, math.IsNaN(r.Values[metrics.NameROCAUC]))
		}
	}
	assert.Equal(t, 2, degenerate)

	var foldWarnings int
	for _, w := range *warnings {
		var dfw *errors.DegenerateFoldWarning
		if errors.As(w, &dfw) {
			foldWarnings++
			assert.Equal(t, "constant", dfw.Model)
		}
	}
	assert.Equal(t, 2, foldWarnings)
}

func TestEvaluator_StructuralErrors(t *testing.T) {
	v := syntheticView(t, 40, 1)
	folds, err := MakeFolds(v, 2, 1)
	require.NoError(t, err)
	cand := constantCandidate(nil)

	_, err = NewEvaluator(preprocessing.NewRecipe(), testMetrics).Evaluate(context.Background(), cand, nil)
	assert.Error(t, err)

	_, err = NewEvaluator(preprocessing.NewRecipe(), nil).Evaluate(context.Background(), cand, folds)
	assert.Error(t, err)

	_, err = NewEvaluator(nil, testMetrics).Evaluate(context.Background(), cand, folds)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewEvaluator(preprocessing.NewRecipe(), testMetrics).Evaluate(ctx, cand, folds)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewEvaluator(preprocessing.NewRecipe(), testMetrics).
		Evaluate(context.Background(), constantCandidate(model.Params{"p": Tune}), folds)
	assert.Error(t, err)
}

func TestEvaluator_RDAWithDefaultRecipeNeedsNoJitter(t *testing.T) {
	v := syntheticView(t, 300, 6)
	folds, err := MakeFolds(v, 5, 6)
	require.NoError(t, err)

	for _, lambda := range []float64{1, 0.5, 0} {
		cand, err := NewCandidate(RegularizedDA, model.Params{"frac_common_cov": lambda})
		require.NoError(t, err)

		warnings := captureWarnings(t)
		e := NewEvaluator(preprocessing.NewRecipe(), testMetrics)
		e.Workers = 1
		res, err := e.Evaluate(context.Background(), cand, folds)
		require.NoError(t, err)
		assert.Zero(t, res.Failed())

		for _, w := range *warnings {
			var cw *errors.ConvergenceWarning
			assert.False(t, errors.As(w, &cw), "lambda=%v: %v", lambda, w)
		}
		for _, r := range res.Records {
			assert.False(t, math.IsNaN(r.Values[metrics.NameROCAUC]), "lambda=%v fold %d", lambda, r.Fold)
		}
	}
}
