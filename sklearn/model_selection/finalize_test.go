package model_selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/dataset"
	"github.com/YuminosukeSato/churnsel/metrics"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/pkg/telemetry"
	"github.com/YuminosukeSato/churnsel/preprocessing"
)

func TestFinalize_ScoresTestOnce(t *testing.T) {
	v := syntheticView(t, 400, 21)
	split, err := TrainTestSplit(v, 0.75, 21)
	require.NoError(t, err)
	cand, err := NewCandidate(LogisticRegression, nil)
	require.NoError(t, err)

	res, err := Finalize(context.Background(), cand, nil, preprocessing.NewRecipe(), split, testMetrics)
	require.NoError(t, err)

	assert.Equal(t, LogisticRegression, res.Model)
	assert.Len(t, res.Predictions, split.Test.Len())
	assert.Equal(t, split.Test.Rows()[0], res.Predictions[0].Row)
	for _, p := range res.Predictions {
		assert.Equal(t, -1, p.Fold)
		assert.GreaterOrEqual(t, p.Probability, 0.0)
		assert.LessOrEqual(t, p.Probability, 1.0)
	}
	assert.Equal(t, split.Test.Outcomes(), res.Truth())

	cm := metrics.ConfusionAt(res.Truth(), res.Probabilities(), metrics.DefaultThreshold)
	assert.InDelta(t, cm.Accuracy(), res.Values[metrics.NameAccuracy], 1e-12)
	// The synthetic classes overlap but are informative.
	assert.Greater(t, res.Values[metrics.NameROCAUC], 0.6)
}

func TestFinalize_Errors(t *testing.T) {
	v := syntheticView(t, 100, 2)
	split, err := TrainTestSplit(v, 0.75, 2)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("unresolved tune marker", func(t *testing.T) {
		cand, err := NewCandidate(KNearestNeighbors, model.Params{"n_neighbors": Tune})
		require.NoError(t, err)
		_, err = Finalize(ctx, cand, nil, preprocessing.NewRecipe(), split, testMetrics)
		var se *errors.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, errors.StageFinalize, se.Stage)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve))
	})

	t.Run("schema mismatch", func(t *testing.T) {
		other := imbalancedView(t, 30, 10)
		bad := &Split{Train: split.Train, Test: other}
		cand, err := NewCandidate(LogisticRegression, nil)
		require.NoError(t, err)
		_, err = Finalize(ctx, cand, nil, preprocessing.NewRecipe(), bad, testMetrics)
		var sm *errors.SchemaMismatchError
		require.True(t, errors.As(err, &sm))
		assert.Equal(t, dataset.SyntheticSchema().Fields(), sm.Expected)
		assert.Equal(t, []string{"x"}, sm.Got)
	})

	t.Run("fit failure", func(t *testing.T) {
		_, err := Finalize(ctx, constantCandidate(model.Params{"fail": "fit"}), nil, preprocessing.NewRecipe(), split, testMetrics)
		var se *errors.StageError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "constant", se.Model)
		assert.Equal(t, "fail=fit,p=0.5", se.Config)
	})

	t.Run("nil split", func(t *testing.T) {
		_, err := Finalize(ctx, constantCandidate(nil), nil, preprocessing.NewRecipe(), nil, testMetrics)
		assert.Error(t, err)
	})
}

func TestEvaluator_FinalizeRecordsScores(t *testing.T) {
	v := syntheticView(t, 100, 6)
	split, err := TrainTestSplit(v, 0.75, 6)
	require.NoError(t, err)

	e := NewEvaluator(preprocessing.NewRecipe(), testMetrics)
	e.Telemetry = telemetry.NewRecorder()
	res, err := e.Finalize(context.Background(), constantCandidate(nil), model.Params{"p": 0.25}, split)
	require.NoError(t, err)
	assert.Equal(t, "fail=,p=0.25", res.ConfigID)

	families, err := e.Telemetry.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "churnsel_selection_final_test_score" {
			found = true
			assert.Len(t, mf.GetMetric(), len(testMetrics))
		}
	}
	assert.True(t, found)
}
