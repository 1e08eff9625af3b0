package experiment

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/churnsel/config"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/pkg/log"
	"github.com/YuminosukeSato/churnsel/report"
	ms "github.com/YuminosukeSato/churnsel/sklearn/model_selection"
)

func silenceWarnings(t *testing.T) {
	t.Helper()
	errors.SetWarningHandler(func(error) {})
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
}

func smallConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.Dataset.SyntheticRows = 200
	cfg.CV.Workers = 2
	cfg.Models.KNN.Neighbors = []int{1, 3, 5}
	cfg.Models.RandomForest.Enabled = true
	cfg.Models.RandomForest.NEstimators = 20
	cfg.Output.Dir = t.TempDir()
	return cfg
}

func TestPlans(t *testing.T) {
	cfg := config.New()
	plans, err := Plans(cfg)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, ms.LogisticRegression, plans[0].Candidate.Name())
	assert.Equal(t, ms.RegularizedDA, plans[1].Candidate.Name())
	assert.False(t, plans[0].Tuned())

	knn := plans[2]
	assert.True(t, knn.Tuned())
	assert.Equal(t, "n_neighbors", knn.Param)
	assert.Len(t, knn.Grid, 5)
	assert.Equal(t, []string{"n_neighbors"}, knn.Candidate.TunedKeys())

	cfg.Models.KNN.Neighbors = []int{7}
	cfg.Models.RandomForest.Enabled = true
	cfg.Seed = 99
	plans, err = Plans(cfg)
	require.NoError(t, err)
	require.Len(t, plans, 4)
	assert.False(t, plans[2].Tuned())
	params, err := plans[2].Candidate.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, 7, params["n_neighbors"])

	rf, err := plans[3].Candidate.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), rf["random_state"])

	cfg.Models = config.ModelsConfig{}
	_, err = Plans(cfg)
	assert.Error(t, err)
}

func TestRunner_Run(t *testing.T) {
	silenceWarnings(t)
	cfg := smallConfig(t)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	r, err := New(cfg, WithLogger(logger), WithRunID("run-test"))
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	rep := res.Report
	assert.Equal(t, "run-test", rep.RunID)
	assert.Equal(t, cfg.Metrics, rep.Metrics)

	require.Len(t, rep.Balance, 3)
	assert.Equal(t, 200, rep.Balance[0].Total)
	assert.Equal(t, 150, rep.Balance[1].Total)
	assert.Equal(t, 50, rep.Balance[2].Total)
	assert.Equal(t, 75, rep.Balance[1].Positive)

	knn := res.Tuning[ms.KNearestNeighbors]
	require.NotNil(t, knn)
	assert.Len(t, knn.Records, 15)
	k, err := knn.Best.Int("n_neighbors")
	require.NoError(t, err)
	assert.Contains(t, []int{1, 3, 5}, k)

	require.Len(t, rep.Models, 4)
	require.Len(t, rep.Tuning, 4)
	names := make([]string, len(rep.Models))
	for i, m := range rep.Models {
		names[i] = m.Model
	}
	assert.Equal(t, []string{
		ms.LogisticRegression, ms.RegularizedDA, ms.KNearestNeighbors, ms.RandomForest,
	}, names)

	test := make(map[int]bool)
	for _, row := range res.Split.Test.Rows() {
		test[row] = true
	}
	for name, final := range res.Final {
		require.Len(t, final.Predictions, 50, name)
		for _, p := range final.Predictions {
			assert.True(t, test[p.Row], "%s predicted a training row %d", name, p.Row)
			assert.Equal(t, -1, p.Fold)
		}
		assert.False(t, math.IsNaN(final.Values["roc_auc"]), name)
	}

	assert.True(t, logger.ContainsMessage("run finished"))
	assert.True(t, logger.ContainsField(log.RunIDKey, "run-test"))
}

func TestRunner_Deterministic(t *testing.T) {
	silenceWarnings(t)
	cfg := smallConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)
	first, err := a.Run(context.Background())
	require.NoError(t, err)

	cfg.CV.Workers = 1
	b, err := New(cfg)
	require.NoError(t, err)
	second, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Split.Train.Rows(), second.Split.Train.Rows())
	assert.Equal(t, first.Tuning[ms.KNearestNeighbors].BestIndex, second.Tuning[ms.KNearestNeighbors].BestIndex)
	for name, f := range first.Final {
		assert.Equal(t, f.Probabilities(), second.Final[name].Probabilities(), name)
	}
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestRunner_Write(t *testing.T) {
	silenceWarnings(t)
	cfg := smallConfig(t)
	r, err := New(cfg)
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	written, err := r.Write(res)
	require.NoError(t, err)

	dir := cfg.Output.Dir
	for _, name := range []string{
		TablesFile, JSONFile, ROCFile, MetricsFile, TuningPlotFile(ms.KNearestNeighbors),
	} {
		path := filepath.Join(dir, name)
		assert.Contains(t, written, path)
		info, err := os.Stat(path)
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}
	_, err = os.Stat(filepath.Join(dir, TuningPlotFile(ms.LogisticRegression)))
	assert.True(t, os.IsNotExist(err))

	loaded, err := report.Load(filepath.Join(dir, JSONFile))
	require.NoError(t, err)
	assert.Equal(t, r.RunID(), loaded.RunID)
	assert.Len(t, loaded.Models, 4)

	tables, err := os.ReadFile(filepath.Join(dir, TablesFile))
	require.NoError(t, err)
	assert.Contains(t, string(tables), "Tuning k_nearest_neighbors over n_neighbors (selected by roc_auc)")
	assert.Contains(t, string(tables), "Resampling logistic_regression")

	prom, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(prom), "churnsel_selection_fold_evaluations_total"))
}

func TestRunner_WriteWithoutPlots(t *testing.T) {
	silenceWarnings(t)
	cfg := smallConfig(t)
	cfg.Output.Plots = false
	cfg.Models.RandomForest.Enabled = false
	r, err := New(cfg)
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	written, err := r.Write(res)
	require.NoError(t, err)
	assert.Len(t, written, 3)

	_, err = r.Write(nil)
	assert.Error(t, err)
}

func TestRunner_Errors(t *testing.T) {
	silenceWarnings(t)

	_, err := New(nil)
	assert.Error(t, err)

	bad := config.New()
	bad.CV.Folds = 1
	_, err = New(bad)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))

	cfg := smallConfig(t)
	r, err := New(cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))

	missing := smallConfig(t)
	missing.Dataset.Path = filepath.Join(t.TempDir(), "missing.csv")
	r, err = New(missing)
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	var stageErr *errors.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, errors.StageSplit, stageErr.Stage)
}
