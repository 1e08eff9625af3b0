package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/dataset"
	"github.com/YuminosukeSato/churnsel/metrics"
	ms "github.com/YuminosukeSato/churnsel/sklearn/model_selection"
)

// finalFixture has TP=6, TN=2, FP=1, FN=1 at the 0.5 threshold.
func finalFixture() *ms.FinalResult {
	truth := []int{1, 1, 1, 1, 1, 1, 0, 0, 0, 1}
	prob := []float64{0.9, 0.8, 0.8, 0.7, 0.6, 0.55, 0.3, 0.2, 0.65, 0.4}
	res := &ms.FinalResult{
		Model:    ms.LogisticRegression,
		ConfigID: "C=10000",
		Params:   model.Params{"C": 1e4},
		Values: map[string]float64{
			metrics.NameAccuracy: 0.8,
			metrics.NameKappa:    math.NaN(),
		},
	}
	for i := range truth {
		pred := 0
		if prob[i] >= 0.5 {
			pred = 1
		}
		res.Predictions = append(res.Predictions, ms.PredictionRecord{
			Fold: -1, Row: i, Truth: truth[i], Predicted: pred, Probability: prob[i],
		})
	}
	return res
}

func tuningFixture() *ms.TuneResult {
	nan := math.NaN()
	summary := func(k int, mean, se float64, n int) ms.Summary {
		p := model.Params{"n_neighbors": k}
		return ms.Summary{
			ConfigID: p.String(),
			Params:   p,
			Metrics: map[string]ms.MetricSummary{
				metrics.NameROCAUC: {Mean: mean, StdErr: se, N: n},
			},
		}
	}
	res := &ms.TuneResult{
		Model:     ms.KNearestNeighbors,
		Metric:    metrics.NameROCAUC,
		Best:      model.Params{"n_neighbors": 5},
		BestIndex: 2,
		Summaries: []ms.Summary{
			summary(1, 0.61, 0.02, 2),
			summary(3, nan, nan, 0),
			summary(5, 0.74, 0.01, 2),
		},
	}
	for _, s := range res.Summaries {
		for fold := 0; fold < 2; fold++ {
			res.Records = append(res.Records, ms.MetricRecord{
				Model:    ms.KNearestNeighbors,
				ConfigID: s.ConfigID,
				Params:   s.Params,
				Fold:     fold,
				Values:   map[string]float64{metrics.NameROCAUC: s.Metrics[metrics.NameROCAUC].Mean},
			})
		}
	}
	return res
}

func buildFixture(t *testing.T) *Report {
	t.Helper()
	agg := NewAggregator(123, WithRunID("run-1"), WithMetricOrder([]string{metrics.NameAccuracy, metrics.NameKappa, metrics.NameROCAUC}))

	ds, err := dataset.Synthetic(100, 1)
	require.NoError(t, err)
	agg.SetClassBalance("all", dataset.Balance(ds.All()))
	agg.SetClassBalance("all", dataset.Balance(ds.All()))

	require.NoError(t, agg.AddTuning(ms.KNearestNeighbors, tuningFixture(), "n_neighbors", ""))
	require.NoError(t, agg.AddFinal(ms.LogisticRegression, finalFixture()))
	return agg.Build()
}

func TestAggregator_Build(t *testing.T) {
	r := buildFixture(t)

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, uint64(123), r.Seed)
	require.Len(t, r.Balance, 1)
	assert.Equal(t, 50, r.Balance[0].Positive)

	m, ok := r.Model(ms.LogisticRegression)
	require.True(t, ok)
	assert.Equal(t, metrics.ConfusionMatrix{TP: 6, TN: 2, FP: 1, FN: 1}, m.Confusion)
	assert.InDelta(t, 0.8, m.Confusion.Accuracy(), 1e-12)

	require.NotEmpty(t, m.ROC)
	first, last := m.ROC[0], m.ROC[len(m.ROC)-1]
	assert.Equal(t, [2]float64{0, 0}, [2]float64{first.FPR, first.TPR})
	assert.Equal(t, [2]float64{1, 1}, [2]float64{last.FPR, last.TPR})
	assert.False(t, m.ROCArea.IsNaN())

	require.Len(t, r.Tuning, 1)
	tun := r.Tuning[0]
	assert.Equal(t, metrics.NameROCAUC, tun.Metric)
	assert.Len(t, tun.Folds, 6)
	assert.Equal(t, Float(5), tun.Configs[2].Value)
	assert.Equal(t, "n_neighbors=5", tun.Best)
}

func TestAggregator_SingleClassHasNoROC(t *testing.T) {
	res := finalFixture()
	for i := range res.Predictions {
		res.Predictions[i].Truth = 1
	}
	agg := NewAggregator(1)
	require.NoError(t, agg.AddFinal("m", res))

	r := agg.Build()
	assert.NotEmpty(t, r.RunID)
	assert.Empty(t, r.Models[0].ROC)
	assert.True(t, r.Models[0].ROCArea.IsNaN())
	assert.Equal(t, []string{metrics.NameAccuracy, metrics.NameKappa}, r.Metrics)

	err := r.PlotROC(filepath.Join(t.TempDir(), "roc.png"))
	assert.Error(t, err)
}

func TestAggregator_Errors(t *testing.T) {
	agg := NewAggregator(1)
	assert.Error(t, agg.AddFinal("m", nil))
	assert.Error(t, agg.AddTuning("m", nil, "k", ""))
	assert.Error(t, agg.AddTuning("m", tuningFixture(), "k", "auc"))
}

func TestAggregator_AddResamples(t *testing.T) {
	p := model.Params{"C": 1e4}
	res := &ms.Resamples{Model: ms.LogisticRegression, ConfigID: p.String(), Params: p}
	for fold, v := range []float64{0.7, 0.8, math.NaN()} {
		res.Records = append(res.Records, ms.MetricRecord{
			Model: res.Model, ConfigID: res.ConfigID, Params: p, Fold: fold,
			Values: map[string]float64{metrics.NameAccuracy: v},
		})
	}

	agg := NewAggregator(5, WithRunID("run-2"))
	require.NoError(t, agg.AddResamples(ms.LogisticRegression, res, []string{metrics.NameAccuracy}))
	assert.Error(t, agg.AddResamples("m", nil, []string{metrics.NameAccuracy}))
	assert.Error(t, agg.AddResamples("m", res, []string{"auc"}))

	r := agg.Build()
	require.Len(t, r.Tuning, 1)
	tr := r.Tuning[0]
	assert.Empty(t, tr.Param)
	assert.Equal(t, "C=10000", tr.Best)
	assert.Len(t, tr.Folds, 3)
	require.Len(t, tr.Configs, 1)
	assert.InDelta(t, 0.75, float64(tr.Configs[0].Mean[metrics.NameAccuracy]), 1e-12)
	assert.Equal(t, 2, tr.Configs[0].N[metrics.NameAccuracy])
	assert.True(t, tr.Configs[0].Value.IsNaN())

	var buf bytes.Buffer
	require.NoError(t, r.WriteTables(&buf))
	assert.Contains(t, buf.String(), "Resampling logistic_regression (C=10000)")
	assert.NotContains(t, buf.String(), " *")
}

func TestReport_WriteTables(t *testing.T) {
	r := buildFixture(t)

	var buf bytes.Buffer
	require.NoError(t, r.WriteTables(&buf))
	out := buf.String()

	for _, want := range []string{
		"Run run-1 (seed 123)",
		"Class balance",
		"Tuning k_nearest_neighbors over n_neighbors (selected by roc_auc)",
		"n_neighbors=5 *",
		"0.7400 ± 0.0100 (n=2)",
		"NA ± NA (n=0)",
		"Test set metrics",
		"Confusion matrix: logistic_regression (threshold 0.5)",
	} {
		assert.Contains(t, out, want)
	}
}

func TestReport_SaveLoad(t *testing.T) {
	r := buildFixture(t)
	path := filepath.Join(t.TempDir(), "report.json")

	require.NoError(t, r.Save(path))
	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, r.RunID, got.RunID)
	assert.Equal(t, r.Metrics, got.Metrics)
	m, ok := got.Model(ms.LogisticRegression)
	require.True(t, ok)
	assert.Equal(t, Float(0.8), m.Metrics[metrics.NameAccuracy])
	assert.True(t, m.Metrics[metrics.NameKappa].IsNaN())
	assert.True(t, m.ROC[0].Threshold.IsNaN())
	assert.True(t, got.Tuning[0].Configs[1].Mean[metrics.NameROCAUC].IsNaN())

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestReport_Plots(t *testing.T) {
	r := buildFixture(t)
	dir := t.TempDir()

	roc := filepath.Join(dir, "roc.png")
	require.NoError(t, r.PlotROC(roc))
	info, err := os.Stat(roc)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	tuning := filepath.Join(dir, "tuning.png")
	require.NoError(t, r.PlotTuning(ms.KNearestNeighbors, tuning))
	_, err = os.Stat(tuning)
	require.NoError(t, err)

	assert.Error(t, r.PlotTuning("random_forest", filepath.Join(dir, "rf.png")))
}
