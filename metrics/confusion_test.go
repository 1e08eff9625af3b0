package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfusionMatrixRates(t *testing.T) {
	cm := ConfusionMatrix{TP: 6, TN: 2, FP: 1, FN: 1}

	assert.Equal(t, 10, cm.Total())
	assert.InDelta(t, 0.8, cm.Accuracy(), 1e-12)
	assert.InDelta(t, 6.0/7, cm.Sensitivity(), 1e-12)
	assert.InDelta(t, 6.0/7, cm.Recall(), 1e-12)
	assert.InDelta(t, 2.0/3, cm.Specificity(), 1e-12)
	assert.InDelta(t, 6.0/7, cm.Precision(), 1e-12)
	assert.InDelta(t, 12.0/14, cm.F1(), 1e-12)
	assert.InDelta(t, 0.22/0.42, cm.Kappa(), 1e-12)
}

func TestConfusionMatrixUndefinedRates(t *testing.T) {
	onlyNeg := ConfusionMatrix{TN: 3, FP: 1}
	assert.True(t, math.IsNaN(onlyNeg.Sensitivity()))
	assert.InDelta(t, 0.75, onlyNeg.Specificity(), 1e-12)

	empty := ConfusionMatrix{}
	assert.True(t, math.IsNaN(empty.Accuracy()))
	assert.True(t, math.IsNaN(empty.Kappa()))
}

func TestNewConfusionMatrix(t *testing.T) {
	cm, err := NewConfusionMatrix([]int{1, 1, 0, 0, 1}, []int{1, 0, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, ConfusionMatrix{TP: 2, TN: 1, FP: 1, FN: 1}, cm)

	_, err = NewConfusionMatrix([]int{1}, []int{1, 0})
	assert.Error(t, err)

	_, err = NewConfusionMatrix([]int{2}, []int{1})
	assert.Error(t, err)

	assert.Equal(t, ConfusionMatrix{TP: 1, TN: 1, FP: 1, FN: 0},
		ConfusionAt([]int{1, 0, 0}, []float64{0.5, 0.49, 0.7}, DefaultThreshold))
}

func TestROCCurve(t *testing.T) {
	truth := []int{0, 0, 1, 1}
	score := []float64{0.1, 0.4, 0.35, 0.8}

	points, err := ROCCurve(truth, score)
	require.NoError(t, err)

	first, last := points[0], points[len(points)-1]
	assert.True(t, math.IsInf(first.Threshold, 1))
	assert.Equal(t, 0.0, first.FPR)
	assert.Equal(t, 0.0, first.TPR)
	assert.Equal(t, 1.0, last.FPR)
	assert.Equal(t, 1.0, last.TPR)
	assert.Len(t, points, 5)
	assert.InDelta(t, 0.75, TrapezoidAUC(points), 1e-12)

	tied, err := ROCCurve([]int{0, 1, 0, 1}, []float64{0.2, 0.2, 0.1, 0.9})
	require.NoError(t, err)
	assert.Len(t, tied, 4, "tied scores share one point")
	assert.InDelta(t, 0.875, TrapezoidAUC(tied), 1e-12)

	_, err = ROCCurve([]int{1, 1}, []float64{0.3, 0.4})
	assert.Error(t, err)
}

func TestRegistryPolarity(t *testing.T) {
	auc, err := Lookup(NameROCAUC)
	require.NoError(t, err)
	assert.Equal(t, HigherIsBetter, auc.Polarity)
	assert.True(t, auc.Better(0.9, 0.8))
	assert.False(t, auc.Better(0.8, 0.8), "equal is not better")
	assert.False(t, auc.Better(math.NaN(), 0.1))
	assert.True(t, auc.Better(0.1, math.NaN()))

	ll, err := Lookup(NameLogLoss)
	require.NoError(t, err)
	assert.Equal(t, LowerIsBetter, ll.Polarity)
	assert.True(t, ll.Better(0.2, 0.3))
	assert.Equal(t, "lower_is_better", ll.Polarity.String())

	_, err = Lookup("mcc")
	assert.Error(t, err)
	assert.Contains(t, Names(), NameBrier)
}

func TestScore(t *testing.T) {
	names := []string{NameAccuracy, NameROCAUC, NameSensitivity, NameBrier}

	values, degenerate, err := Score(names, []int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.NoError(t, err)
	assert.False(t, degenerate)
	assert.InDelta(t, 0.75, values[NameAccuracy], 1e-12)
	assert.InDelta(t, 0.75, values[NameROCAUC], 1e-12)
	assert.InDelta(t, 0.5, values[NameSensitivity], 1e-12)

	values, degenerate, err = Score(names, []int{1, 1, 1}, []float64{0.9, 0.2, 0.7})
	require.NoError(t, err)
	assert.True(t, degenerate)
	assert.True(t, math.IsNaN(values[NameROCAUC]))
	assert.True(t, math.IsNaN(values[NameSensitivity]))
	assert.InDelta(t, 2.0/3, values[NameAccuracy], 1e-12)
	assert.False(t, math.IsNaN(values[NameBrier]))

	_, _, err = Score(nil, []int{1}, []float64{1})
	assert.Error(t, err)
	_, _, err = Score([]string{"nope"}, []int{1}, []float64{1})
	assert.Error(t, err)
	_, _, err = Score(names, []int{1, 0}, []float64{1})
	assert.Error(t, err)
}
