package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

func TestMakeFolds_CoverageExactlyOnce(t *testing.T) {
	v := imbalancedView(t, 97, 40)

	fs, err := MakeFolds(v, 5, 11)
	require.NoError(t, err)
	require.Equal(t, 5, fs.Len())

	validCount := make(map[int]int)
	trainCount := make(map[int]int)
	minSize, maxSize := v.Len(), 0
	minPos, maxPos := v.Len(), 0
	for i, f := range fs.Folds {
		assert.Equal(t, i, f.ID)
		assert.Equal(t, v.Len(), f.Train.Len()+f.Valid.Len())

		inValid := make(map[int]bool)
		for _, r := range f.Valid.Rows() {
			validCount[r]++
			inValid[r] = true
		}
		for _, r := range f.Train.Rows() {
			trainCount[r]++
			assert.False(t, inValid[r], "row %d in both pieces of fold %d", r, i)
		}

		minSize = min(minSize, f.Valid.Len())
		maxSize = max(maxSize, f.Valid.Len())
		pos := countPositives(f.Valid)
		minPos = min(minPos, pos)
		maxPos = max(maxPos, pos)
	}

	assert.Len(t, validCount, v.Len())
	for r := 0; r < v.Len(); r++ {
		assert.Equal(t, 1, validCount[r], "row %d", r)
		assert.Equal(t, 4, trainCount[r], "row %d", r)
	}
	assert.LessOrEqual(t, maxSize-minSize, 1)
	assert.LessOrEqual(t, maxPos-minPos, 1)
}

func TestMakeFolds_Deterministic(t *testing.T) {
	v := syntheticView(t, 120, 3)

	a, err := MakeFolds(v, 4, 99)
	require.NoError(t, err)
	b, err := MakeFolds(v, 4, 99)
	require.NoError(t, err)

	for i := range a.Folds {
		assert.Equal(t, a.Folds[i].Valid.Rows(), b.Folds[i].Valid.Rows())
		assert.Equal(t, a.Folds[i].Train.Rows(), b.Folds[i].Train.Rows())
	}
}

func TestMakeFolds_DegenerateWarning(t *testing.T) {
	warnings := captureWarnings(t)
	v := imbalancedView(t, 20, 3)

	fs, err := MakeFolds(v, 5, 1)
	require.NoError(t, err)

	// The 17 negatives leave the counter at fold 2, so the three positives
	// land in folds 2..4 and folds 0 and 1 miss class 1.
	require.Len(t, *warnings, 2)
	for _, w := range *warnings {
		var dfw *errors.DegenerateFoldWarning
		require.True(t, errors.As(w, &dfw))
		assert.Equal(t, 1, dfw.Missing)
		assert.Equal(t, 0, countPositives(fs.Folds[dfw.Fold].Valid))
	}
}

func TestMakeFolds_Validation(t *testing.T) {
	v := imbalancedView(t, 6, 3)

	_, err := MakeFolds(v, 1, 0)
	assert.Error(t, err)

	_, err = MakeFolds(v, 7, 0)
	assert.Error(t, err)

	_, err = MakeFolds(v.Subset(nil), 2, 0)
	assert.Error(t, err)
}
