package neighbors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

func TestKNN_VoteFractions(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 1, 1, 1})

	knn := NewKNeighborsClassifier(WithNNeighbors(3))
	require.NoError(t, knn.Fit(X, y))

	proba, err := knn.PredictProba(mat.NewDense(2, 1, []float64{0.4, 11}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, proba.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, proba.At(1, 1), 1e-12)

	pred, err := knn.Predict(mat.NewDense(2, 1, []float64{0.4, 11}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, mat.Col(nil, 0, pred))
}

func TestKNN_TiesBrokenByTrainingOrder(t *testing.T) {
	// query 0 is equidistant from -1 (label 1, row 0) and 1 (label 0, row 1)
	X := mat.NewDense(2, 1, []float64{-1, 1})
	y := mat.NewDense(2, 1, []float64{1, 0})

	knn := NewKNeighborsClassifier(WithNNeighbors(1))
	require.NoError(t, knn.Fit(X, y))

	proba, err := knn.PredictProba(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, proba.At(0, 1))
}

func TestKNN_OneNeighborMemorisesTraining(t *testing.T) {
	n := 200
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%7))
		y.Set(i, 0, float64(i%2))
	}
	knn := NewKNeighborsClassifier(WithNNeighbors(1))
	require.NoError(t, knn.Fit(X, y))

	pred, err := knn.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(y, pred))
}

func TestKNN_Errors(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})

	_, err := NewKNeighborsClassifier().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	var ve *errors.ValidationError
	assert.True(t, errors.As(NewKNeighborsClassifier(WithNNeighbors(0)).Fit(X, y), &ve))
	assert.True(t, errors.As(NewKNeighborsClassifier(WithNNeighbors(3)).Fit(X, y), &ve))

	knn := NewKNeighborsClassifier(WithNNeighbors(1))
	require.NoError(t, knn.Fit(X, y))
	_, err = knn.Predict(mat.NewDense(1, 2, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	assert.Equal(t, 1, knn.GetParams()["n_neighbors"])
}
