package linear_model

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// TestLogisticRegression_FitPredict_Binary tests binary classification
func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	// Class 0: points around (1, 1)
	// Class 1: points around (3, 3)
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	predictions, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.Equal(t, y.At(i, 0), predictions.At(i, 0), "sample %d", i)
	}

	XTest := mat.NewDense(2, 2, []float64{
		1.0, 1.0,
		3.0, 3.0,
	})
	testPreds, err := lr.Predict(XTest)
	require.NoError(t, err)
	assert.Equal(t, 0.0, testPreds.At(0, 0))
	assert.Equal(t, 1.0, testPreds.At(1, 0))
}

// TestLogisticRegression_PredictProba tests probability predictions
func TestLogisticRegression_PredictProba(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	lr := NewLogisticRegression(WithLRC(1.0))
	require.NoError(t, lr.Fit(X, y))

	probas, err := lr.PredictProba(X)
	require.NoError(t, err)
	rows, cols := probas.Dims()
	require.Equal(t, 4, rows)
	require.Equal(t, 2, cols)

	predictions, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		p0, p1 := probas.At(i, 0), probas.At(i, 1)
		assert.True(t, p0 >= 0 && p0 <= 1)
		assert.InDelta(t, 1.0, p0+p1, 1e-9)
		if predictions.At(i, 0) == 1 {
			assert.GreaterOrEqual(t, p1, 0.5)
		} else {
			assert.Less(t, p1, 0.5)
		}
	}
}

// TestLogisticRegression_RecoversCoefficients fits data drawn from a known model.
func TestLogisticRegression_RecoversCoefficients(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))
	n := 4000
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x1, x2 := rng.NormFloat64(), rng.NormFloat64()
		X.Set(i, 0, x1)
		X.Set(i, 1, x2)
		p := sigmoid(2*x1 - x2 + 0.5)
		if rng.Float64() < p {
			y.Set(i, 0, 1)
		}
	}

	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))

	coef := lr.Coef()
	assert.InDelta(t, 2.0, coef[0], 0.25)
	assert.InDelta(t, -1.0, coef[1], 0.2)
	assert.InDelta(t, 0.5, lr.Intercept(), 0.2)
	assert.Greater(t, lr.NIter(), 0)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.7)
}

// TestLogisticRegression_Regularization tests L2 shrinkage
func TestLogisticRegression_Regularization(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{-2, -1, -0.5, 0.5, 1, 2})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 0, 1, 1})

	weak := NewLogisticRegression(WithLRC(100))
	strong := NewLogisticRegression(WithLRC(0.01))
	require.NoError(t, weak.Fit(X, y))
	require.NoError(t, strong.Fit(X, y))

	assert.Greater(t, math.Abs(weak.Coef()[0]), math.Abs(strong.Coef()[0]))
}

func TestLogisticRegression_NoIntercept(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{-2, -1, 1, 2})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	lr := NewLogisticRegression(WithLogisticFitIntercept(false), WithLRC(1))
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 0.0, lr.Intercept())
	assert.Greater(t, lr.Coef()[0], 0.0)
}

func TestLogisticRegression_GetParams(t *testing.T) {
	lr := NewLogisticRegression(WithLRC(2.5), WithLRMaxIter(50), WithLRTol(1e-3))
	params := lr.GetParams()
	assert.Equal(t, 2.5, params["C"])
	assert.Equal(t, 50, params["max_iter"])
	assert.Equal(t, 1e-3, params["tol"])
	assert.Equal(t, true, params["fit_intercept"])
	assert.Equal(t, DefaultC, NewLogisticRegression().GetParams()["C"])
}

func TestLogisticRegression_Errors(t *testing.T) {
	lr := NewLogisticRegression()
	_, err := lr.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X := mat.NewDense(2, 2, []float64{0, 1, 1, 0})
	err = lr.Fit(X, mat.NewDense(2, 1, []float64{0, 2}))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, lr.Fit(X, mat.NewDense(2, 1, []float64{0, 1})))
	_, err = lr.PredictProba(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	bad := NewLogisticRegression(WithLRC(0))
	assert.Error(t, bad.Fit(X, mat.NewDense(2, 1, []float64{0, 1})))
}

func TestSigmoidAndSoftplusAreStable(t *testing.T) {
	assert.Equal(t, 1.0, sigmoid(800))
	assert.Equal(t, 0.0, sigmoid(-800))
	assert.InDelta(t, 0.5, sigmoid(0), 1e-15)
	assert.InDelta(t, 800.0, softplus(800), 1e-9)
	assert.False(t, math.IsInf(softplus(1000), 0))
	assert.InDelta(t, math.Log(2), softplus(0), 1e-15)
}
