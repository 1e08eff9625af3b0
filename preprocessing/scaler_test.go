package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")
	assert.Equal(t, 0.0, out.At(2, 1))
	assert.InDelta(t, (1-2.5)/math.Sqrt(1.25), out.At(0, 0), 1e-12)

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScalerDefault()
	_, err := s.Transform(mat.NewDense(1, 1, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})))
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 7,
		5, 7,
		10, 7,
	})
	m := NewMinMaxScalerDefault()
	out, err := m.FitTransform(X)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, out))
	assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, 1, out))

	unseen, err := m.Transform(mat.NewDense(1, 2, []float64{20, 7}))
	require.NoError(t, err)
	assert.Equal(t, 2.0, unseen.At(0, 0), "values outside the fitted range are not clipped")

	bad := NewMinMaxScaler([2]float64{1, 0})
	assert.Error(t, bad.Fit(X))
}
