package preprocessing

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestYeoJohnson(t *testing.T) {
	tests := []struct {
		x, lambda, want float64
	}{
		{1, 1, 1},
		{-1, 1, -1},
		{math.E - 1, 0, 1},
		{1 - math.E, 2, -1},
		{3, 2, 7.5},
		{-3, 0, -(16.0 - 1) / 2},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, YeoJohnson(tt.x, tt.lambda), 1e-12, "x=%v lambda=%v", tt.x, tt.lambda)
	}
}

func TestPowerTransformerReducesSkew(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	n := 400
	data := make([]float64, n)
	for i := range data {
		data[i] = rng.ExpFloat64() * 10
	}
	X := mat.NewDense(n, 1, data)

	p := NewPowerTransformer()
	out, err := p.FitTransform(X)
	require.NoError(t, err)

	assert.Less(t, p.Lambdas[0], 1.0)
	before := stat.Skew(data, nil)
	after := stat.Skew(mat.Col(nil, 0, out), nil)
	assert.Less(t, math.Abs(after), math.Abs(before))
}

func TestPowerTransformerConstantColumn(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		3, 1,
		3, 2,
		3, 3,
		3, 4,
		3, 10,
	})
	p := NewPowerTransformer()
	out, err := p.FitTransform(X)
	require.NoError(t, err)

	assert.Equal(t, 1.0, p.Lambdas[0])
	assert.Equal(t, 3.0, out.At(0, 0))
}

func TestPowerTransformerRejectsNaN(t *testing.T) {
	p := NewPowerTransformer()
	err := p.Fit(mat.NewDense(2, 1, []float64{1, math.NaN()}))
	assert.Error(t, err)
}
