package model_selection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/dataset"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

func syntheticView(t *testing.T, n int, seed uint64) dataset.View {
	t.Helper()
	ds, err := dataset.Synthetic(n, seed)
	require.NoError(t, err)
	return ds.All()
}

// imbalancedView has one numeric field and the given number of positives
// placed at the end.
func imbalancedView(t *testing.T, n, positives int) dataset.View {
	t.Helper()
	x := make([]float64, n)
	y := make([]int, n)
	for i := range x {
		x[i] = float64(i)
		if i >= n-positives {
			y[i] = 1
		}
	}
	schema := dataset.Schema{Numeric: []string{"x"}, Outcome: "churn", Positive: "yes"}
	ds, err := dataset.New(schema, [][]float64{x}, nil, y)
	require.NoError(t, err)
	return ds.All()
}

func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var (
		mu  sync.Mutex
		got []error
	)
	errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, w)
	})
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })
	return &got
}

// constClassifier predicts the same probability for every row.
type constClassifier struct {
	p    float64
	fail string
}

func (c *constClassifier) Fit(X, y mat.Matrix) error {
	switch c.fail {
	case "fit":
		return errors.New("fit refused")
	case "panic":
		panic("fit exploded")
	}
	return nil
}

func (c *constClassifier) probs(X mat.Matrix) []float64 {
	n, _ := X.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = c.p
	}
	return out
}

func (c *constClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	return model.ThresholdLabels(c.probs(X)), nil
}

func (c *constClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return model.ProbaMatrix(c.probs(X)), nil
}

func (c *constClassifier) GetParams() model.Params {
	return model.Params{"p": c.p, "fail": c.fail}
}

func constantCandidate(params model.Params) Candidate {
	return Candidate{
		Family: Family{
			Name:     "constant",
			Defaults: model.Params{"p": 0.5, "fail": ""},
			Build: func(p model.Params) (model.Classifier, error) {
				prob, err := p.Float("p")
				if err != nil {
					return nil, err
				}
				fail, _ := p["fail"].(string)
				return &constClassifier{p: prob, fail: fail}, nil
			},
		},
		Params: params,
	}
}
