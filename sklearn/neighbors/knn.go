// Package neighbors implements a brute-force k-nearest-neighbours classifier.
package neighbors

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/core/parallel"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// parallelThreshold is the number of query rows below which prediction
// stays on the calling goroutine.
const parallelThreshold = 64

// KNeighborsClassifier votes uniformly among the k nearest training rows
// under Euclidean distance. P(y=1) is the fraction of positive neighbours.
// Equal distances are broken by training row order.
type KNeighborsClassifier struct {
	state *model.StateManager

	nNeighbors int

	rows   [][]float64
	labels []int
}

// KNNOption is a functional option for KNeighborsClassifier.
type KNNOption func(*KNeighborsClassifier)

// WithNNeighbors sets k.
func WithNNeighbors(k int) KNNOption {
	return func(c *KNeighborsClassifier) { c.nNeighbors = k }
}

// NewKNeighborsClassifier defaults to k=5 like scikit-learn.
func NewKNeighborsClassifier(opts ...KNNOption) *KNeighborsClassifier {
	c := &KNeighborsClassifier{
		state:      model.NewStateManager(),
		nNeighbors: 5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fit memorises the training data.
func (c *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	if c.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be at least 1", c.nNeighbors)
	}
	labels, err := model.CheckBinaryXY("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	n, p := X.Dims()
	if c.nNeighbors > n {
		return errors.NewValidationError("n_neighbors", "must not exceed the number of training samples", c.nNeighbors)
	}

	c.rows = make([][]float64, n)
	for i := range c.rows {
		c.rows[i] = mat.Row(nil, i, X)
	}
	c.labels = labels
	c.state.SetFitted(p, n)
	return nil
}

type neighbor struct {
	dist float64
	idx  int
}

func (c *KNeighborsClassifier) positiveFraction(query []float64, buf []neighbor) float64 {
	for i, row := range c.rows {
		buf[i] = neighbor{dist: floats.Distance(query, row, 2), idx: i}
	}
	sort.Slice(buf, func(a, b int) bool {
		if buf[a].dist != buf[b].dist {
			return buf[a].dist < buf[b].dist
		}
		return buf[a].idx < buf[b].idx
	})
	var pos int
	for _, nb := range buf[:c.nNeighbors] {
		pos += c.labels[nb.idx]
	}
	return float64(pos) / float64(c.nNeighbors)
}

func (c *KNeighborsClassifier) positives(op string, X mat.Matrix) ([]float64, error) {
	if err := c.state.RequireFitted("KNeighborsClassifier", op); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := c.state.RequireFeatures("KNeighborsClassifier."+op, p); err != nil {
		return nil, err
	}

	out := make([]float64, n)
	err := parallel.ParallelizeWithThreshold(n, parallelThreshold, func(start, end int) {
		buf := make([]neighbor, len(c.rows))
		query := make([]float64, p)
		for i := start; i < end; i++ {
			mat.Row(query, i, X)
			out[i] = c.positiveFraction(query, buf)
		}
	})
	if err != nil {
		return nil, errors.NewModelError("KNeighborsClassifier."+op, "neighbour search panicked", err)
	}
	return out, nil
}

// PredictProba returns an n×2 matrix of neighbour vote fractions.
func (c *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	pos, err := c.positives("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return model.ProbaMatrix(pos), nil
}

// Predict returns the majority class; an exact split goes to class 1.
func (c *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	pos, err := c.positives("Predict", X)
	if err != nil {
		return nil, err
	}
	return model.ThresholdLabels(pos), nil
}

// GetParams returns the hyperparameters.
func (c *KNeighborsClassifier) GetParams() model.Params {
	return model.Params{"n_neighbors": c.nNeighbors}
}
