package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// CheckBinaryXY validates a design matrix and a label column for a binary
// classifier and returns the labels as ints.
func CheckBinaryXY(op string, X, y mat.Matrix) (labels []int, err error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "%s", op)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if err := errors.CheckMatrix(op, X, rows, cols); err != nil {
		return nil, err
	}

	labels = make([]int, rows)
	for i := 0; i < rows; i++ {
		switch v := y.At(i, 0); v {
		case 0:
			labels[i] = 0
		case 1:
			labels[i] = 1
		default:
			return nil, errors.NewValidationError("y", "labels must be 0 or 1", v)
		}
	}
	return labels, nil
}

// ProbaMatrix builds the n×2 probability matrix from P(y=1).
func ProbaMatrix(pos []float64) *mat.Dense {
	out := mat.NewDense(len(pos), 2, nil)
	for i, p := range pos {
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out
}

// ThresholdLabels turns P(y=1) into an n×1 label column at 0.5.
func ThresholdLabels(pos []float64) *mat.Dense {
	out := mat.NewDense(len(pos), 1, nil)
	for i, p := range pos {
		if p >= 0.5 {
			out.Set(i, 0, 1)
		}
	}
	return out
}
