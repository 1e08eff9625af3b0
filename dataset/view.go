package dataset

import (
	"gonum.org/v1/gonum/mat"
)

// View is an ordered selection of rows of a Dataset. Positions are indices
// into the view; Row maps a position back to the dataset row.
type View struct {
	ds  *Dataset
	idx []int
}

// Dataset returns the underlying dataset.
func (v View) Dataset() *Dataset { return v.ds }

// Schema returns the schema of the underlying dataset.
func (v View) Schema() Schema {
	if v.ds == nil {
		return Schema{}
	}
	return v.ds.schema
}

// Len returns the number of rows in the view.
func (v View) Len() int { return len(v.idx) }

// Row returns the dataset row at position pos.
func (v View) Row(pos int) int { return v.idx[pos] }

// Rows returns a copy of the dataset rows covered by the view.
func (v View) Rows() []int { return append([]int(nil), v.idx...) }

// Subset returns a view over the given positions of v.
func (v View) Subset(positions []int) View {
	idx := make([]int, len(positions))
	for i, p := range positions {
		idx[i] = v.idx[p]
	}
	return View{ds: v.ds, idx: idx}
}

// Outcome returns the encoded outcome at position pos.
func (v View) Outcome(pos int) int { return v.ds.outcome[v.idx[pos]] }

// Numeric returns numeric field j at position pos.
func (v View) Numeric(j, pos int) float64 { return v.ds.numeric[j][v.idx[pos]] }

// Categorical returns categorical field j at position pos.
func (v View) Categorical(j, pos int) string { return v.ds.categorical[j][v.idx[pos]] }

// Outcomes returns the encoded outcomes in view order.
func (v View) Outcomes() []int {
	out := make([]int, len(v.idx))
	for i, r := range v.idx {
		out[i] = v.ds.outcome[r]
	}
	return out
}

// Labels returns the outcomes as an n×1 matrix.
func (v View) Labels() *mat.Dense {
	if len(v.idx) == 0 {
		return &mat.Dense{}
	}
	y := mat.NewDense(len(v.idx), 1, nil)
	for i, r := range v.idx {
		y.Set(i, 0, float64(v.ds.outcome[r]))
	}
	return y
}

// NumericColumn copies numeric field j in view order.
func (v View) NumericColumn(j int) []float64 {
	out := make([]float64, len(v.idx))
	for i, r := range v.idx {
		out[i] = v.ds.numeric[j][r]
	}
	return out
}

// NumericMatrix copies all numeric fields into an n×p matrix.
func (v View) NumericMatrix() *mat.Dense {
	p := len(v.ds.numeric)
	if len(v.idx) == 0 || p == 0 {
		return &mat.Dense{}
	}
	X := mat.NewDense(len(v.idx), p, nil)
	for i, r := range v.idx {
		for j := 0; j < p; j++ {
			X.Set(i, j, v.ds.numeric[j][r])
		}
	}
	return X
}

// CategoricalColumn copies categorical field j in view order.
func (v View) CategoricalColumn(j int) []string {
	out := make([]string, len(v.idx))
	for i, r := range v.idx {
		out[i] = v.ds.categorical[j][r]
	}
	return out
}

// ByClass groups view positions by outcome: [0] negatives, [1] positives,
// each in view order.
func (v View) ByClass() [2][]int {
	var groups [2][]int
	for pos, r := range v.idx {
		y := v.ds.outcome[r]
		groups[y] = append(groups[y], pos)
	}
	return groups
}
