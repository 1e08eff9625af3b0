package dataset

import (
	"fmt"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Dataset is an immutable column-oriented table. Outcomes are encoded 1 for
// the schema's positive label and 0 otherwise.
type Dataset struct {
	schema      Schema
	numeric     [][]float64 // numeric[field][row]
	categorical [][]string  // categorical[field][row]
	outcome     []int
}

// New builds a Dataset from columns laid out in schema order. The slices are
// retained, so callers must not modify them afterwards.
func New(schema Schema, numeric [][]float64, categorical [][]string, outcome []int) (*Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if len(numeric) != len(schema.Numeric) {
		return nil, errors.NewDimensionError("dataset.New", len(schema.Numeric), len(numeric), 1)
	}
	if len(categorical) != len(schema.Categorical) {
		return nil, errors.NewDimensionError("dataset.New", len(schema.Categorical), len(categorical), 1)
	}
	n := len(outcome)
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.New")
	}
	for _, col := range numeric {
		if len(col) != n {
			return nil, errors.NewDimensionError("dataset.New", n, len(col), 0)
		}
	}
	for _, col := range categorical {
		if len(col) != n {
			return nil, errors.NewDimensionError("dataset.New", n, len(col), 0)
		}
	}
	for i, y := range outcome {
		if y != 0 && y != 1 {
			return nil, errors.NewValidationError(schema.Outcome, fmt.Sprintf("row %d: outcome must be encoded as 0 or 1", i), y)
		}
	}
	return &Dataset{
		schema:      schema,
		numeric:     numeric,
		categorical: categorical,
		outcome:     outcome,
	}, nil
}

// Schema returns the dataset schema.
func (d *Dataset) Schema() Schema { return d.schema }

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.outcome) }

// All returns a view over every row in order.
func (d *Dataset) All() View {
	idx := make([]int, d.Len())
	for i := range idx {
		idx[i] = i
	}
	return View{ds: d, idx: idx}
}

// View returns a view over the given dataset rows.
func (d *Dataset) View(rows []int) (View, error) {
	for _, r := range rows {
		if r < 0 || r >= d.Len() {
			return View{}, errors.NewValidationError("rows", "row index out of range", r)
		}
	}
	return View{ds: d, idx: append([]int(nil), rows...)}, nil
}
