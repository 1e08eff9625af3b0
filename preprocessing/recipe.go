// Package preprocessing turns dataset views into model-ready matrices.
//
// A Recipe declares the steps; Recipe.Fit estimates every parameter on a
// training view and returns a FittedRecipe whose Apply only replays them, so
// validation and test rows never influence the learned transform.
package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/dataset"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Scaling selects the numeric scaling step.
type Scaling string

const (
	ScalingStandard Scaling = "standard"
	ScalingRange    Scaling = "range"
	ScalingNone     Scaling = "none"
)

// Recipe declares the preprocessing steps.
type Recipe struct {
	// PowerTransform applies Yeo-Johnson per numeric field before scaling.
	PowerTransform bool
	Scaling        Scaling
	Encoding       Encoding
	Unknown        UnknownPolicy
}

// NewRecipe returns the default recipe: Yeo-Johnson, standardization,
// dummy encoding and an unknown-level bucket.
func NewRecipe() *Recipe {
	return &Recipe{
		PowerTransform: true,
		Scaling:        ScalingStandard,
		Encoding:       EncodingDummy,
		Unknown:        UnknownBucket,
	}
}

// Validate checks the step options.
func (r *Recipe) Validate() error {
	switch r.Scaling {
	case ScalingStandard, ScalingRange, ScalingNone:
	default:
		return errors.NewValidationError("recipe.scaling", "must be standard, range or none", r.Scaling)
	}
	switch r.Encoding {
	case EncodingDummy, EncodingOneHot:
	default:
		return errors.NewValidationError("recipe.encoding", "must be dummy or onehot", r.Encoding)
	}
	switch r.Unknown {
	case UnknownBucket, UnknownError:
	default:
		return errors.NewValidationError("recipe.unknown", "must be bucket or error", r.Unknown)
	}
	return nil
}

// FittedRecipe holds parameters estimated on one training view.
type FittedRecipe struct {
	schema  dataset.Schema
	power   *PowerTransformer
	scaler  model.Transformer
	encoder *OneHotEncoder
	names   []string
}

// Fit estimates all step parameters on train.
func (r *Recipe) Fit(train dataset.View) (*FittedRecipe, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if train.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "recipe fit")
	}

	schema := train.Schema()
	f := &FittedRecipe{schema: schema}

	if len(schema.Numeric) > 0 {
		var X mat.Matrix = train.NumericMatrix()
		if r.PowerTransform {
			f.power = NewPowerTransformer()
			out, err := f.power.FitTransform(X)
			if err != nil {
				return nil, errors.Wrap(err, "recipe fit: power transform")
			}
			X = out
		}
		switch r.Scaling {
		case ScalingStandard:
			f.scaler = NewStandardScalerDefault()
		case ScalingRange:
			f.scaler = NewMinMaxScalerDefault()
		}
		if f.scaler != nil {
			if err := f.scaler.Fit(X); err != nil {
				return nil, errors.Wrap(err, "recipe fit: scaling")
			}
		}
	}

	if len(schema.Categorical) > 0 {
		f.encoder = NewOneHotEncoder(r.Encoding, r.Unknown)
		if err := f.encoder.Fit(schema.Categorical, categoricalColumns(train)); err != nil {
			return nil, errors.Wrap(err, "recipe fit: encoding")
		}
	}

	f.names = append([]string(nil), schema.Numeric...)
	if f.encoder != nil {
		f.names = append(f.names, f.encoder.FeatureNames()...)
	}
	if len(f.names) == 0 {
		return nil, errors.NewValueError("recipe fit", "no output columns")
	}
	return f, nil
}

// Schema returns the schema the recipe was fitted on.
func (f *FittedRecipe) Schema() dataset.Schema { return f.schema }

// FeatureNames lists output columns: numeric fields in schema order, then
// encoded categorical columns.
func (f *FittedRecipe) FeatureNames() []string {
	return append([]string(nil), f.names...)
}

// Lambdas returns the fitted Yeo-Johnson parameters, or nil when the power
// transform is disabled.
func (f *FittedRecipe) Lambdas() []float64 {
	if f.power == nil {
		return nil
	}
	return append([]float64(nil), f.power.Lambdas...)
}

// Center returns the standardization means, or nil for other scalings.
func (f *FittedRecipe) Center() []float64 {
	if s, ok := f.scaler.(*StandardScaler); ok {
		return append([]float64(nil), s.Mean...)
	}
	return nil
}

// Apply transforms v with the fitted parameters. It fails with a
// SchemaMismatchError when v's schema differs from the fitted one.
func (f *FittedRecipe) Apply(v dataset.View) (*mat.Dense, error) {
	if !v.Schema().Equal(f.schema) {
		return nil, errors.NewSchemaMismatchError("recipe apply", f.schema.Fields(), v.Schema().Fields())
	}
	n := v.Len()
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "recipe apply")
	}

	out := mat.NewDense(n, len(f.names), nil)
	p := len(f.schema.Numeric)
	if p > 0 {
		var X mat.Matrix = v.NumericMatrix()
		var err error
		if f.power != nil {
			if X, err = f.power.Transform(X); err != nil {
				return nil, errors.Wrap(err, "recipe apply: power transform")
			}
		}
		if f.scaler != nil {
			if X, err = f.scaler.Transform(X); err != nil {
				return nil, errors.Wrap(err, "recipe apply: scaling")
			}
		}
		out.Slice(0, n, 0, p).(*mat.Dense).Copy(X)
	}
	if f.encoder != nil && f.encoder.Width() > 0 {
		enc, err := f.encoder.Transform(categoricalColumns(v))
		if err != nil {
			return nil, errors.Wrap(err, "recipe apply: encoding")
		}
		out.Slice(0, n, p, len(f.names)).(*mat.Dense).Copy(enc)
	}

	if err := errors.CheckMatrix("recipe apply", out, n, len(f.names)); err != nil {
		return nil, err
	}
	return out, nil
}

func categoricalColumns(v dataset.View) [][]string {
	cols := make([][]string, len(v.Schema().Categorical))
	for j := range cols {
		cols[j] = v.CategoricalColumn(j)
	}
	return cols
}
