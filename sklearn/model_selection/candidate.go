package model_selection

import (
	"sort"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/sklearn/discriminant_analysis"
	"github.com/YuminosukeSato/churnsel/sklearn/ensemble"
	"github.com/YuminosukeSato/churnsel/sklearn/linear_model"
	"github.com/YuminosukeSato/churnsel/sklearn/neighbors"
)

// Model family names.
const (
	LogisticRegression = "logistic_regression"
	RegularizedDA      = "regularized_discriminant_analysis"
	KNearestNeighbors  = "k_nearest_neighbors"
	RandomForest       = "random_forest"
)

// TuneMarker is the type of Tune.
type TuneMarker struct{}

func (TuneMarker) String() string { return "tune()" }

// Tune marks a hyperparameter whose value is chosen by the Tuner.
var Tune = TuneMarker{}

// IsTune reports whether v is the Tune marker.
func IsTune(v any) bool {
	_, ok := v.(TuneMarker)
	return ok
}

// Family builds fresh classifiers of one kind from a parameter set.
// Defaults lists every parameter the family accepts.
type Family struct {
	Name     string
	Defaults model.Params
	Build    func(model.Params) (model.Classifier, error)
}

// Candidate is a model family with parameter overrides. Override values
// may be Tune.
type Candidate struct {
	Family Family
	Params model.Params
}

// Name returns the family name.
func (c Candidate) Name() string { return c.Family.Name }

// TunedKeys lists the parameters marked Tune, sorted.
func (c Candidate) TunedKeys() []string {
	var keys []string
	for _, k := range c.Params.Keys() {
		if IsTune(c.Params[k]) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Resolve overlays the family defaults with the candidate params and then
// with override. Unknown keys and Tune markers left unresolved are
// validation errors.
func (c Candidate) Resolve(override model.Params) (model.Params, error) {
	out := c.Family.Defaults.Merge(c.Params).Merge(override)
	for _, k := range out.Keys() {
		if _, ok := c.Family.Defaults[k]; !ok {
			return nil, errors.NewValidationError(k, "unknown parameter for "+c.Family.Name, out[k])
		}
		if IsTune(out[k]) {
			return nil, errors.NewValidationError(k, "marked for tuning but no value was supplied", nil)
		}
	}
	return out, nil
}

// Build creates a fresh classifier for the resolved params.
func (c Candidate) Build(params model.Params) (model.Classifier, error) {
	if c.Family.Build == nil {
		return nil, errors.NewValidationError("family", "has no builder", c.Family.Name)
	}
	return c.Family.Build(params)
}

var families = map[string]Family{
	LogisticRegression: {
		Name:     LogisticRegression,
		Defaults: model.Params{"C": linear_model.DefaultC},
		Build: func(p model.Params) (model.Classifier, error) {
			c, err := p.Float("C")
			if err != nil {
				return nil, err
			}
			return linear_model.NewLogisticRegression(linear_model.WithLRC(c)), nil
		},
	},
	RegularizedDA: {
		Name:     RegularizedDA,
		Defaults: model.Params{"frac_common_cov": 1.0, "frac_identity": 0.0},
		Build: func(p model.Params) (model.Classifier, error) {
			lambda, err := p.Float("frac_common_cov")
			if err != nil {
				return nil, err
			}
			gamma, err := p.Float("frac_identity")
			if err != nil {
				return nil, err
			}
			return discriminant_analysis.NewRegularizedDiscriminantAnalysis(
				discriminant_analysis.WithFracCommonCov(lambda),
				discriminant_analysis.WithFracIdentity(gamma),
			), nil
		},
	},
	KNearestNeighbors: {
		Name:     KNearestNeighbors,
		Defaults: model.Params{"n_neighbors": 5},
		Build: func(p model.Params) (model.Classifier, error) {
			k, err := p.Int("n_neighbors")
			if err != nil {
				return nil, err
			}
			return neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(k)), nil
		},
	},
	RandomForest: {
		Name: RandomForest,
		Defaults: model.Params{
			"n_estimators":     500,
			"max_features":     0,
			"min_samples_leaf": 1,
			"random_state":     uint64(0),
		},
		Build: func(p model.Params) (model.Classifier, error) {
			trees, err := p.Int("n_estimators")
			if err != nil {
				return nil, err
			}
			mtry, err := p.Int("max_features")
			if err != nil {
				return nil, err
			}
			leaf, err := p.Int("min_samples_leaf")
			if err != nil {
				return nil, err
			}
			seed, err := p.Uint64("random_state")
			if err != nil {
				return nil, err
			}
			return ensemble.NewRandomForestClassifier(
				ensemble.WithNEstimators(trees),
				ensemble.WithMaxFeatures(mtry),
				ensemble.WithMinSamplesLeaf(leaf),
				ensemble.WithRandomState(seed),
			), nil
		},
	},
}

// LookupFamily returns a registered family by name.
func LookupFamily(name string) (Family, error) {
	f, ok := families[name]
	if !ok {
		return Family{}, errors.NewValidationError("model", "unknown model family", name)
	}
	f.Defaults = f.Defaults.Clone()
	return f, nil
}

// Families returns the registered family names, sorted.
func Families() []string {
	out := make([]string, 0, len(families))
	for name := range families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewCandidate builds a candidate for a registered family.
func NewCandidate(family string, params model.Params) (Candidate, error) {
	f, err := LookupFamily(family)
	if err != nil {
		return Candidate{}, err
	}
	if params == nil {
		params = model.Params{}
	}
	c := Candidate{Family: f, Params: params.Clone()}
	for _, k := range c.Params.Keys() {
		if _, ok := f.Defaults[k]; !ok {
			return Candidate{}, errors.NewValidationError(k, "unknown parameter for "+family, c.Params[k])
		}
	}
	return c, nil
}
