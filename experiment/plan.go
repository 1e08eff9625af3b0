package experiment

import (
	"github.com/YuminosukeSato/churnsel/config"
	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	ms "github.com/YuminosukeSato/churnsel/sklearn/model_selection"
)

// Plan is one model family to evaluate. A nil Grid means the candidate has
// a fixed configuration and is only resampled; otherwise Param names the
// tuned parameter shown on the tuning plot.
type Plan struct {
	Candidate ms.Candidate
	Grid      ms.Grid
	Param     string
}

// Tuned reports whether the plan runs a grid search.
func (p Plan) Tuned() bool { return p.Grid != nil }

// Plans turns the enabled model sections of cfg into plans, in the order
// logistic regression, RDA, KNN, random forest. KNN is tuned when more than
// one neighborhood size is listed. The forest is seeded with cfg.Seed.
func Plans(cfg *config.Config) ([]Plan, error) {
	m := cfg.Models
	var plans []Plan
	add := func(family string, params model.Params, grid ms.Grid, param string) error {
		c, err := ms.NewCandidate(family, params)
		if err != nil {
			return err
		}
		plans = append(plans, Plan{Candidate: c, Grid: grid, Param: param})
		return nil
	}

	if m.Logistic.Enabled {
		if err := add(ms.LogisticRegression, model.Params{"C": m.Logistic.C}, nil, ""); err != nil {
			return nil, err
		}
	}
	if m.RDA.Enabled {
		params := model.Params{
			"frac_common_cov": m.RDA.FracCommonCov,
			"frac_identity":   m.RDA.FracIdentity,
		}
		if err := add(ms.RegularizedDA, params, nil, ""); err != nil {
			return nil, err
		}
	}
	if m.KNN.Enabled {
		var err error
		switch len(m.KNN.Neighbors) {
		case 0:
			err = errors.NewStageError(errors.StageTune, ms.KNearestNeighbors, "", -1,
				errors.NewEmptyGridError(ms.KNearestNeighbors))
		case 1:
			err = add(ms.KNearestNeighbors, model.Params{"n_neighbors": m.KNN.Neighbors[0]}, nil, "")
		default:
			values := make([]any, len(m.KNN.Neighbors))
			for i, k := range m.KNN.Neighbors {
				values[i] = k
			}
			grid := ms.ExpandGrid(map[string][]any{"n_neighbors": values})
			err = add(ms.KNearestNeighbors, model.Params{"n_neighbors": ms.Tune}, grid, "n_neighbors")
		}
		if err != nil {
			return nil, err
		}
	}
	if m.RandomForest.Enabled {
		rf := m.RandomForest
		params := model.Params{
			"n_estimators":     rf.NEstimators,
			"max_features":     rf.MaxFeatures,
			"min_samples_leaf": rf.MinSamplesLeaf,
			"random_state":     cfg.Seed,
		}
		if err := add(ms.RandomForest, params, nil, ""); err != nil {
			return nil, err
		}
	}

	if len(plans) == 0 {
		return nil, errors.NewValidationError("models", "at least one model must be enabled", nil)
	}
	return plans, nil
}
