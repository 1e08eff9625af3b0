// Package ensemble implements bagged decision-tree ensembles.
package ensemble

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/core/parallel"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
	"github.com/YuminosukeSato/churnsel/sklearn/tree"
)

// RandomForestClassifier averages the leaf positive rates of gini CART trees
// grown on bootstrap replicates with random feature subsets per split.
//
// 各木のシードは random_state と木の番号から決まるため、
// ワーカー数やスケジューリングに関係なく同じ森が得られる。
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators    int
	maxFeatures    int // 0 = floor(sqrt(p))
	minSamplesLeaf int
	maxDepth       int
	randomState    uint64
	nJobs          int

	trees []*tree.DecisionTreeClassifier
}

// Option is a functional option for RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithMaxFeatures sets the features examined per split; 0 uses floor(sqrt(p)).
func WithMaxFeatures(n int) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = n }
}

// WithMinSamplesLeaf sets the minimum leaf size of each tree.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxDepth limits the depth of each tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithRandomState seeds bootstrap sampling and feature sampling.
func WithRandomState(seed uint64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs bounds the goroutines used to grow trees. 0 uses every CPU.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// NewRandomForestClassifier creates a forest of 500 trees, matching the
// randomForest package default.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:          model.NewStateManager(),
		nEstimators:    500,
		minSamplesLeaf: 1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// resolvedMaxFeatures returns the per-split feature count for p features.
func (rf *RandomForestClassifier) resolvedMaxFeatures(p int) int {
	if rf.maxFeatures > 0 {
		return rf.maxFeatures
	}
	return max(1, int(math.Floor(math.Sqrt(float64(p)))))
}

// Fit grows the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.nEstimators)
	}
	if rf.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be non-negative", rf.maxFeatures)
	}
	if rf.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", rf.minSamplesLeaf)
	}
	labels, err := model.CheckBinaryXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	n, p := X.Dims()
	mtry := rf.resolvedMaxFeatures(p)
	if mtry > p {
		return errors.NewValidationError("max_features", "must not exceed the number of features", rf.maxFeatures)
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	perr := parallel.ForEach(rf.nEstimators, rf.nJobs, func(i int) {
		rng := rand.New(rand.NewPCG(rf.randomState, uint64(i)))
		sample := make([]int, n)
		for k := range sample {
			sample[k] = rng.IntN(n)
		}
		dt := tree.NewDecisionTreeClassifier(
			tree.WithCriterion(tree.CriterionGini),
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(mtry),
			tree.WithRandomState(rng.Uint64()),
		)
		if err := dt.FitSample(X, labels, sample); err != nil {
			errs[i] = errors.Wrapf(err, "tree %d", i)
			return
		}
		trees[i] = dt
	})
	if perr != nil {
		return errors.NewModelError("RandomForestClassifier.Fit", "tree fitting panicked", perr)
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	rf.trees = trees
	rf.state.SetFitted(p, n)
	return nil
}

func (rf *RandomForestClassifier) positives(op string, X mat.Matrix) ([]float64, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", op); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := rf.state.RequireFeatures("RandomForestClassifier."+op, p); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for _, dt := range rf.trees {
		rates, err := dt.PositiveRates(X)
		if err != nil {
			return nil, err
		}
		for i, r := range rates {
			out[i] += r
		}
	}
	scale := 1 / float64(len(rf.trees))
	for i := range out {
		out[i] *= scale
	}
	return out, nil
}

// PredictProba returns the mean leaf positive rate across trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	pos, err := rf.positives("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return model.ProbaMatrix(pos), nil
}

// Predict thresholds the averaged probability at 0.5.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	pos, err := rf.positives("Predict", X)
	if err != nil {
		return nil, err
	}
	return model.ThresholdLabels(pos), nil
}

// FeatureImportances averages the trees' normalised impurity decreases.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	if len(rf.trees) == 0 {
		return nil
	}
	var out []float64
	for _, dt := range rf.trees {
		imp := dt.GetFeatureImportances()
		if out == nil {
			out = make([]float64, len(imp))
		}
		for j, v := range imp {
			out[j] += v / float64(len(rf.trees))
		}
	}
	return out
}

// NTrees returns the number of fitted trees.
func (rf *RandomForestClassifier) NTrees() int { return len(rf.trees) }

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() model.Params {
	return model.Params{
		"n_estimators":     rf.nEstimators,
		"max_features":     rf.maxFeatures,
		"min_samples_leaf": rf.minSamplesLeaf,
		"max_depth":        rf.maxDepth,
		"random_state":     rf.randomState,
	}
}
