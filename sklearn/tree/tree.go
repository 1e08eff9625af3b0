// Package tree implements a CART decision tree for binary classification.
//
// 木は二値ラベル (0/1) 専用で、各ノードは陽性率を保持する。
// PredictProba は到達した葉の陽性率を返す。
package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Split criteria.
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

type node struct {
	feature     int
	threshold   float64
	left, right *node

	// positive is the fraction of class-1 samples that reached the node.
	positive float64
	samples  int
}

func (n *node) isLeaf() bool { return n.left == nil }

// DecisionTreeClassifier is a binary CART classifier.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion       string
	maxDepth        int // 0 = unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 = all features
	randomState     uint64

	root                *node
	featureImportances_ []float64
	depth_              int
	nLeaves_            int
}

// Option is a functional option for DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets the impurity measure ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many randomly drawn features are examined per
// split. 0 examines every feature.
func WithMaxFeatures(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = n }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed uint64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier creates a tree with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != CriterionGini && dt.criterion != CriterionEntropy {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.criterion)
	}
	if dt.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be non-negative", dt.maxDepth)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", dt.minSamplesLeaf)
	}
	if dt.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be non-negative", dt.maxFeatures)
	}
	return nil
}

// Fit grows the tree on every row of X.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	labels, err := model.CheckBinaryXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	n, _ := X.Dims()
	sample := make([]int, n)
	for i := range sample {
		sample[i] = i
	}
	return dt.FitSample(X, labels, sample)
}

// FitSample grows the tree on the rows of X listed in sample. Repeated
// indices count once per occurrence, which is how bootstrap replicates are
// passed in.
func (dt *DecisionTreeClassifier) FitSample(X mat.Matrix, labels []int, sample []int) error {
	if err := dt.validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	if n == 0 || p == 0 || len(sample) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "DecisionTreeClassifier.FitSample")
	}
	if len(labels) != n {
		return errors.NewDimensionError("DecisionTreeClassifier.FitSample", n, len(labels), 0)
	}
	for _, idx := range sample {
		if idx < 0 || idx >= n {
			return errors.NewValidationError("sample", "index out of range", idx)
		}
	}
	for _, l := range labels {
		if l != 0 && l != 1 {
			return errors.NewValidationError("y", "labels must be 0 or 1", l)
		}
	}

	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
	}
	b := &builder{
		tree:        dt,
		cols:        cols,
		labels:      labels,
		rng:         rand.New(rand.NewPCG(dt.randomState, dt.randomState^0x5851f42d4c957f2d)),
		importances: make([]float64, p),
		nTotal:      float64(len(sample)),
	}
	if dt.criterion == CriterionEntropy {
		b.impurity = entropy
	} else {
		b.impurity = gini
	}

	dt.state.Reset()
	dt.root = b.build(append([]int(nil), sample...), 0)
	dt.depth_ = b.depth
	dt.nLeaves_ = b.leaves

	var total float64
	for _, v := range b.importances {
		total += v
	}
	if total > 0 {
		for j := range b.importances {
			b.importances[j] /= total
		}
	}
	dt.featureImportances_ = b.importances
	dt.state.SetFitted(p, len(sample))
	return nil
}

type builder struct {
	tree        *DecisionTreeClassifier
	cols        [][]float64
	labels      []int
	impurity    func(pos, n int) float64
	rng         *rand.Rand
	importances []float64
	nTotal      float64

	depth  int
	leaves int
}

func (b *builder) leaf(nd *node, depth int) *node {
	b.leaves++
	if depth > b.depth {
		b.depth = depth
	}
	return nd
}

func (b *builder) build(sample []int, depth int) *node {
	var pos int
	for _, idx := range sample {
		pos += b.labels[idx]
	}
	n := len(sample)
	nd := &node{positive: float64(pos) / float64(n), samples: n}

	t := b.tree
	if pos == 0 || pos == n ||
		(t.maxDepth > 0 && depth >= t.maxDepth) ||
		n < t.minSamplesSplit || n < 2*t.minSamplesLeaf {
		return b.leaf(nd, depth)
	}

	parent := b.impurity(pos, n)
	feature, threshold, gain, ok := b.bestSplit(sample, pos, parent)
	if !ok {
		return b.leaf(nd, depth)
	}

	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, idx := range sample {
		if b.cols[feature][idx] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}

	b.importances[feature] += float64(n) / b.nTotal * gain
	nd.feature = feature
	nd.threshold = threshold
	nd.left = b.build(left, depth+1)
	nd.right = b.build(right, depth+1)
	return nd
}

func (b *builder) candidates() []int {
	p := len(b.cols)
	if m := b.tree.maxFeatures; m > 0 && m < p {
		return b.rng.Perm(p)[:m]
	}
	out := make([]int, p)
	for j := range out {
		out[j] = j
	}
	return out
}

// bestSplit returns the split with the largest impurity decrease. Zero-gain
// splits are allowed so XOR-like structure can still be carved out; the
// first feature in candidate order wins ties.
func (b *builder) bestSplit(sample []int, pos int, parent float64) (feature int, threshold, gain float64, ok bool) {
	n := len(sample)
	minLeaf := b.tree.minSamplesLeaf
	order := make([]int, n)
	best := math.Inf(-1)

	for _, j := range b.candidates() {
		col := b.cols[j]
		copy(order, sample)
		sort.Slice(order, func(a, c int) bool {
			if col[order[a]] != col[order[c]] {
				return col[order[a]] < col[order[c]]
			}
			return order[a] < order[c]
		})

		var leftPos int
		for i := 0; i < n-1; i++ {
			leftPos += b.labels[order[i]]
			lo, hi := col[order[i]], col[order[i+1]]
			if lo == hi {
				continue
			}
			nLeft := i + 1
			nRight := n - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}
			child := (float64(nLeft)*b.impurity(leftPos, nLeft) +
				float64(nRight)*b.impurity(pos-leftPos, nRight)) / float64(n)
			if g := parent - child; g > best {
				best = g
				feature = j
				threshold = lo + (hi-lo)/2
				ok = true
			}
		}
	}
	return feature, threshold, math.Max(best, 0), ok
}

func gini(pos, n int) float64 {
	p := float64(pos) / float64(n)
	return 1 - p*p - (1-p)*(1-p)
}

func entropy(pos, n int) float64 {
	p := float64(pos) / float64(n)
	var h float64
	for _, q := range [2]float64{p, 1 - p} {
		if q > 0 {
			h -= q * math.Log2(q)
		}
	}
	return h
}

func (dt *DecisionTreeClassifier) positives(op string, X mat.Matrix) ([]float64, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", op); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeClassifier."+op, p); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	row := make([]float64, p)
	for i := range out {
		mat.Row(row, i, X)
		out[i] = dt.leafFor(row).positive
	}
	return out, nil
}

func (dt *DecisionTreeClassifier) leafFor(row []float64) *node {
	nd := dt.root
	for !nd.isLeaf() {
		if row[nd.feature] <= nd.threshold {
			nd = nd.left
		} else {
			nd = nd.right
		}
	}
	return nd
}

// PositiveRates returns P(y=1) for each row of X.
func (dt *DecisionTreeClassifier) PositiveRates(X mat.Matrix) ([]float64, error) {
	return dt.positives("PositiveRates", X)
}

// PredictProba returns the leaf class frequencies as an n×2 matrix.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	pos, err := dt.positives("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return model.ProbaMatrix(pos), nil
}

// Predict returns the leaf majority class.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	pos, err := dt.positives("Predict", X)
	if err != nil {
		return nil, err
	}
	return model.ThresholdLabels(pos), nil
}

// Score returns the mean accuracy on the given data.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	var correct int
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// GetFeatureImportances returns the normalised total impurity decrease per
// feature. All zeros when the tree is a single leaf.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the deepest leaf; a single leaf has depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int { return dt.depth_ }

// GetNLeaves returns the number of leaves.
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.nLeaves_ }

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() model.Params {
	return model.Params{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams updates hyperparameters. Unknown keys are rejected.
func (dt *DecisionTreeClassifier) SetParams(params model.Params) error {
	for _, key := range params.Keys() {
		var err error
		switch key {
		case "criterion":
			s, ok := params[key].(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", params[key])
			}
			dt.criterion = s
		case "max_depth":
			dt.maxDepth, err = params.Int(key)
		case "min_samples_split":
			dt.minSamplesSplit, err = params.Int(key)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = params.Int(key)
		case "max_features":
			dt.maxFeatures, err = params.Int(key)
		case "random_state":
			dt.randomState, err = params.Uint64(key)
		default:
			return errors.NewValidationError(key, "unknown parameter", params[key])
		}
		if err != nil {
			return err
		}
	}
	return nil
}
