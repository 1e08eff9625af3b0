// Package discriminant_analysis implements Friedman's regularized
// discriminant analysis for binary outcomes. frac_common_cov = 1 gives
// linear discriminant analysis; frac_common_cov = 0 gives quadratic.
package discriminant_analysis

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

const maxJitterTries = 8

// RegularizedDiscriminantAnalysis models each class as a Gaussian whose
// covariance is shrunk towards the pooled covariance (λ) and then towards a
// scaled identity (γ):
//
//	Σk(λ)   = (1-λ)Σk + λΣpooled
//	Σk(λ,γ) = (1-γ)Σk(λ) + γ·tr(Σk(λ))/p·I
type RegularizedDiscriminantAnalysis struct {
	state *model.StateManager

	fracCommonCov float64 // λ
	fracIdentity  float64 // γ

	// active は学習データで分散が0でない特徴量の列番号
	active   []int
	means    [2]*mat.VecDense
	chol     [2]*mat.Cholesky
	logPrior [2]float64
	logDet   [2]float64
}

// RDAOption is a functional option for RegularizedDiscriminantAnalysis.
type RDAOption func(*RegularizedDiscriminantAnalysis)

// WithFracCommonCov sets λ, the weight of the pooled covariance.
func WithFracCommonCov(lambda float64) RDAOption {
	return func(r *RegularizedDiscriminantAnalysis) { r.fracCommonCov = lambda }
}

// WithFracIdentity sets γ, the weight of the scaled identity.
func WithFracIdentity(gamma float64) RDAOption {
	return func(r *RegularizedDiscriminantAnalysis) { r.fracIdentity = gamma }
}

// NewRegularizedDiscriminantAnalysis defaults to λ=1, γ=0 (LDA).
func NewRegularizedDiscriminantAnalysis(opts ...RDAOption) *RegularizedDiscriminantAnalysis {
	r := &RegularizedDiscriminantAnalysis{
		state:         model.NewStateManager(),
		fracCommonCov: 1,
		fracIdentity:  0,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit estimates class means, priors and regularized covariances.
func (r *RegularizedDiscriminantAnalysis) Fit(X, y mat.Matrix) error {
	if r.fracCommonCov < 0 || r.fracCommonCov > 1 {
		return errors.NewValidationError("frac_common_cov", "must be in [0, 1]", r.fracCommonCov)
	}
	if r.fracIdentity < 0 || r.fracIdentity > 1 {
		return errors.NewValidationError("frac_identity", "must be in [0, 1]", r.fracIdentity)
	}
	labels, err := model.CheckBinaryXY("RegularizedDiscriminantAnalysis.Fit", X, y)
	if err != nil {
		return err
	}
	n, p := X.Dims()

	var groups [2][]int
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	if len(groups[0]) == 0 || len(groups[1]) == 0 {
		return errors.NewValueError("RegularizedDiscriminantAnalysis.Fit", "both classes must be present")
	}
	if n <= 2 {
		return errors.NewValueError("RegularizedDiscriminantAnalysis.Fit", "at least three samples are required")
	}

	// Constant columns carry no information and make every covariance singular.
	r.active = activeFeatures(X)
	if len(r.active) == 0 {
		return errors.NewValueError("RegularizedDiscriminantAnalysis.Fit", "all features are constant")
	}
	q := len(r.active)

	var covs [2]*mat.SymDense
	pooled := mat.NewSymDense(q, nil)
	for k := 0; k < 2; k++ {
		rows := mat.NewDense(len(groups[k]), q, nil)
		for i, idx := range groups[k] {
			for j, col := range r.active {
				rows.Set(i, j, X.At(idx, col))
			}
		}
		mean := make([]float64, q)
		for j := 0; j < q; j++ {
			mean[j] = stat.Mean(mat.Col(nil, j, rows), nil)
		}
		r.means[k] = mat.NewVecDense(q, mean)
		r.logPrior[k] = math.Log(float64(len(groups[k])) / float64(n))

		covs[k] = mat.NewSymDense(q, nil)
		if len(groups[k]) > 1 {
			stat.CovarianceMatrix(covs[k], rows, nil)
			// pooled = Σ (n_k - 1) Σk / (n - 2)
			var scaled mat.SymDense
			scaled.ScaleSym(float64(len(groups[k])-1)/float64(n-2), covs[k])
			pooled.AddSym(pooled, &scaled)
		}
	}

	for k := 0; k < 2; k++ {
		sigma := r.regularize(covs[k], pooled)
		chol, err := factorize(sigma)
		if err != nil {
			return errors.NewModelError("RegularizedDiscriminantAnalysis.Fit", "covariance is not positive definite", err)
		}
		r.chol[k] = chol
		r.logDet[k] = chol.LogDet()
	}

	r.state.SetFitted(p, n)
	return nil
}

// activeFeatures returns the columns of X whose values are not all equal.
func activeFeatures(X mat.Matrix) []int {
	n, p := X.Dims()
	var active []int
	for j := 0; j < p; j++ {
		first := X.At(0, j)
		for i := 1; i < n; i++ {
			if X.At(i, j) != first {
				active = append(active, j)
				break
			}
		}
	}
	return active
}

// ActiveFeatures returns the column indices used by the fitted model.
func (r *RegularizedDiscriminantAnalysis) ActiveFeatures() []int {
	return append([]int(nil), r.active...)
}

func (r *RegularizedDiscriminantAnalysis) regularize(classCov, pooled *mat.SymDense) *mat.SymDense {
	p := classCov.SymmetricDim()
	out := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			out.SetSym(i, j, (1-r.fracCommonCov)*classCov.At(i, j)+r.fracCommonCov*pooled.At(i, j))
		}
	}
	if r.fracIdentity > 0 {
		var trace float64
		for i := 0; i < p; i++ {
			trace += out.At(i, i)
		}
		for i := 0; i < p; i++ {
			for j := i; j < p; j++ {
				v := (1 - r.fracIdentity) * out.At(i, j)
				if i == j {
					v += r.fracIdentity * trace / float64(p)
				}
				out.SetSym(i, j, v)
			}
		}
	}
	return out
}

// factorize adds a growing ridge to the diagonal until Cholesky succeeds.
func factorize(sigma *mat.SymDense) (*mat.Cholesky, error) {
	p := sigma.SymmetricDim()
	var trace float64
	for i := 0; i < p; i++ {
		trace += sigma.At(i, i)
	}
	scale := trace / float64(p)
	if scale <= 0 || math.IsNaN(scale) {
		scale = 1
	}

	work := mat.NewSymDense(p, nil)
	work.CopySym(sigma)
	jitter := 0.0
	for try := 0; try <= maxJitterTries; try++ {
		var chol mat.Cholesky
		if chol.Factorize(work) {
			if jitter > 0 {
				errors.Warn(errors.NewConvergenceWarning("rda-cholesky", try,
					"covariance regularized with diagonal jitter"))
			}
			return &chol, nil
		}
		if jitter == 0 {
			jitter = 1e-10 * scale
		} else {
			jitter *= 100
		}
		for i := 0; i < p; i++ {
			work.SetSym(i, i, sigma.At(i, i)+jitter)
		}
	}
	return nil, errors.ErrSingularMatrix
}

// logPosteriorOdds returns log P(y=1|x) - log P(y=0|x) per row.
func (r *RegularizedDiscriminantAnalysis) logPosteriorOdds(op string, X mat.Matrix) ([]float64, error) {
	if err := r.state.RequireFitted("RegularizedDiscriminantAnalysis", op); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := r.state.RequireFeatures("RegularizedDiscriminantAnalysis."+op, p); err != nil {
		return nil, err
	}

	q := len(r.active)
	out := make([]float64, n)
	diff := mat.NewVecDense(q, nil)
	solved := mat.NewVecDense(q, nil)
	for i := 0; i < n; i++ {
		var score [2]float64
		for k := 0; k < 2; k++ {
			for j, col := range r.active {
				diff.SetVec(j, X.At(i, col)-r.means[k].AtVec(j))
			}
			if err := r.chol[k].SolveVecTo(solved, diff); err != nil {
				return nil, errors.NewModelError("RegularizedDiscriminantAnalysis."+op, "solve failed", err)
			}
			mahal := mat.Dot(diff, solved)
			score[k] = -0.5*r.logDet[k] - 0.5*mahal + r.logPrior[k]
		}
		out[i] = score[1] - score[0]
	}
	return out, nil
}

// PredictProba returns an n×2 matrix of posterior class probabilities.
func (r *RegularizedDiscriminantAnalysis) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	odds, err := r.logPosteriorOdds("PredictProba", X)
	if err != nil {
		return nil, err
	}
	pos := make([]float64, len(odds))
	for i, o := range odds {
		// 1/(1+e^{-o}) = exp(-log(e^0 + e^{-o}))
		pos[i] = math.Exp(-errors.LogSumExp([]float64{0, -o}))
	}
	return model.ProbaMatrix(pos), nil
}

// Predict returns the maximum a posteriori class.
func (r *RegularizedDiscriminantAnalysis) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := r.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ThresholdLabels(model.PositiveColumn(proba)), nil
}

// Means returns the fitted class means over ActiveFeatures.
func (r *RegularizedDiscriminantAnalysis) Means() [2][]float64 {
	var out [2][]float64
	for k := 0; k < 2; k++ {
		if r.means[k] != nil {
			out[k] = mat.Col(nil, 0, r.means[k])
		}
	}
	return out
}

// GetParams returns the hyperparameters.
func (r *RegularizedDiscriminantAnalysis) GetParams() model.Params {
	return model.Params{
		"frac_common_cov": r.fracCommonCov,
		"frac_identity":   r.fracIdentity,
	}
}
