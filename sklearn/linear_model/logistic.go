// Package linear_model provides L2-penalised logistic regression for binary
// outcomes, fitted by L-BFGS.
package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// DefaultC makes the penalty negligible so the fit matches an unpenalised
// GLM on well-conditioned data while staying finite on separable data.
const DefaultC = 1e4

// LogisticRegression implements binary logistic regression.
// Compatible with scikit-learn's LogisticRegression(penalty="l2", solver="lbfgs").
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	maxIter      int     // Maximum L-BFGS iterations
	tol          float64 // Gradient norm threshold

	// Model parameters
	coef_      []float64
	intercept_ float64
	nIter_     int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		C:            DefaultC,
		fitIntercept: true,
		maxIter:      200,
		tol:          1e-6,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}
	labels, err := model.CheckBinaryXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	nSamples, nFeatures := X.Dims()

	rows := make([][]float64, nSamples)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	target := make([]float64, nSamples)
	for i, l := range labels {
		target[i] = float64(l)
	}

	// params = [w_0..w_{p-1}, b]; b stays 0 without an intercept
	alpha := 1 / lr.C
	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			w, b := params[:nFeatures], lr.bias(params)
			var loss float64
			for i, row := range rows {
				z := floats.Dot(w, row) + b
				loss += softplus(z) - target[i]*z
			}
			return loss + 0.5*alpha*floats.Dot(w, w)
		},
		Grad: func(grad, params []float64) {
			w, b := params[:nFeatures], lr.bias(params)
			for j := range grad {
				grad[j] = 0
			}
			for i, row := range rows {
				r := sigmoid(floats.Dot(w, row)+b) - target[i]
				floats.AddScaled(grad[:nFeatures], r, row)
				if lr.fitIntercept {
					grad[nFeatures] += r
				}
			}
			floats.AddScaled(grad[:nFeatures], alpha, w)
		},
	}

	init := make([]float64, nFeatures+1)
	settings := &optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	result, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if result == nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}
	if unstable := errors.CheckNumericalStability("lbfgs", result.X, result.Stats.MajorIterations); unstable != nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization failed", unstable)
	}
	if err != nil || result.Status == optimize.IterationLimit {
		msg := fmt.Sprintf("L-BFGS stopped with status %v", result.Status)
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.Stats.MajorIterations, msg))
	}

	lr.coef_ = append([]float64(nil), result.X[:nFeatures]...)
	lr.intercept_ = lr.bias(result.X)
	lr.nIter_ = result.Stats.MajorIterations
	lr.state.SetFitted(nFeatures, nSamples)
	return nil
}

func (lr *LogisticRegression) bias(params []float64) float64 {
	if !lr.fitIntercept {
		return 0
	}
	return params[len(params)-1]
}

// decision returns P(y=1) per row.
func (lr *LogisticRegression) decision(op string, X mat.Matrix) ([]float64, error) {
	if err := lr.state.RequireFitted("LogisticRegression", op); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression."+op, p); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	row := make([]float64, p)
	for i := range out {
		mat.Row(row, i, X)
		out[i] = sigmoid(floats.Dot(lr.coef_, row) + lr.intercept_)
	}
	return out, nil
}

// Predict returns 0/1 labels at probability threshold 0.5.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	pos, err := lr.decision("Predict", X)
	if err != nil {
		return nil, err
	}
	return model.ThresholdLabels(pos), nil
}

// PredictProba returns an n×2 matrix of class probabilities.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	pos, err := lr.decision("PredictProba", X)
	if err != nil {
		return nil, err
	}
	return model.ProbaMatrix(pos), nil
}

// Score returns the mean accuracy on the given data.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
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

// Coef returns the fitted coefficients.
func (lr *LogisticRegression) Coef() []float64 { return append([]float64(nil), lr.coef_...) }

// Intercept returns the fitted intercept.
func (lr *LogisticRegression) Intercept() float64 { return lr.intercept_ }

// NIter returns the number of L-BFGS iterations of the last fit.
func (lr *LogisticRegression) NIter() int { return lr.nIter_ }

// GetParams returns the hyperparameters.
func (lr *LogisticRegression) GetParams() model.Params {
	return model.Params{
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// sigmoid computes the sigmoid function without overflow.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus computes log(1+exp(z)) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
