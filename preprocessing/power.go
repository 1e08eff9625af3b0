package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/churnsel/core/model"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// PowerTransformer はYeo-Johnson変換で各列の分散を安定化する。
// λは訓練データ上の対数尤度最大化で列ごとに推定する（Nelder-Mead、初期値1）。
// 定数列はλ=1（恒等変換）のまま。
type PowerTransformer struct {
	state *model.StateManager

	// Lambdas は各特徴量の推定λ
	Lambdas []float64
}

// NewPowerTransformer は新しいPowerTransformerを作成する
func NewPowerTransformer() *PowerTransformer {
	return &PowerTransformer{state: model.NewStateManager()}
}

// Fit は列ごとにλを推定する
func (p *PowerTransformer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("PowerTransformer.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix("PowerTransformer.Fit", X, r, c); err != nil {
		return err
	}

	p.Lambdas = make([]float64, c)
	for j := 0; j < c; j++ {
		p.Lambdas[j] = estimateLambda(mat.Col(nil, j, X))
	}
	p.state.SetFitted(c, r)
	return nil
}

// Transform は学習済みλでYeo-Johnson変換を適用する
func (p *PowerTransformer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("PowerTransformer", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := p.state.RequireFeatures("PowerTransformer.Transform", c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return YeoJohnson(v, p.Lambdas[j])
	}, X)
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (p *PowerTransformer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// YeoJohnson は単一値のYeo-Johnson変換
func YeoJohnson(x, lambda float64) float64 {
	const eps = 1e-12
	if x >= 0 {
		if math.Abs(lambda) < eps {
			return math.Log1p(x)
		}
		return (math.Pow(x+1, lambda) - 1) / lambda
	}
	if math.Abs(lambda-2) < eps {
		return -math.Log1p(-x)
	}
	return -(math.Pow(1-x, 2-lambda) - 1) / (2 - lambda)
}

// yeoJohnsonLogLikelihood は正規分布を仮定したプロファイル対数尤度
func yeoJohnsonLogLikelihood(x []float64, lambda float64, buf []float64) float64 {
	var jacobian float64
	for i, v := range x {
		buf[i] = YeoJohnson(v, lambda)
		jacobian += math.Copysign(math.Log1p(math.Abs(v)), v)
	}
	_, variance := stat.PopMeanVariance(buf, nil)
	n := float64(len(x))
	return -n/2*errors.StabilizeLog(variance) + (lambda-1)*jacobian
}

func estimateLambda(x []float64) float64 {
	if _, variance := stat.PopMeanVariance(x, nil); variance < zeroScaleTol*zeroScaleTol {
		return 1
	}

	buf := make([]float64, len(x))
	problem := optimize.Problem{
		Func: func(l []float64) float64 {
			llf := yeoJohnsonLogLikelihood(x, l[0], buf)
			if math.IsNaN(llf) || math.IsInf(llf, 0) {
				return math.MaxFloat64
			}
			return -llf
		},
	}
	res, err := optimize.Minimize(problem, []float64{1}, nil, &optimize.NelderMead{})
	if res == nil || math.IsNaN(res.X[0]) || math.IsInf(res.X[0], 0) || res.F == math.MaxFloat64 {
		errors.Warn(errors.NewConvergenceWarning("yeo-johnson", 0, "lambda estimation failed; using identity (lambda=1)"))
		return 1
	}
	if err != nil {
		errors.Warn(errors.NewConvergenceWarning("yeo-johnson", res.Stats.MajorIterations, err.Error()))
	}
	return res.X[0]
}
