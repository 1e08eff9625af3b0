package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Classifier は二値分類モデルのインターフェース。
// ラベルは 0 (陰性) と 1 (陽性) に限る。
type Classifier interface {
	Fitter
	Predictor

	// PredictProba は n×2 の確率行列を返す。列1が P(y=1)。
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// GetParams はハイパーパラメータを返す
	GetParams() Params
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// PositiveColumn extracts P(y=1) from an n×2 PredictProba result.
func PositiveColumn(proba mat.Matrix) []float64 {
	n, _ := proba.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = proba.At(i, 1)
	}
	return out
}
