package metrics

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// DefaultThreshold は陽性確率をクラスに変換する閾値
const DefaultThreshold = 0.5

// ConfusionMatrix は二値分類の混同行列（陽性 = 1）
type ConfusionMatrix struct {
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// NewConfusionMatrix は真のラベルと予測ラベルから混同行列を作る
func NewConfusionMatrix(truth, pred []int) (ConfusionMatrix, error) {
	var cm ConfusionMatrix
	if len(truth) != len(pred) {
		return cm, errors.NewDimensionError("ConfusionMatrix", len(truth), len(pred), 0)
	}
	for i, y := range truth {
		switch {
		case y == 1 && pred[i] == 1:
			cm.TP++
		case y == 0 && pred[i] == 0:
			cm.TN++
		case y == 0 && pred[i] == 1:
			cm.FP++
		case y == 1 && pred[i] == 0:
			cm.FN++
		default:
			return ConfusionMatrix{}, errors.NewValidationError("labels", "must be 0 or 1", fmt.Sprintf("(%d, %d)", y, pred[i]))
		}
	}
	return cm, nil
}

// ConfusionAt は陽性確率を threshold で二値化して混同行列を作る
func ConfusionAt(truth []int, prob []float64, threshold float64) ConfusionMatrix {
	var cm ConfusionMatrix
	for i, y := range truth {
		pos := prob[i] >= threshold
		switch {
		case y == 1 && pos:
			cm.TP++
		case y == 1:
			cm.FN++
		case pos:
			cm.FP++
		default:
			cm.TN++
		}
	}
	return cm
}

// Total returns the number of samples.
func (c ConfusionMatrix) Total() int { return c.TP + c.TN + c.FP + c.FN }

// Accuracy は正解率。サンプルが無い場合は NaN。
func (c ConfusionMatrix) Accuracy() float64 {
	return errors.SafeDivide(float64(c.TP+c.TN), float64(c.Total()))
}

// Sensitivity は真陽性率 TP/(TP+FN)。陽性が無い場合は NaN。
func (c ConfusionMatrix) Sensitivity() float64 {
	return errors.SafeDivide(float64(c.TP), float64(c.TP+c.FN))
}

// Recall is Sensitivity.
func (c ConfusionMatrix) Recall() float64 { return c.Sensitivity() }

// Specificity は真陰性率 TN/(TN+FP)。陰性が無い場合は NaN。
func (c ConfusionMatrix) Specificity() float64 {
	return errors.SafeDivide(float64(c.TN), float64(c.TN+c.FP))
}

// Precision は陽性的中率 TP/(TP+FP)。陽性予測が無い場合は NaN。
func (c ConfusionMatrix) Precision() float64 {
	return errors.SafeDivide(float64(c.TP), float64(c.TP+c.FP))
}

// F1 は適合率と再現率の調和平均
func (c ConfusionMatrix) F1() float64 {
	return errors.SafeDivide(float64(2*c.TP), float64(2*c.TP+c.FP+c.FN))
}

// Kappa はCohenのκ係数。偶然一致率が1の場合は NaN。
func (c ConfusionMatrix) Kappa() float64 {
	n := float64(c.Total())
	if n == 0 {
		return errors.SafeDivide(0, 0)
	}
	po := float64(c.TP+c.TN) / n
	pe := (float64(c.TP+c.FN)*float64(c.TP+c.FP) + float64(c.TN+c.FP)*float64(c.TN+c.FN)) / (n * n)
	return errors.SafeDivide(po-pe, 1-pe)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (c ConfusionMatrix) MarshalZerologObject(e *zerolog.Event) {
	e.Int("tp", c.TP).Int("tn", c.TN).Int("fp", c.FP).Int("fn", c.FN)
}
