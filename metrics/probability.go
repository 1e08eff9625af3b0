package metrics

import (
	"math"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// logLossEps は log(0) を避けるための確率のクリップ幅
const logLossEps = 1e-15

// brier は陽性確率の平均二乗誤差（小さいほど良い）
func brier(truth []int, prob []float64) float64 {
	if len(truth) == 0 {
		return math.NaN()
	}
	var sum float64
	for i, y := range truth {
		d := prob[i] - float64(y)
		sum += d * d
	}
	return sum / float64(len(truth))
}

// logLoss は二値交差エントロピー（小さいほど良い）。確率は [eps, 1-eps] にクリップされる
func logLoss(truth []int, prob []float64) float64 {
	if len(truth) == 0 {
		return math.NaN()
	}
	var sum float64
	for i, y := range truth {
		p := errors.ClipValue(prob[i], logLossEps, 1-logLossEps)
		if y == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(len(truth))
}
