package metrics

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// ROCPoint is one operating point of a ROC curve. Threshold is the minimum
// score classified as positive; the first point uses +Inf.
type ROCPoint struct {
	Threshold float64 `json:"threshold"`
	FPR       float64 `json:"fpr"`
	TPR       float64 `json:"tpr"`
}

// ROCCurve sweeps every distinct score as a threshold, from the highest
// down, so the curve starts at (0,0) and ends at (1,1).
func ROCCurve(truth []int, score []float64) ([]ROCPoint, error) {
	if len(truth) == 0 {
		return nil, errors.NewValueError("ROCCurve", "empty input")
	}
	if len(score) != len(truth) {
		return nil, errors.NewDimensionError("ROCCurve", len(truth), len(score), 0)
	}

	var nPos, nNeg int
	for _, y := range truth {
		if y == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return nil, errors.NewValueError("ROCCurve", "both classes are required")
	}

	order := make([]int, len(score))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return score[order[a]] > score[order[b]] })

	points := []ROCPoint{{Threshold: math.Inf(1)}}
	var tp, fp int
	for i := 0; i < len(order); {
		thr := score[order[i]]
		for i < len(order) && score[order[i]] == thr {
			if truth[order[i]] == 1 {
				tp++
			} else {
				fp++
			}
			i++
		}
		points = append(points, ROCPoint{
			Threshold: thr,
			FPR:       float64(fp) / float64(nNeg),
			TPR:       float64(tp) / float64(nPos),
		})
	}
	return points, nil
}

// TrapezoidAUC integrates a ROC curve.
func TrapezoidAUC(points []ROCPoint) float64 {
	var area float64
	for i := 1; i < len(points); i++ {
		area += (points[i].FPR - points[i-1].FPR) * (points[i].TPR + points[i-1].TPR) / 2
	}
	return area
}
