// Package metrics implements binary classification metrics and a registry
// that tells the tuner which direction is better for each of them.
package metrics

import (
	"math"
	"sort"
)

// rocAUC はROC曲線下面積をMann-Whitney統計量として計算する。同順位は0.5として数える。
// 片方のクラスが無い場合は NaN。
func rocAUC(truth []int, score []float64) float64 {
	n := len(truth)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return score[order[a]] < score[order[b]] })

	var nPos, nNeg int
	var rankSumPos float64
	for i := 0; i < n; {
		j := i
		for j+1 < n && score[order[j+1]] == score[order[i]] {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if truth[order[k]] == 1 {
				nPos++
				rankSumPos += avgRank
			} else {
				nNeg++
			}
		}
		i = j + 1
	}
	if nPos == 0 || nNeg == 0 {
		return math.NaN()
	}
	u := rankSumPos - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg))
}
