// Package model_selection provides stratified splitting, stratified k-fold
// resampling, the resampling evaluator, the grid tuner and the final
// train/test evaluation.
//
// すべての乱数は明示的なシードから PCG で生成されるため、
// 同じデータとシードからは常に同じ分割・結果が得られる。
package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/churnsel/dataset"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Split is a stratified partition of a view into train and test pieces.
// Both index lists are in ascending view order.
type Split struct {
	Train dataset.View
	Test  dataset.View
	Seed  uint64
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// TrainTestSplit partitions v so that round(n*trainFraction) rows go to
// train. Each class receives its proportional share with leftover rows
// handed out by largest remainder (ties go to class 0 first). Within a
// class, rows are shuffled and the leading quota is kept for training.
func TrainTestSplit(v dataset.View, trainFraction float64, seed uint64) (*Split, error) {
	if !(trainFraction > 0 && trainFraction < 1) {
		return nil, errors.NewValidationError("train_fraction", "must be in (0, 1)", trainFraction)
	}
	n := v.Len()
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "TrainTestSplit")
	}
	total := int(math.Round(float64(n) * trainFraction))
	if total == 0 || total == n {
		return nil, errors.NewValidationError("train_fraction",
			"leaves the train or test side empty", trainFraction)
	}

	groups := v.ByClass()
	quota := classQuotas(groups, total, n)

	rng := newRNG(seed)
	train := make([]int, 0, total)
	test := make([]int, 0, n-total)
	for c, g := range groups {
		shuffled := append([]int(nil), g...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		train = append(train, shuffled[:quota[c]]...)
		test = append(test, shuffled[quota[c]:]...)
	}
	sort.Ints(train)
	sort.Ints(test)

	return &Split{Train: v.Subset(train), Test: v.Subset(test), Seed: seed}, nil
}

// classQuotas distributes total rows across classes by largest remainder.
func classQuotas(groups [2][]int, total, n int) [2]int {
	var quota [2]int
	var frac [2]float64
	assigned := 0
	for c, g := range groups {
		exact := float64(len(g)) * float64(total) / float64(n)
		quota[c] = int(math.Floor(exact))
		frac[c] = exact - float64(quota[c])
		assigned += quota[c]
	}

	order := []int{0, 1}
	sort.SliceStable(order, func(a, b int) bool { return frac[order[a]] > frac[order[b]] })
	for _, c := range order {
		if assigned == total {
			break
		}
		if quota[c] < len(groups[c]) {
			quota[c]++
			assigned++
		}
	}
	return quota
}
