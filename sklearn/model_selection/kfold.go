package model_selection

import (
	"github.com/YuminosukeSato/churnsel/dataset"
	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Fold is one resampling split. Valid holds the rows held out in this fold
// and Train the remaining rows of the source view.
type Fold struct {
	ID    int
	Train dataset.View
	Valid dataset.View
}

// FoldSet is an immutable set of stratified folds over a training view.
type FoldSet struct {
	K     int
	Seed  uint64
	Folds []Fold
}

// MakeFolds builds a stratified k-fold partition of train.
//
// Classes are processed in order 0, 1. Each class is shuffled and dealt
// round-robin into folds with a counter that carries over from one class to
// the next, so fold sizes differ by at most one. A class with fewer than k
// rows leaves some folds without it; a DegenerateFoldWarning is emitted for
// each such fold.
func MakeFolds(train dataset.View, k int, seed uint64) (*FoldSet, error) {
	n := train.Len()
	if k < 2 {
		return nil, errors.NewValidationError("folds", "must be at least 2", k)
	}
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "MakeFolds")
	}
	if k > n {
		return nil, errors.NewValidationError("folds", "must not exceed the number of rows", k)
	}

	rng := newRNG(seed)
	groups := train.ByClass()
	assign := make([]int, n)
	var hasClass [2][]bool
	counter := 0
	for c, g := range groups {
		hasClass[c] = make([]bool, k)
		shuffled := append([]int(nil), g...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		for _, pos := range shuffled {
			f := counter % k
			assign[pos] = f
			hasClass[c][f] = true
			counter++
		}
	}

	for c := range groups {
		if len(groups[c]) >= k {
			continue
		}
		for f := 0; f < k; f++ {
			if !hasClass[c][f] {
				errors.Warn(errors.NewDegenerateFoldWarning("", f, c))
			}
		}
	}

	fs := &FoldSet{K: k, Seed: seed, Folds: make([]Fold, k)}
	for f := 0; f < k; f++ {
		var trainPos, validPos []int
		for pos := 0; pos < n; pos++ {
			if assign[pos] == f {
				validPos = append(validPos, pos)
			} else {
				trainPos = append(trainPos, pos)
			}
		}
		fs.Folds[f] = Fold{ID: f, Train: train.Subset(trainPos), Valid: train.Subset(validPos)}
	}
	return fs, nil
}

// Len returns the number of folds.
func (fs *FoldSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.Folds)
}
