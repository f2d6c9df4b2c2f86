package training

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// Fold is one cross-validation split.
type Fold struct {
	Train []int
	Valid []int
}

// StratifiedKFold splits rows into folds that preserve class proportions.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewStratifiedKFold creates a splitter.
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int64) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// Split assigns the rows of each class (ascending class order, shuffled
// within the class when Shuffle is set) to folds round-robin. The starting
// fold rotates between classes so fold sizes differ by at most one.
func (skf *StratifiedKFold) Split(labels []int) ([]Fold, error) {
	if skf.NSplits < 2 {
		return nil, errors.NewValidationError("n_folds", "must be at least 2", skf.NSplits)
	}
	if skf.NSplits > len(labels) {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			fmt.Sprintf("cannot split %d samples into %d folds", len(labels), skf.NSplits))
	}

	classes, groups := classIndices(labels)
	rng := newRand(skf.RandomSeed)

	assign := make([]int, len(labels))
	offset := 0
	for _, c := range classes {
		idx := groups[c]
		if skf.Shuffle {
			idx = append([]int(nil), idx...)
			rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		}
		for j, i := range idx {
			assign[i] = (offset + j) % skf.NSplits
		}
		offset = (offset + len(idx)) % skf.NSplits
	}

	folds := make([]Fold, skf.NSplits)
	for i, f := range assign {
		for k := range folds {
			if k == f {
				folds[k].Valid = append(folds[k].Valid, i)
			} else {
				folds[k].Train = append(folds[k].Train, i)
			}
		}
	}
	for k := range folds {
		sort.Ints(folds[k].Valid)
		sort.Ints(folds[k].Train)
	}
	return folds, nil
}
