// Package training holds the leakage-free training protocol: stratified
// splits, class weights, cross-validation and the final fit.
package training

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// Split is a partition of row indices.
type Split struct {
	Train []int
	Test  []int
}

// classIndices groups row indices by label, classes in ascending order.
func classIndices(labels []int) ([]int, map[int][]int) {
	groups := make(map[int][]int)
	for i, y := range labels {
		groups[y] = append(groups[y], i)
	}
	classes := make([]int, 0, len(groups))
	for c := range groups {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes, groups
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// StratifiedTrainTestSplit holds out ceil(testSize*n) rows so that every
// class keeps its proportion within one sample. Classes are processed in
// ascending order with a seeded generator, so the split is reproducible.
func StratifiedTrainTestSplit(labels []int, testSize float64, seed int64) (Split, error) {
	n := len(labels)
	if testSize <= 0 || testSize >= 1 {
		return Split{}, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest <= 0 || nTest >= n {
		return Split{}, errors.NewValueError("StratifiedTrainTestSplit",
			fmt.Sprintf("test_size=%v leaves no rows for one side of %d samples", testSize, n))
	}

	classes, groups := classIndices(labels)
	for _, c := range classes {
		if len(groups[c]) < 2 {
			return Split{}, errors.NewValueError("StratifiedTrainTestSplit",
				fmt.Sprintf("class %d has a single sample and cannot be stratified", c))
		}
	}

	alloc := allocate(classes, groups, nTest, n)

	rng := newRand(seed)
	var split Split
	for i, c := range classes {
		idx := append([]int(nil), groups[c]...)
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		split.Test = append(split.Test, idx[:alloc[i]]...)
		split.Train = append(split.Train, idx[alloc[i]:]...)
	}
	sort.Ints(split.Train)
	sort.Ints(split.Test)
	return split, nil
}

// allocate distributes nTest over classes: the floor of each exact share
// first, then one extra for the largest remainders (ties to lower classes).
// Every class keeps at least one training row.
func allocate(classes []int, groups map[int][]int, nTest, n int) []int {
	alloc := make([]int, len(classes))
	rem := make([]float64, len(classes))
	left := nTest
	for i, c := range classes {
		exact := float64(nTest) * float64(len(groups[c])) / float64(n)
		alloc[i] = int(math.Floor(exact))
		rem[i] = exact - float64(alloc[i])
		left -= alloc[i]
	}
	order := make([]int, len(classes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })
	for _, i := range order {
		if left == 0 {
			break
		}
		if alloc[i] < len(groups[classes[i]])-1 {
			alloc[i]++
			left--
		}
	}
	return alloc
}

// take returns y at idx.
func take(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for k, i := range idx {
		out[k] = y[i]
	}
	return out
}
