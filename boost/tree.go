package boost

import "gonum.org/v1/gonum/mat"

// Split is one level of an oblivious tree. Every node at that level applies
// the same test.
type Split struct {
	Feature     int
	Categorical bool
	// Bin is the quantised threshold: numeric rows go right when bin > Bin,
	// categorical rows when bin == Bin.
	Bin int32

	// Border and Category describe the test in raw units.
	Border   float64
	Category string
}

func (s Split) test(bin int32) bool {
	if s.Categorical {
		return bin == s.Bin
	}
	return bin > s.Bin
}

// ObliviousTree is a symmetric tree: leaf index bit d is the outcome of
// Splits[d]. Leaves holds one value per class for each of the 2^depth leaves.
type ObliviousTree struct {
	Splits []Split
	Leaves []float64
}

func (t *ObliviousTree) leafIndex(b *binned, row int) int {
	idx := 0
	for d, s := range t.Splits {
		if s.test(b.bins[s.Feature][row]) {
			idx |= 1 << d
		}
	}
	return idx
}

// addTo adds the tree output to the rows of scores in [start, end).
func (t *ObliviousTree) addTo(scores *mat.Dense, b *binned, start, end int) {
	_, k := scores.Dims()
	for i := start; i < end; i++ {
		l := t.leafIndex(b, i)
		leaf := t.Leaves[l*k : (l+1)*k]
		row := scores.RawRowView(i)
		for c := range row {
			row[c] += leaf[c]
		}
	}
}
