package boost

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// binned is the quantised, feature-major view of a pool.
//
// Numeric feature j: bin = number of borders strictly below the value, so
// "value > Borders[b]" is "bin > b". Missing values fall in bin 0.
// Categorical feature j: bin = vocabulary index + 1, 0 for unseen or missing.
type binned struct {
	bins  [][]int32
	nBins []int
	cat   []bool
	rows  int
}

func (b *binned) categorical(j int) bool { return b.cat[j] }

// computeBorders picks at most maxBorders split borders for one numeric
// feature. With few distinct values every midpoint is a border; otherwise
// borders are midpoints at equal-frequency cut points.
func computeBorders(values []float64, maxBorders int) []float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)

	unique := sorted[:1:1]
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) < 2 {
		return nil
	}

	if len(unique)-1 <= maxBorders {
		borders := make([]float64, len(unique)-1)
		for i := range borders {
			borders[i] = (unique[i] + unique[i+1]) / 2
		}
		return borders
	}

	borders := make([]float64, 0, maxBorders)
	n := len(sorted)
	for b := 1; b <= maxBorders; b++ {
		idx := b * n / (maxBorders + 1)
		if idx <= 0 || idx >= n || sorted[idx-1] == sorted[idx] {
			continue
		}
		mid := (sorted[idx-1] + sorted[idx]) / 2
		if len(borders) == 0 || mid > borders[len(borders)-1] {
			borders = append(borders, mid)
		}
	}
	return borders
}

// computeVocab returns the sorted distinct present values of a categorical feature.
func computeVocab(values []string, nulls []bool) []string {
	seen := make(map[string]struct{})
	for i, v := range values {
		if !nulls[i] {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func numericBin(borders []float64, x float64) int32 {
	if math.IsNaN(x) {
		return 0
	}
	return int32(sort.SearchFloat64s(borders, x))
}

// fitQuantization learns borders and vocabularies from the training pool.
func (c *Classifier) fitQuantization(p *Pool, borderCount int) {
	nf := p.NumFeatures()
	c.Borders = make([][]float64, nf)
	c.Vocab = make([][]string, nf)
	for j, col := range p.cols {
		if p.IsCategorical(j) {
			vals, nulls := col.Strings()
			c.Vocab[j] = computeVocab(vals, nulls)
			continue
		}
		c.Borders[j] = computeBorders(col.Floats(), borderCount)
	}
}

// quantize maps a pool onto the learned borders and vocabularies. The pool
// must carry the training features in the training order.
func (c *Classifier) quantize(p *Pool) (*binned, error) {
	if p.NumFeatures() != len(c.FeatureNames) {
		return nil, errors.NewDimensionError("boost.quantize", len(c.FeatureNames), p.NumFeatures(), 1)
	}
	for j, name := range p.names {
		if name != c.FeatureNames[j] {
			return nil, errors.NewValueError("boost.quantize", fmt.Sprintf("feature %d is %q, model expects %q", j, name, c.FeatureNames[j]))
		}
		if p.IsCategorical(j) != c.isCategorical(j) {
			return nil, errors.NewValueError("boost.quantize", fmt.Sprintf("feature %q categorical flag differs from training", name))
		}
	}

	b := &binned{
		bins:  make([][]int32, len(p.cols)),
		nBins: make([]int, len(p.cols)),
		cat:   make([]bool, len(p.cols)),
		rows:  p.rows,
	}
	for j, col := range p.cols {
		out := make([]int32, p.rows)
		if c.isCategorical(j) {
			index := make(map[string]int32, len(c.Vocab[j]))
			for k, v := range c.Vocab[j] {
				index[v] = int32(k) + 1
			}
			for i := range out {
				if s, ok := col.String(i); ok {
					out[i] = index[s]
				}
			}
			b.nBins[j] = len(c.Vocab[j]) + 1
			b.cat[j] = true
		} else {
			for i := range out {
				out[i] = numericBin(c.Borders[j], col.Float(i))
			}
			b.nBins[j] = len(c.Borders[j]) + 1
		}
		b.bins[j] = out
	}
	return b, nil
}
