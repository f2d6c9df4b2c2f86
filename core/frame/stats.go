package frame

import (
	"math"
	"sort"
)

// Quantile returns the p-quantile of the present values of c using linear
// interpolation between closest ranks, the default of numpy and pandas.
// It returns NaN when no value is present.
func (c *Column) Quantile(p float64) float64 {
	return QuantileLinear(c.Floats(), p)
}

// Median is Quantile(0.5).
func (c *Column) Median() float64 {
	return c.Quantile(0.5)
}

// QuantileLinear computes the p-quantile of the non-NaN entries of values
// with the h = (n-1)p interpolation rule. values is not modified.
func QuantileLinear(values []float64, p float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	hi := math.Ceil(h)
	if lo == hi {
		return sorted[int(lo)]
	}
	return sorted[int(lo)] + (h-lo)*(sorted[int(hi)]-sorted[int(lo)])
}

// Mode returns the most frequent present value of c in its text form.
// Ties resolve to the smallest value in string order. ok is false when no
// value is present.
func (c *Column) Mode() (mode string, ok bool) {
	counts := make(map[string]int)
	for i := 0; i < c.Len(); i++ {
		if s, present := c.String(i); present {
			counts[s]++
		}
	}
	best := -1
	for v, n := range counts {
		if n > best || (n == best && v < mode) {
			mode, best = v, n
		}
	}
	return mode, best > 0
}

// ValueCounts returns the number of occurrences of each present value.
func (c *Column) ValueCounts() map[string]int {
	counts := make(map[string]int)
	for i := 0; i < c.Len(); i++ {
		if s, ok := c.String(i); ok {
			counts[s]++
		}
	}
	return counts
}
