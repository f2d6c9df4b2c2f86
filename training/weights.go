package training

import (
	"github.com/YuminosukeSato/agriml/config"
)

// BuildClassWeights returns inverse-frequency weights N / (C * count) keyed by
// encoded class, with counts floored at 1. When weak-class boosting is
// enabled, every configured class present in classes is multiplied by the
// boost factor once.
func BuildClassWeights(labels []int, classes []string, weak config.WeakClasses) map[int]float64 {
	c := len(classes)
	counts := make([]int, c)
	for _, y := range labels {
		if y >= 0 && y < c {
			counts[y]++
		}
	}

	weights := make(map[int]float64, c)
	n := float64(len(labels))
	for i, cnt := range counts {
		weights[i] = n / (float64(c) * float64(max(cnt, 1)))
	}

	if !weak.Enabled {
		return weights
	}
	index := make(map[string]int, c)
	for i, name := range classes {
		index[name] = i
	}
	boosted := make(map[int]bool)
	for _, name := range weak.Names {
		if i, ok := index[name]; ok && !boosted[i] {
			weights[i] *= weak.BoostFactor
			boosted[i] = true
		}
	}
	return weights
}
