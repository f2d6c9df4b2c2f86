package features

import (
	"github.com/YuminosukeSato/agriml/core/frame"
)

// FeatureSet is the ordered, de-duplicated list of model inputs.
type FeatureSet struct {
	Numeric     []string `json:"numeric_features"`
	Categorical []string `json:"categorical_features"`
}

// All returns numeric names followed by categorical names.
func (fs FeatureSet) All() []string {
	out := make([]string, 0, len(fs.Numeric)+len(fs.Categorical))
	out = append(out, fs.Numeric...)
	return append(out, fs.Categorical...)
}

// Select intersects the candidate vocabularies with the columns of f,
// preserving vocabulary order. A name already selected as numeric is not
// selected again as categorical.
func Select(f *frame.Frame) FeatureSet {
	return SelectFrom(f, NumericCandidates, CategoricalCandidates)
}

// SelectFrom is Select with explicit vocabularies.
func SelectFrom(f *frame.Frame, numeric, categorical []string) FeatureSet {
	seen := map[string]bool{}
	pick := func(vocab []string) []string {
		var out []string
		for _, name := range vocab {
			if seen[name] || !f.Has(name) {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
		return out
	}
	fs := FeatureSet{}
	fs.Numeric = pick(numeric)
	fs.Categorical = pick(categorical)
	return fs
}
