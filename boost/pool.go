package boost

import (
	"fmt"

	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// Pool is a feature table with optional labels. Categorical features are
// identified by column position.
type Pool struct {
	names  []string
	cols   []*frame.Column
	rows   int
	labels []int
	cat    []int
	isCat  map[int]bool
}

// NewPool wraps f. labels may be nil for prediction. catFeatures are column
// positions within f.
func NewPool(f *frame.Frame, labels []int, catFeatures []int) (*Pool, error) {
	if labels != nil && len(labels) != f.NumRows() {
		return nil, errors.NewDimensionError("boost.NewPool", f.NumRows(), len(labels), 0)
	}
	p := &Pool{
		names: f.Names(),
		cols:  f.Columns(),
		rows:  f.NumRows(),
		isCat: make(map[int]bool, len(catFeatures)),
	}
	for _, c := range catFeatures {
		if c < 0 || c >= f.NumCols() {
			return nil, errors.NewValueError("boost.NewPool", fmt.Sprintf("categorical feature index %d out of range [0, %d)", c, f.NumCols()))
		}
		if !p.isCat[c] {
			p.isCat[c] = true
			p.cat = append(p.cat, c)
		}
	}
	if labels != nil {
		p.labels = append([]int(nil), labels...)
		for i, l := range p.labels {
			if l < 0 {
				return nil, errors.NewValueError("boost.NewPool", fmt.Sprintf("negative label %d at row %d", l, i))
			}
		}
	}
	return p, nil
}

// NumRows returns the number of samples.
func (p *Pool) NumRows() int { return p.rows }

// NumFeatures returns the number of features.
func (p *Pool) NumFeatures() int { return len(p.cols) }

// FeatureNames returns the feature names in column order.
func (p *Pool) FeatureNames() []string { return append([]string(nil), p.names...) }

// Labels returns a copy of the labels, or nil for an unlabeled pool.
func (p *Pool) Labels() []int {
	if p.labels == nil {
		return nil
	}
	return append([]int(nil), p.labels...)
}

// CatFeatures returns the categorical feature positions.
func (p *Pool) CatFeatures() []int { return append([]int(nil), p.cat...) }

// IsCategorical reports whether feature j is categorical.
func (p *Pool) IsCategorical(j int) bool { return p.isCat[j] }

func (p *Pool) maxLabel() int {
	m := -1
	for _, l := range p.labels {
		if l > m {
			m = l
		}
	}
	return m
}
