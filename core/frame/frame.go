// Package frame provides the immutable tabular data structure that every
// pipeline stage consumes and produces. Transforms never modify a Frame in
// place; they return a new one.
package frame

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// Record is one heterogeneous input row, as decoded from JSON or built by hand.
// Values are float64, int, string, bool or nil.
type Record map[string]any

// Frame is an ordered set of equally long named columns.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a Frame from columns. Names must be unique and lengths equal.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := f.index[c.Name()]; dup {
			return nil, errors.NewValueError("frame.New", fmt.Sprintf("duplicate column %q", c.Name()))
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, errors.NewDimensionError("frame.New", f.rows, c.Len(), 0)
		}
		f.index[c.Name()] = i
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// MustNew is New that panics on error. Intended for tests and literals.
func MustNew(cols ...*Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int { return f.rows }

// NumCols returns the number of columns.
func (f *Frame) NumCols() int { return len(f.cols) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name()
	}
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Column {
	out := make([]*Column, len(f.cols))
	copy(out, f.cols)
	return out
}

// Positions returns the index of each name within names. It is how
// categorical feature positions are derived at the point of use.
func Positions(names []string, subset []string) []int {
	at := make(map[string]int, len(names))
	for i, n := range names {
		at[n] = i
	}
	out := make([]int, 0, len(subset))
	for _, s := range subset {
		if i, ok := at[s]; ok {
			out = append(out, i)
		}
	}
	return out
}

// With returns a new Frame where col replaces the column of the same name,
// or is appended when no such column exists.
func (f *Frame) With(col *Column) (*Frame, error) {
	if f.rows != col.Len() && len(f.cols) > 0 {
		return nil, errors.NewDimensionError("frame.With", f.rows, col.Len(), 0)
	}
	cols := f.Columns()
	if i, ok := f.index[col.Name()]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return New(cols...)
}

// Drop returns a new Frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := make([]*Column, 0, len(f.cols))
	for _, c := range f.cols {
		if !drop[c.Name()] {
			kept = append(kept, c)
		}
	}
	out, _ := New(kept...)
	if len(kept) == 0 {
		out.rows = f.rows
	}
	return out
}

// Select returns a new Frame with exactly the named columns in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, errors.NewValueError("frame.Select", fmt.Sprintf("unknown column %q", n))
		}
		cols = append(cols, c)
	}
	return New(cols...)
}

// Take returns a new Frame holding the rows at idx, in that order.
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(idx)
	}
	out, _ := New(cols...)
	if len(cols) == 0 {
		out.rows = len(idx)
	}
	return out
}

// DuplicateRows returns the indices of rows that repeat an earlier row.
func (f *Frame) DuplicateRows() []int {
	seen := make(map[string]struct{}, f.rows)
	var dups []int
	var sb strings.Builder
	for i := 0; i < f.rows; i++ {
		sb.Reset()
		for _, c := range f.cols {
			sb.WriteString(c.key(i))
			sb.WriteByte('\x1f')
		}
		k := sb.String()
		if _, ok := seen[k]; ok {
			dups = append(dups, i)
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// DropDuplicates returns a new Frame keeping the first occurrence of each row,
// and the number of rows removed.
func (f *Frame) DropDuplicates() (*Frame, int) {
	dups := f.DuplicateRows()
	if len(dups) == 0 {
		return f, 0
	}
	isDup := make(map[int]bool, len(dups))
	for _, d := range dups {
		isDup[d] = true
	}
	keep := make([]int, 0, f.rows-len(dups))
	for i := 0; i < f.rows; i++ {
		if !isDup[i] {
			keep = append(keep, i)
		}
	}
	return f.Take(keep), len(dups)
}

// Row returns row i as a Record; missing values are nil.
func (f *Frame) Row(i int) Record {
	r := make(Record, len(f.cols))
	for _, c := range f.cols {
		r[c.Name()] = c.Value(i)
	}
	return r
}

// FromRecords builds a Frame from records. Column order is the sorted union
// of keys. A column is numeric when every present value is a number.
func FromRecords(records []Record) (*Frame, error) {
	keySet := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			keySet[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(keySet))
	for k := range keySet {
		names = append(names, k)
	}
	sort.Strings(names)

	cols := make([]*Column, 0, len(names))
	for _, name := range names {
		numeric := true
		for _, r := range records {
			v, ok := r[name]
			if !ok || v == nil {
				continue
			}
			if _, isNum := toFloat(v); !isNum {
				numeric = false
				break
			}
		}
		if numeric {
			vals := make([]float64, len(records))
			for i, r := range records {
				vals[i] = math.NaN()
				if v, ok := r[name]; ok && v != nil {
					vals[i], _ = toFloat(v)
				}
			}
			cols = append(cols, NewNumeric(name, vals))
			continue
		}
		vals := make([]string, len(records))
		nulls := make([]bool, len(records))
		for i, r := range records {
			v, ok := r[name]
			if !ok || v == nil {
				nulls[i] = true
				continue
			}
			vals[i] = fmt.Sprint(v)
		}
		cols = append(cols, NewText(name, vals, nulls))
	}
	f, err := New(cols...)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		f.rows = len(records)
	}
	return f, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case interface{ Float64() (float64, error) }:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
