package frame

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the storage type of a Column.
type Kind int

const (
	// Numeric columns hold float64 values; NaN marks a missing value.
	Numeric Kind = iota
	// Text columns hold strings with a separate missing mask.
	Text
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "text"
}

// Column is an immutable named vector. Constructors copy their inputs and
// accessors never expose the backing slices.
type Column struct {
	name  string
	kind  Kind
	nums  []float64
	strs  []string
	nulls []bool
}

// NewNumeric creates a numeric column. NaN values are missing.
func NewNumeric(name string, values []float64) *Column {
	cp := make([]float64, len(values))
	copy(cp, values)
	return &Column{name: name, kind: Numeric, nums: cp}
}

// NewText creates a text column. nulls may be nil, meaning nothing is missing.
func NewText(name string, values []string, nulls []bool) *Column {
	cs := make([]string, len(values))
	copy(cs, values)
	cn := make([]bool, len(values))
	if nulls != nil {
		copy(cn, nulls)
	}
	return &Column{name: name, kind: Text, strs: cs, nulls: cn}
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Kind returns the storage kind.
func (c *Column) Kind() Kind { return c.kind }

// Len returns the number of rows.
func (c *Column) Len() int {
	if c.kind == Numeric {
		return len(c.nums)
	}
	return len(c.strs)
}

// IsMissing reports whether row i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.kind == Numeric {
		return math.IsNaN(c.nums[i])
	}
	return c.nulls[i]
}

// MissingCount returns the number of missing rows.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Float returns row i as a number. Text values are parsed; values that do
// not parse, and missing values, return NaN.
func (c *Column) Float(i int) float64 {
	if c.kind == Numeric {
		return c.nums[i]
	}
	if c.nulls[i] {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(c.strs[i]), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// String returns row i as text and whether it is present.
// Numbers are formatted with the shortest representation.
func (c *Column) String(i int) (string, bool) {
	if c.kind == Text {
		return c.strs[i], !c.nulls[i]
	}
	if math.IsNaN(c.nums[i]) {
		return "", false
	}
	return strconv.FormatFloat(c.nums[i], 'g', -1, 64), true
}

// Floats returns a copy of the column coerced to numbers.
func (c *Column) Floats() []float64 {
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.Float(i)
	}
	return out
}

// CoercionFailures counts present text values that do not parse as numbers.
func (c *Column) CoercionFailures() int {
	if c.kind == Numeric {
		return 0
	}
	n := 0
	for i := range c.strs {
		if !c.nulls[i] && math.IsNaN(c.Float(i)) {
			n++
		}
	}
	return n
}

// Strings returns a copy of the column as text plus the missing mask.
func (c *Column) Strings() ([]string, []bool) {
	vals := make([]string, c.Len())
	nulls := make([]bool, c.Len())
	for i := range vals {
		s, ok := c.String(i)
		vals[i] = s
		nulls[i] = !ok
	}
	return vals, nulls
}

// Value returns row i as float64, string, or nil when missing.
func (c *Column) Value(i int) any {
	if c.IsMissing(i) {
		return nil
	}
	if c.kind == Numeric {
		return c.nums[i]
	}
	return c.strs[i]
}

// Rename returns a copy of c under a new name.
func (c *Column) Rename(name string) *Column {
	if c.kind == Numeric {
		return NewNumeric(name, c.nums)
	}
	return NewText(name, c.strs, c.nulls)
}

func (c *Column) take(idx []int) *Column {
	if c.kind == Numeric {
		out := make([]float64, len(idx))
		for k, i := range idx {
			out[k] = c.nums[i]
		}
		return &Column{name: c.name, kind: Numeric, nums: out}
	}
	vals := make([]string, len(idx))
	nulls := make([]bool, len(idx))
	for k, i := range idx {
		vals[k] = c.strs[i]
		nulls[k] = c.nulls[i]
	}
	return &Column{name: c.name, kind: Text, strs: vals, nulls: nulls}
}

// key is a canonical representation of row i used for duplicate detection.
// Missing values compare equal to each other.
func (c *Column) key(i int) string {
	if c.IsMissing(i) {
		return "\x00"
	}
	s, _ := c.String(i)
	return s
}
