package frame

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

const sampleCSV = `pH,Rainfall,SoilTexture,Crop
6.5,1200,Loamy,rice
7.1,,Sandy,maize
NA,800,,rice
6.5,1200,Loamy,rice
`

func TestReadCSVInfersKinds(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, 4, f.NumRows())
	assert.Equal(t, []string{"pH", "Rainfall", "SoilTexture", "Crop"}, f.Names())

	ph, ok := f.Column("pH")
	require.True(t, ok)
	assert.Equal(t, Numeric, ph.Kind())
	assert.True(t, ph.IsMissing(2))
	assert.Equal(t, 1, ph.MissingCount())

	rain, _ := f.Column("Rainfall")
	assert.True(t, math.IsNaN(rain.Float(1)))

	tex, _ := f.Column("SoilTexture")
	assert.Equal(t, Text, tex.Kind())
	_, present := tex.String(2)
	assert.False(t, present)
}

func TestFrameIsImmutable(t *testing.T) {
	vals := []float64{1, 2, 3}
	c := NewNumeric("x", vals)
	vals[0] = 99
	assert.Equal(t, 1.0, c.Float(0))

	f := MustNew(c, NewText("y", []string{"a", "b", "c"}, nil))
	g, err := f.With(NewNumeric("x", []float64{7, 8, 9}))
	require.NoError(t, err)

	orig, _ := f.Column("x")
	repl, _ := g.Column("x")
	assert.Equal(t, 1.0, orig.Float(0))
	assert.Equal(t, 7.0, repl.Float(0))

	h := f.Drop("y")
	assert.Equal(t, []string{"x", "y"}, f.Names())
	assert.Equal(t, []string{"x"}, h.Names())
}

func TestDropDuplicates(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	dedup, n := f.DropDuplicates()
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, dedup.NumRows())
	assert.Equal(t, 4, f.NumRows())
}

func TestTakeAndSelect(t *testing.T) {
	f := MustNew(
		NewNumeric("a", []float64{1, 2, 3}),
		NewText("b", []string{"x", "y", "z"}, nil),
	)
	sub := f.Take([]int{2, 0})
	b, _ := sub.Column("b")
	s, _ := b.String(0)
	assert.Equal(t, "z", s)

	sel, err := f.Select("b", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, sel.Names())

	_, err = f.Select("missing")
	assert.Error(t, err)
}

func TestNewRejectsMismatch(t *testing.T) {
	_, err := New(NewNumeric("a", []float64{1}), NewNumeric("b", []float64{1, 2}))
	assert.Error(t, err)

	_, err = New(NewNumeric("a", []float64{1}), NewNumeric("a", []float64{2}))
	assert.Error(t, err)
}

func TestFromRecords(t *testing.T) {
	f, err := FromRecords([]Record{
		{"pH": 6.2, "SoilTexture": "Clay"},
		{"pH": nil, "Rainfall": 900},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Rainfall", "SoilTexture", "pH"}, f.Names())

	ph, _ := f.Column("pH")
	assert.Equal(t, Numeric, ph.Kind())
	assert.True(t, ph.IsMissing(1))

	rain, _ := f.Column("Rainfall")
	assert.True(t, rain.IsMissing(0))
	assert.Equal(t, 900.0, rain.Float(1))

	tex, _ := f.Column("SoilTexture")
	assert.Equal(t, Text, tex.Kind())
	assert.Nil(t, f.Row(1)["SoilTexture"])
}

func TestTextCoercion(t *testing.T) {
	c := NewText("EC", []string{"1.5", "high", ""}, []bool{false, false, true})
	got := c.Floats()
	assert.Equal(t, 1.5, got[0])
	assert.True(t, math.IsNaN(got[1]))
	assert.True(t, math.IsNaN(got[2]))
	assert.Equal(t, 1, c.CoercionFailures())
}

func TestPositions(t *testing.T) {
	got := Positions([]string{"pH", "SoilTexture", "Rainfall", "Soil_Depth"}, []string{"Soil_Depth", "SoilTexture", "absent"})
	assert.Equal(t, []int{3, 1}, got)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))
	g, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, f.Names(), g.Names())
	assert.Equal(t, f.NumRows(), g.NumRows())
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soil.xlsx")

	book := xlsx.NewFile()
	sheet, err := book.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range [][]string{{"pH", "Crop"}, {"6.1", "rice"}, {"7.4", "maize"}} {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, book.Save(path))

	f, err := ReadXLSX(path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.NumRows())
	ph, _ := f.Column("pH")
	assert.Equal(t, Numeric, ph.Kind())
	assert.Equal(t, 7.4, ph.Float(1))
}

func TestQuantileLinear(t *testing.T) {
	vals := []float64{1, 2, 3, 4, math.NaN()}
	assert.InDelta(t, 2.5, QuantileLinear(vals, 0.5), 1e-12)
	assert.InDelta(t, 1.03, QuantileLinear(vals, 0.01), 1e-12)
	assert.InDelta(t, 3.97, QuantileLinear(vals, 0.99), 1e-12)
	assert.True(t, math.IsNaN(QuantileLinear([]float64{math.NaN()}, 0.5)))
	assert.Equal(t, 7.0, QuantileLinear([]float64{7}, 0.99))
}

func TestMode(t *testing.T) {
	c := NewText("SoilTexture", []string{"Sandy", "Clay", "Clay", "Sandy", "Loam", ""}, []bool{false, false, false, false, false, true})
	m, ok := c.Mode()
	require.True(t, ok)
	assert.Equal(t, "Clay", m)

	empty := NewText("x", []string{"", ""}, []bool{true, true})
	_, ok = empty.Mode()
	assert.False(t, ok)
}
