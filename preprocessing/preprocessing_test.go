package preprocessing

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

func trainFrame() *frame.Frame {
	ph := make([]float64, 101)
	for i := range ph {
		ph[i] = float64(i) / 10 // 0.0 .. 10.0
	}
	ph[50] = math.NaN()
	tex := make([]string, 101)
	nulls := make([]bool, 101)
	for i := range tex {
		tex[i] = []string{"Clay", "Loam", "Clay"}[i%3]
	}
	nulls[7] = true
	return frame.MustNew(
		frame.NewNumeric("pH", ph),
		frame.NewNumeric("Empty", fill(101, math.NaN())),
		frame.NewText("SoilTexture", tex, nulls),
		frame.NewText("Crop", tex, nil),
	)
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestPreprocessorFit(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	pp := NewPreprocessor(logger)

	out, err := pp.Fit(trainFrame(), []string{"pH", "Empty", "Crop"}, []string{"SoilTexture"})
	require.NoError(t, err)
	meta, err := pp.Metadata()
	require.NoError(t, err)

	assert.Equal(t, []string{"pH", "Empty", "SoilTexture"}, meta.FeatureNames)
	assert.Equal(t, []string{"pH", "Empty", "SoilTexture"}, out.Names())
	assert.True(t, logger.ContainsMessage("target column removed from features"))

	assert.InDelta(t, 5.0, meta.NumericMedians["pH"], 1e-9)
	assert.Equal(t, 0.0, meta.NumericMedians["Empty"])
	assert.Equal(t, ClipBounds{}, meta.NumericClipBounds["Empty"])
	assert.Equal(t, "Clay", meta.CategoricalFillModes["SoilTexture"])
	assert.Equal(t, []int{2}, meta.CategoricalPositions())

	b := meta.NumericClipBounds["pH"]
	ph, _ := out.Column("pH")
	for i := 0; i < ph.Len(); i++ {
		assert.GreaterOrEqual(t, ph.Float(i), b.Low)
		assert.LessOrEqual(t, ph.Float(i), b.High)
	}
	tex, _ := out.Column("SoilTexture")
	s, ok := tex.String(7)
	assert.True(t, ok)
	assert.Equal(t, "Clay", s)
}

func TestApplySymmetry(t *testing.T) {
	train := trainFrame()
	pp := NewPreprocessor(log.NewNopLogger())
	fitted, err := pp.Fit(train, []string{"pH", "Empty"}, []string{"SoilTexture"})
	require.NoError(t, err)
	meta, _ := pp.Metadata()

	applied, err := Apply(train, meta)
	require.NoError(t, err)

	var a, b bytes.Buffer
	require.NoError(t, frame.WriteCSV(&a, fitted))
	require.NoError(t, frame.WriteCSV(&b, applied))
	assert.Equal(t, a.String(), b.String())
}

func TestApplyUnseenInput(t *testing.T) {
	pp := NewPreprocessor(log.NewNopLogger())
	_, err := pp.Fit(trainFrame(), []string{"pH"}, []string{"SoilTexture"})
	require.NoError(t, err)
	meta, _ := pp.Metadata()

	in, err := frame.ReadCSV(strings.NewReader("pH,Extra\n99,1\nacidic,2\n"))
	require.NoError(t, err)

	out, err := pp.Apply(in)
	require.NoError(t, err)
	assert.Equal(t, meta.FeatureNames, out.Names())

	ph, _ := out.Column("pH")
	assert.Equal(t, meta.NumericClipBounds["pH"].High, ph.Float(0), "clipped to p99")
	assert.Equal(t, meta.NumericMedians["pH"], ph.Float(1), "non-numeric coerced to missing then filled")

	tex, _ := out.Column("SoilTexture")
	s, _ := tex.String(0)
	assert.Equal(t, "Clay", s, "absent categorical is entirely missing")
}

func TestApplyBeforeFit(t *testing.T) {
	_, err := NewPreprocessor(log.NewNopLogger()).Apply(trainFrame())
	assert.Error(t, err)
}

func TestFromMetadata(t *testing.T) {
	pp := NewPreprocessor(log.NewNopLogger())
	_, err := pp.Fit(trainFrame(), []string{"pH"}, nil)
	require.NoError(t, err)
	meta, _ := pp.Metadata()

	restored := FromMetadata(meta, log.NewNopLogger())
	out, err := restored.Apply(trainFrame())
	require.NoError(t, err)
	assert.Equal(t, []string{"pH"}, out.Names())
}

func TestLabelEncoder(t *testing.T) {
	target := frame.NewText("Crop", []string{"rice", "maize", "rice", "cotton"}, nil)
	le := &LabelEncoder{}
	y, err := le.Fit(target)
	require.NoError(t, err)
	assert.Equal(t, []string{"cotton", "maize", "rice"}, le.Classes)
	assert.Equal(t, []int{2, 1, 2, 0}, y)

	name, err := le.InverseTransform(1)
	require.NoError(t, err)
	assert.Equal(t, "maize", name)
	_, err = le.InverseTransform(3)
	assert.Error(t, err)
	_, err = le.Transform([]string{"wheat"})
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, le.Save(&buf))
	restored := &LabelEncoder{}
	require.NoError(t, restored.Load(&buf))
	idx, ok := restored.Index("rice")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestLabelEncoderMissingTarget(t *testing.T) {
	target := frame.NewText("Crop", []string{"rice", ""}, []bool{false, true})
	_, err := (&LabelEncoder{}).Fit(target)
	assert.Error(t, err)
}
