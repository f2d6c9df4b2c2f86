package predict

import (
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/agriml/artifact"
	"github.com/YuminosukeSato/agriml/boost"
	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/features"
	"github.com/YuminosukeSato/agriml/pkg/log"
	"github.com/YuminosukeSato/agriml/preprocessing"
)

// staticModel returns the same probability row for every input and keeps the last pool.
type staticModel struct {
	row  []float64
	seen *boost.Pool
}

func (m *staticModel) PredictProba(p *boost.Pool) (*mat.Dense, error) {
	m.seen = p
	out := mat.NewDense(p.NumRows(), len(m.row), nil)
	for i := 0; i < p.NumRows(); i++ {
		out.SetRow(i, m.row)
	}
	return out, nil
}

func (m *staticModel) Predict(p *boost.Pool) ([]int, error) { return make([]int, p.NumRows()), nil }
func (m *staticModel) BestIteration() int                     { return 0 }
func (m *staticModel) NumClasses() int                        { return len(m.row) }
func (m *staticModel) Save(w io.Writer) error                 { return nil }

func testBundle(t *testing.T, row []float64) (*artifact.Bundle, *staticModel) {
	t.Helper()
	train := frame.MustNew(
		frame.NewNumeric("pH", []float64{5.0, 6.0, 7.0, 8.0}),
		frame.NewNumeric("Nitrogen", []float64{10, 20, 30, 40}),
		frame.NewNumeric("Phosphorus", []float64{5, 10, 15, 20}),
		frame.NewText("SoilTexture", []string{"Clay", "Clay", "Loam", ""}, []bool{false, false, false, true}),
	)
	eng := features.NewEngineer(config.Features{RatioFeatures: true}, log.NewNopLogger())
	engineered, stats, err := eng.Fit(train)
	require.NoError(t, err)
	fs := features.Select(engineered)
	pp := preprocessing.NewPreprocessor(log.NewNopLogger())
	_, err = pp.Fit(engineered, fs.Numeric, fs.Categorical)
	require.NoError(t, err)
	meta, err := pp.Metadata()
	require.NoError(t, err)

	classes := []string{"maize", "rice", "tomato", "wheat"}[:len(row)]
	m := &staticModel{row: row}
	return &artifact.Bundle{
		Model:   m,
		Encoder: preprocessing.NewLabelEncoder(classes),
		Metadata: &artifact.Metadata{
			Preprocessing: meta,
			Engineering:   stats,
			ClassNames:    classes,
		},
	}, m
}

func TestRank(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
		k     int
		want  []int
	}{
		{"descending", []float64{0.1, 0.6, 0.3}, 2, []int{1, 2}},
		{"ties keep lower index", []float64{0.4, 0.2, 0.4}, 3, []int{0, 2, 1}},
		{"k capped", []float64{0.5, 0.5}, 5, []int{0, 1}},
		{"zero k", []float64{0.5, 0.5}, 0, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rank(tt.probs, tt.k))
		})
	}
}

func TestPredictRecords(t *testing.T) {
	b, m := testBundle(t, []float64{0.05, 0.55, 0.3, 0.1})
	p, err := NewPredictor(b, config.Inference{TopN: 3, MinConfidence: 0.2}, log.NewNopLogger())
	require.NoError(t, err)

	records := []frame.Record{
		{"pH": 6.0, "Nitrogen": 25.0, "Phosphorus": 10.0, "SoilTexture": "Loam", "Rainfall": 1200.0},
		{"pH": nil, "Nitrogen": 500.0, "Unused": "x"},
	}
	res, err := p.PredictRecords(records, 0)
	require.NoError(t, err)
	require.Len(t, res, 2)

	r0 := res[0]
	require.Len(t, r0.Recommendations, 3)
	assert.Equal(t, Recommendation{Rank: 1, Crop: "rice", Confidence: 0.55}, r0.Recommendations[0])
	assert.Equal(t, "tomato", r0.Recommendations[1].Crop)
	assert.Equal(t, "wheat", r0.Recommendations[2].Crop)
	assert.True(t, r0.Recommendations[2].LowConfidence)
	for i := 1; i < len(r0.Recommendations); i++ {
		assert.GreaterOrEqual(t, r0.Recommendations[i-1].Confidence, r0.Recommendations[i].Confidence)
	}
	assert.Equal(t, "Acidic", r0.Derived.PHClass)
	assert.Equal(t, "High", r0.Derived.RainfallClass)
	assert.Equal(t, 6.0, r0.Input["pH"])
	assert.Equal(t, "Unknown", res[1].Derived.PHClass)

	// the model sees the training feature layout, categorical by position
	require.NotNil(t, m.seen)
	assert.Equal(t, b.Metadata.Preprocessing.FeatureNames, m.seen.FeatureNames())
	for _, pos := range b.Metadata.Preprocessing.CategoricalPositions() {
		assert.True(t, m.seen.IsCategorical(pos))
	}
}

func TestPredictTopNOverride(t *testing.T) {
	b, _ := testBundle(t, []float64{0.7, 0.3})
	p, err := NewPredictor(b, config.Inference{TopN: 3}, log.NewNopLogger())
	require.NoError(t, err)

	f := frame.MustNew(frame.NewNumeric("pH", []float64{7.0}))
	res, err := p.Predict(f, 1)
	require.NoError(t, err)
	require.Len(t, res[0].Recommendations, 1)

	res, err = p.Predict(f, 0)
	require.NoError(t, err)
	assert.Len(t, res[0].Recommendations, 2, "min(topN, C)")
}

func TestPredictAppliesStoredStatistics(t *testing.T) {
	b, m := testBundle(t, []float64{1})
	p, err := NewPredictor(b, config.Inference{TopN: 1}, log.NewNopLogger())
	require.NoError(t, err)

	f := frame.MustNew(frame.NewNumeric("Nitrogen", []float64{math.NaN(), 1e9}))
	_, err = p.Predict(f, 1)
	require.NoError(t, err)

	meta := b.Metadata.Preprocessing
	engineered, err := features.Apply(f, b.Metadata.Engineering)
	require.NoError(t, err)
	want, err := preprocessing.Apply(engineered, meta)
	require.NoError(t, err)
	n, _ := want.Column("Nitrogen")
	assert.Equal(t, meta.NumericMedians["Nitrogen"], n.Float(0))
	assert.Equal(t, meta.NumericClipBounds["Nitrogen"].High, n.Float(1))
	assert.Equal(t, 2, m.seen.NumRows())
}

func TestNewPredictorRequiresBundle(t *testing.T) {
	_, err := NewPredictor(nil, config.Inference{}, nil)
	assert.Error(t, err)
	_, err = NewPredictor(&artifact.Bundle{}, config.Inference{}, nil)
	assert.Error(t, err)

	_, err = (&Predictor{}).PredictRecords(nil, 1)
	assert.Error(t, err)
}
