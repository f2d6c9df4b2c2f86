package training

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/agriml/boost"
	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/hyperparams"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

// fakeModel predicts the eval labels, flipping every wrongEvery-th row.
type fakeModel struct {
	numClasses int
	bestIter   int
	wrongEvery int
}

func (m *fakeModel) PredictProba(p *boost.Pool) (*mat.Dense, error) {
	pred, _ := m.Predict(p)
	out := mat.NewDense(len(pred), m.numClasses, nil)
	for i, c := range pred {
		out.Set(i, c, 1)
	}
	return out, nil
}

func (m *fakeModel) Predict(p *boost.Pool) ([]int, error) {
	pred := p.Labels()
	for i := range pred {
		if m.wrongEvery > 0 && i%m.wrongEvery == 0 {
			pred[i] = (pred[i] + 1) % m.numClasses
		}
	}
	return pred, nil
}

func (m *fakeModel) BestIteration() int     { return m.bestIter }
func (m *fakeModel) NumClasses() int        { return m.numClasses }
func (m *fakeModel) Save(w io.Writer) error { return nil }

type fakeEngine struct {
	calls      []hyperparams.Params
	trainRows  []int
	bestIters  []int
	wrongEvery int
	panicOn    int
}

func (e *fakeEngine) Fit(_ context.Context, p hyperparams.Params, train, eval *boost.Pool) (boost.Model, error) {
	call := len(e.calls)
	e.calls = append(e.calls, p)
	e.trainRows = append(e.trainRows, train.NumRows())
	if e.panicOn > 0 && call+1 == e.panicOn {
		panic("engine exploded")
	}
	best := 100
	if call < len(e.bestIters) {
		best = e.bestIters[call]
	}
	return &fakeModel{numClasses: 3, bestIter: best, wrongEvery: e.wrongEvery}, nil
}

// balancedLabels returns n labels cycling through k classes.
func balancedLabels(n, k int) []int {
	y := make([]int, n)
	for i := range y {
		y[i] = i % k
	}
	return y
}

func featureFrame(n int) *frame.Frame {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return frame.MustNew(frame.NewNumeric("x", x))
}

func TestStratifiedTrainTestSplit(t *testing.T) {
	y := append(balancedLabels(90, 3), 0, 0, 0, 0, 0, 1, 1)
	split, err := StratifiedTrainTestSplit(y, 0.15, 42)
	require.NoError(t, err)

	assert.Len(t, split.Test, int(math.Ceil(0.15*float64(len(y)))))
	assert.Len(t, split.Train, len(y)-len(split.Test))

	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, split.Train...), split.Test...) {
		assert.False(t, seen[i], "index %d appears twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, len(y))

	total := map[int]int{}
	test := map[int]int{}
	for _, v := range y {
		total[v]++
	}
	for _, i := range split.Test {
		test[y[i]]++
	}
	for c, n := range total {
		assert.InDelta(t, 0.15*float64(n), float64(test[c]), 1.0, "class %d", c)
	}

	again, err := StratifiedTrainTestSplit(y, 0.15, 42)
	require.NoError(t, err)
	assert.Equal(t, split, again)

	other, err := StratifiedTrainTestSplit(y, 0.15, 7)
	require.NoError(t, err)
	assert.NotEqual(t, split.Test, other.Test)
}

func TestStratifiedTrainTestSplitErrors(t *testing.T) {
	_, err := StratifiedTrainTestSplit([]int{0, 1, 1, 1}, 0.5, 1)
	assert.Error(t, err, "singleton class")
	_, err = StratifiedTrainTestSplit(balancedLabels(10, 2), 1.2, 1)
	assert.Error(t, err)
	_, err = StratifiedTrainTestSplit(balancedLabels(10, 2), 0.99, 1)
	assert.Error(t, err)
}

func TestStratifiedKFold(t *testing.T) {
	y := append(balancedLabels(47, 3), 2, 2, 2)
	folds, err := NewStratifiedKFold(5, true, 42).Split(y)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	validCount := make([]int, len(y))
	for _, f := range folds {
		assert.Equal(t, len(y), len(f.Train)+len(f.Valid))
		for _, i := range f.Valid {
			validCount[i]++
		}
	}
	for i, c := range validCount {
		assert.Equal(t, 1, c, "row %d", i)
	}

	// per class, fold shares differ by at most one
	for cls := 0; cls < 3; cls++ {
		lo, hi := math.MaxInt, 0
		for _, f := range folds {
			n := 0
			for _, i := range f.Valid {
				if y[i] == cls {
					n++
				}
			}
			lo, hi = min(lo, n), max(hi, n)
		}
		assert.LessOrEqual(t, hi-lo, 1, "class %d", cls)
	}

	again, _ := NewStratifiedKFold(5, true, 42).Split(y)
	assert.Equal(t, folds, again)

	_, err = NewStratifiedKFold(1, true, 42).Split(y)
	assert.Error(t, err)
	_, err = NewStratifiedKFold(5, true, 42).Split([]int{0, 1})
	assert.Error(t, err)
}

func TestBuildClassWeights(t *testing.T) {
	labels := []int{0, 0, 0, 0, 1, 1, 2}
	classes := []string{"maize", "rice", "tomato"}

	base := BuildClassWeights(labels, append(classes, "wheat"), config.WeakClasses{})
	assert.InDelta(t, 7.0/(4*4), base[0], 1e-12)
	assert.InDelta(t, 7.0/(4*1), base[3], 1e-12, "absent class floors count at 1")

	weak := config.WeakClasses{Enabled: true, Names: []string{"tomato", "tomato", "onion"}, BoostFactor: 1.5}
	plain := BuildClassWeights(labels, classes, config.WeakClasses{})
	boosted := BuildClassWeights(labels, classes, weak)
	for i, w := range boosted {
		assert.Greater(t, w, 0.0)
		if classes[i] == "tomato" {
			assert.InDelta(t, plain[i]*1.5, w, 1e-12)
		} else {
			assert.Equal(t, plain[i], w)
		}
	}

	disabled := weak
	disabled.Enabled = false
	assert.Equal(t, plain, BuildClassWeights(labels, classes, disabled))
}

func TestCrossValidatorRun(t *testing.T) {
	engine := &fakeEngine{bestIters: []int{100, 300, 120, 400, 200}, wrongEvery: 4}
	cv := NewCrossValidator(engine, 5, 42, log.NewNopLogger())

	var steps []int
	var reported []float64
	res, err := cv.Run(context.Background(), featureFrame(60), balancedLabels(60, 3), nil, hyperparams.Params{Depth: 6},
		func(step int, v float64) error {
			steps = append(steps, step)
			reported = append(reported, v)
			return nil
		})
	require.NoError(t, err)

	require.Len(t, res.Folds, 5)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, steps)
	assert.Len(t, engine.calls, 5)
	for _, rows := range engine.trainRows {
		assert.Equal(t, 48, rows)
	}

	// each validation fold has 12 rows, rows 0, 4 and 8 are wrong
	for _, f := range res.Folds {
		assert.InDelta(t, 0.75, f.Accuracy, 1e-9)
	}
	assert.InDelta(t, 0.75, res.MeanAccuracy, 1e-9)
	assert.InDelta(t, 0, res.StdAccuracy, 1e-9)
	assert.InDelta(t, 0.75, reported[4], 1e-9)

	assert.Equal(t, []int{100, 300, 120, 400, 200}, res.BestIterations())
	assert.Equal(t, 200, res.MedianBestIteration())
}

func TestCrossValidatorReportAborts(t *testing.T) {
	engine := &fakeEngine{}
	cv := NewCrossValidator(engine, 3, 1, log.NewNopLogger())
	_, err := cv.Run(context.Background(), featureFrame(30), balancedLabels(30, 3), nil, hyperparams.Params{},
		func(step int, v float64) error {
			if step == 2 {
				return errors.ErrTrialPruned
			}
			return nil
		})
	assert.ErrorIs(t, err, errors.ErrTrialPruned)
	assert.Len(t, engine.calls, 2)
}

func TestCrossValidatorRecoversEnginePanic(t *testing.T) {
	cv := NewCrossValidator(&fakeEngine{panicOn: 2}, 3, 1, log.NewNopLogger())
	_, err := cv.Run(context.Background(), featureFrame(30), balancedLabels(30, 3), nil, hyperparams.Params{}, nil)
	require.Error(t, err)
	var perr *errors.PanicError
	assert.True(t, errors.As(err, &perr))
}

func TestFinalIterations(t *testing.T) {
	tests := []struct {
		name  string
		iters []int
		want  int
	}{
		{"floor applies", []int{100, 120, 140}, 200},
		{"median plus margin", []int{300, 400, 500}, 450},
		{"even count truncates", []int{300, 311}, 355},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cv CVResult
			for _, it := range tt.iters {
				cv.Folds = append(cv.Folds, FoldResult{BestIteration: it})
			}
			assert.Equal(t, tt.want, FinalIterations(cv))
		})
	}
}

func TestTrainerFitFinal(t *testing.T) {
	engine := &fakeEngine{bestIters: []int{420}}
	defaults := hyperparams.Defaults{UseGPU: false, BaggingTemperature: 0.6, Subsample: 0.85, EvalMetric: "Accuracy", LogPeriod: 50, EarlyStoppingRounds: 150}
	tr := NewTrainer(engine, defaults, log.NewNopLogger())

	train, err := boost.NewPool(featureFrame(30), balancedLabels(30, 3), nil)
	require.NoError(t, err)
	test, err := boost.NewPool(featureFrame(9), balancedLabels(9, 3), nil)
	require.NoError(t, err)

	cv := CVResult{Folds: []FoldResult{{BestIteration: 400}, {BestIteration: 500}, {BestIteration: 600}}}
	in := hyperparams.Params{Iterations: 2500, BootstrapType: "Bernoulli", BaggingTemperature: hyperparams.Ptr(0.3)}
	m, p, err := tr.FitFinal(context.Background(), in, cv, train, test)
	require.NoError(t, err)

	assert.Equal(t, 420, m.BestIteration())
	assert.Equal(t, 550, p.Iterations)
	assert.Equal(t, 2500, in.Iterations, "input untouched")
	assert.Nil(t, p.BaggingTemperature)
	require.NotNil(t, p.Subsample)
	assert.Equal(t, p, engine.calls[0])
	assert.Equal(t, p, hyperparams.Sanitize(p, defaults))
}
