package evaluation

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/agriml/pkg/log"
)

func fixture() ([]int, *mat.Dense, []string) {
	classes := []string{"maize", "rice", "wheat", "cotton"}
	yTrue := []int{0, 0, 1, 1, 2, 2, 3, 3}
	proba := mat.NewDense(8, 4, []float64{
		0.7, 0.1, 0.1, 0.1, // 0 ok
		0.6, 0.2, 0.1, 0.1, // 0 ok
		0.1, 0.8, 0.05, 0.05, // 1 ok
		0.5, 0.3, 0.1, 0.1, // 1 -> 0, true class 2nd
		0.1, 0.1, 0.7, 0.1, // 2 ok
		0.4, 0.3, 0.2, 0.1, // 2 -> 0, true class 3rd
		0.1, 0.1, 0.1, 0.7, // 3 ok
		0.3, 0.3, 0.3, 0.1, // 3 -> 0, true class last
	})
	return yTrue, proba, classes
}

func TestEvaluate(t *testing.T) {
	yTrue, proba, classes := fixture()
	logger, buf := log.NewTestLogger(log.LevelInfo)
	r, err := NewEvaluator(logger).Evaluate(yTrue, proba, classes)
	require.NoError(t, err)

	assert.Equal(t, 8, r.Samples)
	assert.InDelta(t, 5.0/8, r.Accuracy, 1e-12)
	assert.InDelta(t, (1+0.5+0.5+0.5)/4, r.BalancedAccuracy, 1e-12)
	assert.Equal(t, 3, r.Top3K)
	assert.Equal(t, 4, r.Top5K, "k is capped at the class count")
	assert.InDelta(t, 7.0/8, r.Top3Accuracy, 1e-12)
	assert.InDelta(t, 1.0, r.Top5Accuracy, 1e-12)

	assert.Equal(t, [][]int{{2, 0, 0, 0}, {1, 1, 0, 0}, {1, 0, 1, 0}, {1, 0, 0, 1}}, r.ConfusionMatrix)
	assert.Equal(t, []float64{1, 0.5, 0.5, 0.5}, r.PerClassAccuracy)
	require.Len(t, r.WorstClasses, 4)
	assert.Equal(t, "rice", r.WorstClasses[0].Class)
	assert.Equal(t, "maize", r.WorstClasses[3].Class)

	maize := r.ClassReport["maize"]
	assert.InDelta(t, 0.4, maize.Precision, 1e-12)
	assert.InDelta(t, 1.0, maize.Recall, 1e-12)
	assert.Equal(t, 2, maize.Support)

	assert.Contains(t, buf.String(), "worst performing crop")

	b, err := r.JSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	for _, key := range []string{"accuracy", "balanced_accuracy", "macro_f1", "weighted_f1", "top3_accuracy", "top5_accuracy", "per_class_accuracy", "confusion_matrix"} {
		assert.Contains(t, decoded, key)
	}
}

func TestEvaluateDimensionErrors(t *testing.T) {
	yTrue, proba, classes := fixture()
	e := NewEvaluator(log.NewNopLogger())

	_, err := e.Evaluate(yTrue[:3], proba, classes)
	assert.Error(t, err)
	_, err = e.Evaluate(yTrue, proba, classes[:2])
	assert.Error(t, err)
}

func TestWorstClassesLimit(t *testing.T) {
	acc := []float64{0.9, 0.1, 0.5, 0.1, 0.7, 0.3, 1.0}
	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	got := worstClasses(acc, names, WorstClassCount)
	want := []string{"b", "d", "f", "c", "e"}
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, w, got[i].Class)
	}
}

func TestWriteAccuracyChart(t *testing.T) {
	yTrue, proba, classes := fixture()
	r, err := NewEvaluator(log.NewNopLogger()).Evaluate(yTrue, proba, classes)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "accuracy.png")
	require.NoError(t, WriteAccuracyChart(path, r))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("\x89PNG")))

	assert.Error(t, WriteAccuracyChart(path, &Report{}))
}
