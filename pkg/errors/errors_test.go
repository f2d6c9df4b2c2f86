package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "agriml: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "PredictProba",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "agriml: PredictProba: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Contains(t, fmt.Sprintf("%+v", err), "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewArtifactNotFoundError("model", "/tmp/models/agriml_physical_vX.gbm")

	assert.Contains(t, err.Error(), "model not found at /tmp/models/agriml_physical_vX.gbm")
	assert.Contains(t, err.Error(), "Train a model first")
	assert.True(t, Is(err, ErrNotFound))

	var nf *NotFoundError
	require.True(t, As(err, &nf))
	assert.Equal(t, "model", nf.Resource)

	wrapped := Wrap(err, "loading latest bundle")
	assert.True(t, Is(wrapped, ErrNotFound))
}

func TestDataValidationError(t *testing.T) {
	issues := []string{"No target column found", "3 pH values outside bounds."}
	err := NewDataValidationError(issues)
	issues[0] = "mutated"

	var dv *DataValidationError
	require.True(t, As(err, &dv))
	assert.Equal(t, "No target column found", dv.Issues[0])
	assert.Contains(t, err.Error(), "2 issue(s)")
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("PredictProba", 12, 10, 1)

	assert.Equal(t, "agriml: PredictProba: dimension mismatch on axis 1 (features). Expected 12, got 10", err.Error())

	var dimErr *DimensionError
	assert.True(t, As(err, &dimErr))
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("Preprocessor", "Apply")
	assert.Equal(t, "agriml: Preprocessor: this model is not fitted yet. Call Fit() before using Apply()", err.Error())
}

func TestWarnRouting(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewLeakageWarning("target column in candidate features", "Crop"))

	require.Len(t, got, 1)
	var lw *LeakageWarning
	require.True(t, As(got[0], &lw))
	assert.Equal(t, []string{"Crop"}, lw.Columns)
}

func TestMarkAndSentinels(t *testing.T) {
	err := Mark(New("objective stopped early"), ErrTrialPruned)
	assert.True(t, Is(err, ErrTrialPruned))
	assert.False(t, Is(err, ErrSearchUnavailable))

	wrapped := Wrapf(err, "trial %d", 4)
	assert.True(t, Is(wrapped, ErrTrialPruned))
	assert.Contains(t, wrapped.Error(), "trial 4")
}

func TestCheckNumericalStability(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		wantErr bool
	}{
		{name: "finite", values: []float64{0.1, -2, 3}},
		{name: "nan", values: []float64{0.1, nan(), 3}, wantErr: true},
		{name: "inf", values: []float64{inf()}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckNumericalStability("eval_loss", tt.values, 7)
			if tt.wantErr {
				var ni *NumericalInstabilityError
				require.True(t, As(err, &ni))
				assert.Equal(t, 7, ni.Iteration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSoftmax(t *testing.T) {
	p := Softmax(nil, []float64{1000, 1000, 1000})
	for _, v := range p {
		assert.InDelta(t, 1.0/3, v, 1e-12)
	}

	scores := []float64{0, 1, 2}
	Softmax(scores, scores)
	assert.InDelta(t, 1.0, scores[0]+scores[1]+scores[2], 1e-12)
	assert.Greater(t, scores[2], scores[1])
}
