package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nan() float64 { return inf() - inf() }

func inf() float64 {
	x := 1e308
	return x * 10
}

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "boost.Fit")
		panic("index out of range")
	}

	err := testFunc()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, As(err, &panicErr))
	assert.Equal(t, "boost.Fit", panicErr.Operation)
	assert.Equal(t, "index out of range", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in boost.Fit: index out of range", panicErr.Error())
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "boost.Fit")
		return nil
	}
	assert.NoError(t, testFunc())
}

func TestRecover_WithExistingError(t *testing.T) {
	original := New("fold failed")
	testFunc := func() (err error) {
		defer Recover(&err, "training.CrossValidate")
		err = original
		panic("boom")
	}

	err := testFunc()
	require.Error(t, err)
	assert.True(t, Is(err, original))
	assert.Contains(t, fmt.Sprintf("%+v", err), "panic in training.CrossValidate")
}

func TestSafeExecute(t *testing.T) {
	tests := []struct {
		name      string
		fn        func() error
		wantPanic bool
		wantErr   bool
	}{
		{name: "success", fn: func() error { return nil }},
		{name: "function error", fn: func() error { return New("bad fold") }, wantErr: true},
		{name: "panic", fn: func() error {
			var m map[string]int
			m["x"] = 1
			return nil
		}, wantErr: true, wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("fit", tt.fn)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var panicErr *PanicError
			assert.Equal(t, tt.wantPanic, As(err, &panicErr))
		})
	}
}

func BenchmarkSafeExecute_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = SafeExecute("bench", func() error { return nil })
	}
}
