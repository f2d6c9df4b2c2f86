package artifact

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/agriml/boost"
	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/evaluation"
	"github.com/YuminosukeSato/agriml/hyperparams"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
	"github.com/YuminosukeSato/agriml/preprocessing"
)

func trainMatrix(shift float64) (*frame.Frame, []int) {
	n := 30
	x := make([]float64, n)
	soil := make([]string, n)
	y := make([]int, n)
	for i := range x {
		y[i] = i % 3
		x[i] = float64(y[i]) + shift + float64(i)/100
		soil[i] = []string{"Clay", "Loam", "Sandy"}[y[i]]
	}
	return frame.MustNew(frame.NewNumeric("N", x), frame.NewText("Soil_Type", soil, nil)), y
}

func testBundle(t *testing.T, shift float64) (*Bundle, *frame.Frame) {
	t.Helper()
	X, y := trainMatrix(shift)
	pool, err := boost.NewPool(X, y, []int{1})
	require.NoError(t, err)

	params := hyperparams.Params{
		Iterations: 10, LearningRate: 0.3, Depth: 2, L2LeafReg: 1, MinDataInLeaf: 1,
		BorderCount: 16, BootstrapType: hyperparams.BootstrapBayesian,
		BaggingTemperature: hyperparams.Ptr(0.0), RandomSeed: hyperparams.Ptr(int64(1)),
	}
	m, err := boost.NewEngine(log.NewNopLogger()).Fit(context.Background(), params, pool, nil)
	require.NoError(t, err)

	meta := &Metadata{
		FeatureNames:        X.Names(),
		CategoricalFeatures: []string{"Soil_Type"},
		ClassNames:          []string{"maize", "rice", "wheat"},
		Metrics:             &evaluation.Report{Accuracy: 0.9},
		HyperParameters:     params,
		Preprocessing: &preprocessing.Metadata{
			FeatureNames:        X.Names(),
			NumericFeatures:     []string{"N"},
			CategoricalFeatures: []string{"Soil_Type"},
		},
		Config: config.Default(),
		RunID:  "run-1",
	}
	return &Bundle{Model: m, Encoder: preprocessing.NewLabelEncoder(meta.ClassNames), Metadata: meta}, X
}

func steppingClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(1500 * time.Millisecond)
		return t
	}
}

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(context.Background(), dir,
		WithClock(steppingClock(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC))),
		WithLogger(log.NewNopLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestVersionKey(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 123456789, time.UTC)
	assert.Equal(t, "20250102_030405_123456_deadbeef", VersionKey(now, "deadbeef"))

	X, _ := trainMatrix(0)
	h1, err := DataHash(X)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}$`), h1)
	h2, _ := DataHash(X)
	assert.Equal(t, h1, h2)
	other, _ := trainMatrix(1)
	h3, _ := DataHash(other)
	assert.NotEqual(t, h1, h3)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, t.TempDir())
	b, X := testBundle(t, 0)

	version, paths, err := s.Save(ctx, b, X)
	require.NoError(t, err)
	for _, p := range []string{paths.Model, paths.Encoder, paths.Metadata} {
		assert.FileExists(t, p)
	}
	assert.Equal(t, version, b.Metadata.Version)
	assert.Equal(t, 30, b.Metadata.TrainingSamples)

	loaded, err := s.Load(version)
	require.NoError(t, err)
	assert.Equal(t, b.Metadata.ClassNames, loaded.Encoder.Classes)
	assert.Equal(t, b.Metadata.FeatureNames, loaded.Metadata.FeatureNames)
	assert.Equal(t, "run-1", loaded.Metadata.RunID)
	assert.Equal(t, config.Default(), loaded.Metadata.Config)

	pool, err := boost.NewPool(X, nil, []int{1})
	require.NoError(t, err)
	want, err := b.Model.PredictProba(pool)
	require.NoError(t, err)
	got, err := loaded.Model.PredictProba(pool)
	require.NoError(t, err)
	assert.Equal(t, want.RawMatrix().Data, got.RawMatrix().Data)
}

func TestLoadLatestIsGreatestKey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openStore(t, dir)

	var versions []string
	for i := 0; i < 3; i++ {
		b, X := testBundle(t, float64(i))
		v, _, err := s.Save(ctx, b, X)
		require.NoError(t, err)
		versions = append(versions, v)
	}
	assert.IsIncreasing(t, versions)

	latest, err := s.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, versions[2], latest.Metadata.Version)

	infos, err := s.Versions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, versions[0], infos[0].Version)
	assert.InDelta(t, 0.9, infos[2].Accuracy, 1e-12)
}

func TestLoadLatestFallsBackToScan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openStore(t, dir)
	for i := 0; i < 2; i++ {
		b, X := testBundle(t, float64(i))
		_, _, err := s.Save(ctx, b, X)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())
	require.NoError(t, os.Remove(filepath.Join(dir, ManifestFile)))
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(filepath.Join(dir, ManifestFile+suffix))
	}

	// an incomplete newer version: model without metadata
	incomplete := "29990101_000000_000000_ffffffff"
	require.NoError(t, os.WriteFile(filepath.Join(dir, modelPrefix+incomplete+".gob"), []byte("x"), 0o644))

	s2 := openStore(t, dir)
	latest, err := s2.LoadLatest(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, incomplete, latest.Metadata.Version)

	infos, err := s2.Versions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, latest.Metadata.Version, infos[1].Version)
}

func TestLoadMissing(t *testing.T) {
	s := openStore(t, t.TempDir())
	_, err := s.LoadLatest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Contains(t, err.Error(), "Train a model first")

	_, err = s.Load("20250101_000000_000000_00000000")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSaveRejectsIncompleteBundle(t *testing.T) {
	s := openStore(t, t.TempDir())
	X, _ := trainMatrix(0)
	_, _, err := s.Save(context.Background(), &Bundle{}, X)
	assert.Error(t, err)
}

func TestVersionsScanReadsEveryMetadata(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := openStore(t, dir)

	var want []string
	for i := 11; i >= 0; i-- {
		v := VersionKey(time.Date(2025, 4, 1, 10, i, 0, 0, time.UTC), "0000abcd")
		want = append([]string{v}, want...)
		p := s.PathsFor(v)
		require.NoError(t, os.WriteFile(p.Model, []byte("x"), 0o644))
		require.NoError(t, writeJSON(p.Metadata, &Metadata{
			Version:         v,
			RunID:           "run-" + v[9:13],
			TrainingSamples: 100 + i,
			Metrics:         &evaluation.Report{Accuracy: float64(i) / 20},
		}))
	}

	infos, err := s.Versions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, len(want))
	for i, info := range infos {
		assert.Equal(t, want[i], info.Version)
		assert.Equal(t, 100+i, info.Samples)
		assert.InDelta(t, float64(i)/20, info.Accuracy, 1e-12)
	}

	require.NoError(t, os.WriteFile(s.PathsFor(want[5]).Metadata, []byte("{"), 0o644))
	_, err = s.Versions(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
