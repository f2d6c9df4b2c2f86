package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
	"github.com/YuminosukeSato/agriml/predict"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"train", "predict", "validate", "versions"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestPredictCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "file", "top-n", "version"} {
		assert.NotNil(t, predictCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "0", predictCmd.Flags().Lookup("top-n").DefValue)
}

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "object", input: `{"pH": 6.5, "SoilTexture": "Loam"}`, want: 1},
		{name: "array", input: ` [{"pH": 6.5}, {"pH": 7}]`, want: 2},
		{name: "empty", input: "  ", wantErr: true},
		{name: "empty array", input: "[]", wantErr: true},
		{name: "malformed", input: `{"pH":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRecords([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func writeSettings(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Nitrogen,Phosphorus,Potassium,pH,Temperature,Rainfall,SoilTexture,Crop\n")
	for c, crop := range []string{"maize", "rice", "wheat"} {
		for i := 0; i < 12; i++ {
			d := float64(i)
			fmt.Fprintf(&b, "%g,%g,%g,%g,%g,%g,%s,%s\n",
				40+50*float64(c)+d, 30+d, 20+d, 5.2+1.3*float64(c)+d/100, 20+d/10, 300+500*float64(c)+d*5,
				[]string{"Sandy", "Clay", "Loam"}[c], crop)
		}
	}
	data := filepath.Join(dir, "crops.csv")
	require.NoError(t, os.WriteFile(data, []byte(b.String()), 0o644))

	settings := fmt.Sprintf(`paths:
  data_path: %s
  model_dir: %s
  logs_dir: %s
training:
  random_seed: 3
  test_size: 0.25
  n_folds: 3
tuning:
  enabled: false
device:
  use_gpu: false
model:
  iterations: 20
  depth: 3
  learning_rate: 0.3
  min_data_in_leaf: 1
  border_count: 16
  early_stopping_rounds: 5
log:
  level: error
`, data, filepath.Join(dir, "models"), filepath.Join(dir, "logs"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(settings), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTrainPredictVersions(t *testing.T) {
	dir := t.TempDir()
	settings := writeSettings(t, dir)

	out, err := execute(t, "--config", settings, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, `"ok": true`)

	out, err = execute(t, "--config", settings, "train")
	require.NoError(t, err)
	var trained struct {
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &trained))
	require.NotEmpty(t, trained.Version)

	out, err = execute(t, "--config", settings, "predict", "--top-n", "2",
		"--input", `{"Nitrogen": 90, "Phosphorus": 35, "Potassium": 25, "pH": 6.5, "Temperature": 20.5, "Rainfall": 820, "SoilTexture": "Clay"}`)
	require.NoError(t, err)
	var res predict.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Recommendations, 2)
	assert.Equal(t, "Neutral", res.Derived.PHClass)

	out, err = execute(t, "--config", settings, "versions")
	require.NoError(t, err)
	assert.Contains(t, out, trained.Version)
}

func TestRootCommand_WrapsConfigErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: verbose\n"), 0o644))

	_, err := execute(t, "--config", path, "versions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "log.level", ve.ParamName)
}

func TestInitLoggerWritesLogFile(t *testing.T) {
	t.Cleanup(func() {
		log.SetProvider(log.NewZerologProvider(log.LevelInfo))
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
		}
	})
	c := config.Default()
	c.Paths.LogFile = filepath.Join(t.TempDir(), "logs", "agriml.log")
	c.Log = config.Log{Level: "debug", Format: "json"}

	require.NoError(t, initLogger(c))
	log.GetLoggerWithName("cli").Debug("logger ready", log.PathKey, c.Paths.LogFile)
	require.NoError(t, logFile.Sync())

	data, err := os.ReadFile(c.Paths.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger ready"`)
}
