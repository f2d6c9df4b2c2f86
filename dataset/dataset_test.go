package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

const rawCSV = `pH,Rainfall,SoilTexture,Yield,Expected_Profit,Crop
6.0,1000,Clay,20,500,rice
,1200,,30,600,rice
7.0,,Sandy,10,100,maize
6.0,1000,Clay,20,500,rice
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoaderLoadCleans(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	path := writeFile(t, "crops.csv", rawCSV)

	f, stats, err := NewLoader(logger).Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"pH", "Rainfall", "SoilTexture", "Crop"}, f.Names())
	assert.ElementsMatch(t, []string{"Yield", "Expected_Profit"}, stats.DroppedColumns)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 3, f.NumRows())

	ph, _ := f.Column("pH")
	assert.Equal(t, 6.5, ph.Float(1), "median of 6.0 and 7.0")
	rain, _ := f.Column("Rainfall")
	assert.Equal(t, 1100.0, rain.Float(2))
	tex, _ := f.Column("SoilTexture")
	s, ok := tex.String(1)
	assert.True(t, ok)
	assert.Equal(t, "Clay", s)

	assert.True(t, logger.ContainsMessage("dropping leakage/helper columns"))
}

func TestCleanUnknownFillForEmptyTextColumn(t *testing.T) {
	f := frame.MustNew(
		frame.NewText("Soil_Depth", []string{"", ""}, []bool{true, true}),
		frame.NewNumeric("NDVI", []float64{0.2, 0.4}),
	)
	out, stats := NewLoader(log.NewNopLogger()).Clean(f)
	c, _ := out.Column("Soil_Depth")
	s, ok := c.String(0)
	assert.True(t, ok)
	assert.Equal(t, "Unknown", s)
	assert.Equal(t, 2, stats.FilledValues["Soil_Depth"])
}

func TestLoaderMissingFile(t *testing.T) {
	_, _, err := NewLoader(log.NewNopLogger()).Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func classRows(label string, n int, ph float64) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%g,%d,%d,%s\n", ph, 25, 800+i, label)
	}
	return sb.String()
}

func TestValidator(t *testing.T) {
	bounds := config.Default().Bounds

	tests := []struct {
		name       string
		csv        string
		wantOK     bool
		wantIssues []string
	}{
		{
			name:   "valid",
			csv:    "pH,Temperature,Rainfall,Crop\n" + classRows("rice", 10, 6.5) + classRows("maize", 12, 7),
			wantOK: true,
		},
		{
			name:       "no target",
			csv:        "pH,Temperature\n6,20\n",
			wantIssues: []string{"No target column found ('Recommended_Crop' or 'Crop')."},
		},
		{
			name: "ranges and tiny classes",
			csv: "pH,Temperature,Rainfall,Crop\n" + classRows("rice", 10, 6.5) +
				"15,70,6000,okra\n-1,20,100,okra\n",
			wantIssues: []string{
				"2 pH values outside bounds.",
				"1 Temperature values outside bounds.",
				"1 Rainfall values above max_rainfall_mm.",
				"Tiny classes: {okra: 2}",
			},
		},
		{
			name:       "missing target",
			csv:        "pH,Recommended_Crop\n" + "6,rice\n6.1,\n",
			wantIssues: []string{"Target column Recommended_Crop has missing values.", "Tiny classes: {rice: 1}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := frame.ReadCSV(strings.NewReader(tt.csv))
			require.NoError(t, err)

			res := NewValidator(bounds, log.NewNopLogger()).Validate(f)
			assert.Equal(t, tt.wantOK, res.OK)
			assert.Equal(t, tt.wantIssues, res.Issues)
			if !tt.wantOK {
				var dv *errors.DataValidationError
				assert.True(t, errors.As(res.Err(), &dv))
			} else {
				assert.NoError(t, res.Err())
			}
		})
	}
}

func TestQualityReport(t *testing.T) {
	f, err := frame.ReadCSV(strings.NewReader(rawCSV))
	require.NoError(t, err)

	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	rep := BuildQualityReport(f, "run-1", now)
	assert.Equal(t, 4, rep.TotalRows)
	assert.Equal(t, 6, rep.TotalColumns)
	assert.Equal(t, map[string]int{"pH": 1, "Rainfall": 1, "SoilTexture": 1}, rep.MissingValues)
	assert.Equal(t, 1, rep.Duplicates)

	dir := t.TempDir()
	path, err := WriteQualityReport(dir, rep, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data_quality_20250304_050607.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded QualityReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rep.MissingValues, decoded.MissingValues)
}
