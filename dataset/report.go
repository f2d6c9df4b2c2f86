package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// QualityReport is the per-run data-quality summary written next to the logs.
type QualityReport struct {
	RunID         string         `json:"run_id,omitempty"`
	GeneratedAt   time.Time      `json:"generated_at"`
	TotalRows     int            `json:"total_rows"`
	TotalColumns  int            `json:"total_columns"`
	MissingValues map[string]int `json:"missing_values"`
	Duplicates    int            `json:"duplicates"`
}

// BuildQualityReport summarises f. Only columns with missing values appear in
// MissingValues.
func BuildQualityReport(f *frame.Frame, runID string, now time.Time) QualityReport {
	rep := QualityReport{
		RunID:         runID,
		GeneratedAt:   now.UTC(),
		TotalRows:     f.NumRows(),
		TotalColumns:  f.NumCols(),
		MissingValues: map[string]int{},
		Duplicates:    len(f.DuplicateRows()),
	}
	for _, c := range f.Columns() {
		if n := c.MissingCount(); n > 0 {
			rep.MissingValues[c.Name()] = n
		}
	}
	return rep
}

// WriteQualityReport writes rep to dir as data_quality_YYYYmmdd_HHMMSS.json
// and returns the path.
func WriteQualityReport(dir string, rep QualityReport, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "dataset: create %s", dir)
	}
	path := filepath.Join(dir, "data_quality_"+now.Format("20060102_150405")+".json")
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "dataset: encode quality report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "dataset: write %s", path)
	}
	return path, nil
}
