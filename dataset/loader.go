package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

// CleanStats summarises what Clean changed.
type CleanStats struct {
	RowsIn         int            `json:"rows_in"`
	RowsOut        int            `json:"rows_out"`
	DroppedColumns []string       `json:"dropped_columns"`
	Duplicates     int            `json:"duplicates"`
	FilledValues   map[string]int `json:"filled_values"`
}

// Loader reads raw tables and applies the coarse cleaning pass.
type Loader struct {
	logger log.Logger
}

// NewLoader creates a Loader.
func NewLoader(logger log.Logger) *Loader {
	if logger == nil {
		logger = log.GetLoggerWithName("dataset")
	}
	return &Loader{logger: logger}
}

// Read parses path as CSV, or as XLSX when the extension is .xlsx.
// A missing file yields a NotFoundError.
func (l *Loader) Read(ctx context.Context, path string) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("dataset", path, "Check paths.data_path")
		}
		return nil, errors.Wrapf(err, "dataset: stat %s", path)
	}

	start := time.Now()
	var (
		f   *frame.Frame
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		f, err = frame.ReadXLSX(path)
	default:
		f, err = frame.ReadCSVFile(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: read %s", path)
	}
	l.logger.Info("dataset loaded",
		log.PathKey, path,
		log.SamplesKey, f.NumRows(),
		log.FeaturesKey, f.NumCols(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return f, nil
}

// Load reads path and cleans it.
func (l *Loader) Load(ctx context.Context, path string) (*frame.Frame, CleanStats, error) {
	f, err := l.Read(ctx, path)
	if err != nil {
		return nil, CleanStats{}, err
	}
	cleaned, stats := l.Clean(f)
	return cleaned, stats, nil
}

// Clean drops leakage columns (keeping the target names), drops duplicate
// rows and fills missing values: numeric columns with their median, text
// columns with their mode or "Unknown". It never fails on bad values.
func (l *Loader) Clean(f *frame.Frame) (*frame.Frame, CleanStats) {
	stats := CleanStats{RowsIn: f.NumRows(), FilledValues: map[string]int{}}

	if drop := droppableLeakage(f); len(drop) > 0 {
		l.logger.Info("dropping leakage/helper columns", log.ColumnsKey, drop)
		f = f.Drop(drop...)
		stats.DroppedColumns = drop
	}

	f, stats.Duplicates = f.DropDuplicates()
	if stats.Duplicates > 0 {
		l.logger.Info("dropping duplicate rows", log.DuplicatesKey, stats.Duplicates)
	}

	for _, col := range f.Columns() {
		missing := col.MissingCount()
		if missing == 0 {
			continue
		}
		filled := fillColumn(col)
		if filled == col {
			continue
		}
		f, _ = f.With(filled)
		stats.FilledValues[col.Name()] = missing
	}

	stats.RowsOut = f.NumRows()
	return f, stats
}

// fillColumn returns col with missing values replaced, or col itself when
// there is nothing to fill with.
func fillColumn(col *frame.Column) *frame.Column {
	if col.Kind() == frame.Numeric {
		med := col.Median()
		if math.IsNaN(med) {
			return col
		}
		vals := col.Floats()
		for i, v := range vals {
			if math.IsNaN(v) {
				vals[i] = med
			}
		}
		return frame.NewNumeric(col.Name(), vals)
	}

	fill, ok := col.Mode()
	if !ok {
		fill = "Unknown"
	}
	vals, nulls := col.Strings()
	for i := range vals {
		if nulls[i] {
			vals[i] = fill
			nulls[i] = false
		}
	}
	return frame.NewText(col.Name(), vals, nulls)
}
