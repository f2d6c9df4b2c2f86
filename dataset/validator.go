package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

// MinClassSize is the smallest class count accepted without an issue.
const MinClassSize = 10

// ValidationResult is the outcome of Validate. Every check runs; issues are
// collected rather than returned one at a time.
type ValidationResult struct {
	OK     bool     `json:"ok"`
	Target string   `json:"target,omitempty"`
	Issues []string `json:"issues"`
}

// Err returns a DataValidationError when the result is not OK.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return errors.NewDataValidationError(r.Issues)
}

// Validator runs schema, range and class-size checks.
type Validator struct {
	bounds config.Bounds
	logger log.Logger
}

// NewValidator creates a Validator for the given plausibility bounds.
func NewValidator(bounds config.Bounds, logger log.Logger) *Validator {
	if logger == nil {
		logger = log.GetLoggerWithName("dataset")
	}
	return &Validator{bounds: bounds, logger: logger}
}

// Validate checks f. Missing values do not count as out of range.
func (v *Validator) Validate(f *frame.Frame) ValidationResult {
	target, ok := TargetColumn(f)
	if !ok {
		res := ValidationResult{Issues: []string{"No target column found ('Recommended_Crop' or 'Crop')."}}
		v.report(res)
		return res
	}

	var issues []string
	tcol, _ := f.Column(target)
	if tcol.MissingCount() > 0 {
		issues = append(issues, fmt.Sprintf("Target column %s has missing values.", target))
	}

	if c, ok := f.Column("pH"); ok {
		if bad := countOutside(c, v.bounds.MinPH, v.bounds.MaxPH); bad > 0 {
			issues = append(issues, fmt.Sprintf("%d pH values outside bounds.", bad))
		}
	}
	for _, name := range []string{"Temperature", "Temperature_C"} {
		if c, ok := f.Column(name); ok {
			if bad := countOutside(c, v.bounds.MinTemperature, v.bounds.MaxTemperature); bad > 0 {
				issues = append(issues, fmt.Sprintf("%d %s values outside bounds.", bad, name))
			}
		}
	}
	for _, name := range []string{"Rainfall", "Rainfall_mm"} {
		if c, ok := f.Column(name); ok {
			if bad := countOutside(c, math.Inf(-1), v.bounds.MaxRainfallMM); bad > 0 {
				issues = append(issues, fmt.Sprintf("%d %s values above max_rainfall_mm.", bad, name))
			}
		}
	}

	if tiny := tinyClasses(tcol); tiny != "" {
		issues = append(issues, "Tiny classes: "+tiny)
	}

	res := ValidationResult{OK: len(issues) == 0, Target: target, Issues: issues}
	v.report(res)
	return res
}

func (v *Validator) report(res ValidationResult) {
	if res.OK {
		v.logger.Info("data validation passed", log.TargetKey, res.Target)
		return
	}
	for _, issue := range res.Issues {
		v.logger.Warn("data validation issue", log.IssuesKey, issue)
	}
}

func countOutside(c *frame.Column, lo, hi float64) int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		x := c.Float(i)
		if math.IsNaN(x) {
			continue
		}
		if x < lo || x > hi {
			n++
		}
	}
	return n
}

// tinyClasses formats the classes with fewer than MinClassSize rows as
// "{label: count, ...}" sorted by label, or "" when there are none.
func tinyClasses(target *frame.Column) string {
	counts := target.ValueCounts()
	var labels []string
	for label, n := range counts {
		if n < MinClassSize {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		return ""
	}
	sort.Strings(labels)
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s: %d", l, counts[l])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
