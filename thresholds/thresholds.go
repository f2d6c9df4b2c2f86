// Package thresholds derives rule-based soil and climate descriptors from raw
// input. Nothing here is learned.
package thresholds

import (
	"math"

	"github.com/YuminosukeSato/agriml/core/frame"
)

// Unknown is the class of a missing measurement.
const Unknown = "Unknown"

// Suitability flags.
const (
	SuitabilityHigh     = "High"
	SuitabilityModerate = "Moderate"
	SuitabilityLow      = "Low"
)

// Input column names.
const (
	PHColumn        = "pH"
	FertilityColumn = "SoilFertilityIndex"
	ErosionColumn   = "ErosionRisk"
)

// RainfallColumns are tried in order.
var RainfallColumns = []string{"Rainfall", "Rainfall_mm"}

// Descriptors are the derived labels of one row. PHClass and RainfallClass
// are empty when the input has no such column.
type Descriptors struct {
	PHClass         string `json:"pH_Class,omitempty"`
	RainfallClass   string `json:"Rainfall_Class,omitempty"`
	SuitabilityFlag string `json:"Suitability_Flag"`
}

// CategorizePH buckets a soil pH. NaN is Unknown.
func CategorizePH(ph float64) string {
	switch {
	case math.IsNaN(ph):
		return Unknown
	case ph < 5.5:
		return "Strongly_Acidic"
	case ph < 6.5:
		return "Acidic"
	case ph < 7.5:
		return "Neutral"
	case ph < 8.5:
		return "Alkaline"
	default:
		return "Strongly_Alkaline"
	}
}

// CategorizeRainfall buckets annual rainfall in mm. NaN is Unknown.
func CategorizeRainfall(mm float64) string {
	switch {
	case math.IsNaN(mm):
		return Unknown
	case mm < 500:
		return "Low"
	case mm < 1000:
		return "Moderate"
	case mm < 1500:
		return "High"
	default:
		return "Very_High"
	}
}

// SuitabilityFlag combines pH, fertility index and erosion risk; NaN means
// missing. A missing pH is taken as 6.5 and a missing erosion risk as
// acceptable. A missing fertility index is never acceptable.
func SuitabilityFlag(ph, fertility, erosion float64) string {
	if math.IsNaN(ph) {
		ph = 6.5
	}
	phOK := ph >= 5.5 && ph <= 8.5
	fertilityOK := !math.IsNaN(fertility) && fertility >= 0.4
	erosionOK := math.IsNaN(erosion) || erosion < 0.7

	switch {
	case phOK && fertilityOK && erosionOK:
		return SuitabilityHigh
	case phOK && (fertilityOK || erosionOK):
		return SuitabilityModerate
	default:
		return SuitabilityLow
	}
}

// Derive computes the descriptors of every row of f.
func Derive(f *frame.Frame) []Descriptors {
	ph, hasPH := f.Column(PHColumn)
	var rain *frame.Column
	for _, name := range RainfallColumns {
		if c, ok := f.Column(name); ok {
			rain = c
			break
		}
	}
	fertility, _ := f.Column(FertilityColumn)
	erosion, _ := f.Column(ErosionColumn)

	out := make([]Descriptors, f.NumRows())
	for i := range out {
		phVal := value(ph, i)
		if hasPH {
			out[i].PHClass = CategorizePH(phVal)
		}
		if rain != nil {
			out[i].RainfallClass = CategorizeRainfall(value(rain, i))
		}
		out[i].SuitabilityFlag = SuitabilityFlag(phVal, value(fertility, i), value(erosion, i))
	}
	return out
}

func value(c *frame.Column, i int) float64 {
	if c == nil {
		return math.NaN()
	}
	return c.Float(i)
}
