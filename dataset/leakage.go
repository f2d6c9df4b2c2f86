// Package dataset loads, cleans and validates the raw crop table.
package dataset

import "github.com/YuminosukeSato/agriml/core/frame"

// TargetCandidates are the accepted target column names, in priority order.
var TargetCandidates = []string{"Recommended_Crop", "Crop"}

// LeakageColumns are outcome, economic and recommendation-helper fields that
// must never reach the model. The target names are listed too so that a
// second target-like column is dropped from the features.
var LeakageColumns = []string{
	"Recommended_Crop",
	"Crop",
	"Suitable",
	"Suitability_Score",
	"Suitability_Flag",
	"Yield",
	"Expected_Yield_q_per_ha",
	"Cost_of_Cultivation",
	"Expected_Selling_Price",
	"Expected_Price",
	"Expected_Price_per_quintal_INR",
	"Expected_Profit",
	"Fertilizer_Recommendation",
	"Fertilizer_Note",
	"Mandi_Suggestion",
	"Risk_Index",
	"Recommended_Crop_Group",
	"Recommended_Crop_Primary_Season",
	"MarketAccessIndex",
	"IrrigationAccessIndex",
	"FertilizerAffordabilityIndex",
	"CWR_mm",
	"GDD",
	"Rainfall_Class",
	"pH_Class",
	"FarmSizeClass",
}

// IsTargetName reports whether name is one of TargetCandidates.
func IsTargetName(name string) bool {
	for _, t := range TargetCandidates {
		if t == name {
			return true
		}
	}
	return false
}

// TargetColumn returns the first target candidate present in f.
func TargetColumn(f *frame.Frame) (string, bool) {
	for _, t := range TargetCandidates {
		if f.Has(t) {
			return t, true
		}
	}
	return "", false
}

// droppableLeakage lists the leakage columns present in f, excluding targets.
func droppableLeakage(f *frame.Frame) []string {
	var out []string
	for _, c := range LeakageColumns {
		if f.Has(c) && !IsTargetName(c) {
			out = append(out, c)
		}
	}
	return out
}
