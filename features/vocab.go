// Package features derives engineered features and selects model inputs from
// fixed candidate vocabularies.
package features

// NumericCandidates is the ordered numeric vocabulary. Both column schemas are
// listed, followed by the engineered features.
var NumericCandidates = []string{
	"Temperature", "Humidity", "Rainfall", "Temperature_Anomaly", "Rainfall_Anomaly",
	"pH", "OrganicCarbon", "Nitrogen", "Phosphorus", "Potassium", "Sulphur",
	"Zinc", "Copper", "Boron", "Iron", "Manganese",
	"EC (Electrical Conductivity)", "SoilSalinityIndex", "SoilMoisture", "SoilPorosity",
	"BulkDensity", "CEC", "WaterHoldingCapacity", "NDVI", "EVI",
	"SoilFertilityIndex", "ErosionRisk",

	"Temperature_C", "Humidity_pct", "Rainfall_mm", "Organic_Carbon_pct",
	"Nitrogen_kg_ha", "Phosphorus_kg_ha", "Potassium_kg_ha",
	"Zinc_mg_kg", "Boron_mg_kg", "Iron_mg_kg", "Manganese_mg_kg",
	"Soil_Moisture_pct", "Bulk_Density", "CEC_meq_100g", "Water_Holding_Capacity_pct",
	"NDVI_Index", "EVI_Index",

	RatioNP, RatioPK, NPKSum,
	"log1p_Zinc", "log1p_Copper", "log1p_Boron", "log1p_Iron", "log1p_Manganese", "log1p_Sulphur",
	TemperatureAnomalyZ, RainfallAnomalyZ,
}

// CategoricalCandidates is the ordered categorical vocabulary.
var CategoricalCandidates = []string{
	"SoilTexture", "SoilDepthCategory", "Soil_Texture", "Soil_Depth",
}

// Engineered feature names.
const (
	RatioNP             = "N_to_P"
	RatioPK             = "P_to_K"
	NPKSum              = "NPK_sum"
	TemperatureAnomalyZ = "Temperature_Anomaly_Z"
	RainfallAnomalyZ    = "Rainfall_Anomaly_Z"
)

// aliases maps a measurement to its column names in both schemas.
var (
	nitrogenCols    = []string{"Nitrogen", "Nitrogen_kg_ha"}
	phosphorusCols  = []string{"Phosphorus", "Phosphorus_kg_ha"}
	potassiumCols   = []string{"Potassium", "Potassium_kg_ha"}
	temperatureCols = []string{"Temperature", "Temperature_C"}
	rainfallCols    = []string{"Rainfall", "Rainfall_mm"}

	micronutrients = []struct {
		name string
		cols []string
	}{
		{"Zinc", []string{"Zinc", "Zinc_mg_kg"}},
		{"Copper", []string{"Copper"}},
		{"Boron", []string{"Boron", "Boron_mg_kg"}},
		{"Iron", []string{"Iron", "Iron_mg_kg"}},
		{"Manganese", []string{"Manganese", "Manganese_mg_kg"}},
		{"Sulphur", []string{"Sulphur"}},
	}
)
