package main

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/agriml/dataset"
	"github.com/YuminosukeSato/agriml/features"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the training data without training",
	Long:  "Loads and cleans the data, writes the data-quality report, runs the validation checks and lists the features a training run would use.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := log.GetLoggerWithName("validate")
		if data, _ := cmd.Flags().GetString("data"); data != "" {
			cfg.Paths.DataPath = data
		}

		f, stats, err := dataset.NewLoader(logger).Load(cmd.Context(), cfg.Paths.DataPath)
		if err != nil {
			return err
		}
		now := time.Now()
		reportPath, err := dataset.WriteQualityReport(cfg.Paths.LogsDir, dataset.BuildQualityReport(f, uuid.NewString(), now), now)
		if err != nil {
			return err
		}
		res := dataset.NewValidator(cfg.Bounds, logger).Validate(f)

		engineered, _, err := features.NewEngineer(cfg.Features, logger).Fit(f.Drop(res.Target))
		if err != nil {
			return err
		}
		fs := features.Select(engineered)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Validation    dataset.ValidationResult `json:"validation"`
			Clean         dataset.CleanStats       `json:"clean"`
			Features      features.FeatureSet      `json:"features"`
			QualityReport string                   `json:"quality_report"`
		}{res, stats, fs, reportPath}); err != nil {
			return err
		}
		return res.Err()
	},
}

func init() {
	validateCmd.Flags().String("data", "", "override paths.data_path")
}
