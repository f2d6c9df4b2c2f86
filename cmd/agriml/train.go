package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/agriml/pipeline"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the full training pipeline",
	Long:  "Loads, validates and splits the data, tunes and cross-validates the model, evaluates it on the held-out split and saves a new artifact version.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if data, _ := cmd.Flags().GetString("data"); data != "" {
			cfg.Paths.DataPath = data
		}
		if noTune, _ := cmd.Flags().GetBool("no-tune"); noTune {
			cfg.Tuning.Enabled = false
		}
		if trials, _ := cmd.Flags().GetInt("trials"); trials > 0 {
			cfg.Tuning.Trials = trials
		}

		out, err := pipeline.New(cfg, pipeline.WithLogger(log.GetLoggerWithName("pipeline"))).Run(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			RunID    string  `json:"run_id"`
			Version  string  `json:"version"`
			Accuracy float64 `json:"accuracy"`
			MacroF1  float64 `json:"macro_f1"`
			Model    string  `json:"model_path"`
			Metadata string  `json:"metadata_path"`
		}{out.RunID, out.Version, out.Report.Accuracy, out.Report.MacroF1, out.Paths.Model, out.Paths.Metadata})
	},
}

func init() {
	trainCmd.Flags().String("data", "", "override paths.data_path")
	trainCmd.Flags().Bool("no-tune", false, "skip the hyperparameter search")
	trainCmd.Flags().Int("trials", 0, "override tuning.trials")
}
