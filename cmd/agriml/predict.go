package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/agriml/artifact"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
	"github.com/YuminosukeSato/agriml/predict"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Rank crops for one or more field records",
	Long:  "Reads a JSON object or an array of objects from --input, --file or stdin and prints the top crops for each record using the latest (or a chosen) artifact version.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		logger := log.GetLoggerWithName("predict")

		raw, err := readInput(cmd)
		if err != nil {
			return err
		}
		records, err := parseRecords(raw)
		if err != nil {
			return err
		}

		store, err := artifact.Open(ctx, cfg.Paths.ModelDir, artifact.WithLogger(logger))
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		var b *artifact.Bundle
		if version, _ := cmd.Flags().GetString("version"); version != "" {
			b, err = store.Load(version)
		} else {
			b, err = store.LoadLatest(ctx)
		}
		if err != nil {
			return err
		}

		p, err := predict.NewPredictor(b, cfg.Inference, logger)
		if err != nil {
			return err
		}
		topN, _ := cmd.Flags().GetInt("top-n")
		results, err := p.PredictRecords(records, topN)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	},
}

func init() {
	predictCmd.Flags().String("input", "", "JSON record or array of records")
	predictCmd.Flags().String("file", "", "file holding the JSON input, - for stdin")
	predictCmd.Flags().Int("top-n", 0, "number of crops to return (default inference.top_n)")
	predictCmd.Flags().String("version", "", "artifact version to load instead of the latest")
}

func readInput(cmd *cobra.Command) ([]byte, error) {
	if in, _ := cmd.Flags().GetString("input"); in != "" {
		return []byte(in), nil
	}
	path, _ := cmd.Flags().GetString("file")
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return data, errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	return data, errors.Wrapf(err, "read %s", path)
}

// parseRecords accepts a single object or an array of objects.
func parseRecords(data []byte) ([]frame.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.NewValueError("predict", "no input records")
	}
	if data[0] == '[' {
		var records []frame.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, errors.Wrap(err, "decode input records")
		}
		if len(records) == 0 {
			return nil, errors.NewValueError("predict", "no input records")
		}
		return records, nil
	}
	var rec frame.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "decode input record")
	}
	return []frame.Record{rec}, nil
}
