package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/agriml/artifact"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List saved artifact versions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := artifact.Open(ctx, cfg.Paths.ModelDir, artifact.WithLogger(log.GetLoggerWithName("artifact")))
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		versions, err := store.Versions(ctx)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(versions)
		}
		if len(versions) == 0 {
			fmt.Fprintln(os.Stderr, "No versions found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tRUN ID\tSAMPLES\tACCURACY\tCREATED")
		for _, v := range versions {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.4f\t%s\n", v.Version, v.RunID, v.Samples, v.Accuracy, v.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	versionsCmd.Flags().Bool("json", false, "print JSON instead of a table")
}
