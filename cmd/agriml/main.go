package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

var (
	cfgPath string
	cfg     config.Config
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:          "agriml",
	Short:        "Crop recommendation training and inference",
	Long:         "Trains a gradient-boosted crop classifier from environmental measurements, saves versioned artifacts and ranks crops for new field records.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		cfg = loaded.Config

		if err := initLogger(cfg); err != nil {
			return errors.Wrap(err, "init logger")
		}
		logger := log.GetLoggerWithName("cli")
		if loaded.Created {
			logger.Info("wrote default settings", log.PathKey, loaded.Path)
		}
		for _, k := range loaded.UnknownKeys {
			logger.Warn("unknown settings key ignored", "key", k)
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logFile != nil {
			_ = logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "settings document (created with defaults when missing)")
	rootCmd.AddCommand(trainCmd, predictCmd, validateCmd, versionsCmd)
}

// initLogger installs the process-wide provider for cfg.Log, duplicating
// output into paths.log_file when set. c must have passed Validate.
func initLogger(c config.Config) error {
	level := log.ToLogLevel(c.Log.Level)

	writers := []io.Writer{os.Stderr}
	if c.Paths.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.Paths.LogFile), 0o755); err != nil {
			return errors.Wrapf(err, "create %s", filepath.Dir(c.Paths.LogFile))
		}
		f, err := os.OpenFile(c.Paths.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrapf(err, "open %s", c.Paths.LogFile)
		}
		logFile = f
		writers = append(writers, f)
	}

	switch c.Log.Format {
	case "cloud":
		p, err := log.SetupLogger(c.Log.Level, io.MultiWriter(writers...))
		if err != nil {
			return err
		}
		log.SetProvider(p)
	default:
		opts := make([]log.ProviderOption, 0, len(writers)+1)
		for _, w := range writers {
			opts = append(opts, log.WithWriter(w))
		}
		if c.Log.Format == "json" {
			opts = append(opts, log.WithJSON())
		}
		p := log.NewZerologProvider(level, opts...)
		p.RouteWarnings()
		log.SetProvider(p)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
