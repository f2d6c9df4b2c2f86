// Package config loads the closed settings schema for training and inference.
//
// Settings come from, in increasing priority: built-in defaults, a YAML
// document, and AGRIML_* environment variables (AGRIML_TRAINING_N_FOLDS=10).
// The resulting Config is a plain value; nothing reads settings globally.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "AGRIML"

// Config is the full set of recognised settings.
type Config struct {
	Paths       Paths       `mapstructure:"paths" yaml:"paths" json:"paths"`
	Training    Training    `mapstructure:"training" yaml:"training" json:"training"`
	Tuning      Tuning      `mapstructure:"tuning" yaml:"tuning" json:"tuning"`
	Device      Device      `mapstructure:"device" yaml:"device" json:"device"`
	Model       Model       `mapstructure:"model" yaml:"model" json:"model"`
	Inference   Inference   `mapstructure:"inference" yaml:"inference" json:"inference"`
	Features    Features    `mapstructure:"features" yaml:"features" json:"features"`
	Bounds      Bounds      `mapstructure:"bounds" yaml:"bounds" json:"bounds"`
	WeakClasses WeakClasses `mapstructure:"weak_classes" yaml:"weak_classes" json:"weak_classes"`
	Log         Log         `mapstructure:"log" yaml:"log" json:"log"`
}

// Paths locates inputs and outputs.
type Paths struct {
	DataPath string `mapstructure:"data_path" yaml:"data_path" json:"data_path"`
	ModelDir string `mapstructure:"model_dir" yaml:"model_dir" json:"model_dir"`
	LogsDir  string `mapstructure:"logs_dir" yaml:"logs_dir" json:"logs_dir"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file" json:"log_file"`
}

// Training holds split and cross-validation settings.
type Training struct {
	RandomSeed int64   `mapstructure:"random_seed" yaml:"random_seed" json:"random_seed"`
	TestSize   float64 `mapstructure:"test_size" yaml:"test_size" json:"test_size"`
	NFolds     int     `mapstructure:"n_folds" yaml:"n_folds" json:"n_folds"`
}

// Tuning holds hyperparameter search settings.
type Tuning struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Trials     int  `mapstructure:"trials" yaml:"trials" json:"trials"`
	TimeoutSec int  `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
}

// Device selects CPU or GPU execution.
type Device struct {
	UseGPU     bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
	GPUDevices string `mapstructure:"gpu_devices" yaml:"gpu_devices" json:"gpu_devices"`
}

// Model holds the base gradient-boosting hyperparameters.
type Model struct {
	Iterations          int     `mapstructure:"iterations" yaml:"iterations" json:"iterations"`
	LearningRate        float64 `mapstructure:"learning_rate" yaml:"learning_rate" json:"learning_rate"`
	Depth               int     `mapstructure:"depth" yaml:"depth" json:"depth"`
	L2LeafReg           float64 `mapstructure:"l2_leaf_reg" yaml:"l2_leaf_reg" json:"l2_leaf_reg"`
	RandomStrength      float64 `mapstructure:"random_strength" yaml:"random_strength" json:"random_strength"`
	RSM                 float64 `mapstructure:"rsm" yaml:"rsm" json:"rsm"`
	MinDataInLeaf       int     `mapstructure:"min_data_in_leaf" yaml:"min_data_in_leaf" json:"min_data_in_leaf"`
	BorderCount         int     `mapstructure:"border_count" yaml:"border_count" json:"border_count"`
	BootstrapType       string  `mapstructure:"bootstrap_type" yaml:"bootstrap_type" json:"bootstrap_type"`
	BaggingTemperature  float64 `mapstructure:"bagging_temperature" yaml:"bagging_temperature" json:"bagging_temperature"`
	Subsample           float64 `mapstructure:"subsample" yaml:"subsample" json:"subsample"`
	EarlyStoppingRounds int     `mapstructure:"early_stopping_rounds" yaml:"early_stopping_rounds" json:"early_stopping_rounds"`
	EvalMetric          string  `mapstructure:"eval_metric" yaml:"eval_metric" json:"eval_metric"`
	LogPeriod           int     `mapstructure:"log_period" yaml:"log_period" json:"log_period"`
}

// Inference holds ranking settings.
type Inference struct {
	TopN          int     `mapstructure:"top_n" yaml:"top_n" json:"top_n"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`
}

// Features toggles engineered features.
type Features struct {
	RatioFeatures     bool `mapstructure:"create_ratio_features" yaml:"create_ratio_features" json:"create_ratio_features"`
	LogMicronutrients bool `mapstructure:"log_transform_micronutrients" yaml:"log_transform_micronutrients" json:"log_transform_micronutrients"`
	ClimateAnomalies  bool `mapstructure:"create_climate_anomalies" yaml:"create_climate_anomalies" json:"create_climate_anomalies"`
}

// Bounds are the plausibility ranges used by the validator.
type Bounds struct {
	MinPH          float64 `mapstructure:"min_ph" yaml:"min_ph" json:"min_ph"`
	MaxPH          float64 `mapstructure:"max_ph" yaml:"max_ph" json:"max_ph"`
	MaxRainfallMM  float64 `mapstructure:"max_rainfall_mm" yaml:"max_rainfall_mm" json:"max_rainfall_mm"`
	MinTemperature float64 `mapstructure:"min_temperature_c" yaml:"min_temperature_c" json:"min_temperature_c"`
	MaxTemperature float64 `mapstructure:"max_temperature_c" yaml:"max_temperature_c" json:"max_temperature_c"`
}

// WeakClasses configures the class-weight boost for hard crops.
type WeakClasses struct {
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Names       []string `mapstructure:"names" yaml:"names" json:"names"`
	BoostFactor float64  `mapstructure:"boost_factor" yaml:"boost_factor" json:"boost_factor"`
}

// Log configures the logger.
type Log struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"` // console, json or cloud
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Paths: Paths{
			DataPath: "data/crop_data.csv",
			ModelDir: "models",
			LogsDir:  "logs",
		},
		Training: Training{RandomSeed: 42, TestSize: 0.15, NFolds: 5},
		Tuning:   Tuning{Enabled: true, Trials: 50, TimeoutSec: 1800},
		Device:   Device{UseGPU: true, GPUDevices: "0"},
		Model: Model{
			Iterations:          2500,
			LearningRate:        0.03,
			Depth:               9,
			L2LeafReg:           8.0,
			RandomStrength:      2.0,
			RSM:                 0.85,
			MinDataInLeaf:       30,
			BorderCount:         254,
			BootstrapType:       "Bayesian",
			BaggingTemperature:  0.6,
			Subsample:           0.85,
			EarlyStoppingRounds: 150,
			EvalMetric:          "Accuracy",
			LogPeriod:           50,
		},
		Inference: Inference{TopN: 3, MinConfidence: 0.10},
		Features:  Features{RatioFeatures: true, LogMicronutrients: true, ClimateAnomalies: true},
		Bounds: Bounds{
			MinPH:          0,
			MaxPH:          14,
			MaxRainfallMM:  5000,
			MinTemperature: -10,
			MaxTemperature: 60,
		},
		WeakClasses: WeakClasses{
			Enabled:     true,
			Names:       []string{"tomato", "maize", "sunflower", "onion"},
			BoostFactor: 1.5,
		},
		Log: Log{Level: "info", Format: "console"},
	}
}

// Loaded is the result of Load.
type Loaded struct {
	Config Config
	// Path is the settings document that was read or created.
	Path string
	// Created is true when the document did not exist and defaults were written.
	Created bool
	// UnknownKeys lists keys in the document that are not part of the schema.
	// They have no effect.
	UnknownKeys []string
}

// Load reads the settings document at path. A missing document is created
// with the defaults. An empty path uses defaults and environment only.
func Load(path string) (*Loaded, error) {
	def := Default()
	v := viper.New()
	setDefaults(v, def)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	res := &Loaded{Path: path}
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := WriteDefault(path); err != nil {
				return nil, err
			}
			res.Created = true
		} else if err != nil {
			return nil, errors.Wrapf(err, "config: stat %s", path)
		}

		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
		res.UnknownKeys = unknownKeys(v, def)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res.Config = cfg
	return res, nil
}

// WriteDefault writes the default settings document to path.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "config: create %s", dir)
		}
	}
	def := Default()
	data, err := yaml.Marshal(&def)
	if err != nil {
		return errors.Wrap(err, "config: encode defaults")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "config: write %s", path)
	}
	return nil
}

// Validate rejects settings no run could use.
func (c Config) Validate() error {
	switch {
	case c.Training.NFolds < 2:
		return errors.NewValidationError("training.n_folds", "must be at least 2", c.Training.NFolds)
	case c.Training.TestSize <= 0 || c.Training.TestSize >= 1:
		return errors.NewValidationError("training.test_size", "must be in (0, 1)", c.Training.TestSize)
	case c.Tuning.Trials < 0:
		return errors.NewValidationError("tuning.trials", "must not be negative", c.Tuning.Trials)
	case c.Tuning.Enabled && c.Tuning.Trials < 1:
		return errors.NewValidationError("tuning.trials", "must be at least 1 when tuning is enabled", c.Tuning.Trials)
	case c.Model.Iterations < 1:
		return errors.NewValidationError("model.iterations", "must be positive", c.Model.Iterations)
	case c.Model.LearningRate <= 0:
		return errors.NewValidationError("model.learning_rate", "must be positive", c.Model.LearningRate)
	case c.Model.Depth < 1 || c.Model.Depth > 16:
		return errors.NewValidationError("model.depth", "must be in [1, 16]", c.Model.Depth)
	case c.Model.BorderCount < 1 || c.Model.BorderCount > 65535:
		return errors.NewValidationError("model.border_count", "must be in [1, 65535]", c.Model.BorderCount)
	case c.Inference.TopN < 1:
		return errors.NewValidationError("inference.top_n", "must be positive", c.Inference.TopN)
	case c.WeakClasses.BoostFactor <= 0:
		return errors.NewValidationError("weak_classes.boost_factor", "must be positive", c.WeakClasses.BoostFactor)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", "must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json", "cloud":
	default:
		return errors.NewValidationError("log.format", "must be console, json or cloud", c.Log.Format)
	}
	return nil
}

// setDefaults registers every leaf of def so that the key set is closed and
// environment overrides resolve.
func setDefaults(v *viper.Viper, def Config) {
	for key, val := range flatten(def) {
		v.SetDefault(key, val)
	}
}

// flatten maps dotted keys to leaf values using the yaml encoding of c.
func flatten(c Config) map[string]interface{} {
	data, err := yaml.Marshal(&c)
	if err != nil {
		panic(fmt.Sprintf("config: marshal defaults: %v", err))
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		panic(fmt.Sprintf("config: unmarshal defaults: %v", err))
	}
	out := make(map[string]interface{})
	var walk func(prefix string, m map[string]interface{})
	walk = func(prefix string, m map[string]interface{}) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := v.(map[string]interface{}); ok {
				walk(key, sub)
				continue
			}
			out[key] = v
		}
	}
	walk("", tree)
	return out
}

func unknownKeys(v *viper.Viper, def Config) []string {
	known := flatten(def)
	var unknown []string
	for _, k := range v.AllKeys() {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}
