// Package hyperparams holds the flat option set of the boosting engine and
// the sanitizer that keeps device and bootstrap options consistent.
package hyperparams

import (
	"github.com/YuminosukeSato/agriml/config"
)

// Task types.
const (
	TaskCPU = "CPU"
	TaskGPU = "GPU"
)

// Bootstrap types understood by the engine.
const (
	BootstrapBayesian  = "Bayesian"
	BootstrapBernoulli = "Bernoulli"
)

// Fixed engine options.
const (
	LossMultiClass = "MultiClass"
	ODTypeIter     = "Iter"
)

// Params is the engine option set. Pointer fields are optional: nil means
// the option is absent, which is different from a zero value.
type Params struct {
	Iterations     int     `json:"iterations"`
	LearningRate   float64 `json:"learning_rate"`
	Depth          int     `json:"depth"`
	L2LeafReg      float64 `json:"l2_leaf_reg"`
	RandomStrength float64 `json:"random_strength"`
	MinDataInLeaf  int     `json:"min_data_in_leaf"`
	BorderCount    int     `json:"border_count"`
	BootstrapType  string  `json:"bootstrap_type"`

	RSM                *float64 `json:"rsm,omitempty"`
	BaggingTemperature *float64 `json:"bagging_temperature,omitempty"`
	Subsample          *float64 `json:"subsample,omitempty"`

	TaskType string  `json:"task_type,omitempty"`
	Devices  *string `json:"devices,omitempty"`

	LossFunction        string `json:"loss_function,omitempty"`
	EvalMetric          string `json:"eval_metric,omitempty"`
	RandomSeed          *int64 `json:"random_seed,omitempty"`
	Verbose             *int   `json:"verbose,omitempty"`
	EarlyStoppingRounds int    `json:"early_stopping_rounds,omitempty"`
	ODType              string `json:"od_type,omitempty"`
	AllowWritingFiles   *bool  `json:"allow_writing_files,omitempty"`

	ClassWeights map[int]float64 `json:"class_weights,omitempty"`
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	q := p
	q.RSM = clonePtr(p.RSM)
	q.BaggingTemperature = clonePtr(p.BaggingTemperature)
	q.Subsample = clonePtr(p.Subsample)
	q.Devices = clonePtr(p.Devices)
	q.RandomSeed = clonePtr(p.RandomSeed)
	q.Verbose = clonePtr(p.Verbose)
	q.AllowWritingFiles = clonePtr(p.AllowWritingFiles)
	if p.ClassWeights != nil {
		q.ClassWeights = make(map[int]float64, len(p.ClassWeights))
		for k, v := range p.ClassWeights {
			q.ClassWeights[k] = v
		}
	}
	return q
}

// Defaults are the values the sanitizer falls back to.
type Defaults struct {
	UseGPU              bool
	GPUDevices          string
	BaggingTemperature  float64
	Subsample           float64
	EvalMetric          string
	RandomSeed          int64
	LogPeriod           int
	EarlyStoppingRounds int
}

// DefaultsFromConfig extracts sanitizer defaults from the settings.
func DefaultsFromConfig(cfg config.Config) Defaults {
	return Defaults{
		UseGPU:              cfg.Device.UseGPU,
		GPUDevices:          cfg.Device.GPUDevices,
		BaggingTemperature:  cfg.Model.BaggingTemperature,
		Subsample:           cfg.Model.Subsample,
		EvalMetric:          cfg.Model.EvalMetric,
		RandomSeed:          cfg.Training.RandomSeed,
		LogPeriod:           cfg.Model.LogPeriod,
		EarlyStoppingRounds: cfg.Model.EarlyStoppingRounds,
	}
}

// Base builds the sanitized starting parameters from the settings and the
// class weights. rsm is only set on CPU.
func Base(cfg config.Config, weights map[int]float64) Params {
	m := cfg.Model
	p := Params{
		Iterations:          m.Iterations,
		LearningRate:        m.LearningRate,
		Depth:               m.Depth,
		L2LeafReg:           m.L2LeafReg,
		RandomStrength:      m.RandomStrength,
		MinDataInLeaf:       m.MinDataInLeaf,
		BorderCount:         m.BorderCount,
		BootstrapType:       m.BootstrapType,
		ClassWeights:        weights,
		LossFunction:        LossMultiClass,
		EvalMetric:          m.EvalMetric,
		RandomSeed:          Ptr(cfg.Training.RandomSeed),
		EarlyStoppingRounds: m.EarlyStoppingRounds,
		Verbose:             Ptr(m.LogPeriod),
	}
	if !cfg.Device.UseGPU {
		p.RSM = Ptr(m.RSM)
	}
	return Sanitize(p, DefaultsFromConfig(cfg))
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
