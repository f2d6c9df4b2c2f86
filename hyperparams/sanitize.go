package hyperparams

import "strings"

// IsBayesian reports whether the bootstrap type selects Bayesian bootstrap.
// The comparison is case-insensitive and an empty type counts as Bayesian.
func IsBayesian(bootstrapType string) bool {
	return bootstrapType == "" || strings.EqualFold(bootstrapType, BootstrapBayesian)
}

// Sanitize makes p consistent with the device and bootstrap rules and fills
// the remaining safe defaults. The input is not modified. Every step only
// sets or removes options, so Sanitize(Sanitize(p, d), d) == Sanitize(p, d).
//
// After sanitization:
//   - GPU: TaskType is GPU, Devices is set, RSM is absent.
//   - CPU: TaskType is CPU, Devices is absent.
//   - Bayesian: BaggingTemperature is set, Subsample is absent.
//   - otherwise: Subsample is set, BaggingTemperature is absent.
func Sanitize(p Params, d Defaults) Params {
	q := p.Clone()

	if d.UseGPU {
		q.TaskType = TaskGPU
		q.Devices = Ptr(d.GPUDevices)
		q.RSM = nil
	} else {
		q.TaskType = TaskCPU
		q.Devices = nil
	}

	if IsBayesian(q.BootstrapType) {
		q.Subsample = nil
		if q.BaggingTemperature == nil {
			q.BaggingTemperature = Ptr(d.BaggingTemperature)
		}
	} else {
		q.BaggingTemperature = nil
		if q.Subsample == nil {
			q.Subsample = Ptr(d.Subsample)
		}
	}

	if q.LossFunction == "" {
		q.LossFunction = LossMultiClass
	}
	if q.EvalMetric == "" {
		q.EvalMetric = d.EvalMetric
	}
	if q.RandomSeed == nil {
		q.RandomSeed = Ptr(d.RandomSeed)
	}
	if q.Verbose == nil {
		q.Verbose = Ptr(d.LogPeriod)
	}
	if q.EarlyStoppingRounds == 0 {
		q.EarlyStoppingRounds = d.EarlyStoppingRounds
	}
	if q.ODType == "" {
		q.ODType = ODTypeIter
	}
	if q.AllowWritingFiles == nil {
		q.AllowWritingFiles = Ptr(false)
	}
	return q
}
