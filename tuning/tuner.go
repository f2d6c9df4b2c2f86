package tuning

import (
	"context"
	"time"

	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/hyperparams"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
	"github.com/YuminosukeSato/agriml/training"
)

// Search space names.
const (
	ParamDepth              = "depth"
	ParamLearningRate       = "learning_rate"
	ParamL2LeafReg          = "l2_leaf_reg"
	ParamRandomStrength     = "random_strength"
	ParamMinDataInLeaf      = "min_data_in_leaf"
	ParamRSM                = "rsm"
	ParamBaggingTemperature = "bagging_temperature"
	ParamSubsample          = "subsample"
)

// StudyFactory creates the study for one search. A nil factory means no
// search engine is available.
type StudyFactory func(seed int64, logger log.Logger) *Study

// DefaultStudyFactory builds a seeded study with the median pruner.
func DefaultStudyFactory(seed int64, logger log.Logger) *Study {
	return NewStudy(WithSeed(seed), WithPruner(NewMedianPruner()), WithLogger(logger))
}

// Result is the outcome of a search.
type Result struct {
	Params     hyperparams.Params `json:"params"`
	Tuned      bool               `json:"tuned"`
	BestValue  float64            `json:"best_value,omitempty"`
	BestParams map[string]float64 `json:"best_params,omitempty"`
	Trials     int                `json:"trials"`
	Completed  int                `json:"completed"`
	Pruned     int                `json:"pruned"`
}

// Tuner searches hyperparameters around a sanitized base configuration.
type Tuner struct {
	cv       *training.CrossValidator
	newStudy StudyFactory
	defaults hyperparams.Defaults
	trials   int
	timeout  time.Duration
	seed     int64
	logger   log.Logger
}

// TunerOption configures a Tuner.
type TunerOption func(*Tuner)

// WithStudyFactory replaces the study factory. nil disables searching.
func WithStudyFactory(f StudyFactory) TunerOption {
	return func(t *Tuner) {
		t.newStudy = f
	}
}

// NewTuner creates a Tuner with the trial and time budget of cfg.
func NewTuner(cv *training.CrossValidator, defaults hyperparams.Defaults, cfg config.Tuning, seed int64, logger log.Logger, opts ...TunerOption) *Tuner {
	if logger == nil {
		logger = log.GetLoggerWithName("tuning")
	}
	t := &Tuner{
		cv:       cv,
		newStudy: DefaultStudyFactory,
		defaults: defaults,
		trials:   cfg.Trials,
		timeout:  time.Duration(cfg.TimeoutSec) * time.Second,
		seed:     seed,
		logger:   logger.With(log.PhaseKey, log.PhaseTuning),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Tune returns the best sanitized configuration found. When no search engine
// is available, the trial budget is empty, or no trial completes, the
// sanitized base is returned.
func (t *Tuner) Tune(ctx context.Context, X *frame.Frame, y []int, catFeatures []int, base hyperparams.Params) (Result, error) {
	base = hyperparams.Sanitize(base, t.defaults)
	if t.newStudy == nil {
		t.logger.Warn("skipping hyperparameter tuning", log.ErrAttrKey, errors.ErrSearchUnavailable.Error())
		return Result{Params: base}, nil
	}
	if t.trials <= 0 {
		t.logger.Warn("skipping hyperparameter tuning", "trials", t.trials)
		return Result{Params: base}, nil
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	t.logger.Info("starting hyperparameter search",
		"trials", t.trials,
		"timeout_sec", t.timeout.Seconds(),
	)
	study := t.newStudy(t.seed, t.logger)
	err := study.Optimize(ctx, func(ctx context.Context, trial *Trial) (float64, error) {
		cand := t.suggest(trial, base)
		res, err := t.cv.Run(ctx, X, y, catFeatures, cand, func(step int, v float64) error {
			trial.Report(v, step)
			if trial.ShouldPrune() {
				return errors.Mark(errors.Newf("pruned at fold %d with %.4f", step, v), errors.ErrTrialPruned)
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
		return res.MeanAccuracy, nil
	}, t.trials)
	if err != nil {
		return Result{}, errors.Wrap(err, "hyperparameter search")
	}

	counts := study.CountByState()
	out := Result{
		Params:    base,
		Trials:    len(study.Trials()),
		Completed: counts[TrialComplete],
		Pruned:    counts[TrialPruned],
	}
	best, err := study.BestTrial()
	if err != nil {
		t.logger.Warn("no trial completed, keeping base parameters", log.TrialKey, out.Trials)
		return out, nil
	}

	tuned := base.Clone()
	for _, name := range sortedNames(best.Params) {
		applyParam(&tuned, name, best.Params[name])
	}
	out.Params = hyperparams.Sanitize(tuned, t.defaults)
	out.Tuned = true
	out.BestValue = best.Value
	out.BestParams = best.Params

	t.logger.Info("hyperparameter search finished",
		log.AccuracyKey, best.Value,
		log.TrialKey, best.Number,
		"completed", out.Completed,
		"pruned", out.Pruned,
		log.HyperParamsKey, best.Params,
	)
	return out, nil
}

// suggest samples a candidate from the search space. The bootstrap type is
// kept from base and decides which resampling option is searched.
func (t *Tuner) suggest(trial *Trial, base hyperparams.Params) hyperparams.Params {
	p := base.Clone()
	p.Depth = trial.SuggestInt(ParamDepth, 6, 10)
	p.LearningRate = trial.SuggestFloat(ParamLearningRate, 0.015, 0.06, true)
	p.L2LeafReg = trial.SuggestFloat(ParamL2LeafReg, 3.0, 12.0, true)
	p.RandomStrength = trial.SuggestFloat(ParamRandomStrength, 1.0, 3.0, false)
	p.MinDataInLeaf = trial.SuggestInt(ParamMinDataInLeaf, 15, 60)

	if !t.defaults.UseGPU {
		p.RSM = hyperparams.Ptr(trial.SuggestFloat(ParamRSM, 0.7, 1.0, false))
	}
	if hyperparams.IsBayesian(p.BootstrapType) {
		p.BaggingTemperature = hyperparams.Ptr(trial.SuggestFloat(ParamBaggingTemperature, 0.0, 1.0, false))
		p.Subsample = nil
	} else {
		p.Subsample = hyperparams.Ptr(trial.SuggestFloat(ParamSubsample, 0.6, 1.0, false))
		p.BaggingTemperature = nil
	}
	return hyperparams.Sanitize(p, t.defaults)
}

func applyParam(p *hyperparams.Params, name string, v float64) {
	switch name {
	case ParamDepth:
		p.Depth = int(v)
	case ParamLearningRate:
		p.LearningRate = v
	case ParamL2LeafReg:
		p.L2LeafReg = v
	case ParamRandomStrength:
		p.RandomStrength = v
	case ParamMinDataInLeaf:
		p.MinDataInLeaf = int(v)
	case ParamRSM:
		p.RSM = hyperparams.Ptr(v)
	case ParamBaggingTemperature:
		p.BaggingTemperature = hyperparams.Ptr(v)
	case ParamSubsample:
		p.Subsample = hyperparams.Ptr(v)
	}
}
