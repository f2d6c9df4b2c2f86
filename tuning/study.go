// Package tuning searches the boosting hyperparameters by seeded random
// sampling with median pruning, scoring each candidate by cross-validation.
package tuning

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

// TrialState is the lifecycle state of a trial.
type TrialState int

const (
	TrialRunning TrialState = iota
	TrialComplete
	TrialPruned
	TrialFail
)

func (s TrialState) String() string {
	switch s {
	case TrialRunning:
		return "running"
	case TrialComplete:
		return "complete"
	case TrialPruned:
		return "pruned"
	default:
		return "fail"
	}
}

// Trial is one evaluation of the objective. Suggested values are recorded in
// Params under their names; asking for the same name twice returns the
// recorded value.
type Trial struct {
	Number       int                `json:"number"`
	Params       map[string]float64 `json:"params"`
	Intermediate map[int]float64    `json:"intermediate"`
	State        TrialState         `json:"state"`
	Value        float64            `json:"value"`

	study *Study
}

// SuggestInt samples an integer uniformly from [low, high].
func (t *Trial) SuggestInt(name string, low, high int) int {
	if v, ok := t.Params[name]; ok {
		return int(v)
	}
	v := low
	if high > low {
		v = low + t.study.rng.IntN(high-low+1)
	}
	t.Params[name] = float64(v)
	return v
}

// SuggestFloat samples a float from [low, high], uniformly in log space when
// logScale is set.
func (t *Trial) SuggestFloat(name string, low, high float64, logScale bool) float64 {
	if v, ok := t.Params[name]; ok {
		return v
	}
	u := t.study.rng.Float64()
	var v float64
	if logScale {
		v = math.Exp(math.Log(low) + u*(math.Log(high)-math.Log(low)))
	} else {
		v = low + u*(high-low)
	}
	v = min(max(v, low), high)
	t.Params[name] = v
	return v
}

// Report records an intermediate objective value at step.
func (t *Trial) Report(value float64, step int) {
	t.Intermediate[step] = value
}

// ShouldPrune asks the study's pruner whether the trial should stop at its
// latest reported step.
func (t *Trial) ShouldPrune() bool {
	if t.study.pruner == nil || len(t.Intermediate) == 0 {
		return false
	}
	step := math.MinInt
	for s := range t.Intermediate {
		step = max(step, s)
	}
	return t.study.pruner.Prune(t.study.completed(), t, step)
}

// Pruner decides whether a running trial is clearly inferior.
type Pruner interface {
	Prune(completed []*Trial, trial *Trial, step int) bool
}

// MedianPruner prunes a trial whose best intermediate value so far is below
// the median of completed trials at the same step. Nothing is pruned until
// NStartupTrials trials completed, nor before step NWarmupSteps.
type MedianPruner struct {
	NStartupTrials int
	NWarmupSteps   int
}

// NewMedianPruner returns a MedianPruner with 5 startup trials and 1 warm-up step.
func NewMedianPruner() *MedianPruner {
	return &MedianPruner{NStartupTrials: 5, NWarmupSteps: 1}
}

// Prune implements Pruner for a maximized objective.
func (p *MedianPruner) Prune(completed []*Trial, trial *Trial, step int) bool {
	if len(completed) < p.NStartupTrials || step < p.NWarmupSteps {
		return false
	}
	best := math.Inf(-1)
	for s, v := range trial.Intermediate {
		if s <= step && !math.IsNaN(v) {
			best = max(best, v)
		}
	}
	if math.IsInf(best, -1) {
		return false
	}

	others := make([]float64, 0, len(completed))
	for _, c := range completed {
		if v, ok := c.Intermediate[step]; ok {
			others = append(others, v)
		}
	}
	median := frame.QuantileLinear(others, 0.5)
	if math.IsNaN(median) {
		return false
	}
	return best < median
}

// Objective evaluates a trial. Returning an error marked with
// errors.ErrTrialPruned records the trial as pruned.
type Objective func(ctx context.Context, trial *Trial) (float64, error)

// Study runs trials of an objective and keeps the best completed one.
type Study struct {
	rng    *rand.Rand
	pruner Pruner
	logger log.Logger
	trials []*Trial
	best   *Trial
}

// Option configures a Study.
type Option func(*Study)

// WithSeed seeds the sampler.
func WithSeed(seed int64) Option {
	return func(s *Study) {
		s.rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	}
}

// WithPruner replaces the default median pruner. nil disables pruning.
func WithPruner(p Pruner) Option {
	return func(s *Study) {
		s.pruner = p
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Study) {
		s.logger = l
	}
}

// NewStudy creates a study that maximizes its objective.
func NewStudy(opts ...Option) *Study {
	s := &Study{pruner: NewMedianPruner()}
	WithSeed(0)(s)
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("tuning")
	}
	return s
}

// Optimize runs up to nTrials trials sequentially. It stops early without
// error when ctx is done; a trial interrupted by ctx is recorded as failed.
// Trials returning NaN fail and the study moves on. Any other objective error
// fails the trial and is returned.
func (s *Study) Optimize(ctx context.Context, objective Objective, nTrials int) error {
	if nTrials <= 0 {
		return errors.NewValidationError("n_trials", "must be positive", nTrials)
	}
	for i := 0; i < nTrials; i++ {
		if ctx.Err() != nil {
			s.logger.Info("search stopped", "reason", ctx.Err().Error(), log.TrialKey, i)
			return nil
		}

		t := &Trial{
			Number:       len(s.trials),
			Params:       make(map[string]float64),
			Intermediate: make(map[int]float64),
			State:        TrialRunning,
			Value:        math.NaN(),
			study:        s,
		}
		s.trials = append(s.trials, t)

		var value float64
		err := errors.SafeExecute("trial objective", func() error {
			var oerr error
			value, oerr = objective(ctx, t)
			return oerr
		})

		switch {
		case err == nil && math.IsNaN(value):
			t.State = TrialFail
			s.logger.Warn("trial returned NaN", log.TrialKey, t.Number)
		case err == nil:
			t.State = TrialComplete
			t.Value = value
			if s.best == nil || value > s.best.Value {
				s.best = t
			}
			s.logger.Info("trial finished",
				log.TrialKey, t.Number,
				log.AccuracyKey, value,
				"best_value", s.best.Value,
				"best_trial", s.best.Number,
			)
		case errors.Is(err, errors.ErrTrialPruned):
			t.State = TrialPruned
			s.logger.Info("trial pruned", log.TrialKey, t.Number, "steps", len(t.Intermediate))
		case ctx.Err() != nil:
			t.State = TrialFail
			s.logger.Info("trial interrupted", log.TrialKey, t.Number, "reason", ctx.Err().Error())
			return nil
		default:
			t.State = TrialFail
			return errors.Wrapf(err, "trial %d", t.Number)
		}
	}
	return nil
}

// BestTrial returns the completed trial with the highest value; ties keep
// the earliest trial.
func (s *Study) BestTrial() (*Trial, error) {
	if s.best == nil {
		return nil, errors.NewValueError("Study.BestTrial", "no trial completed")
	}
	return s.best, nil
}

// Trials returns all trials in start order.
func (s *Study) Trials() []*Trial {
	return append([]*Trial(nil), s.trials...)
}

// CountByState tallies trials per state.
func (s *Study) CountByState() map[TrialState]int {
	out := make(map[TrialState]int, 4)
	for _, t := range s.trials {
		out[t.State]++
	}
	return out
}

func (s *Study) completed() []*Trial {
	var out []*Trial
	for _, t := range s.trials {
		if t.State == TrialComplete {
			out = append(out, t)
		}
	}
	return out
}

// sortedNames returns the parameter names of t in lexical order.
func sortedNames(params map[string]float64) []string {
	names := make([]string, 0, len(params))
	for n := range params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
