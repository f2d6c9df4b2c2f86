package training

import (
	"context"

	"github.com/YuminosukeSato/agriml/boost"
	"github.com/YuminosukeSato/agriml/hyperparams"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

// Final model sizing.
const (
	IterationMargin    = 50
	MinFinalIterations = 200
)

// FinalIterations is max(median best iteration + IterationMargin, MinFinalIterations).
func FinalIterations(cv CVResult) int {
	return max(cv.MedianBestIteration()+IterationMargin, MinFinalIterations)
}

// Trainer fits the final model.
type Trainer struct {
	engine   boost.Engine
	defaults hyperparams.Defaults
	logger   log.Logger
}

// NewTrainer creates a Trainer.
func NewTrainer(engine boost.Engine, defaults hyperparams.Defaults, logger log.Logger) *Trainer {
	if logger == nil {
		logger = log.GetLoggerWithName("training")
	}
	return &Trainer{engine: engine, defaults: defaults, logger: logger}
}

// FitFinal sizes the iterations from cv, re-sanitizes, and fits on train with
// test as the early-stopping monitor. It returns the model and the params used.
func (t *Trainer) FitFinal(ctx context.Context, params hyperparams.Params, cv CVResult, train, test *boost.Pool) (boost.Model, hyperparams.Params, error) {
	p := params.Clone()
	p.Iterations = FinalIterations(cv)
	p = hyperparams.Sanitize(p, t.defaults)

	t.logger.Info("training final model",
		log.HyperParamsKey, p,
		log.SamplesKey, train.NumRows(),
	)

	var m boost.Model
	err := errors.SafeExecute("final fit", func() error {
		var ferr error
		m, ferr = t.engine.Fit(ctx, p, train, test)
		return ferr
	})
	if err != nil {
		return nil, p, errors.Wrap(err, "final fit")
	}
	t.logger.Info("final model trained", log.BestIterationKey, m.BestIteration())
	return m, p, nil
}
