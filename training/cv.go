package training

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/agriml/boost"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/hyperparams"
	"github.com/YuminosukeSato/agriml/metrics"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

// FoldResult holds the metrics of one fold.
type FoldResult struct {
	Fold          int           `json:"fold"`
	Accuracy      float64       `json:"accuracy"`
	MacroF1       float64       `json:"macro_f1"`
	BestIteration int           `json:"best_iteration"`
	Duration      time.Duration `json:"duration_ns"`
}

// CVResult aggregates the folds. Std is the population standard deviation.
type CVResult struct {
	Folds        []FoldResult `json:"folds"`
	MeanAccuracy float64      `json:"mean_accuracy"`
	StdAccuracy  float64      `json:"std_accuracy"`
	MeanMacroF1  float64      `json:"mean_macro_f1"`
	StdMacroF1   float64      `json:"std_macro_f1"`
}

// BestIterations returns the per-fold best iterations in fold order.
func (r CVResult) BestIterations() []int {
	out := make([]int, len(r.Folds))
	for i, f := range r.Folds {
		out[i] = f.BestIteration
	}
	return out
}

// MedianBestIteration is the median best iteration, truncated to an int.
func (r CVResult) MedianBestIteration() int {
	vals := make([]float64, len(r.Folds))
	for i, f := range r.Folds {
		vals[i] = float64(f.BestIteration)
	}
	return int(frame.QuantileLinear(vals, 0.5))
}

// ReportFunc receives the running mean fold accuracy after each fold, with
// 1-based steps. A non-nil error aborts the run and is returned unchanged.
type ReportFunc func(step int, value float64) error

// CrossValidator runs stratified k-fold cross-validation. Folds run one at
// a time in seeded order; results are only returned once all folds finish.
type CrossValidator struct {
	engine boost.Engine
	folds  *StratifiedKFold
	logger log.Logger
}

// NewCrossValidator creates a cross-validator with shuffled folds.
func NewCrossValidator(engine boost.Engine, nFolds int, seed int64, logger log.Logger) *CrossValidator {
	if logger == nil {
		logger = log.GetLoggerWithName("training")
	}
	return &CrossValidator{
		engine: engine,
		folds:  NewStratifiedKFold(nFolds, true, seed),
		logger: logger,
	}
}

// Run fits one model per fold with early stopping on the validation fold.
func (cv *CrossValidator) Run(ctx context.Context, X *frame.Frame, y []int, catFeatures []int, params hyperparams.Params, report ReportFunc) (CVResult, error) {
	if X.NumRows() != len(y) {
		return CVResult{}, errors.NewDimensionError("CrossValidator.Run", X.NumRows(), len(y), 0)
	}
	folds, err := cv.folds.Split(y)
	if err != nil {
		return CVResult{}, err
	}

	numClasses := 0
	for _, v := range y {
		numClasses = max(numClasses, v+1)
	}

	results := make([]FoldResult, 0, len(folds))
	accSum := 0.0
	for k, fold := range folds {
		step := k + 1
		start := time.Now()

		yTr, yVa := take(y, fold.Train), take(y, fold.Valid)
		trPool, err := boost.NewPool(X.Take(fold.Train), yTr, catFeatures)
		if err != nil {
			return CVResult{}, err
		}
		vaPool, err := boost.NewPool(X.Take(fold.Valid), yVa, catFeatures)
		if err != nil {
			return CVResult{}, err
		}

		var m boost.Model
		err = errors.SafeExecute("cv fold fit", func() error {
			var ferr error
			m, ferr = cv.engine.Fit(ctx, params, trPool, vaPool)
			return ferr
		})
		if err != nil {
			return CVResult{}, errors.Wrapf(err, "fold %d", step)
		}

		pred, err := m.Predict(vaPool)
		if err != nil {
			return CVResult{}, errors.Wrapf(err, "fold %d predict", step)
		}
		acc, err := metrics.Accuracy(yVa, pred)
		if err != nil {
			return CVResult{}, err
		}
		f1, err := metrics.F1Macro(yVa, pred, max(numClasses, m.NumClasses()))
		if err != nil {
			return CVResult{}, err
		}

		res := FoldResult{
			Fold:          step,
			Accuracy:      acc,
			MacroF1:       f1,
			BestIteration: m.BestIteration(),
			Duration:      time.Since(start),
		}
		results = append(results, res)
		cv.logger.Info("fold finished",
			log.FoldKey, step,
			log.AccuracyKey, acc,
			log.F1Key, f1,
			log.BestIterationKey, res.BestIteration,
			log.DurationMsKey, res.Duration.Milliseconds(),
		)

		accSum += acc
		if report != nil {
			if err := report(step, accSum/float64(step)); err != nil {
				return CVResult{}, err
			}
		}
	}

	accs := make([]float64, len(results))
	f1s := make([]float64, len(results))
	for i, r := range results {
		accs[i] = r.Accuracy
		f1s[i] = r.MacroF1
	}
	out := CVResult{Folds: results}
	out.MeanAccuracy, out.StdAccuracy = stat.PopMeanStdDev(accs, nil)
	out.MeanMacroF1, out.StdMacroF1 = stat.PopMeanStdDev(f1s, nil)
	return out, nil
}
