// Package pipeline orchestrates one training run from raw data to a saved,
// evaluated bundle. Stages run strictly in sequence.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/agriml/artifact"
	"github.com/YuminosukeSato/agriml/boost"
	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/dataset"
	"github.com/YuminosukeSato/agriml/evaluation"
	"github.com/YuminosukeSato/agriml/features"
	"github.com/YuminosukeSato/agriml/hyperparams"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
	"github.com/YuminosukeSato/agriml/predict"
	"github.com/YuminosukeSato/agriml/preprocessing"
	"github.com/YuminosukeSato/agriml/training"
	"github.com/YuminosukeSato/agriml/tuning"
)

// Outcome summarises a finished run.
type Outcome struct {
	RunID             string             `json:"run_id"`
	Version           string             `json:"version"`
	Paths             artifact.Paths     `json:"paths"`
	QualityReportPath string             `json:"quality_report_path"`
	ChartPath         string             `json:"chart_path,omitempty"`
	CleanStats        dataset.CleanStats `json:"clean_stats"`
	Tuning            tuning.Result      `json:"tuning"`
	CrossValidation   training.CVResult  `json:"cross_validation"`
	Params            hyperparams.Params `json:"params"`
	Report            *evaluation.Report `json:"metrics"`
	Sample            []predict.Result   `json:"sample_inference,omitempty"`
}

// Pipeline trains, evaluates and saves a model for one configuration.
type Pipeline struct {
	cfg     config.Config
	engine  boost.Engine
	studies tuning.StudyFactory
	now     func() time.Time
	logger  log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEngine replaces the boosting engine.
func WithEngine(e boost.Engine) Option {
	return func(p *Pipeline) {
		p.engine = e
	}
}

// WithStudyFactory replaces the search engine; nil disables searching even
// when tuning is enabled.
func WithStudyFactory(f tuning.StudyFactory) Option {
	return func(p *Pipeline) {
		p.studies = f
	}
}

// WithClock replaces time.Now for report names and version keys.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a Pipeline. cfg is used as given; callers validate it.
func New(cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		studies: tuning.DefaultStudyFactory,
		now:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = log.GetLoggerWithName("pipeline")
	}
	if p.engine == nil {
		p.engine = boost.NewEngine(p.logger)
	}
	return p
}

// Run executes load, clean, report, validate, split, engineer, preprocess,
// encode, weight, tune, cross-validate, final fit, evaluate, save and a
// sample inference.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	cfg := p.cfg
	runID := uuid.NewString()
	logger := p.logger.With(log.RunIDKey, runID)
	start := p.now()
	out := &Outcome{RunID: runID}

	logger.Info("starting training run",
		log.PathKey, cfg.Paths.DataPath,
		log.RandomSeedKey, cfg.Training.RandomSeed,
		log.TaskTypeKey, taskType(cfg),
	)

	// load and clean
	raw, stats, err := dataset.NewLoader(logger).Load(ctx, cfg.Paths.DataPath)
	if err != nil {
		return nil, err
	}
	out.CleanStats = stats

	reportedAt := p.now()
	rep := dataset.BuildQualityReport(raw, runID, reportedAt)
	if out.QualityReportPath, err = dataset.WriteQualityReport(cfg.Paths.LogsDir, rep, reportedAt); err != nil {
		return nil, err
	}

	res := dataset.NewValidator(cfg.Bounds, logger).Validate(raw)
	if err := res.Err(); err != nil {
		return nil, errors.Wrap(err, "refusing to train on invalid data")
	}
	targetCol, _ := raw.Column(res.Target)

	// encode labels over the full dataset, then split before any fit
	encoder := preprocessing.NewLabelEncoder(nil)
	y, err := encoder.Fit(targetCol)
	if err != nil {
		return nil, err
	}
	split, err := training.StratifiedTrainTestSplit(y, cfg.Training.TestSize, cfg.Training.RandomSeed)
	if err != nil {
		return nil, err
	}
	trainRaw, testRaw := raw.Take(split.Train), raw.Take(split.Test)
	yTrain, yTest := takeLabels(y, split.Train), takeLabels(y, split.Test)
	logger.Info("train/test split",
		"train_samples", len(yTrain),
		"test_samples", len(yTest),
		log.ClassesKey, encoder.NumClasses(),
	)

	// features and preprocessing, fitted on train only
	engTrain, engStats, err := features.NewEngineer(cfg.Features, logger).Fit(trainRaw)
	if err != nil {
		return nil, err
	}
	engTest, err := features.Apply(testRaw, engStats)
	if err != nil {
		return nil, err
	}
	fs := features.Select(engTrain)

	pp := preprocessing.NewPreprocessor(logger)
	XTrain, err := pp.Fit(engTrain, fs.Numeric, fs.Categorical)
	if err != nil {
		return nil, err
	}
	XTest, err := pp.Apply(engTest)
	if err != nil {
		return nil, err
	}
	ppMeta, _ := pp.Metadata()
	catPos := ppMeta.CategoricalPositions()
	logger.Info("features prepared",
		log.FeaturesKey, len(ppMeta.FeatureNames),
		"categorical", ppMeta.CategoricalFeatures,
	)

	// parameters
	weights := training.BuildClassWeights(yTrain, encoder.Classes, cfg.WeakClasses)
	defaults := hyperparams.DefaultsFromConfig(cfg)
	base := hyperparams.Base(cfg, weights)
	cv := training.NewCrossValidator(p.engine, cfg.Training.NFolds, cfg.Training.RandomSeed, logger)

	out.Tuning = tuning.Result{Params: hyperparams.Sanitize(base, defaults)}
	if cfg.Tuning.Enabled {
		tuner := tuning.NewTuner(cv, defaults, cfg.Tuning, cfg.Training.RandomSeed, logger, tuning.WithStudyFactory(p.studies))
		if out.Tuning, err = tuner.Tune(ctx, XTrain, yTrain, catPos, base); err != nil {
			return nil, err
		}
	}

	// cross-validation and final fit
	if out.CrossValidation, err = cv.Run(ctx, XTrain, yTrain, catPos, out.Tuning.Params, nil); err != nil {
		return nil, errors.Wrap(err, "cross-validation")
	}
	logger.Info("cross-validation finished",
		log.AccuracyKey, out.CrossValidation.MeanAccuracy,
		"accuracy_std", out.CrossValidation.StdAccuracy,
		log.F1Key, out.CrossValidation.MeanMacroF1,
		"macro_f1_std", out.CrossValidation.StdMacroF1,
		"best_iterations", out.CrossValidation.BestIterations(),
	)

	trainPool, err := boost.NewPool(XTrain, yTrain, catPos)
	if err != nil {
		return nil, err
	}
	testPool, err := boost.NewPool(XTest, yTest, catPos)
	if err != nil {
		return nil, err
	}
	mdl, finalParams, err := training.NewTrainer(p.engine, defaults, logger).
		FitFinal(ctx, out.Tuning.Params, out.CrossValidation, trainPool, testPool)
	if err != nil {
		return nil, err
	}
	out.Params = finalParams

	// evaluation
	proba, err := mdl.PredictProba(testPool)
	if err != nil {
		return nil, errors.Wrap(err, "predict held-out split")
	}
	if out.Report, err = evaluation.NewEvaluator(logger).Evaluate(yTest, proba, encoder.Classes); err != nil {
		return nil, err
	}

	// persistence
	store, err := artifact.Open(ctx, cfg.Paths.ModelDir, artifact.WithClock(p.now), artifact.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer store.Close()

	cvRes, tuned := out.CrossValidation, out.Tuning
	bundle := &artifact.Bundle{
		Model:   mdl,
		Encoder: encoder,
		Metadata: &artifact.Metadata{
			FeatureNames:        ppMeta.FeatureNames,
			CategoricalFeatures: ppMeta.CategoricalFeatures,
			ClassNames:          encoder.Classes,
			Metrics:             out.Report,
			CrossValidation:     &cvRes,
			Tuning:              &tuned,
			HyperParameters:     finalParams,
			Preprocessing:       ppMeta,
			Engineering:         engStats,
			Config:              cfg,
			RunID:               runID,
		},
	}
	if out.Version, out.Paths, err = store.Save(ctx, bundle, XTrain); err != nil {
		return nil, err
	}

	chart := filepath.Join(cfg.Paths.ModelDir, "per_class_accuracy_v"+out.Version+".png")
	if err := evaluation.WriteAccuracyChart(chart, out.Report); err != nil {
		logger.Warn("could not write accuracy chart", log.ErrAttrKey, err.Error(), log.PathKey, chart)
	} else {
		out.ChartPath = chart
	}

	if out.Sample, err = sampleInference(bundle, cfg, testRaw, res.Target, logger); err != nil {
		return nil, err
	}

	logger.Info("training run finished",
		log.VersionKey, out.Version,
		log.AccuracyKey, out.Report.Accuracy,
		log.DurationSecondsKey, p.now().Sub(start).Seconds(),
	)
	return out, nil
}

// sampleInference predicts the first held-out row with the saved bundle.
func sampleInference(b *artifact.Bundle, cfg config.Config, testRaw *frame.Frame, target string, logger log.Logger) ([]predict.Result, error) {
	pred, err := predict.NewPredictor(b, cfg.Inference, logger)
	if err != nil {
		return nil, err
	}
	results, err := pred.Predict(testRaw.Take([]int{0}).Drop(target), 0)
	if err != nil {
		return nil, errors.Wrap(err, "sample inference")
	}
	for _, rec := range results[0].Recommendations {
		logger.Info("sample recommendation",
			"rank", rec.Rank,
			log.CropKey, rec.Crop,
			log.ConfidenceKey, rec.Confidence,
		)
	}
	logger.Info("sample descriptors",
		"ph_class", results[0].Derived.PHClass,
		"rainfall_class", results[0].Derived.RainfallClass,
		"suitability", results[0].Derived.SuitabilityFlag,
	)
	return results, nil
}

func takeLabels(y, idx []int) []int {
	out := make([]int, len(idx))
	for k, i := range idx {
		out[k] = y[i]
	}
	return out
}

func taskType(cfg config.Config) string {
	if cfg.Device.UseGPU {
		return hyperparams.TaskGPU
	}
	return hyperparams.TaskCPU
}
