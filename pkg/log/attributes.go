// Standard attribute keys for pipeline logging.
//
// Keys follow a hierarchical naming convention ("data.samples",
// "metrics.accuracy") so that JSON logs can be filtered by prefix.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator, e.g. "boost.Classifier", "Preprocessor".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "apply", "predict", "save", "load"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run.
	PhaseKey = "ml.phase"

	// RunIDKey is the uuid stamped on every artifact of one training run.
	RunIDKey = "run.id"

	// VersionKey is the artifact version key (timestamp + data hash).
	VersionKey = "artifact.version"

	// PathKey is a filesystem path being read or written.
	PathKey = "io.path"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of target classes.
	ClassesKey = "data.classes"

	// ColumnKey names a single column.
	ColumnKey = "data.column"

	// ColumnsKey lists column names.
	ColumnsKey = "data.columns"

	// DuplicatesKey is the number of duplicate rows dropped.
	DuplicatesKey = "data.duplicates"

	// TargetKey is the name of the target column.
	TargetKey = "data.target"

	// IssuesKey carries validation issues.
	IssuesKey = "data.issues"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// DurationSecondsKey records the execution time in seconds.
	DurationSecondsKey = "perf.duration_seconds"

	// AccuracyKey records accuracy, range [0.0, 1.0].
	AccuracyKey = "metrics.accuracy"

	// F1Key records macro-averaged F1.
	F1Key = "metrics.macro_f1"

	// LossKey records multi-class log loss.
	LossKey = "metrics.loss"

	// IterationKey records the current boosting iteration.
	IterationKey = "training.iteration"

	// BestIterationKey records the early-stopping best iteration.
	BestIterationKey = "training.best_iteration"

	// FoldKey records the cross-validation fold number (1-based).
	FoldKey = "training.fold"

	// TrialKey records the hyperparameter search trial number.
	TrialKey = "tuning.trial"
)

// Prediction and Output Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// ConfidenceKey records prediction probability.
	ConfidenceKey = "preds.confidence"

	// CropKey records a decoded crop label.
	CropKey = "preds.crop"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code.
	ErrorCodeKey = "error.code"

	// SuggestionKey provides a hint for resolving the issue.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains the sanitized engine parameters.
	HyperParamsKey = "model.hyperparams"

	// LearningRateKey records the learning rate.
	LearningRateKey = "hyperparams.learning_rate"

	// DepthKey records tree depth.
	DepthKey = "hyperparams.depth"

	// RandomSeedKey records the random seed.
	RandomSeedKey = "config.random_seed"

	// TaskTypeKey records CPU or GPU.
	TaskTypeKey = "hyperparams.task_type"
)

// Standard attribute values.
const (
	OperationFit     = "fit"
	OperationApply   = "apply"
	OperationPredict = "predict"
	OperationSave    = "save"
	OperationLoad    = "load"

	PhaseLoading       = "loading"
	PhaseValidation    = "validation"
	PhasePreprocessing = "preprocessing"
	PhaseTuning        = "tuning"
	PhaseTraining      = "training"
	PhaseEvaluation    = "evaluation"
	PhaseInference     = "inference"

	ErrorNotFitted       = "NOT_FITTED"
	ErrorNotFound        = "NOT_FOUND"
	ErrorInvalidInput    = "INVALID_INPUT"
	ErrorValidationError = "VALIDATION_FAILED"
)
