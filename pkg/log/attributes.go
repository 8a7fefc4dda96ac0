// Standard attribute keys. They follow a hierarchical naming convention
// ("model.name", "data.samples") so log output can be filtered per concern.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the registered model ("linear_regression", "decision_tree", "svm").
	ModelNameKey = "model.name"

	// ModelTypeKey is the bundle type of a persisted model.
	ModelTypeKey = "model.type"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the comparison phase ("cross_validation", "final_fit", "holdout").
	PhaseKey = "ml.phase"

	// RunIDKey is the uuid of one comparison run or upload.
	RunIDKey = "run.id"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// ColumnKey names a single input column.
	ColumnKey = "data.column"

	// ColumnsKey lists column names.
	ColumnsKey = "data.columns"

	// DistinctKey is the number of distinct values of a categorical column.
	DistinctKey = "data.distinct"

	// PathKey is a filesystem path being read or written.
	PathKey = "data.path"
)

// Performance and Evaluation
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// DurationSecondsKey records the execution time in seconds.
	DurationSecondsKey = "perf.duration_seconds"

	// RMSEKey records root mean squared error.
	RMSEKey = "metrics.rmse"

	// MAEKey records mean absolute error.
	MAEKey = "metrics.mae"

	// R2ScoreKey records the R² coefficient of determination.
	R2ScoreKey = "metrics.r2_score"

	// FoldKey is the zero-based cross-validation fold index.
	FoldKey = "cv.fold"

	// FoldsKey is the number of cross-validation folds.
	FoldsKey = "cv.folds"

	// IterationKey records the iteration count of an iterative solver.
	IterationKey = "training.iteration"
)

// Error Context
const (
	// ErrorKey holds the error message.
	ErrorKey = "error"

	// ErrorTypeKey categorizes the error ("ModelTrainingError", "PanicError").
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information extracted from cockroachdb/errors.
	StacktraceKey = "error.stacktrace"
)

// Configuration
const (
	// HyperParamsKey contains model hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// TestSizeKey records the holdout fraction.
	TestSizeKey = "config.test_size"
)

// Standard attribute values.
const (
	OperationClean    = "clean"
	OperationBuild    = "build_features"
	OperationProject  = "project"
	OperationTrain    = "train"
	OperationPredict  = "predict"
	OperationEvaluate = "evaluate"
	OperationSplit    = "split"
	OperationCompare  = "compare"
	OperationSave     = "save"
	OperationLoad     = "load"

	PhaseCrossValidation = "cross_validation"
	PhaseFinalFit        = "final_fit"
	PhaseHoldout         = "holdout"
)
