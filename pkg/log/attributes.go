// Package log defines standard attribute keys for model-selection runs.
//
// The keys follow a hierarchical naming convention (e.g. "model.name",
// "cv.fold") so that log lines from the resampling evaluator, the tuner
// and the final evaluator can be filtered and joined per configuration.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the model family.
	// Examples: "logistic_regression", "k_nearest_neighbors"
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "evaluate", "tune", "finalize"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// StageKey names the pipeline stage: split, fold, tune or finalize.
	StageKey = "pipeline.stage"

	// RunIDKey identifies a single end-to-end run.
	RunIDKey = "pipeline.run_id"
)

// Resampling Context
const (
	// FoldKey is the fold identifier (0-based).
	FoldKey = "cv.fold"

	// FoldsKey is the number of folds in the fold set.
	FoldsKey = "cv.folds"

	// ConfigKey is the canonical string of a hyperparameter configuration.
	ConfigKey = "cv.config"

	// GridSizeKey is the number of configurations in a tuning grid.
	GridSizeKey = "cv.grid_size"

	// DegenerateKey marks a fold whose validation piece lacks a class.
	DegenerateKey = "cv.degenerate"
)

// Data Shape
const (
	// SamplesKey indicates the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of model-ready columns.
	FeaturesKey = "data.features"

	// PositiveRateKey is the share of positive outcomes.
	PositiveRateKey = "data.positive_rate"
)

// Metrics and Performance
const (
	// MetricNameKey names a metric such as "roc_auc".
	MetricNameKey = "metrics.name"

	// MetricValueKey carries the metric value.
	MetricValueKey = "metrics.value"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationEvaluate  = "evaluate"
	OperationTune      = "tune"
	OperationFinalize  = "finalize"

	ErrorNotFitted      = "NOT_FITTED"
	ErrorSchemaMismatch = "SCHEMA_MISMATCH"
	ErrorEmptyGrid      = "EMPTY_GRID"
	ErrorFoldFailed     = "FOLD_FAILED"
)
