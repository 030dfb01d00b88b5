// Standard attribute keys for easyfit workflow logging.
//
// Keys follow a hierarchical naming convention ("model.name", "tune.fold") so
// that JSON log lines can be filtered per algorithm, per candidate or per fold.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the learner implementation.
	// Examples: "linear.Regression", "tree.RandomForest"
	ModelNameKey = "model.name"

	// AlgorithmKey is the canonical algorithm name from the dispatch table.
	// Examples: "linear_reg", "rand_forest"
	AlgorithmKey = "model.algorithm"

	// ModeKey is the modeling mode: "regression" or "classification".
	ModeKey = "model.mode"

	// RunIDKey is the unique identifier of one Run invocation.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "tune", "evaluate", "prep"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the workflow.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of rows in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of predictor columns after preprocessing.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of outcome classes.
	ClassesKey = "data.classes"

	// TargetKey is the outcome column name.
	TargetKey = "data.target"
)

// Tuning Context
const (
	// CandidatesKey is the number of hyperparameter candidates.
	CandidatesKey = "tune.candidates"

	// CandidateKey identifies one candidate (e.g. "Preprocessor1_Model03").
	CandidateKey = "tune.candidate"

	// FoldsKey is the number of resampling folds.
	FoldsKey = "tune.folds"

	// FoldKey identifies one fold (e.g. "Fold02").
	FoldKey = "tune.fold"

	// GridTypeKey is the grid strategy: "regular", "latin_hypercube", "random", "bayes".
	GridTypeKey = "tune.grid_type"

	// TrialsKey is the number of Bayesian optimization trials.
	TrialsKey = "tune.trials"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// MetricKey names the metric being reported.
	MetricKey = "metrics.name"

	// MetricValueKey records the value of MetricKey.
	MetricValueKey = "metrics.value"

	// IterationKey records the current iteration number during iterative processes.
	IterationKey = "training.iteration"
)

// Error and Warning Context
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationTune     = "tune"
	OperationEvaluate = "evaluate"
	OperationPrep     = "prep"

	PhaseTraining      = "training"
	PhaseResampling    = "resampling"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorEmptyData         = "EMPTY_DATA"
	ErrorInvalidInput      = "INVALID_INPUT"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorSingularMatrix    = "SINGULAR_MATRIX"
	ErrorUnknownAlgorithm  = "UNKNOWN_ALGORITHM"
)
