package easyfit

import (
	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/pkg/log"
	"github.com/YuminosukeSato/easyfit/tune"
)

// Selection rules for picking tuned parameters.
const (
	SelectBest      = "best"
	SelectOneStdErr = "one_std_err"
)

// Options configures Run. Use the With* functions to change the defaults.
type Options struct {
	// Mode forces regression or classification; "" infers it from the
	// target column.
	Mode model.Mode

	// TestData is evaluated instead of a split of the training data.
	TestData *dataset.Table
	// Prop is the training share of InitialSplit when TestData is nil.
	Prop float64
	// Strata stratifies the split and the folds. For a categorical target
	// it defaults to the target itself.
	Strata string

	Folds   int
	Repeats int

	// Tune enables hyperparameter search for algorithms that have ranges.
	Tune     bool
	GridType tune.GridType
	// GridSize is the number of candidates, or levels per parameter for a
	// regular grid.
	GridSize        int
	BayesIterations int
	// SelectMetric ranks candidates and fits; "" is the first metric.
	SelectMetric string
	SelectRule   string

	// Metrics names the metric set; empty means the mode defaults.
	Metrics []string

	// DropMissing removes rows with missing values before anything else.
	DropMissing bool

	Seed    uint64
	Workers int
	Logger  log.Logger
	// Progress is called during tuning of each algorithm.
	Progress func(algorithm string, done, total int)
}

// Option configures Run.
type Option func(*Options)

// DefaultOptions returns the options Run starts from.
func DefaultOptions() Options {
	return Options{
		Prop:            0.75,
		Folds:           5,
		Repeats:         1,
		Tune:            true,
		GridType:        tune.LatinHypercube,
		GridSize:        10,
		BayesIterations: 10,
		SelectRule:      SelectBest,
		DropMissing:     true,
		Seed:            42,
	}
}

// WithMode forces the modeling mode.
func WithMode(mode model.Mode) Option {
	return func(o *Options) {
		o.Mode = mode
	}
}

// WithTestData evaluates fits on test instead of a held out split.
func WithTestData(test *dataset.Table) Option {
	return func(o *Options) {
		o.TestData = test
	}
}

// WithSplit sets the training proportion and the strata column of the
// initial split.
func WithSplit(prop float64, strata string) Option {
	return func(o *Options) {
		o.Prop = prop
		o.Strata = strata
	}
}

// WithFolds sets the number of cross-validation folds and repeats.
func WithFolds(v, repeats int) Option {
	return func(o *Options) {
		o.Folds = v
		o.Repeats = repeats
	}
}

// WithTuning turns hyperparameter search on or off. Without tuning every
// algorithm is fit with its defaults.
func WithTuning(enabled bool) Option {
	return func(o *Options) {
		o.Tune = enabled
	}
}

// WithGrid selects the grid type and size.
func WithGrid(kind tune.GridType, size int) Option {
	return func(o *Options) {
		o.GridType = kind
		o.GridSize = size
	}
}

// WithBayes tunes with a TPE study of the given number of iterations.
func WithBayes(iterations int) Option {
	return func(o *Options) {
		o.GridType = tune.Bayesian
		o.BayesIterations = iterations
	}
}

// WithMetrics sets the metric set.
func WithMetrics(names ...string) Option {
	return func(o *Options) {
		o.Metrics = names
	}
}

// WithSelection sets the metric and the rule ("best" or "one_std_err")
// used to pick tuned parameters.
func WithSelection(metric, rule string) Option {
	return func(o *Options) {
		o.SelectMetric = metric
		o.SelectRule = rule
	}
}

// WithDropMissing toggles the removal of rows with missing values.
func WithDropMissing(drop bool) Option {
	return func(o *Options) {
		o.DropMissing = drop
	}
}

// WithSeed sets the seed of splits, folds and grids.
func WithSeed(seed uint64) Option {
	return func(o *Options) {
		o.Seed = seed
	}
}

// WithWorkers sets the number of concurrent fits during tuning.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithLogger sets the logger; the global logger is used otherwise.
func WithLogger(l log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithProgress sets a tuning progress callback.
func WithProgress(fn func(algorithm string, done, total int)) Option {
	return func(o *Options) {
		o.Progress = fn
	}
}
