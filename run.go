package easyfit

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/metrics"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/pkg/log"
	"github.com/YuminosukeSato/easyfit/tune"
)

// Fit is the outcome of one algorithm. When Err is set the other fields
// hold whatever was computed before the failure.
type Fit struct {
	Name   string
	Mode   model.Mode
	Engine string
	// Params are the hyperparameters of the final model.
	Params model.Params
	// Tuning is nil when the algorithm was not tuned.
	Tuning  *tune.Result
	Recipe  *dataset.Recipe
	Learner model.Learner

	// TestMetrics, Truth, Predictions and Probabilities describe the test
	// set. Classification values are level indices into Levels.
	TestMetrics   metrics.Values
	Truth         []float64
	Predictions   []float64
	Probabilities *mat.Dense
	Levels        []string

	Duration time.Duration
	Err      error

	target *dataset.Target
}

// OK reports whether the algorithm was fit and evaluated.
func (f *Fit) OK() bool {
	return f.Err == nil && f.Learner != nil
}

// Predict bakes t with the fitted recipe and predicts it. Classification
// predictions are level indices; see PredictLabels.
func (f *Fit) Predict(t *dataset.Table) ([]float64, error) {
	if !f.OK() {
		return nil, errors.NewNotFittedError(f.Name, "Predict")
	}
	X, err := f.Recipe.Bake(t)
	if err != nil {
		return nil, err
	}
	return f.Learner.Predict(X)
}

// PredictLabels predicts t and decodes the classes to level names.
func (f *Fit) PredictLabels(t *dataset.Table) ([]string, error) {
	if f.Mode != model.Classification {
		return nil, errors.Wrapf(errors.ErrUnsupportedMode, "%s: labels need classification", f.Name)
	}
	pred, err := f.Predict(t)
	if err != nil {
		return nil, err
	}
	return f.target.Labels(pred), nil
}

// PredictProba returns class probabilities for t; the columns follow Levels.
func (f *Fit) PredictProba(t *dataset.Table) (*mat.Dense, error) {
	if !f.OK() {
		return nil, errors.NewNotFittedError(f.Name, "PredictProba")
	}
	pl, ok := f.Learner.(model.ProbabilityLearner)
	if !ok {
		return nil, errors.NewValueError("PredictProba", f.Name+" does not give class probabilities")
	}
	X, err := f.Recipe.Bake(t)
	if err != nil {
		return nil, err
	}
	return pl.PredictProba(X)
}

// Results collects the fits of one Run.
type Results struct {
	RunID   string
	Mode    model.Mode
	Target  string
	Levels  []string
	Metrics metrics.Set
	Fits    []*Fit

	TrainRows int
	TestRows  int
	// Dropped is the number of rows removed for missing values.
	Dropped int
}

// Successful returns the fits without an error, in algorithm order.
func (r *Results) Successful() []*Fit {
	return lo.Filter(r.Fits, func(f *Fit, _ int) bool { return f.OK() })
}

// Failed returns the fits that recorded an error.
func (r *Results) Failed() []*Fit {
	return lo.Filter(r.Fits, func(f *Fit, _ int) bool { return !f.OK() })
}

// Get returns the fit of a canonical algorithm name.
func (r *Results) Get(name string) (*Fit, bool) {
	return lo.Find(r.Fits, func(f *Fit) bool { return f.Name == name })
}

// Ranked returns the successful fits ordered by the test value of metric,
// best first ("" is the first metric of the set). NaN values sort last.
func (r *Results) Ranked(metric string) ([]*Fit, error) {
	m, err := r.metric(metric)
	if err != nil {
		return nil, err
	}
	fits := r.Successful()
	sort.SliceStable(fits, func(i, j int) bool {
		return m.Better(fits[i].TestMetrics[m.Name], fits[j].TestMetrics[m.Name])
	})
	return fits, nil
}

// Best returns the fit with the best test value of metric.
func (r *Results) Best(metric string) (*Fit, error) {
	ranked, err := r.Ranked(metric)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, errors.NewValueError("Results.Best", "no algorithm was fit successfully")
	}
	m, _ := r.metric(metric)
	if math.IsNaN(ranked[0].TestMetrics[m.Name]) {
		return nil, errors.NewValueError("Results.Best", "metric "+m.Name+" is undefined for every fit")
	}
	return ranked[0], nil
}

func (r *Results) metric(name string) (metrics.Metric, error) {
	if name == "" {
		return r.Metrics.Primary(), nil
	}
	m, err := metrics.Lookup(name)
	if err != nil {
		return metrics.Metric{}, err
	}
	if _, ok := r.Metrics.Get(m.Name); !ok {
		return metrics.Metric{}, errors.NewValidationError("metric",
			"not in the metric set ("+strings.Join(r.Metrics.Names(), ", ")+")", name)
	}
	return m, nil
}

// Run fits every algorithm on train and evaluates it on held out data.
//
// The mode is inferred from the target column unless WithMode is given. Test
// data comes from WithTestData or an initial split of train. For each
// algorithm Run looks up the dispatch table, tunes its hyperparameters over
// cross-validation folds when it has any, fits the selected parameters on
// the whole training set and computes the metric set on the test set.
//
// A failing algorithm is recorded in its Fit and the others continue. Run
// returns an error for invalid input or when every algorithm fails.
func Run(ctx context.Context, train *dataset.Table, target string, algorithms []string, opts ...Option) (*Results, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := validate(train, target, algorithms, &o); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := o.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	logger = logger.With(log.RunIDKey, runID, log.TargetKey, target)

	res := &Results{RunID: runID, Target: target}
	if o.DropMissing {
		var dropped int
		train, dropped = train.DropMissing()
		res.Dropped = dropped
		if o.TestData != nil {
			var n int
			o.TestData, n = o.TestData.DropMissing()
			res.Dropped += n
		}
		if res.Dropped > 0 {
			logger.Warn("Rows with missing values dropped", "rows", res.Dropped)
		}
		if train.NumRows() == 0 {
			return nil, errors.Wrap(errors.ErrEmptyData, "every training row has a missing value")
		}
	}

	mode := o.Mode
	if mode == "" {
		mode, _ = dataset.InferMode(train, target)
	}
	res.Mode = mode
	strata := o.Strata
	if c, _ := train.Column(target); strata == "" && mode == model.Classification && c.IsCategorical() {
		strata = target
	}

	// levels come from every row seen, not only the training split
	test, levelsFrom := o.TestData, o.TestData
	if test == nil {
		split, err := dataset.InitialSplit(train, o.Prop, strata, o.Seed)
		if err != nil {
			return nil, err
		}
		levelsFrom = train
		train, test = split.Train, split.Test
	}
	res.TrainRows, res.TestRows = train.NumRows(), test.NumRows()

	outcome, err := dataset.NewTarget(train, target, mode, levelsFrom)
	if err != nil {
		return nil, err
	}
	testOutcome, err := outcome.Encode(test)
	if err != nil {
		return nil, err
	}
	res.Levels = outcome.Levels

	set, err := metrics.NewSet(mode, o.Metrics...)
	if err != nil {
		return nil, err
	}
	res.Metrics = set
	if o.SelectMetric != "" {
		if _, err := res.metric(o.SelectMetric); err != nil {
			return nil, err
		}
	}

	var folds []dataset.Fold
	if o.Tune {
		folds, err = dataset.VFold(train, o.Folds, o.Repeats, strata, o.Seed)
		if err != nil {
			return nil, err
		}
	}
	warnDummies(train, target)

	logger.Info("Run started",
		log.ModeKey, string(mode),
		log.SamplesKey, train.NumRows(),
		"test_samples", test.NumRows(),
		log.ClassesKey, outcome.NumClasses(),
		"algorithms", strings.Join(algorithms, ","),
	)

	w := &workflow{
		opts:    &o,
		train:   train,
		test:    test,
		target:  outcome,
		truth:   testOutcome,
		folds:   folds,
		metrics: set,
		logger:  logger,
	}
	for _, name := range algorithms {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		f := w.fit(ctx, name)
		res.Fits = append(res.Fits, f)
		if f.Err != nil {
			logger.Error("Algorithm failed", f.Err, log.AlgorithmKey, f.Name)
			continue
		}
		logger.Info("Algorithm finished",
			log.AlgorithmKey, f.Name,
			log.HyperParamsKey, f.Params.String(),
			log.DurationMsKey, f.Duration.Milliseconds(),
			log.MetricKey, set.Primary().Name,
			log.MetricValueKey, f.TestMetrics[set.Primary().Name],
		)
	}

	if len(res.Successful()) == 0 {
		first := res.Fits[0]
		return res, errors.Wrapf(first.Err, "every algorithm failed; first was %s", first.Name)
	}
	return res, nil
}

func validate(train *dataset.Table, target string, algorithms []string, o *Options) error {
	if train == nil || train.NumRows() == 0 {
		return errors.Wrap(errors.ErrEmptyData, "training table")
	}
	if !train.Has(target) {
		return errors.NewValidationError("target", "column not found in training data", target)
	}
	if len(algorithms) == 0 {
		return errors.NewValidationError("algorithms", "at least one algorithm is required", algorithms)
	}
	if o.Tune && o.Folds < 2 {
		return errors.NewValidationError("folds", "must be at least 2", o.Folds)
	}
	if o.TestData != nil && !o.TestData.Has(target) {
		return errors.NewValidationError("target", "column not found in test data", target)
	}
	if o.SelectRule != SelectBest && o.SelectRule != SelectOneStdErr {
		return errors.NewValidationError("select_rule", "must be best or one_std_err", o.SelectRule)
	}
	if o.Mode != "" && o.Mode != model.Regression && o.Mode != model.Classification {
		return errors.Wrapf(errors.ErrUnsupportedMode, "mode %q", o.Mode)
	}
	if _, err := tune.ParseGridType(string(o.GridType)); err != nil {
		return err
	}
	return nil
}

// warnDummies reports categorical predictors, which every recipe expands
// to indicator columns.
func warnDummies(t *dataset.Table, target string) {
	cats := lo.Filter(t.Names(), func(name string, _ int) bool {
		c, _ := t.Column(name)
		return name != target && c.IsCategorical()
	})
	if len(cats) > 0 {
		errors.Warn(errors.NewDataConversionWarning("categorical", "dummy",
			fmt.Sprintf("predictors %s are expanded to indicator columns", strings.Join(cats, ", "))))
	}
}
