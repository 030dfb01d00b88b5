package easyfit

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/metrics"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/pkg/log"
	"github.com/YuminosukeSato/easyfit/registry"
	"github.com/YuminosukeSato/easyfit/tune"
)

// workflow holds what every algorithm of one Run shares.
type workflow struct {
	opts    *Options
	train   *dataset.Table
	test    *dataset.Table
	target  *dataset.Target
	truth   *dataset.Target
	folds   []dataset.Fold
	metrics metrics.Set
	logger  log.Logger
}

// fit runs lookup, tuning, the final fit and the test evaluation of one
// algorithm. Errors end up in Fit.Err.
func (w *workflow) fit(ctx context.Context, name string) *Fit {
	start := time.Now()
	f := &Fit{
		Name:   name,
		Mode:   w.target.Mode,
		Levels: w.target.Levels,
		target: w.target,
	}
	defer func() { f.Duration = time.Since(start) }()

	spec, err := registry.Lookup(name, w.target.Mode)
	if err != nil {
		f.Err = err
		return f
	}
	f.Name, f.Engine = spec.Name, spec.Engine
	logger := w.logger.With(log.AlgorithmKey, spec.Name)

	recipeOpts := dataset.RecipeOptions{Normalize: spec.Normalize}
	recipe, err := dataset.Prep(w.train, w.target.Name, recipeOpts)
	if err != nil {
		f.Err = err
		return f
	}
	f.Recipe = recipe

	params := spec.Defaults.Copy()
	if w.opts.Tune && spec.Tunes() {
		res, err := w.tune(ctx, spec, recipeOpts, recipe.NumFeatures(), logger)
		f.Tuning = res
		if err != nil {
			f.Err = errors.Wrapf(err, "tune %s", spec.Name)
			return f
		}
		selected, err := w.selectParams(res)
		if err != nil {
			f.Err = err
			return f
		}
		params = params.Overwrite(selected)
	}
	f.Params = params

	if err := w.final(f, spec, params); err != nil {
		f.Err = err
		f.Learner = nil
	}
	return f
}

func (w *workflow) tune(ctx context.Context, spec registry.Spec, recipeOpts dataset.RecipeOptions, p int, logger log.Logger) (*tune.Result, error) {
	ranges, err := tune.FinalizeAll(spec.Tunable, p)
	if err != nil {
		return nil, err
	}
	cfg := tune.Config{
		Algorithm: spec.Name,
		Type:      w.opts.GridType,
		Data:      w.train,
		Target:    w.target,
		Folds:     w.folds,
		Recipe:    recipeOpts,
		Defaults:  spec.Defaults,
		Ranges:    ranges,
		Build:     spec.Build,
		Metrics:   w.metrics,
		Workers:   w.opts.Workers,
		Logger:    logger,
	}
	if w.opts.Progress != nil {
		cfg.Progress = func(done, total int) { w.opts.Progress(spec.Name, done, total) }
	}
	if w.opts.GridType == tune.Bayesian {
		return tune.Bayes(ctx, cfg, w.opts.BayesIterations, int64(w.opts.Seed))
	}
	cfg.Candidates, err = tune.MakeGrid(w.opts.GridType, ranges, w.opts.GridSize, w.opts.Seed)
	if err != nil {
		return nil, err
	}
	return tune.Grid(ctx, cfg)
}

func (w *workflow) selectParams(res *tune.Result) (model.Params, error) {
	if w.opts.SelectRule == SelectOneStdErr {
		return res.SelectBySimplest(w.opts.SelectMetric)
	}
	return res.SelectBest(w.opts.SelectMetric)
}

// final fits params on the whole training set and evaluates the test set.
func (w *workflow) final(f *Fit, spec registry.Spec, params model.Params) error {
	X, err := f.Recipe.Bake(w.train)
	if err != nil {
		return err
	}
	learner, err := spec.Build(params, w.target.NumClasses())
	if err != nil {
		return err
	}
	err = errors.SafeExecute("fit "+spec.Name, func() error {
		return learner.Fit(X, w.target.Values)
	})
	if err != nil {
		return err
	}
	f.Learner = learner

	Xt, err := f.Recipe.Bake(w.test)
	if err != nil {
		return err
	}
	pred, err := errors.SafeCall("predict "+spec.Name, func() ([]float64, error) {
		return learner.Predict(Xt)
	})
	if err != nil {
		return err
	}
	f.Truth = w.truth.Values
	f.Predictions = pred

	var proba mat.Matrix
	if pl, ok := learner.(model.ProbabilityLearner); ok {
		p, err := pl.PredictProba(Xt)
		if err != nil {
			return err
		}
		f.Probabilities = p
		proba = p
	}
	f.TestMetrics, err = w.metrics.Compute(f.Truth, pred, proba)
	return err
}
