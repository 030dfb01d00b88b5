// Package boost provides gradient boosted regression trees backed by the
// scigo LightGBM trainer.
package boost

import (
	"github.com/YuminosukeSato/scigo/sklearn/lightgbm"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// DefaultSeed seeds the trainer of regressors built without WithSeed.
const DefaultSeed = 42

// Regressor fits LightGBM style boosted trees on squared error. Training
// runs in deterministic mode, so equal seeds give equal models.
type Regressor struct {
	state        *model.StateManager
	trees        int
	learningRate float64
	maxDepth     int
	seed         int

	lgbm *lightgbm.LGBMRegressor
}

// NewRegressor creates a booster of trees rounds, each tree at most maxDepth
// levels deep.
func NewRegressor(trees int, learningRate float64, maxDepth int) *Regressor {
	return &Regressor{
		state:        model.NewStateManager("boost_tree"),
		trees:        trees,
		learningRate: learningRate,
		maxDepth:     maxDepth,
		seed:         DefaultSeed,
	}
}

// WithSeed sets the trainer seed.
func (r *Regressor) WithSeed(seed int) *Regressor {
	r.seed = seed
	return r
}

// Fit runs the boosting rounds.
func (r *Regressor) Fit(X mat.Matrix, y []float64) error {
	if err := model.CheckFit("boost.Regressor.Fit", X, y); err != nil {
		return err
	}
	if r.trees < 1 {
		return errors.NewValidationError(model.Trees, "must be at least 1", r.trees)
	}
	if r.learningRate <= 0 || r.learningRate > 1 {
		return errors.NewValidationError(model.LearnRate, "must be in (0, 1]", r.learningRate)
	}
	if r.maxDepth < 1 {
		return errors.NewValidationError(model.TreeDepth, "must be at least 1", r.maxDepth)
	}
	r.state.Reset()
	r.lgbm = nil

	n, p := X.Dims()
	lgbm := lightgbm.NewLGBMRegressor().
		WithNumIterations(r.trees).
		WithLearningRate(r.learningRate).
		WithMaxDepth(r.maxDepth).
		WithNumLeaves(leaves(r.maxDepth)).
		WithRandomState(r.seed).
		WithDeterministic(true)
	// small folds still need room for a split
	lgbm.MinChildSamples = min(lgbm.MinChildSamples, max(n/10, 1))

	target := mat.NewDense(n, 1, append([]float64(nil), y...))
	if err := errors.SafeExecute("scigo lightgbm Fit", func() error { return lgbm.Fit(X, target) }); err != nil {
		return errors.NewModelError("boost.Regressor.Fit", "lightgbm fit failed", err)
	}

	r.lgbm = lgbm
	r.state.SetFitted(p, n)
	return nil
}

// Predict returns the boosted predictions.
func (r *Regressor) Predict(X mat.Matrix) ([]float64, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "boost.Regressor.Predict")
	}
	_, p := X.Dims()
	if err := r.state.CheckPredict("Predict", p); err != nil {
		return nil, err
	}
	return errors.SafeCall("scigo lightgbm Predict", func() ([]float64, error) {
		pred, err := r.lgbm.Predict(X)
		if err != nil {
			return nil, err
		}
		return mat.Col(nil, 0, pred), nil
	})
}

// Params returns the hyperparameters the model was built with.
func (r *Regressor) Params() model.Params {
	return model.Params{
		model.Trees:     r.trees,
		model.LearnRate: r.learningRate,
		model.TreeDepth: r.maxDepth,
	}
}

// IsFitted reports whether Fit has succeeded.
func (r *Regressor) IsFitted() bool {
	return r.state.IsFitted()
}

// leaves caps the leaves per tree at what maxDepth allows, and at LightGBM's
// default of 31.
func leaves(maxDepth int) int {
	if maxDepth >= 5 {
		return 31
	}
	return 1 << maxDepth
}
