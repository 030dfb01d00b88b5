package tree

import (
	"github.com/sjwhitworth/golearn/trees"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Regressor is a golearn CART regression tree split on mean squared error.
type Regressor struct {
	state    *model.StateManager
	maxDepth int

	schema *dataset.Schema
	tree   *trees.CARTDecisionTreeRegressor
}

// NewRegressor creates a regression tree of at most maxDepth levels.
func NewRegressor(maxDepth int) *Regressor {
	return &Regressor{state: model.NewStateManager("decision_tree"), maxDepth: maxDepth}
}

// Fit grows the tree on X and y.
func (r *Regressor) Fit(X mat.Matrix, y []float64) error {
	if err := model.CheckFit("tree.Regressor.Fit", X, y); err != nil {
		return err
	}
	if r.maxDepth < 1 {
		return errors.NewValidationError(model.TreeDepth, "must be at least 1", r.maxDepth)
	}
	r.state.Reset()

	n, p := X.Dims()
	schema := dataset.NewIndexSchema(p, 0)
	inst, err := schema.Instances(X, y)
	if err != nil {
		return err
	}
	tree := trees.NewDecisionTreeRegressor("mse", int64(r.maxDepth))
	if err := errors.SafeExecute("golearn CART Fit", func() error { return tree.Fit(inst) }); err != nil {
		return errors.NewModelError("tree.Regressor.Fit", "golearn fit failed", err)
	}

	r.schema = schema
	r.tree = tree
	r.state.SetFitted(p, n)
	return nil
}

// Predict returns the leaf means reached by each row.
func (r *Regressor) Predict(X mat.Matrix) ([]float64, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "tree.Regressor.Predict")
	}
	_, p := X.Dims()
	if err := r.state.CheckPredict("Predict", p); err != nil {
		return nil, err
	}
	inst, err := r.schema.Instances(X, nil)
	if err != nil {
		return nil, err
	}
	return errors.SafeCall("golearn CART Predict", func() ([]float64, error) {
		return r.tree.Predict(inst), nil
	})
}

// Params returns the hyperparameters the model was built with.
func (r *Regressor) Params() model.Params {
	return model.Params{model.TreeDepth: r.maxDepth}
}
