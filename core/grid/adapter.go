// Package grid adapts golearn learners, which work on attribute grids, to the
// matrix based model.Learner contract.
package grid

import (
	"github.com/sjwhitworth/golearn/base"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/dataset"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Classifier is the golearn classifier contract.
type Classifier interface {
	Fit(base.FixedDataGrid) error
	Predict(base.FixedDataGrid) (base.FixedDataGrid, error)
}

// Adapter wraps a golearn classifier as a model.Learner. Level indices are
// carried as categorical class values "0".."K-1".
type Adapter struct {
	name     string
	state    *model.StateManager
	nClasses int
	params   model.Params

	// build creates a fresh golearn model for n rows and p features.
	build  func(n, p int) (Classifier, error)
	binary bool

	schema *dataset.Schema
	clf    Classifier
}

// NewAdapter creates an adapter. build is called on every Fit.
func NewAdapter(name string, nClasses int, params model.Params, build func(n, p int) (Classifier, error)) *Adapter {
	return &Adapter{
		name:     name,
		state:    model.NewStateManager(name),
		nClasses: nClasses,
		params:   params,
		build:    build,
	}
}

// WithBinaryFeatures stores the predictors as golearn binary attributes
// (positive values are on) instead of float attributes.
func (a *Adapter) WithBinaryFeatures() *Adapter {
	a.binary = true
	return a
}

// Fit copies X and y into a golearn grid and fits a new model on it.
func (a *Adapter) Fit(X mat.Matrix, y []float64) error {
	if err := model.CheckFit(a.name+".Fit", X, y); err != nil {
		return err
	}
	if a.nClasses < 2 {
		return errors.NewValidationError("classes", "classification needs at least 2 classes", a.nClasses)
	}
	a.state.Reset()

	n, p := X.Dims()
	schema := dataset.NewIndexSchema(p, a.nClasses)
	if a.binary {
		schema = dataset.NewBinaryIndexSchema(p, a.nClasses)
	}
	inst, err := schema.Instances(X, y)
	if err != nil {
		return err
	}
	clf, err := a.build(n, p)
	if err != nil {
		return err
	}
	err = errors.SafeExecute("golearn "+a.name+" Fit", func() error {
		return clf.Fit(inst)
	})
	if err != nil {
		return errors.NewModelError(a.name+".Fit", "golearn fit failed", err)
	}

	a.schema = schema
	a.clf = clf
	a.state.SetFitted(p, n)
	return nil
}

// Predict returns predicted level indices.
func (a *Adapter) Predict(X mat.Matrix) ([]float64, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, a.name+".Predict")
	}
	_, p := X.Dims()
	if err := a.state.CheckPredict("Predict", p); err != nil {
		return nil, err
	}
	inst, err := a.schema.Instances(X, nil)
	if err != nil {
		return nil, err
	}
	pred, err := errors.SafeCall("golearn "+a.name+" Predict", func() (base.FixedDataGrid, error) {
		return a.clf.Predict(inst)
	})
	if err != nil {
		return nil, errors.NewModelError(a.name+".Predict", "golearn predict failed", err)
	}
	return a.schema.DecodeClasses(pred)
}

// PredictProba returns one-hot probabilities of the predicted classes;
// golearn classifiers do not expose class probabilities.
func (a *Adapter) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	pred, err := a.Predict(X)
	if err != nil {
		return nil, err
	}
	return model.OneHot(pred, a.nClasses), nil
}

// Params returns the hyperparameters the model was built with.
func (a *Adapter) Params() model.Params {
	return a.params.Copy()
}

// NumClasses returns the number of classes.
func (a *Adapter) NumClasses() int {
	return a.nClasses
}

// IsFitted reports whether Fit has succeeded.
func (a *Adapter) IsFitted() bool {
	return a.state.IsFitted()
}
