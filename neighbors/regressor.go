package neighbors

import (
	"github.com/sjwhitworth/golearn/knn"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Regressor averages the outcome of the k nearest training rows using the
// golearn KNN regressor.
type Regressor struct {
	state    *model.StateManager
	k        int
	distance string

	kk  int
	knn *knn.KNNRegressor
}

// NewRegressor creates a KNN regressor.
func NewRegressor(k int, distance string) *Regressor {
	return &Regressor{state: model.NewStateManager("nearest_neighbor"), k: k, distance: distance}
}

// Fit stores the training rows.
func (r *Regressor) Fit(X mat.Matrix, y []float64) error {
	if err := model.CheckFit("neighbors.Regressor.Fit", X, y); err != nil {
		return err
	}
	n, p := X.Dims()
	kk, err := neighbors(r.k, n, r.distance)
	if err != nil {
		return err
	}
	r.state.Reset()

	data := mat.DenseCopyOf(X).RawMatrix().Data
	reg := knn.NewKnnRegressor(r.distance)
	err = errors.SafeExecute("golearn KNN regressor Fit", func() error {
		reg.Fit(append([]float64(nil), y...), data, n, p)
		return nil
	})
	if err != nil {
		return errors.NewModelError("neighbors.Regressor.Fit", "golearn fit failed", err)
	}
	r.kk = kk
	r.knn = reg
	r.state.SetFitted(p, n)
	return nil
}

// Predict returns the mean outcome of the k nearest training rows.
func (r *Regressor) Predict(X mat.Matrix) ([]float64, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "neighbors.Regressor.Predict")
	}
	n, p := X.Dims()
	if err := r.state.CheckPredict("Predict", p); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	err := errors.SafeExecute("golearn KNN regressor Predict", func() error {
		row := make([]float64, p)
		for i := range out {
			mat.Row(row, i, X)
			out[i] = r.knn.Predict(mat.NewDense(1, p, append([]float64(nil), row...)), r.kk)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewModelError("neighbors.Regressor.Predict", "golearn predict failed", err)
	}
	return out, nil
}

// Params returns the hyperparameters the model was built with.
func (r *Regressor) Params() model.Params {
	return model.Params{model.Neighbors: r.k, model.Distance: r.distance}
}
