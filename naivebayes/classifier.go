// Package naivebayes provides a Bernoulli naive Bayes classifier backed by
// golearn. Predictors are binarized at their training median first.
package naivebayes

import (
	"sort"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/naive"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/easyfit/core/grid"
	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Classifier is a Bernoulli naive Bayes classifier. Each predictor becomes
// two complementary indicators: above its training median, and at or below
// it. Every row then sets exactly p indicators, so golearn sees at least one
// present feature for every class it is fitted on.
type Classifier struct {
	adapter *grid.Adapter
	medians []float64
}

// bernoulli gives golearn's BernoulliNBClassifier the grid.Classifier shape.
type bernoulli struct {
	nb *naive.BernoulliNBClassifier
}

func (b *bernoulli) Fit(g base.FixedDataGrid) error {
	return b.nb.Fit(g)
}

func (b *bernoulli) Predict(g base.FixedDataGrid) (base.FixedDataGrid, error) {
	return b.nb.Predict(g)
}

// NewClassifier creates a naive Bayes classifier for nClasses levels.
func NewClassifier(nClasses int) *Classifier {
	a := grid.NewAdapter("naive_bayes", nClasses, model.Params{}, func(_, _ int) (grid.Classifier, error) {
		return &bernoulli{nb: naive.NewBernoulliNBClassifier()}, nil
	})
	return &Classifier{adapter: a.WithBinaryFeatures()}
}

// Fit learns the medians and fits the classifier on the indicators.
func (c *Classifier) Fit(X mat.Matrix, y []float64) error {
	if err := model.CheckFit("naivebayes.Classifier.Fit", X, y); err != nil {
		return err
	}
	_, p := X.Dims()
	medians := make([]float64, p)
	for j := range medians {
		col := mat.Col(nil, j, X)
		sort.Float64s(col)
		medians[j] = stat.Quantile(0.5, stat.Empirical, col, nil)
	}
	c.medians = medians
	return c.adapter.Fit(c.indicators(X), y)
}

// indicators returns the n×2p indicator matrix: column j is X[:, j] above
// its median and column p+j is its complement.
func (c *Classifier) indicators(X mat.Matrix) *mat.Dense {
	n, p := X.Dims()
	out := mat.NewDense(n, 2*p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			if X.At(i, j) > c.medians[j] {
				out.Set(i, j, 1)
			} else {
				out.Set(i, p+j, 1)
			}
		}
	}
	return out
}

// Predict returns predicted level indices.
func (c *Classifier) Predict(X mat.Matrix) ([]float64, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "naivebayes.Classifier.Predict")
	}
	if c.medians == nil {
		return nil, errors.NewNotFittedError("naive_bayes", "Predict")
	}
	if _, p := X.Dims(); p != len(c.medians) {
		return nil, errors.NewDimensionError("naive_bayes.Predict", len(c.medians), p, 1)
	}
	return c.adapter.Predict(c.indicators(X))
}

// PredictProba returns one-hot probabilities of the predicted classes.
func (c *Classifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	pred, err := c.Predict(X)
	if err != nil {
		return nil, err
	}
	return model.OneHot(pred, c.adapter.NumClasses()), nil
}

// Params returns no hyperparameters; the classifier has none to tune.
func (c *Classifier) Params() model.Params {
	return c.adapter.Params()
}

// NumClasses returns the number of classes.
func (c *Classifier) NumClasses() int {
	return c.adapter.NumClasses()
}
