// Package neighbors provides k-nearest-neighbor learners backed by golearn.
// Predictors are expected to be normalized.
package neighbors

import (
	"math"
	"sort"

	"github.com/sjwhitworth/golearn/metrics/pairwise"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// Distances lists the supported distance functions.
var Distances = []string{"euclidean", "manhattan"}

// Classifier votes among the k nearest training rows, measured with golearn's
// pairwise distances. Class probabilities are the vote shares. The search is
// a linear scan like golearn's KNNClassifier without its stdout progress.
type Classifier struct {
	state    *model.StateManager
	nClasses int
	k        int
	distance string

	kk   int
	dist pairwise.PairwiseDistanceFunc
	rows []*mat.Dense
	y    []float64
}

// NewClassifier creates a KNN classifier. k larger than the training set is
// reduced to the number of training rows.
func NewClassifier(nClasses, k int, distance string) *Classifier {
	return &Classifier{
		state:    model.NewStateManager("nearest_neighbor"),
		nClasses: nClasses,
		k:        k,
		distance: distance,
	}
}

// Fit stores the training rows.
func (c *Classifier) Fit(X mat.Matrix, y []float64) error {
	if err := model.CheckFit("neighbors.Classifier.Fit", X, y); err != nil {
		return err
	}
	if c.nClasses < 2 {
		return errors.NewValidationError("classes", "classification needs at least 2 classes", c.nClasses)
	}
	n, p := X.Dims()
	kk, err := neighbors(c.k, n, c.distance)
	if err != nil {
		return err
	}
	c.state.Reset()

	c.kk = kk
	c.dist = distanceFunc(c.distance)
	c.rows = rowVectors(X)
	c.y = append([]float64(nil), y...)
	c.state.SetFitted(p, n)
	return nil
}

// PredictProba returns the share of the k nearest rows in each class.
func (c *Classifier) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "neighbors.Classifier.PredictProba")
	}
	n, p := X.Dims()
	if err := c.state.CheckPredict("PredictProba", p); err != nil {
		return nil, err
	}

	out := mat.NewDense(n, c.nClasses, nil)
	err := errors.SafeExecute("golearn pairwise distance", func() error {
		for i, q := range rowVectors(X) {
			for _, r := range nearest(c.dist, c.rows, q, c.kk) {
				k := int(c.y[r])
				out.Set(i, k, out.At(i, k)+1)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewModelError("neighbors.Classifier.PredictProba", "distance failed", err)
	}
	out.Scale(1/float64(c.kk), out)
	return out, nil
}

// Predict returns the majority class of the k nearest rows; ties go to the
// lower level index.
func (c *Classifier) Predict(X mat.Matrix) ([]float64, error) {
	proba, err := c.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, k := proba.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		best := math.Inf(-1)
		for j := 0; j < k; j++ {
			if v := proba.At(i, j); v > best {
				best = v
				out[i] = float64(j)
			}
		}
	}
	return out, nil
}

// Params returns the hyperparameters the model was built with.
func (c *Classifier) Params() model.Params {
	return model.Params{model.Neighbors: c.k, model.Distance: c.distance}
}

// NumClasses returns the number of classes.
func (c *Classifier) NumClasses() int {
	return c.nClasses
}

// IsFitted reports whether Fit has succeeded.
func (c *Classifier) IsFitted() bool {
	return c.state.IsFitted()
}

// nearest returns the indices of the k rows closest to q. Equal distances
// keep the training order.
func nearest(dist pairwise.PairwiseDistanceFunc, rows []*mat.Dense, q *mat.Dense, k int) []int {
	d := make([]float64, len(rows))
	idx := make([]int, len(rows))
	for i, r := range rows {
		d[i] = dist.Distance(q, r)
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return d[idx[a]] < d[idx[b]] })
	return idx[:k]
}

func rowVectors(X mat.Matrix) []*mat.Dense {
	n, p := X.Dims()
	out := make([]*mat.Dense, n)
	for i := range out {
		out[i] = mat.NewDense(1, p, mat.Row(nil, i, X))
	}
	return out
}

func distanceFunc(name string) pairwise.PairwiseDistanceFunc {
	if name == "manhattan" {
		return pairwise.NewManhattan()
	}
	return pairwise.NewEuclidean()
}

func neighbors(k, n int, distance string) (int, error) {
	if k < 1 {
		return 0, errors.NewValidationError(model.Neighbors, "must be at least 1", k)
	}
	if !validDistance(distance) {
		return 0, errors.NewValidationError(model.Distance, "must be euclidean or manhattan", distance)
	}
	if k > n {
		k = n
	}
	return k, nil
}

func validDistance(d string) bool {
	for _, v := range Distances {
		if v == d {
			return true
		}
	}
	return false
}
