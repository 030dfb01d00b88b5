package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// DefaultForestSeed seeds the bootstrap samples of forests built without
// WithSeed.
const DefaultForestSeed uint64 = 42

// RandomForest bags golearn ID3 trees. Each tree is grown on a bootstrap
// sample of the rows and sees mtry randomly chosen predictors, as golearn's
// meta.BaggedModel does. Class probabilities are the vote shares.
type RandomForest struct {
	state    *model.StateManager
	nClasses int
	ntrees   int
	mtry     int
	seed     uint64

	members []member
}

// member is one bagged tree and the design columns it was grown on.
type member struct {
	cols []int
	tree *Classifier
}

// NewRandomForest creates a forest of ntrees trees, each considering mtry
// randomly chosen predictors. mtry 0 means floor(sqrt(p)); values above p
// are clamped to p.
func NewRandomForest(nClasses, ntrees, mtry int) *RandomForest {
	return &RandomForest{
		state:    model.NewStateManager("rand_forest"),
		nClasses: nClasses,
		ntrees:   ntrees,
		mtry:     mtry,
		seed:     DefaultForestSeed,
	}
}

// WithSeed sets the seed of the bootstrap and predictor sampling.
func (f *RandomForest) WithSeed(seed uint64) *RandomForest {
	f.seed = seed
	return f
}

// Fit grows the trees.
func (f *RandomForest) Fit(X mat.Matrix, y []float64) error {
	if err := model.CheckFit("rand_forest.Fit", X, y); err != nil {
		return err
	}
	if f.ntrees < 1 {
		return errors.NewValidationError(model.Trees, "must be at least 1", f.ntrees)
	}
	if f.nClasses < 2 {
		return errors.NewValidationError("classes", "classification needs at least 2 classes", f.nClasses)
	}
	f.state.Reset()
	f.members = nil

	n, p := X.Dims()
	m := Mtry(f.mtry, p)
	rng := rand.New(rand.NewPCG(f.seed, uint64(n)))
	members := make([]member, f.ntrees)
	for t := range members {
		cols := rng.Perm(p)[:m]
		sort.Ints(cols)
		rows := make([]int, n)
		for i := range rows {
			rows[i] = rng.IntN(n)
		}

		Xb := mat.NewDense(n, m, nil)
		yb := make([]float64, n)
		for i, r := range rows {
			for j, c := range cols {
				Xb.Set(i, j, X.At(r, c))
			}
			yb[i] = y[r]
		}
		clf := NewClassifier(f.nClasses, 0)
		if err := clf.Fit(Xb, yb); err != nil {
			return errors.Wrapf(err, "rand_forest tree %d", t)
		}
		members[t] = member{cols: cols, tree: clf}
	}

	f.members = members
	f.state.SetFitted(p, n)
	return nil
}

// PredictProba returns the share of trees voting for each class.
func (f *RandomForest) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "rand_forest.PredictProba")
	}
	n, p := X.Dims()
	if err := f.state.CheckPredict("PredictProba", p); err != nil {
		return nil, err
	}

	votes := mat.NewDense(n, f.nClasses, nil)
	for _, mb := range f.members {
		sub := mat.NewDense(n, len(mb.cols), nil)
		for i := 0; i < n; i++ {
			for j, c := range mb.cols {
				sub.Set(i, j, X.At(i, c))
			}
		}
		pred, err := mb.tree.Predict(sub)
		if err != nil {
			return nil, err
		}
		for i, k := range pred {
			votes.Set(i, int(k), votes.At(i, int(k))+1)
		}
	}
	votes.Scale(1/float64(len(f.members)), votes)
	return votes, nil
}

// Predict returns the majority vote; ties go to the lower level index.
func (f *RandomForest) Predict(X mat.Matrix) ([]float64, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, k := proba.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		best := math.Inf(-1)
		for c := 0; c < k; c++ {
			if v := proba.At(i, c); v > best {
				best = v
				out[i] = float64(c)
			}
		}
	}
	return out, nil
}

// Params returns the hyperparameters the forest was built with.
func (f *RandomForest) Params() model.Params {
	return model.Params{model.Trees: f.ntrees, model.Mtry: f.mtry}
}

// NumClasses returns the number of classes.
func (f *RandomForest) NumClasses() int {
	return f.nClasses
}

// IsFitted reports whether Fit has succeeded.
func (f *RandomForest) IsFitted() bool {
	return f.state.IsFitted()
}

// Mtry resolves the number of predictors sampled per tree for p predictors.
func Mtry(mtry, p int) int {
	if mtry <= 0 {
		mtry = int(math.Floor(math.Sqrt(float64(p))))
	}
	if mtry < 1 {
		mtry = 1
	}
	if mtry > p {
		mtry = p
	}
	return mtry
}
