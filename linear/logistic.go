package linear

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/pkg/log"
)

// LogisticRegression is a multinomial (softmax) logistic regression with an
// L2 penalty on the slopes. The penalized negative log-likelihood is
// minimized with gonum's LBFGS.
type LogisticRegression struct {
	state    *model.StateManager
	cfg      config
	nClasses int

	// coef is the K×(p+1) coefficient matrix; column 0 holds the intercepts.
	coef *mat.Dense
}

// NewLogisticRegression creates a classifier for nClasses levels. Labels
// passed to Fit are level indices in [0, nClasses).
func NewLogisticRegression(nClasses int, opts ...Option) *LogisticRegression {
	cfg := defaultConfig()
	cfg.penalty = 1e-4
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LogisticRegression{
		state:    model.NewStateManager("logistic_reg"),
		cfg:      cfg,
		nClasses: nClasses,
	}
}

// Fit minimizes the penalized multinomial loss. Hitting the iteration
// budget raises a ConvergenceWarning but still yields a usable model.
func (lr *LogisticRegression) Fit(X mat.Matrix, y []float64) error {
	if err := model.CheckFit("LogisticRegression.Fit", X, y); err != nil {
		return err
	}
	if lr.nClasses < 2 {
		return errors.NewValidationError("classes", "logistic regression needs at least 2 classes", lr.nClasses)
	}
	for _, v := range y {
		if v < 0 || int(v) >= lr.nClasses || v != math.Trunc(v) {
			return errors.NewValueError("LogisticRegression.Fit", "labels must be class indices")
		}
	}
	lr.state.Reset()

	n, p := X.Dims()
	Xa := design(X, true)
	k := lr.nClasses
	lambda := lr.cfg.penalty

	// scratch buffers shared by Func and Grad; optimize calls them sequentially
	scores := mat.NewDense(n, k, nil)
	resid := mat.NewDense(n, k, nil)
	row := make([]float64, k)

	loss := func(x []float64) float64 {
		W := mat.NewDense(k, p+1, x)
		scores.Mul(Xa, W.T())
		var nll float64
		for i := 0; i < n; i++ {
			mat.Row(row, i, scores)
			nll += floats.LogSumExp(row) - row[int(y[i])]
		}
		return nll/float64(n) + 0.5*lambda*slopeNorm(W)
	}
	grad := func(g, x []float64) {
		W := mat.NewDense(k, p+1, x)
		scores.Mul(Xa, W.T())
		for i := 0; i < n; i++ {
			mat.Row(row, i, scores)
			lse := floats.LogSumExp(row)
			for c := 0; c < k; c++ {
				pr := math.Exp(row[c] - lse)
				if c == int(y[i]) {
					pr--
				}
				resid.Set(i, c, pr)
			}
		}
		G := mat.NewDense(k, p+1, g)
		G.Mul(resid.T(), Xa)
		G.Scale(1/float64(n), G)
		for c := 0; c < k; c++ {
			for j := 1; j <= p; j++ {
				G.Set(c, j, G.At(c, j)+lambda*W.At(c, j))
			}
		}
	}

	problem := optimize.Problem{Func: loss, Grad: grad}
	settings := &optimize.Settings{
		MajorIterations:   lr.cfg.maxIter,
		GradientThreshold: lr.cfg.tol,
	}
	x0 := make([]float64, k*(p+1))

	result, err := errors.SafeCall("LogisticRegression.Fit", func() (*optimize.Result, error) {
		return optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	})
	if result == nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}
	if result.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("LBFGS", result.Stats.MajorIterations,
			"iteration limit reached; increase max_iter or the penalty"))
	} else if err != nil {
		// line search failures near the optimum still leave a usable point
		log.GetLogger().Debug("LBFGS stopped early",
			log.AlgorithmKey, "logistic_reg", log.IterationKey, result.Stats.MajorIterations, "status", result.Status.String())
	}
	if err := errors.CheckNumericalStability("LogisticRegression.Fit", result.X); err != nil {
		return err
	}

	lr.coef = mat.NewDense(k, p+1, result.X)
	lr.state.SetFitted(p, n)
	return nil
}

func slopeNorm(W *mat.Dense) float64 {
	k, cols := W.Dims()
	var s float64
	for c := 0; c < k; c++ {
		for j := 1; j < cols; j++ {
			v := W.At(c, j)
			s += v * v
		}
	}
	return s
}

// PredictProba returns class probabilities, one column per class.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "LogisticRegression.PredictProba")
	}
	n, p := X.Dims()
	if err := lr.state.CheckPredict("PredictProba", p); err != nil {
		return nil, err
	}
	var proba mat.Dense
	proba.Mul(design(X, true), lr.coef.T())
	row := make([]float64, lr.nClasses)
	for i := 0; i < n; i++ {
		mat.Row(row, i, &proba)
		lse := floats.LogSumExp(row)
		for c := range row {
			row[c] = math.Exp(row[c] - lse)
		}
		proba.SetRow(i, row)
	}
	return &proba, nil
}

// Predict returns the most probable class index of every row.
func (lr *LogisticRegression) Predict(X mat.Matrix) ([]float64, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, k := proba.Dims()
	out := make([]float64, n)
	row := make([]float64, k)
	for i := range out {
		mat.Row(row, i, proba)
		out[i] = float64(floats.MaxIdx(row))
	}
	return out, nil
}

// Params returns the hyperparameters the model was built with.
func (lr *LogisticRegression) Params() model.Params {
	return model.Params{model.Penalty: lr.cfg.penalty, model.MaxIter: lr.cfg.maxIter}
}

// NumClasses returns the number of classes.
func (lr *LogisticRegression) NumClasses() int {
	return lr.nClasses
}

// ExportWeights exports class-major slopes and one intercept per class.
func (lr *LogisticRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("ExportWeights"); err != nil {
		return nil, err
	}
	k, cols := lr.coef.Dims()
	mw := &model.ModelWeights{
		ModelType:       "logistic_reg",
		Version:         model.WeightsVersion,
		Intercepts:      make([]float64, k),
		Hyperparameters: lr.Params(),
	}
	for c := 0; c < k; c++ {
		mw.Intercepts[c] = lr.coef.At(c, 0)
		for j := 1; j < cols; j++ {
			mw.Coefficients = append(mw.Coefficients, lr.coef.At(c, j))
		}
	}
	return mw, nil
}
