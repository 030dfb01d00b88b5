package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/core/parallel"
	"github.com/YuminosukeSato/easyfit/metrics"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// Regression は最小二乗法（penalty > 0 のときリッジ回帰）による線形回帰モデル。
// 切片は正則化しない。
type Regression struct {
	state *model.StateManager
	cfg   config

	Weights   *mat.VecDense // 重み（係数）
	Intercept float64       // 切片
}

// NewRegression は新しい線形回帰モデルを作成する
func NewRegression(opts ...Option) *Regression {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Regression{state: model.NewStateManager("linear_reg"), cfg: cfg}
}

// Fit はモデルを訓練データで学習させる。
// 正規方程式 (XᵀX + nλD) w = Xᵀy をコレスキー分解で解く（D は切片以外の対角）。
func (lr *Regression) Fit(X mat.Matrix, y []float64) error {
	if err := model.CheckFit("LinearRegression.Fit", X, y); err != nil {
		return err
	}
	r, c := X.Dims()
	lr.state.Reset()

	Xa := design(X, lr.cfg.fitIntercept)
	offset := 0
	if lr.cfg.fitIntercept {
		offset = 1
	}

	// XᵀX
	var xtx mat.SymDense
	xtx.SymOuterK(1, Xa.T())
	lambda := float64(r) * lr.cfg.penalty
	for j := offset; j < c+offset; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+lambda)
	}

	var xty mat.VecDense
	xty.MulVec(Xa.T(), mat.NewVecDense(r, y))

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &xty); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "ill-conditioned normal equations", err)
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", w.RawVector().Data); err != nil {
		return err
	}

	// 切片と重みを分離
	lr.Intercept = 0
	if lr.cfg.fitIntercept {
		lr.Intercept = w.AtVec(0)
	}
	lr.Weights = mat.NewVecDense(c, nil)
	lr.Weights.CopyVec(w.SliceVec(offset, c+offset))

	lr.state.SetFitted(c, r)
	return nil
}

// design は切片項のために X の先頭に 1 の列を追加した行列を返す
func design(X mat.Matrix, intercept bool) *mat.Dense {
	r, c := X.Dims()
	if !intercept {
		return mat.DenseCopyOf(X)
	}
	Xa := mat.NewDense(r, c+1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			Xa.Set(i, 0, 1.0)
			for j := 0; j < c; j++ {
				Xa.Set(i, j+1, X.At(i, j))
			}
		}
	})
	return Xa
}

// Predict は y = X·w + b を返す
func (lr *Regression) Predict(X mat.Matrix) ([]float64, error) {
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "LinearRegression.Predict")
	}
	r, c := X.Dims()
	if err := lr.state.CheckPredict("Predict", c); err != nil {
		return nil, err
	}

	pred := mat.NewVecDense(r, nil)
	pred.MulVec(X, lr.Weights)
	out := pred.RawVector().Data
	for i := range out {
		out[i] += lr.Intercept
	}
	return out, nil
}

// Params は学習に使用したハイパーパラメータを返す
func (lr *Regression) Params() model.Params {
	return model.Params{model.Penalty: lr.cfg.penalty}
}

// IsFitted は Fit が成功したかどうかを返す
func (lr *Regression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetWeights は学習された重み（係数）を返す
func (lr *Regression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return mat.Col(nil, 0, lr.Weights)
}

// Score はモデルの決定係数（R²）を計算する
func (lr *Regression) Score(X mat.Matrix, y []float64) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	if len(y) != len(pred) {
		return 0, errors.NewDimensionError("LinearRegression.Score", len(pred), len(y), 0)
	}
	return metrics.R2Score(mat.NewVecDense(len(y), y), mat.NewVecDense(len(pred), pred))
}

// ExportWeights は係数と切片を ModelWeights として書き出す。
// 特徴量名は呼び出し側で設定する。
func (lr *Regression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("ExportWeights"); err != nil {
		return nil, err
	}
	return &model.ModelWeights{
		ModelType:       "linear_reg",
		Version:         model.WeightsVersion,
		Coefficients:    lr.GetWeights(),
		Intercepts:      []float64{lr.Intercept},
		Hyperparameters: lr.Params(),
	}, nil
}

// ImportWeights は書き出した重みから学習済みモデルを復元する
func (lr *Regression) ImportWeights(mw *model.ModelWeights) error {
	if err := mw.Validate(); err != nil {
		return err
	}
	if mw.ModelType != "linear_reg" || len(mw.Intercepts) != 1 {
		return errors.NewValidationError("model_type", "not linear_reg weights", mw.ModelType)
	}
	lr.cfg.penalty = mw.Hyperparameters.GetFloat(model.Penalty, lr.cfg.penalty)
	lr.Weights = mat.NewVecDense(len(mw.Coefficients), append([]float64(nil), mw.Coefficients...))
	lr.Intercept = mw.Intercepts[0]
	lr.state.SetFitted(len(mw.Coefficients), 0)
	return nil
}
