package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// pair は入力ベクトルを検証し、スライスとして取り出す
func pair(op string, yTrue, yPred mat.Vector) ([]float64, []float64, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return nil, nil, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred), nil
}

// vecPair は *mat.VecDense 用の pair。nil ポインタを interface に包む前に弾く。
func vecPair(op string, yTrue, yPred *mat.VecDense) ([]float64, []float64, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, errors.NewValueError(op, "nil vector")
	}
	return pair(op, yTrue, yPred)
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return mse(t, p), nil
}

func mse(t, p []float64) float64 {
	d := make([]float64, len(t))
	floats.SubTo(d, t, p)
	return floats.Dot(d, d) / float64(len(t))
}

// MSEMatrix は n×1 行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("MSEMatrix", "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return 0, errors.NewValueError("MSEMatrix", "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return 0, errors.NewDimensionError("MSEMatrix", rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return 0, errors.NewValueError("MSEMatrix", "must be a column vector (n×1 matrix)")
	}
	return mse(mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	v, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// L=1 の floats.Distance は Σ|t-p|
	return floats.Distance(t, p, 1) / float64(len(t)), nil
}

// R2Score は決定係数（R²、1 - RSS/TSS）を計算する。
// yTrue に分散がない場合はエラーを返す。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	mean := stat.Mean(t, nil)
	var tss float64
	for _, v := range t {
		tss += (v - mean) * (v - mean)
	}
	if tss == 0 {
		return 0, errors.Newf("R2Score: total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - mse(t, p)*float64(len(t))/tss, nil
}

// RSquared は予測と実測の相関係数の二乗を返す。
// 予測の分散が 0 の場合、相関は定義されない。
func RSquared(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("RSquared", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if len(t) < 2 || stat.Variance(t, nil) == 0 || stat.Variance(p, nil) == 0 {
		return 0, errors.Newf("RSquared: correlation undefined for constant truth or prediction")
	}
	r := stat.Correlation(t, p, nil)
	return r * r, nil
}

// MAPE は平均絶対パーセンテージ誤差を計算する。yTrue が 0 の行は除外する。
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	valid := 0
	for i, v := range t {
		if v == 0 {
			continue
		}
		sum += math.Abs(v-p[i]) / math.Abs(v)
		valid++
	}
	if valid == 0 {
		return 0, errors.Newf("MAPE: all yTrue values are zero")
	}
	return sum / float64(valid) * 100, nil
}

// ExplainedVarianceScore は説明分散スコア 1 - Var(yTrue - yPred) / Var(yTrue) を計算する
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	diff := make([]float64, len(t))
	floats.SubTo(diff, t, p)

	_, varTrue := stat.PopMeanVariance(t, nil)
	if varTrue == 0 {
		return 0, errors.Newf("ExplainedVarianceScore: no variance in yTrue")
	}
	_, varDiff := stat.PopMeanVariance(diff, nil)
	return 1 - varDiff/varTrue, nil
}
