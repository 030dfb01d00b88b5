// Package model は全ての学習エンジンが共有する契約を定義します。
package model

import "gonum.org/v1/gonum/mat"

// Learner は学習と予測が可能なモデルのインターフェースです。
//
// y は回帰では目的変数の値、分類ではクラスの水準インデックス (0, 1, ..., K-1)
// を float64 で表したものです。Predict も同じ表現で返します。
type Learner interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X mat.Matrix, y []float64) error

	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) ([]float64, error)

	// Params は学習に使用したハイパーパラメータを返す
	Params() Params
}

// ProbabilityLearner はクラス確率を出力できる分類器です。
// PredictProba は n×K 行列を返し、各行の和は 1 です。
type ProbabilityLearner interface {
	Learner
	PredictProba(X mat.Matrix) (*mat.Dense, error)
}

// CoefficientLearner は線形モデルのように係数をエクスポートできるモデルです。
type CoefficientLearner interface {
	Learner
	ExportWeights() (*ModelWeights, error)
}

// Classifier は学習時のクラス数を知っている分類器です。
type Classifier interface {
	Learner
	NumClasses() int
}

// OneHot はクラス確率を持たない分類器の予測を確率行列に変換します。
// 予測されたクラスの列が 1、それ以外は 0 になります。
func OneHot(pred []float64, nClasses int) *mat.Dense {
	out := mat.NewDense(len(pred), nClasses, nil)
	for i, c := range pred {
		if k := int(c); k >= 0 && k < nClasses {
			out.Set(i, k, 1)
		}
	}
	return out
}
