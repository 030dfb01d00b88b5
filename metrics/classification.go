package metrics

import (
	"math"
	"strconv"

	"github.com/sjwhitworth/golearn/evaluation"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/easyfit/pkg/errors"
)

// logLossEps は log(0) を避けるための確率のクリップ幅
const logLossEps = 1e-15

// Accuracy は正解率を計算する。ラベルはクラスインデックス（float64）で渡す。
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return accuracy(t, p), nil
}

func accuracy(t, p []float64) float64 {
	hit := 0
	for i := range t {
		if t[i] == p[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(t))
}

// ClassificationError は誤分類率 1 - Accuracy を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// BinaryLogLoss は二値分類の対数損失を計算する。
// yPred は正例（ラベル 1）の確率。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", t); err != nil {
		return 0, err
	}
	var sum float64
	for i, y := range t {
		q := errors.ClipValue(p[i], logLossEps, 1-logLossEps)
		sum += y*math.Log(q) + (1-y)*math.Log(1-q)
	}
	return -sum / float64(len(t)), nil
}

// MultiLogLoss は多クラス対数損失を計算する。proba の列 k はクラス k の確率。
func MultiLogLoss(truth []float64, proba mat.Matrix) (float64, error) {
	if proba == nil || len(truth) == 0 {
		return 0, errors.NewValueError("MultiLogLoss", "empty input")
	}
	rows, cols := proba.Dims()
	if rows != len(truth) {
		return 0, errors.NewDimensionError("MultiLogLoss", len(truth), rows, 0)
	}
	var sum float64
	for i, y := range truth {
		k := int(y)
		if k < 0 || k >= cols {
			return 0, errors.NewValueError("MultiLogLoss", "class index "+strconv.Itoa(k)+" outside probability columns")
		}
		sum += math.Log(errors.ClipValue(proba.At(i, k), logLossEps, 1))
	}
	return -sum / float64(len(truth)), nil
}

// ROC は ROC 曲線。点はしきい値の降順に並び、(0, 0) から始まる。
type ROC struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
}

// ROCCurve は正例スコアの ROC 曲線を計算する。truth は正例が 1、それ以外が 0 で、
// 両方のクラスが含まれている必要がある。
func ROCCurve(truth, score []float64) (*ROC, error) {
	if len(truth) == 0 {
		return nil, errors.NewValueError("ROCCurve", "empty vector")
	}
	if len(score) != len(truth) {
		return nil, errors.NewDimensionError("ROCCurve", len(truth), len(score), 0)
	}
	if err := checkBinary("ROCCurve", truth); err != nil {
		return nil, err
	}
	pos := floats.Sum(truth)
	if pos == 0 || pos == float64(len(truth)) {
		return nil, errors.NewValueError("ROCCurve", "only one class present in truth")
	}

	// stat.ROC は昇順にソートされたスコアを要求する
	y := append([]float64(nil), score...)
	inds := make([]int, len(y))
	floats.Argsort(y, inds)
	classes := make([]bool, len(y))
	for i, j := range inds {
		classes[i] = truth[j] == 1
	}
	tpr, fpr, thresh := stat.ROC(nil, y, classes, nil)
	return &ROC{FPR: fpr, TPR: tpr, Thresholds: thresh}, nil
}

// AUC は台形公式で ROC 曲線下面積を返す
func (r *ROC) AUC() float64 {
	return integrate.Trapezoidal(r.FPR, r.TPR)
}

// AUC は ROC 曲線下面積を計算する。yTrue は 0/1 の二値ラベル、yPred は正例のスコア。
// 片方のクラスしか存在しない場合は UndefinedMetricWarning を出して 0.5 を返す。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return auc(t, p)
}

func auc(t, p []float64) (float64, error) {
	if err := checkBinary("AUC", t); err != nil {
		return 0, err
	}
	pos := floats.Sum(t)
	if pos == 0 || pos == float64(len(t)) {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in truth", 0.5))
		return 0.5, nil
	}
	roc, err := ROCCurve(t, p)
	if err != nil {
		return 0, err
	}
	return roc.AUC(), nil
}

// AUCMatrix は行列入力の先頭列に対して AUC を計算する
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 || rPred == 0 || cPred == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}
	return auc(mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred))
}

// MacroAUC は多クラスの one-vs-rest AUC をクラス平均する。
// 二値の場合はクラス 1 の確率列に対する通常の AUC と同じ。
// 評価データに現れないクラスは平均から除外する。
func MacroAUC(truth []float64, proba mat.Matrix) (float64, error) {
	if proba == nil || len(truth) == 0 {
		return 0, errors.NewValueError("MacroAUC", "empty input")
	}
	rows, cols := proba.Dims()
	if rows != len(truth) {
		return 0, errors.NewDimensionError("MacroAUC", len(truth), rows, 0)
	}
	if cols < 2 {
		return 0, errors.NewValueError("MacroAUC", "need at least 2 probability columns")
	}
	if cols == 2 {
		return auc(truth, mat.Col(nil, 1, proba))
	}

	var sum float64
	used := 0
	bin := make([]float64, len(truth))
	for k := 0; k < cols; k++ {
		for i, y := range truth {
			bin[i] = 0
			if int(y) == k {
				bin[i] = 1
			}
		}
		if pos := floats.Sum(bin); pos == 0 || pos == float64(len(bin)) {
			continue
		}
		roc, err := ROCCurve(bin, mat.Col(nil, k, proba))
		if err != nil {
			return 0, err
		}
		sum += roc.AUC()
		used++
	}
	if used == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "no class has both positive and negative rows", 0.5))
		return 0.5, nil
	}
	if used < cols {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc",
			strconv.Itoa(cols-used)+" classes absent from truth were skipped", sum/float64(used)))
	}
	return sum / float64(used), nil
}

// ConfusionMatrix は golearn 形式の混同行列（実測ラベル -> 予測ラベル -> 件数）を作る。
// truth / pred はクラスインデックス、levels はそのラベル名。
func ConfusionMatrix(truth, pred []float64, levels []string) (evaluation.ConfusionMatrix, error) {
	if len(truth) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "empty vector")
	}
	if len(pred) != len(truth) {
		return nil, errors.NewDimensionError("ConfusionMatrix", len(truth), len(pred), 0)
	}
	label := func(v float64) (string, error) {
		k := int(v)
		if k < 0 || k >= len(levels) {
			return "", errors.NewValueError("ConfusionMatrix", "class index "+strconv.Itoa(k)+" has no level")
		}
		return levels[k], nil
	}

	cm := make(evaluation.ConfusionMatrix, len(levels))
	for _, l := range levels {
		cm[l] = make(map[string]int, len(levels))
	}
	for i := range truth {
		ref, err := label(truth[i])
		if err != nil {
			return nil, err
		}
		got, err := label(pred[i])
		if err != nil {
			return nil, err
		}
		cm[ref][got]++
	}
	return cm, nil
}

// Kappa は Cohen のカッパ係数を計算する
func Kappa(cm evaluation.ConfusionMatrix) (float64, error) {
	var n float64
	rowSum := make(map[string]float64)
	colSum := make(map[string]float64)
	for ref, row := range cm {
		for got, c := range row {
			n += float64(c)
			rowSum[ref] += float64(c)
			colSum[got] += float64(c)
		}
	}
	if n == 0 {
		return 0, errors.NewValueError("Kappa", "empty confusion matrix")
	}
	po := evaluation.GetAccuracy(cm)
	var pe float64
	for l, r := range rowSum {
		pe += (r / n) * (colSum[l] / n)
	}
	if pe == 1 {
		return 0, errors.Newf("Kappa: expected agreement is 1, kappa is undefined")
	}
	return (po - pe) / (1 - pe), nil
}

// MacroPrecision はクラスごとの適合率の単純平均。
// 予測が一件もないクラスの適合率は 0 とし、UndefinedMetricWarning を出す。
func MacroPrecision(cm evaluation.ConfusionMatrix) float64 {
	return macro("precision", cm, evaluation.GetPrecision)
}

// MacroRecall はクラスごとの再現率の単純平均
func MacroRecall(cm evaluation.ConfusionMatrix) float64 {
	return macro("recall", cm, evaluation.GetRecall)
}

// MacroF1 はクラスごとの F1 の単純平均
func MacroF1(cm evaluation.ConfusionMatrix) float64 {
	return macro("f_meas", cm, evaluation.GetF1Score)
}

// F1 は一つのクラスの F1 スコア。定義できない場合は 0 を返す。
func F1(class string, cm evaluation.ConfusionMatrix) float64 {
	v := evaluation.GetF1Score(class, cm)
	if math.IsNaN(v) {
		errors.Warn(errors.NewUndefinedMetricWarning("f_meas", "no true or predicted rows for "+class, 0))
		return 0
	}
	return v
}

func macro(name string, cm evaluation.ConfusionMatrix, f func(string, evaluation.ConfusionMatrix) float64) float64 {
	if len(cm) == 0 {
		return 0
	}
	var sum float64
	undefined := 0
	for class := range cm {
		v := f(class, cm)
		if math.IsNaN(v) {
			undefined++
			continue
		}
		sum += v
	}
	if undefined > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(name,
			strconv.Itoa(undefined)+" classes have no predicted or true rows", 0))
	}
	return sum / float64(len(cm))
}

func checkBinary(op string, t []float64) error {
	for _, v := range t {
		if v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1, got "+strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	return nil
}
