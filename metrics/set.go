package metrics

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/sjwhitworth/golearn/evaluation"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/pkg/log"
)

// Input is what a metric is computed from. Classification truth and
// predictions are level indices; Proba has one column per level and may be
// nil when the learner gives no probabilities.
type Input struct {
	Truth []float64
	Pred  []float64
	Proba mat.Matrix
}

// Metric is a named performance measure.
type Metric struct {
	Name       string
	Mode       model.Mode
	Maximize   bool
	NeedsProba bool
	compute    func(in Input) (float64, error)
}

// Better reports whether a is a better value than b. NaN is never better.
func (m Metric) Better(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	if m.Maximize {
		return a > b
	}
	return a < b
}

func vec(x []float64) *mat.VecDense {
	return mat.NewVecDense(len(x), x)
}

func regression(name string, maximize bool, f func(yTrue, yPred *mat.VecDense) (float64, error)) Metric {
	return Metric{Name: name, Mode: model.Regression, Maximize: maximize, compute: func(in Input) (float64, error) {
		return f(vec(in.Truth), vec(in.Pred))
	}}
}

// levelNames names class indices "0", "1", ... covering the probability
// columns and every index seen in truth or predictions.
func levelNames(in Input) []string {
	k := 0
	if in.Proba != nil {
		_, k = in.Proba.Dims()
	}
	for _, v := range append(append([]float64(nil), in.Truth...), in.Pred...) {
		if int(v)+1 > k {
			k = int(v) + 1
		}
	}
	levels := make([]string, k)
	for i := range levels {
		levels[i] = strconv.Itoa(i)
	}
	return levels
}

func confusion(in Input) (evaluation.ConfusionMatrix, []string, error) {
	levels := levelNames(in)
	cm, err := ConfusionMatrix(in.Truth, in.Pred, levels)
	return cm, levels, err
}

var catalog = []Metric{
	regression("rmse", false, RMSE),
	regression("rsq", true, RSquared),
	regression("rsq_trad", true, R2Score),
	regression("mae", false, MAE),
	regression("mse", false, MSE),
	regression("mape", false, MAPE),
	regression("explained_variance", true, ExplainedVarianceScore),
	{Name: "accuracy", Mode: model.Classification, Maximize: true, compute: func(in Input) (float64, error) {
		return Accuracy(vec(in.Truth), vec(in.Pred))
	}},
	{Name: "class_error", Mode: model.Classification, compute: func(in Input) (float64, error) {
		return ClassificationError(vec(in.Truth), vec(in.Pred))
	}},
	{Name: "kap", Mode: model.Classification, Maximize: true, compute: func(in Input) (float64, error) {
		cm, _, err := confusion(in)
		if err != nil {
			return 0, err
		}
		return Kappa(cm)
	}},
	// binary f_meas treats the first level as the event, multiclass is macro averaged
	{Name: "f_meas", Mode: model.Classification, Maximize: true, compute: func(in Input) (float64, error) {
		cm, levels, err := confusion(in)
		if err != nil {
			return 0, err
		}
		if len(levels) == 2 {
			return F1(levels[0], cm), nil
		}
		return MacroF1(cm), nil
	}},
	{Name: "precision", Mode: model.Classification, Maximize: true, compute: func(in Input) (float64, error) {
		cm, _, err := confusion(in)
		if err != nil {
			return 0, err
		}
		return MacroPrecision(cm), nil
	}},
	{Name: "recall", Mode: model.Classification, Maximize: true, compute: func(in Input) (float64, error) {
		cm, _, err := confusion(in)
		if err != nil {
			return 0, err
		}
		return MacroRecall(cm), nil
	}},
	{Name: "roc_auc", Mode: model.Classification, Maximize: true, NeedsProba: true, compute: func(in Input) (float64, error) {
		return MacroAUC(in.Truth, in.Proba)
	}},
	{Name: "mn_log_loss", Mode: model.Classification, NeedsProba: true, compute: func(in Input) (float64, error) {
		return MultiLogLoss(in.Truth, in.Proba)
	}},
}

var defaults = map[model.Mode][]string{
	model.Regression:     {"rmse", "rsq", "mae"},
	model.Classification: {"accuracy", "kap", "f_meas", "roc_auc", "mn_log_loss"},
}

// Lookup returns the metric called name (case-insensitive).
func Lookup(name string) (Metric, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	m, ok := lo.Find(catalog, func(m Metric) bool { return m.Name == key })
	if !ok {
		return Metric{}, errors.NewValidationError("metric", "unknown metric", name)
	}
	return m, nil
}

// Available returns the metric names usable in mode, sorted.
func Available(mode model.Mode) []string {
	names := lo.FilterMap(catalog, func(m Metric, _ int) (string, bool) { return m.Name, m.Mode == mode })
	sort.Strings(names)
	return names
}

// Set is an ordered metric set for one mode. The first metric is the
// primary one used for tuning and ranking unless another is named.
type Set struct {
	Mode    model.Mode
	Metrics []Metric
}

// Values maps metric name to estimate. Metrics that could not be computed
// are NaN.
type Values map[string]float64

// DefaultSet returns the default metrics of mode.
func DefaultSet(mode model.Mode) Set {
	s, _ := NewSet(mode)
	return s
}

// NewSet builds a set from metric names; no names means the mode defaults.
func NewSet(mode model.Mode, names ...string) (Set, error) {
	if _, ok := defaults[mode]; !ok {
		return Set{}, errors.Wrapf(errors.ErrUnsupportedMode, "metric set for mode %q", mode)
	}
	if len(names) == 0 {
		names = defaults[mode]
	}
	s := Set{Mode: mode}
	for _, name := range names {
		m, err := Lookup(name)
		if err != nil {
			return Set{}, err
		}
		if _, dup := s.Get(m.Name); dup {
			continue
		}
		if m.Mode != mode {
			return Set{}, errors.NewValidationError("metric",
				"not a "+string(mode)+" metric (available: "+strings.Join(Available(mode), ", ")+")", name)
		}
		s.Metrics = append(s.Metrics, m)
	}
	return s, nil
}

// Names returns the metric names in set order.
func (s Set) Names() []string {
	return lo.Map(s.Metrics, func(m Metric, _ int) string { return m.Name })
}

// Primary returns the first metric of the set.
func (s Set) Primary() Metric {
	return s.Metrics[0]
}

// Get returns the metric called name when it belongs to the set.
func (s Set) Get(name string) (Metric, bool) {
	return lo.Find(s.Metrics, func(m Metric) bool { return m.Name == name })
}

// Compute evaluates every metric of the set. Input shape problems are
// errors; a metric that is undefined for this data is NaN and reported as
// an UndefinedMetricWarning. Probability metrics are NaN when proba is nil.
func (s Set) Compute(truth, pred []float64, proba mat.Matrix) (Values, error) {
	if len(truth) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "metrics.Compute")
	}
	if len(pred) != len(truth) {
		return nil, errors.NewDimensionError("metrics.Compute", len(truth), len(pred), 0)
	}
	if proba != nil {
		if r, _ := proba.Dims(); r != len(truth) {
			return nil, errors.NewDimensionError("metrics.Compute", len(truth), r, 0)
		}
	}

	in := Input{Truth: truth, Pred: pred, Proba: proba}
	out := make(Values, len(s.Metrics))
	for _, m := range s.Metrics {
		if m.NeedsProba && proba == nil {
			log.GetLogger().Debug("metric skipped, no class probabilities", log.MetricKey, m.Name)
			out[m.Name] = math.NaN()
			continue
		}
		v, err := errors.SafeCall("metrics."+m.Name, func() (float64, error) { return m.compute(in) })
		if err != nil {
			errors.Warn(errors.NewUndefinedMetricWarning(m.Name, err.Error(), math.NaN()))
			v = math.NaN()
		}
		out[m.Name] = v
	}
	return out, nil
}

// Compute evaluates the default metric set of mode.
func Compute(mode model.Mode, truth, pred []float64, proba mat.Matrix) (Values, error) {
	s, err := NewSet(mode)
	if err != nil {
		return nil, err
	}
	return s.Compute(truth, pred, proba)
}
