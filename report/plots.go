package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/easyfit"
	"github.com/YuminosukeSato/easyfit/core/model"
	"github.com/YuminosukeSato/easyfit/metrics"
	"github.com/YuminosukeSato/easyfit/pkg/errors"
	"github.com/YuminosukeSato/easyfit/tune"
)

// Plot size of every figure.
const (
	Width  = 6 * vg.Inch
	Height = 4 * vg.Inch
)

// save writes p to path; the extension (.png, .svg, .pdf) picks the format.
func save(p *plot.Plot, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create plot directory %s", dir)
		}
	}
	if err := p.Save(Width, Height, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

func identity() *plotter.Function {
	f := plotter.NewFunction(func(x float64) float64 { return x })
	f.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	f.Color = color.Gray{Y: 128}
	return f
}

// rocScores returns the 0/1 truth and the score of the positive class. The
// second level is positive for two classes; with more classes the first
// level is compared against the rest.
func rocScores(f *easyfit.Fit) ([]float64, []float64) {
	positive := 1
	if len(f.Levels) > 2 {
		positive = 0
	}
	truth := lo.Map(f.Truth, func(v float64, _ int) float64 {
		if int(v) == positive {
			return 1
		}
		return 0
	})
	n, _ := f.Probabilities.Dims()
	score := make([]float64, n)
	for i := range score {
		score[i] = f.Probabilities.At(i, positive)
	}
	return truth, score
}

// PlotROC draws one ROC curve per successful classification fit.
func PlotROC(fits []*easyfit.Fit, path string) error {
	p := plot.New()
	p.Title.Text = "ROC"
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = 0, 1, 0, 1
	p.Add(plotter.NewGrid(), identity())

	var lines []interface{}
	for _, f := range fits {
		if !f.OK() || f.Mode != model.Classification || f.Probabilities == nil {
			continue
		}
		roc, err := metrics.ROCCurve(rocScores(f))
		if err != nil {
			return errors.Wrapf(err, "ROC of %s", f.Name)
		}
		xys := make(plotter.XYs, len(roc.FPR))
		for i := range xys {
			xys[i].X, xys[i].Y = roc.FPR[i], roc.TPR[i]
		}
		lines = append(lines, fmt.Sprintf("%s (AUC %.3f)", f.Name, roc.AUC()), xys)
	}
	if len(lines) == 0 {
		return errors.NewValueError("PlotROC", "no classification fit with probabilities")
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return errors.Wrap(err, "PlotROC")
	}
	p.Legend.Left = false
	p.Legend.Top = false
	return save(p, path)
}

// PlotPredictions draws test truth against predictions of a regression fit
// with the identity line.
func PlotPredictions(f *easyfit.Fit, path string) error {
	if f.Mode != model.Regression {
		return errors.Wrapf(errors.ErrUnsupportedMode, "%s: prediction plot needs regression", f.Name)
	}
	if !f.OK() {
		return errors.NewNotFittedError(f.Name, "PlotPredictions")
	}
	xys := make(plotter.XYs, len(f.Truth))
	for i := range xys {
		xys[i].X, xys[i].Y = f.Truth[i], f.Predictions[i]
	}
	p := plot.New()
	p.Title.Text = f.Name + ": observed vs predicted"
	p.X.Label.Text = "Observed"
	p.Y.Label.Text = "Predicted"

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return errors.Wrap(err, "PlotPredictions")
	}
	s.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(plotter.NewGrid(), s, identity())

	lower := math.Min(floats.Min(f.Truth), floats.Min(f.Predictions))
	upper := math.Max(floats.Max(f.Truth), floats.Max(f.Predictions))
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = lower, upper, lower, upper
	return save(p, path)
}

// PlotTuning draws the resampled mean of metric against each numeric tuning
// parameter. With more than one parameter every plot goes to its own file
// named after the parameter. It returns the written paths.
func PlotTuning(res *tune.Result, metric, path string) ([]string, error) {
	ranked, err := res.ShowBest(metric, 0)
	if err != nil {
		return nil, err
	}
	m := res.Metrics.Primary()
	if metric != "" {
		if m, err = metrics.Lookup(metric); err != nil {
			return nil, err
		}
	}
	numeric := lo.Filter(res.Ranges, func(r tune.ParamRange, _ int) bool { return r.Kind != tune.Categorical })
	if len(numeric) == 0 {
		return nil, errors.NewValueError("PlotTuning", res.Algorithm+" has no numeric tuning parameter")
	}

	var written []string
	for _, r := range numeric {
		xys := make(plotter.XYs, 0, len(ranked))
		for _, c := range ranked {
			s := c.Metrics[m.Name]
			if math.IsNaN(s.Mean) {
				continue
			}
			xys = append(xys, plotter.XY{X: c.Params.GetFloat(r.Name, math.NaN()), Y: s.Mean})
		}
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s tuning (%s)", res.Algorithm, res.Type)
		p.X.Label.Text = r.Name
		p.Y.Label.Text = m.Name + " (resampled mean)"
		if r.Log10 {
			p.X.Scale = plot.LogScale{}
			p.X.Tick.Marker = plot.LogTicks{Prec: -1}
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return written, errors.Wrapf(err, "PlotTuning %s", r.Name)
		}
		s.GlyphStyle.Radius = vg.Points(3)
		p.Add(plotter.NewGrid(), s)

		out := path
		if len(numeric) > 1 {
			ext := filepath.Ext(path)
			out = strings.TrimSuffix(path, ext) + "_" + r.Name + ext
		}
		if err := save(p, out); err != nil {
			return written, err
		}
		written = append(written, out)
	}
	return written, nil
}

// PlotMetricComparison draws the test value of metric for every successful
// fit as a bar chart.
func PlotMetricComparison(res *easyfit.Results, metric, path string) error {
	fits := res.Successful()
	if len(fits) == 0 {
		return errors.NewValueError("PlotMetricComparison", "no algorithm was fit successfully")
	}
	m := res.Metrics.Primary()
	if metric != "" {
		var err error
		if m, err = metrics.Lookup(metric); err != nil {
			return err
		}
	}
	values := make(plotter.Values, len(fits))
	for i, f := range fits {
		values[i] = f.TestMetrics[m.Name]
		if math.IsNaN(values[i]) {
			values[i] = 0
		}
	}
	p := plot.New()
	p.Title.Text = "Test " + m.Name
	p.Y.Label.Text = m.Name

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return errors.Wrap(err, "PlotMetricComparison")
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(plotter.NewGrid(), bars)
	p.NominalX(lo.Map(fits, func(f *easyfit.Fit, _ int) string { return f.Name })...)
	return save(p, path)
}

// PlotCoefficients draws the coefficients of a linear fit, one bar group per
// intercept (class).
func PlotCoefficients(f *easyfit.Fit, path string) error {
	mw, err := Coefficients(f)
	if err != nil {
		return err
	}
	p := plot.New()
	p.Title.Text = f.Name + " coefficients"
	p.Y.Label.Text = "Coefficient"

	k := len(mw.Intercepts)
	width := vg.Points(24 / float64(k))
	for c := 0; c < k; c++ {
		values := make(plotter.Values, len(mw.Features))
		for j := range values {
			values[j] = mw.Coefficient(c, j)
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return errors.Wrap(err, "PlotCoefficients")
		}
		bars.Color = plotutil.Color(c)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = width * vg.Length(float64(c)-float64(k-1)/2)
		p.Add(bars)
		if len(mw.Classes) == k {
			p.Legend.Add(mw.Classes[c], bars)
		}
	}
	p.Add(plotter.NewGrid())
	p.NominalX(mw.Features...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = -1
	return save(p, path)
}

// Coefficients exports the weights of a linear fit with the design column
// names and class levels filled in.
func Coefficients(f *easyfit.Fit) (*model.ModelWeights, error) {
	if !f.OK() {
		return nil, errors.NewNotFittedError(f.Name, "Coefficients")
	}
	cl, ok := f.Learner.(model.CoefficientLearner)
	if !ok {
		return nil, errors.NewValueError("Coefficients", f.Name+" has no coefficients")
	}
	mw, err := cl.ExportWeights()
	if err != nil {
		return nil, err
	}
	mw.Features = f.Recipe.FeatureNames()
	if f.Mode == model.Classification {
		mw.Classes = append([]string(nil), f.Levels...)
	}
	if err := mw.Validate(); err != nil {
		return nil, err
	}
	return mw, nil
}
